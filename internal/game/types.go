package game

import "time"

type Dashboard struct {
	Balance         float64          `json:"balance"`
	ClickIncome     float64          `json:"clickIncome"`
	IncomePerSecond float64          `json:"incomePerSecond"`
	Income          IncomeBreakdown  `json:"income"`
	Fortune         FortuneBreakdown `json:"fortune"`
	TotalFortune    float64          `json:"totalFortune"`
	CardTier        CardTier         `json:"cardTier"`
	Portfolio       PortfolioView    `json:"portfolio"`
	Tasks           []TaskView       `json:"tasks"`
	Claimable       int              `json:"claimable"`
	LastSaveTime    time.Time        `json:"lastSaveTime"`
}

type PortfolioView struct {
	Stocks     float64 `json:"stocks"`
	Crypto     float64 `json:"crypto"`
	RealEstate float64 `json:"realEstate"`
	Cars       float64 `json:"cars"`
}

type TaskView struct {
	Task
	Current float64 `json:"current"`
}

type StockView struct {
	Ticker          string  `json:"ticker"`
	Name            string  `json:"name"`
	Industry        string  `json:"industry"`
	Price           float64 `json:"price"`
	Up              bool    `json:"up"`
	Shares          int64   `json:"shares"`
	AvailableSupply int64   `json:"availableSupply"`
	MarketCap       float64 `json:"marketCap"`
	Scarcity        float64 `json:"scarcity"`
	MaxAffordable   int64   `json:"maxAffordable"`
}

type CryptoView struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Up            bool    `json:"up"`
	Owned         float64 `json:"owned"`
	MaxAffordable float64 `json:"maxAffordable"`
}

// NewDashboard summarizes s for display.
func NewDashboard(s *GameState) Dashboard {
	fortune := Fortune(s)
	total := fortune.Total()
	d := Dashboard{
		Balance:         s.Balance,
		ClickIncome:     s.ClickIncome,
		IncomePerSecond: s.AutoIncomePerSecond,
		Income:          Income(s),
		Fortune:         fortune,
		TotalFortune:    total,
		CardTier:        CardTierFor(total),
		Portfolio: PortfolioView{
			Stocks:     fortune.Stocks,
			Crypto:     fortune.Crypto,
			RealEstate: fortune.RealEstate,
			Cars:       fortune.Cars,
		},
		Tasks:        make([]TaskView, 0, len(s.Tasks)),
		LastSaveTime: time.UnixMilli(s.LastSaveTime).UTC(),
	}
	for _, t := range s.Tasks {
		d.Tasks = append(d.Tasks, TaskView{Task: t, Current: taskMetric(s, t, total)})
		if t.IsCompleted && !t.IsClaimed {
			d.Claimable++
		}
	}
	return d
}

func StockViews(s *GameState) []StockView {
	out := make([]StockView, 0, len(s.Investments.Stocks))
	for _, st := range s.Investments.Stocks {
		out = append(out, StockView{
			Ticker:          st.ID,
			Name:            st.Name,
			Industry:        st.Industry,
			Price:           st.Price,
			Up:              Trend(st.History),
			Shares:          st.Shares,
			AvailableSupply: st.AvailableSupply,
			MarketCap:       MarketCap(st),
			Scarcity:        ScarcityFactor(st),
			MaxAffordable:   MaxAffordableShares(s.Balance, st),
		})
	}
	return out
}

func CryptoViews(s *GameState) []CryptoView {
	out := make([]CryptoView, 0, len(s.Investments.Crypto))
	for _, c := range s.Investments.Crypto {
		out = append(out, CryptoView{
			ID:            c.ID,
			Name:          c.Name,
			Price:         c.Price,
			Up:            Trend(c.History),
			Owned:         c.Owned,
			MaxAffordable: MaxAffordableCrypto(s.Balance, c),
		})
	}
	return out
}
