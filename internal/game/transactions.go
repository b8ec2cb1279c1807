package game

import (
	"fmt"
	"math"
	"strings"
)

// Effect declares which derived fields a transaction can invalidate.
type Effect uint8

const (
	// EffectBalance touches cash only; cached income stays valid.
	EffectBalance Effect = iota
	// EffectHoldings changes levels or holdings, so income is recomputed.
	EffectHoldings
)

// Tx is one state transition. Apply runs it against a private copy of the
// snapshot and only publishes the copy if it succeeds.
type Tx struct {
	Kind   string
	Effect Effect
	run    func(s *GameState) error
}

// Apply runs tx on a clone of s. On error the original snapshot is returned
// untouched. On success the clone has income (when tx declares holdings
// changes) and task completion recomputed before it is returned.
func Apply(s *GameState, tx Tx) (*GameState, error) {
	next := s.Clone()
	if err := tx.run(next); err != nil {
		return s, fmt.Errorf("%s: %w", tx.Kind, err)
	}
	if tx.Effect == EffectHoldings {
		next.AutoIncomePerSecond = ComputeIncome(next)
	}
	evaluateTasks(next)
	return next, nil
}

// Credit adds amount to the balance. Used for taps.
func Credit(amount float64) Tx {
	return Tx{Kind: "credit", Effect: EffectBalance, run: func(s *GameState) error {
		if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
			return ErrInvalidAmount
		}
		s.Balance += amount
		return nil
	}}
}

// IncomeTick pays one second of cached passive income.
func IncomeTick() Tx {
	return Tx{Kind: "income_tick", Effect: EffectBalance, run: func(s *GameState) error {
		s.Balance += s.AutoIncomePerSecond
		return nil
	}}
}

// MarketTick advances every stock, crypto and car one market step.
func MarketTick(rng Rand) Tx {
	return Tx{Kind: "market_tick", Effect: EffectBalance, run: func(s *GameState) error {
		advanceMarket(s, rng)
		return nil
	}}
}

// StampSave records the save time. It leaves everything else alone.
func StampSave(nowMillis int64) Tx {
	return Tx{Kind: "stamp_save", Effect: EffectBalance, run: func(s *GameState) error {
		s.LastSaveTime = nowMillis
		return nil
	}}
}

// buyLevels buys one level, or as many as the balance covers when all is
// set, pricing each level at its own escalated cost.
func buyLevels(s *GameState, all bool, limit int64, cost func(offset int64) float64) (int64, error) {
	var bought int64
	spent := 0.0
	for limit < 0 || bought < limit {
		c := cost(bought)
		if !(c > 0) || s.Balance-spent < c {
			break
		}
		spent += c
		bought++
		if !all {
			break
		}
	}
	if bought == 0 {
		return 0, ErrInsufficientFunds
	}
	s.Balance -= spent
	return bought, nil
}

func BuyUpgrade(id string, all bool) Tx {
	return Tx{Kind: "buy_upgrade", Effect: EffectHoldings, run: func(s *GameState) error {
		u := s.Upgrades.Get(id)
		if u == nil {
			return ErrNotFound
		}
		n, err := buyLevels(s, all, -1, func(offset int64) float64 {
			return UpgradeCost(u.BaseCost, u.Level+offset)
		})
		if err != nil {
			return err
		}
		u.Level += n
		if id == UpgradeClickBoost {
			s.ClickIncome += float64(n) * u.IncomePerLevel
		}
		return nil
	}}
}

func BuyBusiness(id string, all bool) Tx {
	return Tx{Kind: "buy_business", Effect: EffectHoldings, run: func(s *GameState) error {
		b := s.business(id)
		if b == nil {
			return ErrNotFound
		}
		n, err := buyLevels(s, all, -1, func(offset int64) float64 {
			return BusinessCost(b.BaseCost, b.Level, offset)
		})
		if err != nil {
			return err
		}
		b.Level += n
		return nil
	}}
}

func BuyCollection(id string, all bool) Tx {
	return Tx{Kind: "buy_collection", Effect: EffectHoldings, run: func(s *GameState) error {
		c := s.collection(id)
		if c == nil {
			return ErrNotFound
		}
		if c.Level >= c.MaxLevel {
			return ErrMaxLevel
		}
		n, err := buyLevels(s, all, c.MaxLevel-c.Level, func(offset int64) float64 {
			return CollectionCost(c.BaseCost, c.Level+offset)
		})
		if err != nil {
			return err
		}
		c.Level += n
		return nil
	}}
}

func BuyStock(ticker string, amount int64) Tx {
	return Tx{Kind: "buy_stock", Effect: EffectHoldings, run: func(s *GameState) error {
		if amount <= 0 {
			return ErrInvalidAmount
		}
		st := s.stock(ticker)
		if st == nil {
			return ErrNotFound
		}
		if amount > st.AvailableSupply {
			return ErrInsufficientSupply
		}
		cost := st.Price * float64(amount)
		if s.Balance < cost {
			return ErrInsufficientFunds
		}
		st.Shares += amount
		st.AvailableSupply -= amount
		s.Balance -= cost
		return nil
	}}
}

func SellStock(ticker string, amount int64) Tx {
	return Tx{Kind: "sell_stock", Effect: EffectHoldings, run: func(s *GameState) error {
		if amount <= 0 {
			return ErrInvalidAmount
		}
		st := s.stock(ticker)
		if st == nil {
			return ErrNotFound
		}
		if amount > st.Shares {
			return ErrInsufficientShares
		}
		st.Shares -= amount
		st.AvailableSupply += amount
		s.Balance += st.Price * float64(amount)
		return nil
	}}
}

// LiquidateStocks sells every held share at the current price in one pass.
func LiquidateStocks() Tx {
	return Tx{Kind: "liquidate_stocks", Effect: EffectHoldings, run: func(s *GameState) error {
		proceeds := 0.0
		sold := false
		for i := range s.Investments.Stocks {
			st := &s.Investments.Stocks[i]
			if st.Shares <= 0 {
				continue
			}
			proceeds += st.Price * float64(st.Shares)
			st.AvailableSupply += st.Shares
			st.Shares = 0
			sold = true
		}
		if !sold {
			return ErrNothingOwned
		}
		s.Balance += proceeds
		return nil
	}}
}

// IPOInput describes a player-founded listing.
type IPOInput struct {
	Name   string  `json:"name"`
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
	Supply int64   `json:"supply"`
}

// Validate checks the form-level rules. It does not look at game state.
func (in IPOInput) Validate() error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return ErrInvalidIPO
	}
	if len([]rune(name)) > IPOMaxNameLen {
		return ErrNameTooLong
	}
	if err := ValidateTicker(NormalizeTicker(in.Ticker)); err != nil {
		return err
	}
	if in.Price <= 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		return ErrInvalidIPO
	}
	if in.Supply < IPOMinSupply || in.Supply > IPOMaxSupply {
		return ErrInvalidIPO
	}
	return nil
}

// LaunchIPO lists a new stock wholly owned by the player and charges the
// listing fee. The new stock goes to the top of the catalog.
func LaunchIPO(in IPOInput) Tx {
	return Tx{Kind: "launch_ipo", Effect: EffectHoldings, run: func(s *GameState) error {
		if err := in.Validate(); err != nil {
			return err
		}
		ticker := NormalizeTicker(in.Ticker)
		if s.stock(ticker) != nil {
			return ErrTickerTaken
		}
		if s.Balance < IPOListingFee {
			return ErrInsufficientFunds
		}
		listed := Stock{
			ID:               ticker,
			Name:             strings.TrimSpace(in.Name),
			Industry:         IPODefaultSector,
			Shares:           in.Supply,
			Price:            in.Price,
			DividendPerShare: in.Price * DividendYield,
			History:          []float64{in.Price},
			TotalSupply:      in.Supply,
			AvailableSupply:  0,
		}
		s.Balance -= IPOListingFee
		s.Investments.Stocks = append([]Stock{listed}, s.Investments.Stocks...)
		return nil
	}}
}

// Crypto has no supply cap and trades in fractional units.
func BuyCrypto(id string, amount float64) Tx {
	return Tx{Kind: "buy_crypto", Effect: EffectBalance, run: func(s *GameState) error {
		if !(amount > 0) || math.IsInf(amount, 0) {
			return ErrInvalidAmount
		}
		c := s.crypto(id)
		if c == nil {
			return ErrNotFound
		}
		cost := c.Price * amount
		if s.Balance < cost {
			return ErrInsufficientFunds
		}
		c.Owned += amount
		s.Balance -= cost
		return nil
	}}
}

func SellCrypto(id string, amount float64) Tx {
	return Tx{Kind: "sell_crypto", Effect: EffectBalance, run: func(s *GameState) error {
		if !(amount > 0) || math.IsInf(amount, 0) {
			return ErrInvalidAmount
		}
		c := s.crypto(id)
		if c == nil {
			return ErrNotFound
		}
		if c.Owned < amount {
			return ErrInsufficientShares
		}
		c.Owned -= amount
		s.Balance += c.Price * amount
		return nil
	}}
}

func BuyRealEstate(id string) Tx {
	return Tx{Kind: "buy_real_estate", Effect: EffectHoldings, run: func(s *GameState) error {
		r := s.estate(id)
		if r == nil {
			return ErrNotFound
		}
		if s.Balance < r.Cost {
			return ErrInsufficientFunds
		}
		r.Owned++
		s.Balance -= r.Cost
		return nil
	}}
}

func BuyCar(id string) Tx {
	return Tx{Kind: "buy_car", Effect: EffectBalance, run: func(s *GameState) error {
		c := s.car(id)
		if c == nil {
			return ErrNotFound
		}
		if s.Balance < c.Cost {
			return ErrInsufficientFunds
		}
		c.Owned++
		s.Balance -= c.Cost
		return nil
	}}
}

// SellCar sells one car at its current appreciated value.
func SellCar(id string) Tx {
	return Tx{Kind: "sell_car", Effect: EffectBalance, run: func(s *GameState) error {
		c := s.car(id)
		if c == nil {
			return ErrNotFound
		}
		if c.Owned < 1 {
			return ErrNothingOwned
		}
		c.Owned--
		s.Balance += c.Cost
		return nil
	}}
}

// ClaimTask pays a completed task's reward exactly once.
func ClaimTask(id string) Tx {
	return Tx{Kind: "claim_task", Effect: EffectBalance, run: func(s *GameState) error {
		t := s.task(id)
		if t == nil {
			return ErrNotFound
		}
		if !t.IsCompleted || t.IsClaimed {
			return ErrNotClaimable
		}
		t.IsClaimed = true
		s.Balance += t.Reward
		return nil
	}}
}
