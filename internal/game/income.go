package game

// IncomeBreakdown splits passive income per second by source.
type IncomeBreakdown struct {
	AutoClicker float64 `json:"autoClicker"`
	Businesses  float64 `json:"businesses"`
	Dividends   float64 `json:"dividends"`
	Rent        float64 `json:"rent"`
	Collections float64 `json:"collections"`
}

func (b IncomeBreakdown) Total() float64 {
	return b.AutoClicker + b.Businesses + b.Dividends + b.Rent + b.Collections
}

func Income(s *GameState) IncomeBreakdown {
	var out IncomeBreakdown
	out.AutoClicker = float64(s.Upgrades.AutoClicker.Level) * s.Upgrades.AutoClicker.IncomePerLevel
	for _, b := range s.Businesses {
		out.Businesses += float64(b.Level) * b.BaseIncome
	}
	for _, st := range s.Investments.Stocks {
		out.Dividends += float64(st.Shares) * st.DividendPerShare
	}
	for _, r := range s.Investments.RealEstate {
		out.Rent += float64(r.Owned) * r.RentalIncome
	}
	for _, c := range s.Collections {
		out.Collections += CollectionBonus(c)
	}
	return out
}

// ComputeIncome is the value AutoIncomePerSecond must hold for s.
func ComputeIncome(s *GameState) float64 {
	return Income(s).Total()
}
