package game

import "math"

const (
	upgradeGrowth    = 1.2
	businessGrowth   = 1.15
	collectionGrowth = 1.5

	collectionBonusRate = 0.01
)

func UpgradeCost(base float64, level int64) float64 {
	return base * math.Pow(upgradeGrowth, float64(level))
}

// BusinessCost prices the level that sits offset levels above level, which
// lets callers quote several purchases ahead without touching state.
func BusinessCost(base float64, level, offset int64) float64 {
	return base * math.Pow(businessGrowth, float64(level+offset))
}

func CollectionCost(base float64, level int64) float64 {
	return base * math.Pow(collectionGrowth, float64(level))
}

// CollectionCumulativeValue is the sum of every per-level cost paid to reach
// level: base * (1.5^level - 1) / 0.5.
func CollectionCumulativeValue(base float64, level int64) float64 {
	if level <= 0 {
		return 0
	}
	return base * (math.Pow(collectionGrowth, float64(level)) - 1) / (collectionGrowth - 1)
}

// CollectionBonus is the passive income a fully maxed collection pays.
func CollectionBonus(c Collection) float64 {
	if c.Level < c.MaxLevel {
		return 0
	}
	return CollectionCumulativeValue(c.BaseCost, c.MaxLevel) * collectionBonusRate
}

// FortuneBreakdown splits total fortune by asset class.
type FortuneBreakdown struct {
	Cash        float64 `json:"cash"`
	Businesses  float64 `json:"businesses"`
	Stocks      float64 `json:"stocks"`
	RealEstate  float64 `json:"realEstate"`
	Cars        float64 `json:"cars"`
	Crypto      float64 `json:"crypto"`
	Collections float64 `json:"collections"`
}

func (f FortuneBreakdown) Total() float64 {
	return f.Cash + f.Businesses + f.Stocks + f.RealEstate + f.Cars + f.Crypto + f.Collections
}

func Fortune(s *GameState) FortuneBreakdown {
	out := FortuneBreakdown{Cash: s.Balance}
	for _, b := range s.Businesses {
		out.Businesses += b.BaseCost * float64(b.Level)
	}
	out.Stocks = StockPortfolioValue(s)
	for _, r := range s.Investments.RealEstate {
		out.RealEstate += r.Cost * float64(r.Owned)
	}
	for _, c := range s.Investments.Cars {
		out.Cars += c.Cost * float64(c.Owned)
	}
	for _, c := range s.Investments.Crypto {
		out.Crypto += c.Price * c.Owned
	}
	for _, c := range s.Collections {
		out.Collections += CollectionCumulativeValue(c.BaseCost, c.Level)
	}
	return out
}

func TotalFortune(s *GameState) float64 {
	return Fortune(s).Total()
}

func StockPortfolioValue(s *GameState) float64 {
	total := 0.0
	for _, st := range s.Investments.Stocks {
		total += st.Price * float64(st.Shares)
	}
	return total
}

// ScarcityFactor is the share of issued supply that is off the market.
func ScarcityFactor(st Stock) float64 {
	if st.TotalSupply <= 0 {
		return 0
	}
	f := 1 - float64(st.AvailableSupply)/float64(st.TotalSupply)
	return math.Min(1, math.Max(0, f))
}

func MarketCap(st Stock) float64 {
	return st.Price * float64(st.TotalSupply)
}

// MaxAffordableShares is the largest whole order the balance and the free
// float both allow.
func MaxAffordableShares(balance float64, st Stock) int64 {
	if st.Price <= 0 || balance <= 0 {
		return 0
	}
	n := int64(math.Floor(balance / st.Price))
	if n > st.AvailableSupply {
		n = st.AvailableSupply
	}
	if n < 0 {
		return 0
	}
	return n
}

func MaxAffordableCrypto(balance float64, c Crypto) float64 {
	if c.Price <= 0 || balance <= 0 {
		return 0
	}
	return balance / c.Price
}

type CardTier string

const (
	TierSilver   CardTier = "SILVER"
	TierGold     CardTier = "GOLD"
	TierPlatinum CardTier = "PLATINUM"
	TierDiamond  CardTier = "DIAMOND"
	TierKing     CardTier = "KING"
)

func CardTierFor(fortune float64) CardTier {
	switch {
	case fortune >= 100_000_000_000:
		return TierKing
	case fortune >= 1_000_000_000:
		return TierDiamond
	case fortune >= 1_000_000:
		return TierPlatinum
	case fortune >= 100_000:
		return TierGold
	default:
		return TierSilver
	}
}

// Trend reports whether the latest sample is at or above the previous one.
// Histories shorter than two samples count as up.
func Trend(history []float64) bool {
	if len(history) < 2 {
		return true
	}
	return history[len(history)-1] >= history[len(history)-2]
}
