package game

import "math"

const (
	stockVolatility   = 0.015
	stockScarcityBias = 0.05
	stockDrawCenter   = 0.45
	stockScarcitySkew = 0.2
	stockPriceFloor   = 0.1

	cryptoVolatility = 0.02
	cryptoDrawCenter = 0.48
	cryptoPriceFloor = 0.000001
)

// Rand is the random source behind the market walk. *math/rand.Rand
// satisfies it; tests pin draws with a fixed sequence.
type Rand interface {
	Float64() float64
}

// NextStockPrice moves a stock one tick given a uniform draw in [0,1).
// Depleted supply biases the walk upward.
func NextStockPrice(st Stock, draw float64) float64 {
	scarcity := ScarcityFactor(st)
	volatility := st.Price * stockVolatility
	bias := scarcity * st.Price * stockScarcityBias
	move := draw - (stockDrawCenter - scarcity*stockScarcitySkew)
	return math.Max(stockPriceFloor, st.Price+move*volatility+bias)
}

func NextCryptoPrice(price, draw float64) float64 {
	change := (draw - cryptoDrawCenter) * price * cryptoVolatility
	return math.Max(cryptoPriceFloor, price+change)
}

// advanceMarket runs one market tick over s in place. Each asset moves on
// its own draw; there is no cross-asset correlation.
func advanceMarket(s *GameState, rng Rand) {
	for i := range s.Investments.Stocks {
		st := &s.Investments.Stocks[i]
		st.Price = NextStockPrice(*st, rng.Float64())
		st.History = pushHistory(st.History, st.Price)
	}
	for i := range s.Investments.Crypto {
		c := &s.Investments.Crypto[i]
		c.Price = NextCryptoPrice(c.Price, rng.Float64())
		c.History = pushHistory(c.History, c.Price)
	}
	for i := range s.Investments.Cars {
		c := &s.Investments.Cars[i]
		c.Cost += c.AppreciationValue
	}
}
