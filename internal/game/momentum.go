package game

import (
	"math"
	"time"
)

const (
	MaxMomentum       = 100.0
	momentumPerTap    = 8.0
	momentumDecayRate = 37.5 // points per second
	momentumDivisor   = 25.0
)

// Momentum is the tap streak meter. Rapid taps build it up and it bleeds
// off continuously between taps. The zero value is an idle meter.
type Momentum struct {
	Value   float64
	Updated time.Time
}

// At returns the meter as it stands at now, after decay.
func (m Momentum) At(now time.Time) Momentum {
	if m.Updated.IsZero() || !now.After(m.Updated) {
		return Momentum{Value: m.Value, Updated: now}
	}
	decayed := m.Value - now.Sub(m.Updated).Seconds()*momentumDecayRate
	return Momentum{Value: math.Max(0, decayed), Updated: now}
}

// Multiplier is the tap payout factor for the current meter value.
func (m Momentum) Multiplier() float64 {
	return 1 + m.Value/momentumDivisor
}

// Tap prices one tap worth clickIncome at now and returns the payout along
// with the meter after the tap.
func (m Momentum) Tap(now time.Time, clickIncome float64) (float64, Momentum) {
	cur := m.At(now)
	payout := clickIncome * cur.Multiplier()
	cur.Value = math.Min(MaxMomentum, cur.Value+momentumPerTap)
	return payout, cur
}
