package strategy

import (
	"fmt"

	"jax-research-platform/internal/core"
)

// MACrossover signals LONG on a golden cross (short-period average rises
// above the long-period one) and SHORT on a death cross, adapted from a
// confidence-scored signal generator down to the strategy package's pure
// Advice contract.
type MACrossover struct {
	short, long       *sma
	wasShortAboveLong bool
	hasPrevious       bool
	mid               *MidTrend
	advice            core.Advice
	ticks             int
}

// MACrossoverMeta declares MACrossover's optimizer-tunable parameters: a
// Pair ensures the short period always stays below the long one.
func MACrossoverMeta() Meta {
	return Meta{Constraints: map[string]Constraint{
		"periods": Pair{
			Base: Int{Min: 2, Max: 200},
			Less: func(a, b any) bool { return a.(int) < b.(int) },
		},
	}}
}

// NewMACrossover builds a MACrossover strategy from optimizer-sampled
// params (periods: [2]any{short, long}).
func NewMACrossover(params map[string]any) (Strategy, error) {
	periods, ok := params["periods"].([2]any)
	if !ok {
		periods = [2]any{20, 50}
	}
	shortPeriod, ok1 := periods[0].(int)
	longPeriod, ok2 := periods[1].(int)
	if !ok1 || !ok2 || shortPeriod >= longPeriod {
		return nil, fmt.Errorf("strategy: ma_crossover requires short < long period, got %v", periods)
	}
	return &MACrossover{
		short: newSMA(shortPeriod),
		long:  newSMA(longPeriod),
		mid:   NewMidTrend(MidTrendIgnore),
	}, nil
}

// Maturity is the long average's maturity (the slower of the two to
// become ready) plus MidTrend's extra tick.
func (m *MACrossover) Maturity() int {
	return m.long.maturity() + (m.mid.Maturity() - 1)
}

// Mature reports whether enough ticks have been seen to trust Advice.
func (m *MACrossover) Mature() bool {
	return m.ticks >= m.Maturity()
}

// Update advances both moving averages and recomputes advice on crossover.
func (m *MACrossover) Update(candle core.Candle) {
	m.short.update(candle.Close)
	m.long.update(candle.Close)
	m.ticks++

	var raw core.Advice
	if m.short.mature() && m.long.mature() {
		shortAboveLong := m.short.value.GreaterThan(m.long.value)
		if m.hasPrevious && shortAboveLong != m.wasShortAboveLong {
			if shortAboveLong {
				raw = core.AdviceLong
			} else {
				raw = core.AdviceShort
			}
		}
		m.wasShortAboveLong = shortAboveLong
		m.hasPrevious = true
	}

	m.advice = m.mid.Update(raw)
}

// Advice returns the current confirmed advice.
func (m *MACrossover) Advice() core.Advice {
	if !m.Mature() {
		return core.AdviceNone
	}
	return m.advice
}
