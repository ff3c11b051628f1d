package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
)

// sma is a simple moving average over the last Period closes.
type sma struct {
	period int
	window []decimal.Decimal
	sum    decimal.Decimal
	value  decimal.Decimal
}

func newSMA(period int) *sma {
	return &sma{period: period, window: make([]decimal.Decimal, 0, period)}
}

func (s *sma) maturity() int { return s.period }

func (s *sma) update(price decimal.Decimal) {
	s.window = append(s.window, price)
	s.sum = s.sum.Add(price)
	if len(s.window) > s.period {
		s.sum = s.sum.Sub(s.window[0])
		s.window = s.window[1:]
	}
	if len(s.window) == s.period {
		s.value = s.sum.Div(decimal.NewFromInt(int64(s.period)))
	}
}

func (s *sma) mature() bool { return len(s.window) >= s.period }

// SingleMA signals LONG when price closes above an ascending moving
// average, SHORT when it closes below a descending one, and NONE
// otherwise; it wraps its raw signal in MidTrend(IGNORE) and an optional
// Persistence confirmation.
type SingleMA struct {
	ma             *sma
	mid            *MidTrend
	persist        *Persistence
	previousMAValue decimal.Decimal
	advice         core.Advice
	ticks          int
}

// SingleMAMeta declares SingleMA's optimizer-tunable parameters.
func SingleMAMeta() Meta {
	return Meta{Constraints: map[string]Constraint{
		"period":      Int{Min: 1, Max: 100},
		"persistence": Int{Min: 0, Max: 10},
	}}
}

// NewSingleMA builds a SingleMA strategy from optimizer-sampled params
// (period, persistence), matching SingleMAMeta's constraints.
func NewSingleMA(params map[string]any) (Strategy, error) {
	period, ok := params["period"].(int)
	if !ok {
		period = 50
	}
	persistence, ok := params["persistence"].(int)
	if !ok {
		persistence = 0
	}
	if period < 1 {
		return nil, fmt.Errorf("strategy: single_ma period must be >= 1, got %d", period)
	}
	return &SingleMA{
		ma:      newSMA(period),
		mid:     NewMidTrend(MidTrendIgnore),
		persist: NewPersistence(persistence, false),
	}, nil
}

// Maturity is the moving average's own maturity plus whatever extra ticks
// MidTrend and Persistence require, since each wrapper consumes ticks of
// its own on top of the underlying signal becoming available.
func (s *SingleMA) Maturity() int {
	return s.ma.maturity() + (s.mid.Maturity() - 1) + (s.persist.Maturity() - 1)
}

// Mature reports whether enough ticks have been seen to trust Advice.
func (s *SingleMA) Mature() bool {
	return s.ticks >= s.Maturity()
}

// Update advances the moving average and recomputes advice.
func (s *SingleMA) Update(candle core.Candle) {
	s.ma.update(candle.Close)
	s.ticks++

	var raw core.Advice
	if s.ma.mature() {
		switch {
		case candle.Close.GreaterThan(s.ma.value) && s.ma.value.GreaterThan(s.previousMAValue):
			raw = core.AdviceLong
		case candle.Close.LessThan(s.ma.value) && s.ma.value.LessThan(s.previousMAValue):
			raw = core.AdviceShort
		default:
			raw = core.AdviceNone
		}
	}
	s.previousMAValue = s.ma.value

	afterMid := s.mid.Update(raw)
	s.advice = s.persist.Update(afterMid)
}

// Advice returns the current confirmed advice.
func (s *SingleMA) Advice() core.Advice {
	if !s.Mature() {
		return core.AdviceNone
	}
	return s.advice
}
