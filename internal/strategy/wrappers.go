package strategy

import "jax-research-platform/internal/core"

// MidTrendPolicy controls whether a strategy's first advice (possibly
// mid-trend when the strategy is constructed) is suppressed.
type MidTrendPolicy int

const (
	MidTrendCurrent MidTrendPolicy = iota
	MidTrendPrevious
	MidTrendIgnore
)

// MidTrend suppresses the first advice seen until the trend changes, when
// its policy is MidTrendIgnore; the other policies pass advice through
// unmodified.
type MidTrend struct {
	policy   MidTrendPolicy
	previous *core.Advice
	enabled  bool
}

// NewMidTrend builds a MidTrend wrapper under policy.
func NewMidTrend(policy MidTrendPolicy) *MidTrend {
	return &MidTrend{policy: policy, enabled: true}
}

// Maturity is 1 for CURRENT, 2 for PREVIOUS/IGNORE (one extra tick needed
// to observe a change).
func (m *MidTrend) Maturity() int {
	if m.policy == MidTrendCurrent {
		return 1
	}
	return 2
}

// Update applies the policy to value, returning the advice that should
// actually propagate this tick.
func (m *MidTrend) Update(value core.Advice) core.Advice {
	if !m.enabled || m.policy != MidTrendIgnore {
		return value
	}

	result := core.AdviceNone
	if m.previous == nil {
		v := value
		m.previous = &v
	} else if value != *m.previous {
		m.enabled = false
		result = value
	}
	return result
}

// Persistence requires level+1 consecutive matching advices before
// emitting a confirmed advice; with returnPrevious set, it holds and
// re-emits the last confirmed advice while waiting rather than NONE.
type Persistence struct {
	level          int
	returnPrevious bool

	age       int
	potential core.Advice
	previous  core.Advice
}

// NewPersistence builds a Persistence wrapper requiring level+1 matching
// ticks before confirming an advice.
func NewPersistence(level int, returnPrevious bool) *Persistence {
	return &Persistence{level: level, returnPrevious: returnPrevious}
}

// Maturity is level+1.
func (p *Persistence) Maturity() int { return p.level + 1 }

// Update applies persistence confirmation to value.
func (p *Persistence) Update(value core.Advice) core.Advice {
	if p.level == 0 {
		return value
	}

	if value != p.potential {
		p.age = 0
		p.potential = value
	}

	var result core.Advice
	if p.age >= p.level {
		p.previous = p.potential
		result = p.potential
	} else if p.returnPrevious {
		result = p.previous
	} else {
		result = core.AdviceNone
	}

	if p.age < p.level {
		p.age++
	}
	return result
}

// Changed passes an advice through only on the tick it changes from the
// prevailing one; when disabled it is a no-op passthrough.
type Changed struct {
	enabled  bool
	previous core.Advice
	age      int
}

// NewChanged builds a Changed wrapper; enabled false makes it a passthrough.
func NewChanged(enabled bool) *Changed {
	return &Changed{enabled: enabled}
}

// Maturity is always 1.
func (c *Changed) Maturity() int { return 1 }

// PrevailingAdvice is the last advice seen, changed or not.
func (c *Changed) PrevailingAdvice() core.Advice { return c.previous }

// PrevailingAdviceAge is how many ticks the prevailing advice has held.
func (c *Changed) PrevailingAdviceAge() int { return c.age }

// Update applies change-detection to value.
func (c *Changed) Update(value core.Advice) core.Advice {
	if !c.enabled {
		return value
	}

	var result core.Advice
	if value == c.previous {
		result = core.AdviceNone
	} else {
		c.age = 0
		result = value
	}
	c.previous = value
	c.age++
	return result
}
