package strategy

import (
	"fmt"
	"math/rand"
)

// Constraint describes the domain a single optimizer gene is sampled from
// and validated against. Every concrete kind below satisfies it.
type Constraint interface {
	// Random draws a value uniformly from the constraint's domain.
	Random(rng *rand.Rand) any
	// Validate reports whether value is a legal member of the domain.
	Validate(value any) bool
}

// Uniform draws a float64 uniformly from [Min, Max).
type Uniform struct {
	Min, Max float64
}

func (u Uniform) Random(rng *rand.Rand) any {
	return u.Min + rng.Float64()*(u.Max-u.Min)
}

func (u Uniform) Validate(value any) bool {
	v, ok := value.(float64)
	return ok && v >= u.Min && v < u.Max
}

// Int draws an integer uniformly from [Min, Max].
type Int struct {
	Min, Max int
}

func (c Int) Random(rng *rand.Rand) any {
	return c.Min + rng.Intn(c.Max-c.Min+1)
}

func (c Int) Validate(value any) bool {
	v, ok := value.(int)
	return ok && v >= c.Min && v <= c.Max
}

// Choice draws uniformly from a fixed set of options of any single type.
type Choice struct {
	Options []any
}

func (c Choice) Random(rng *rand.Rand) any {
	return c.Options[rng.Intn(len(c.Options))]
}

func (c Choice) Validate(value any) bool {
	for _, opt := range c.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// ConstraintChoice draws a value by first choosing among sub-constraints,
// then sampling from the chosen one; e.g. stop_loss ∈ {0} ∪ Uniform[...]
// is Constant(0) union'd with a Uniform via ConstraintChoice.
type ConstraintChoice struct {
	Choices []Constraint
}

func (c ConstraintChoice) Random(rng *rand.Rand) any {
	return c.Choices[rng.Intn(len(c.Choices))].Random(rng)
}

func (c ConstraintChoice) Validate(value any) bool {
	for _, sub := range c.Choices {
		if sub.Validate(value) {
			return true
		}
	}
	return false
}

// Constant always produces the same pinned value; used when a config pins
// a gene or supplies a single-element list for it.
type Constant struct {
	Value any
}

func (c Constant) Random(rng *rand.Rand) any { return c.Value }

func (c Constant) Validate(value any) bool { return value == c.Value }

// Pair constrains two co-varying values together, e.g. (short_period,
// long_period) where the first must be less than the second. First/Second
// draw independently from Base but Random retries until Less accepts the
// pair; Validate checks both membership and the relation.
type Pair struct {
	Base Constraint
	Less func(a, b any) bool
}

func (p Pair) Random(rng *rand.Rand) any {
	const maxTries = 100
	for i := 0; i < maxTries; i++ {
		a := p.Base.Random(rng)
		b := p.Base.Random(rng)
		if p.Less(a, b) {
			return [2]any{a, b}
		}
	}
	panic(fmt.Sprintf("strategy: Pair constraint could not satisfy Less within %d tries", maxTries))
}

func (p Pair) Validate(value any) bool {
	pair, ok := value.([2]any)
	if !ok {
		return false
	}
	return p.Base.Validate(pair[0]) && p.Base.Validate(pair[1]) && p.Less(pair[0], pair[1])
}

// Triple is Pair generalized to three co-varying values (e.g. short/medium/
// long period triples), validated by a single ordering predicate over all
// three.
type Triple struct {
	Base  Constraint
	Order func(a, b, c any) bool
}

func (t Triple) Random(rng *rand.Rand) any {
	const maxTries = 100
	for i := 0; i < maxTries; i++ {
		a := t.Base.Random(rng)
		b := t.Base.Random(rng)
		c := t.Base.Random(rng)
		if t.Order(a, b, c) {
			return [3]any{a, b, c}
		}
	}
	panic(fmt.Sprintf("strategy: Triple constraint could not satisfy Order within %d tries", maxTries))
}

func (t Triple) Validate(value any) bool {
	triple, ok := value.([3]any)
	if !ok {
		return false
	}
	return t.Base.Validate(triple[0]) && t.Base.Validate(triple[1]) && t.Base.Validate(triple[2]) &&
		t.Order(triple[0], triple[1], triple[2])
}
