package optimizer

import (
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"

	"jax-research-platform/internal/core"
	"jax-research-platform/internal/solver"
	"jax-research-platform/internal/strategy"
)

// gene names the fixed, always-present slots of an Individual's chromosome.
// Every Config pins a subset of these to a Constant constraint; the rest
// are sampled from a default domain and left for evolution to discover.
const (
	geneSymbol             = "symbol"
	geneInterval           = "interval"
	geneMissedCandlePolicy = "missed_candle_policy"
	geneStopLoss           = "stop_loss"
	geneTrailStopLoss      = "trail_stop_loss"
	geneTakeProfit         = "take_profit"
	geneLong               = "long"
	geneShort              = "short"
)

var fixedGeneOrder = []string{
	geneSymbol, geneInterval, geneMissedCandlePolicy,
	geneStopLoss, geneTrailStopLoss, geneTakeProfit, geneLong, geneShort,
}

// layout fixes the chromosome's gene order and the Constraint each slot is
// sampled/mutated from. Strategy-specific genes are appended after the
// eight fixed ones, sorted by name so two layouts built from the same Meta
// always agree on gene order.
type layout struct {
	names       []string
	constraints []strategy.Constraint
}

func (l layout) indpb() float64 { return 1.0 / float64(len(l.names)) }

func buildLayout(config Config, symbols []string, intervals []core.Interval, meta strategy.Meta) layout {
	l := layout{}

	pin := func(name string, pinned bool, value any, fallback strategy.Constraint) {
		l.names = append(l.names, name)
		if pinned {
			l.constraints = append(l.constraints, strategy.Constant{Value: value})
		} else {
			l.constraints = append(l.constraints, fallback)
		}
	}

	symbolOptions := make([]any, len(symbols))
	for i, s := range symbols {
		symbolOptions[i] = s
	}
	intervalOptions := make([]any, len(intervals))
	for i, iv := range intervals {
		intervalOptions[i] = iv
	}

	pin(geneSymbol, false, nil, strategy.Choice{Options: symbolOptions})
	pin(geneInterval, false, nil, strategy.Choice{Options: intervalOptions})
	pin(geneMissedCandlePolicy, config.MissedCandlePolicy != nil,
		valueOrNil(config.MissedCandlePolicy),
		strategy.Choice{Options: []any{core.MissedCandleIgnore, core.MissedCandleRestart, core.MissedCandleLast}})
	pin(geneStopLoss, config.StopLossFraction != nil, valueOrNil(config.StopLossFraction), stopLossConstraint)
	pin(geneTrailStopLoss, config.TrailStopLoss != nil, valueOrNil(config.TrailStopLoss), booleanConstraint)
	pin(geneTakeProfit, config.TakeProfitFraction != nil, valueOrNil(config.TakeProfitFraction), takeProfitConstraint)
	pin(geneLong, config.Long != nil, valueOrNil(config.Long), booleanConstraint)
	pin(geneShort, config.Short != nil, valueOrNil(config.Short), booleanConstraint)

	names := make([]string, 0, len(meta.Constraints))
	for name := range meta.Constraints {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pinned, value := false, config.StrategyParams[name]
		if value != nil {
			pinned = true
		}
		pin(name, pinned, value, meta.Constraints[name])
	}

	return l
}

// valueOrNil dereferences a typed pointer into an any, or returns nil.
func valueOrNil[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

var (
	stopLossConstraint = strategy.ConstraintChoice{Choices: []strategy.Constraint{
		strategy.Constant{Value: decimal.Zero},
		strategy.Uniform{Min: 0.0001, Max: 0.9999},
	}}
	takeProfitConstraint = strategy.ConstraintChoice{Choices: []strategy.Constraint{
		strategy.Constant{Value: decimal.Zero},
		strategy.Uniform{Min: 0.0001, Max: 9.9999},
	}}
	booleanConstraint = strategy.Choice{Options: []any{true, false}}
)

// Individual is one candidate parameter set: a chromosome of gene values in
// layout order, plus the fitness it was last evaluated to.
type Individual struct {
	Genes   []any
	Fitness solver.FitnessValues
}

func newIndividual(l layout, rng *rand.Rand) Individual {
	genes := make([]any, len(l.constraints))
	for i, c := range l.constraints {
		genes[i] = sampleGene(l.names[i], c, rng)
	}
	return Individual{Genes: genes}
}

// sampleGene routes through Constraint.Random, coercing the stop-loss/
// take-profit genes' float64 Uniform draws into decimal.Decimal — the type
// the rest of the pipeline (BasicConfig, the solver) expects for them.
// Constant draws for those same genes are already decimal.Decimal (pinned
// from a *decimal.Decimal Config field) and pass through unchanged.
func sampleGene(name string, c strategy.Constraint, rng *rand.Rand) any {
	v := c.Random(rng)
	if (name == geneStopLoss || name == geneTakeProfit) && isFloat(v) {
		return decimal.NewFromFloat(v.(float64))
	}
	return v
}

func isFloat(v any) bool { _, ok := v.(float64); return ok }

func clone(ind Individual) Individual {
	genes := make([]any, len(ind.Genes))
	copy(genes, ind.Genes)
	return Individual{Genes: genes, Fitness: ind.Fitness}
}

// cxUniform swaps each gene independently with probability indpb between
// two parents, producing two children in place. Both Individuals' genes
// are rewritten through their shared backing arrays; callers must
// re-evaluate fitness afterward, which the optimizer's evolution loop
// always does unconditionally.
func cxUniform(rng *rand.Rand, a, b Individual, indpb float64) {
	for i := range a.Genes {
		if rng.Float64() < indpb {
			a.Genes[i], b.Genes[i] = b.Genes[i], a.Genes[i]
		}
	}
}

// mutIndividual resamples each gene independently with probability indpb
// from its own constraint.
func mutIndividual(rng *rand.Rand, ind Individual, l layout) {
	for i := range ind.Genes {
		if rng.Float64() < l.indpb() {
			ind.Genes[i] = sampleGene(l.names[i], l.constraints[i], rng)
		}
	}
}

// decoded is an Individual's chromosome resolved back into typed values the
// solver and trader understand.
type decoded struct {
	symbol             string
	interval           core.Interval
	missedCandlePolicy core.MissedCandlePolicy
	stopLossFraction   decimal.Decimal
	trailStopLoss      bool
	takeProfitFraction decimal.Decimal
	long, short        bool
	strategyParams     map[string]any
}

func decode(l layout, ind Individual) decoded {
	d := decoded{strategyParams: make(map[string]any, len(l.names)-len(fixedGeneOrder))}
	for i, name := range l.names {
		v := ind.Genes[i]
		switch name {
		case geneSymbol:
			d.symbol = v.(string)
		case geneInterval:
			d.interval = v.(core.Interval)
		case geneMissedCandlePolicy:
			d.missedCandlePolicy = v.(core.MissedCandlePolicy)
		case geneStopLoss:
			d.stopLossFraction = v.(decimal.Decimal)
		case geneTrailStopLoss:
			d.trailStopLoss = v.(bool)
		case geneTakeProfit:
			d.takeProfitFraction = v.(decimal.Decimal)
		case geneLong:
			d.long = v.(bool)
		case geneShort:
			d.short = v.(bool)
		default:
			d.strategyParams[name] = v
		}
	}
	return d
}
