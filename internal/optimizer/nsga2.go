package optimizer

import (
	"math"

	"jax-research-platform/internal/solver"
)

// objectiveWeights assigns +1 to an objective the optimizer maximizes and
// -1 to one it minimizes, in solver.FitnessValues field order. Multiplying
// an objective by its weight turns every comparison into "bigger is
// better", which is all NSGA-II's dominance and crowding-distance
// calculations need.
var objectiveWeights = [10]float64{
	+1, // Profit
	-1, // MeanDrawdown
	-1, // MaxDrawdown
	+1, // MeanPositionProfit
	-1, // MeanPositionDuration
	+1, // NumPositionsInProfit
	-1, // NumPositionsInLoss
	+1, // Sharpe
	+1, // Sortino
	+1, // Alpha
}

func objectives(f solver.FitnessValues) [10]float64 {
	raw := [10]float64{
		f.Profit, f.MeanDrawdown, f.MaxDrawdown, f.MeanPositionProfit,
		float64(f.MeanPositionDuration), float64(f.NumPositionsInProfit),
		float64(f.NumPositionsInLoss), f.Sharpe, f.Sortino, f.Alpha,
	}
	for i := range raw {
		raw[i] *= objectiveWeights[i]
	}
	return raw
}

// dominates reports whether a Pareto-dominates b: at least as good on every
// weighted objective and strictly better on one.
func dominates(a, b [10]float64) bool {
	betterOnAny := false
	for i := range a {
		if a[i] < b[i] {
			return false
		}
		if a[i] > b[i] {
			betterOnAny = true
		}
	}
	return betterOnAny
}

// front is one layer of the non-dominated sort: the indices of population
// members belonging to it and their crowding distances.
type front struct {
	indices  []int
	distance []float64
}

// fastNonDominatedSort partitions population into successive fronts: front
// 0 is the set no member of the population dominates, front 1 is
// non-dominated once front 0 is removed, and so on.
func fastNonDominatedSort(objs [][10]float64) []front {
	n := len(objs)
	dominatedBy := make([][]int, n)
	dominationCount := make([]int, n)
	var fronts []front
	first := front{}

	for p := 0; p < n; p++ {
		for q := 0; q < n; q++ {
			if p == q {
				continue
			}
			switch {
			case dominates(objs[p], objs[q]):
				dominatedBy[p] = append(dominatedBy[p], q)
			case dominates(objs[q], objs[p]):
				dominationCount[p]++
			}
		}
		if dominationCount[p] == 0 {
			first.indices = append(first.indices, p)
		}
	}
	fronts = append(fronts, first)

	for i := 0; len(fronts[i].indices) > 0; i++ {
		var next front
		for _, p := range fronts[i].indices {
			for _, q := range dominatedBy[p] {
				dominationCount[q]--
				if dominationCount[q] == 0 {
					next.indices = append(next.indices, q)
				}
			}
		}
		if len(next.indices) == 0 {
			break
		}
		fronts = append(fronts, next)
	}
	return fronts
}

// crowdingDistance fills in f.distance, one value per f.indices entry,
// measuring how isolated each member is from its neighbors on each
// objective — members on the boundary of a front get infinite distance so
// they are always preferred, spreading the kept population across the
// Pareto front rather than bunching it.
func crowdingDistance(f *front, objs [][10]float64) {
	n := len(f.indices)
	f.distance = make([]float64, n)
	if n == 0 {
		return
	}
	numObjectives := len(objs[0])
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	for m := 0; m < numObjectives; m++ {
		sortIndicesByObjective(order, f.indices, objs, m)
		f.distance[order[0]] = math.Inf(1)
		f.distance[order[n-1]] = math.Inf(1)
		lo, hi := objs[f.indices[order[0]]][m], objs[f.indices[order[n-1]]][m]
		if hi == lo {
			continue
		}
		for k := 1; k < n-1; k++ {
			prev := objs[f.indices[order[k-1]]][m]
			next := objs[f.indices[order[k+1]]][m]
			f.distance[order[k]] += (next - prev) / (hi - lo)
		}
	}
}

func sortIndicesByObjective(order, indices []int, objs [][10]float64, m int) {
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && objs[indices[order[j-1]]][m] > objs[indices[order[j]]][m]; j-- {
			order[j-1], order[j] = order[j], order[j-1]
		}
	}
}

// selNSGA2 selects mu individuals out of population by non-dominated front,
// filling the last admitted front by descending crowding distance.
func selNSGA2(population []Individual, mu int) []Individual {
	objs := make([][10]float64, len(population))
	for i, ind := range population {
		objs[i] = objectives(ind.Fitness)
	}
	fronts := fastNonDominatedSort(objs)

	selected := make([]Individual, 0, mu)
	for i := range fronts {
		crowdingDistance(&fronts[i], objs)
		if len(selected)+len(fronts[i].indices) <= mu {
			for _, idx := range fronts[i].indices {
				selected = append(selected, population[idx])
			}
			continue
		}
		remaining := mu - len(selected)
		order := make([]int, len(fronts[i].indices))
		for k := range order {
			order[k] = k
		}
		for a := 1; a < len(order); a++ {
			for b := a; b > 0 && fronts[i].distance[order[b-1]] < fronts[i].distance[order[b]]; b-- {
				order[b-1], order[b] = order[b], order[b-1]
			}
		}
		for _, k := range order[:remaining] {
			selected = append(selected, population[fronts[i].indices[k]])
		}
		break
	}
	return selected
}

// bestByFrontZero picks a single representative from the first (Pareto)
// front of population — the fittest individual seen, as a scalar proxy for
// a true multi-objective hall of fame: the member of front 0 with the
// highest sum of weighted objectives.
func bestByFrontZero(population []Individual) Individual {
	objs := make([][10]float64, len(population))
	for i, ind := range population {
		objs[i] = objectives(ind.Fitness)
	}
	fronts := fastNonDominatedSort(objs)
	front0 := fronts[0].indices

	best := front0[0]
	bestScore := sum(objs[best])
	for _, idx := range front0[1:] {
		if s := sum(objs[idx]); s > bestScore {
			best, bestScore = idx, s
		}
	}
	return population[best]
}

func sum(xs [10]float64) float64 {
	var s float64
	for _, x := range xs {
		s += x
	}
	return s
}
