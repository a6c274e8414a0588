package psm

import (
	"math"

	"gocausal/domain/causal"
	"gocausal/domain/dataset"
)

// ArmEffect is the mean pair-level outcome difference for one matching direction
type ArmEffect struct {
	Effect float64 // NaN when there are no pairs
	Pairs  int
}

// Aggregate averages (treated outcome - control outcome) over every pair.
// Each pair contributes one term: a unit matched to k neighbors contributes k
// terms, with no per-unit averaging first. outcomes is keyed by row id.
// Pairs from either direction may be passed; the orientation is carried by
// MatchedPair itself.
func Aggregate(pairs []causal.MatchedPair, outcomes map[dataset.RowID]float64) ArmEffect {
	if len(pairs) == 0 {
		return ArmEffect{Effect: math.NaN()}
	}
	var sum float64
	for _, p := range pairs {
		sum += outcomes[p.Treated] - outcomes[p.Control]
	}
	return ArmEffect{Effect: sum / float64(len(pairs)), Pairs: len(pairs)}
}

// CombineATE weights ATT and ATC by arm size. A NaN in either term propagates.
func CombineATE(att, atc float64, nTreated, nControl int) float64 {
	total := float64(nTreated + nControl)
	if total == 0 {
		return math.NaN()
	}
	return float64(nTreated)/total*att + float64(nControl)/total*atc
}
