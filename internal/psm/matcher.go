package psm

import (
	"math"
	"sort"

	"gocausal/domain/dataset"
)

// NoCaliper disables distance filtering
var NoCaliper = math.Inf(1)

// Unit is one row's propensity score
type Unit struct {
	ID    dataset.RowID
	Score float64
}

// Neighbor is an accepted source→target match
type Neighbor struct {
	Source   dataset.RowID
	Target   dataset.RowID
	Distance float64
}

// Match finds, for every source unit in order, its k nearest target units by
// absolute score distance. Ties are broken by ascending target row id. Targets
// are reused freely across sources (matching with replacement). Candidates
// farther than caliper are rejected, so a source may end with fewer than k
// neighbors or none; k is capped at the target arm size.
func Match(source, target []Unit, k int, caliper float64) []Neighbor {
	if len(source) == 0 || len(target) == 0 || k < 1 {
		return nil
	}
	if k > len(target) {
		k = len(target)
	}

	sorted := make([]Unit, len(target))
	copy(sorted, target)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score < sorted[j].Score
		}
		return sorted[i].ID < sorted[j].ID
	})

	out := make([]Neighbor, 0, len(source)*k)
	candidates := make([]Neighbor, 0, k+4)
	for _, s := range source {
		candidates = nearest(candidates[:0], s, sorted, k, caliper)
		out = append(out, candidates...)
	}
	return out
}

// nearest walks outward from the insertion point of s in the score-sorted
// targets, taking the closer side each step. Distances are therefore visited in
// non-decreasing order; once k are taken it keeps collecting exact ties with
// the k-th distance so the id tie-break can be applied over all of them.
func nearest(buf []Neighbor, s Unit, sorted []Unit, k int, caliper float64) []Neighbor {
	right := sort.Search(len(sorted), func(i int) bool { return sorted[i].Score >= s.Score })
	left := right - 1

	for left >= 0 || right < len(sorted) {
		var pick Unit
		var d float64
		switch {
		case left < 0:
			pick, d = sorted[right], sorted[right].Score-s.Score
			right++
		case right >= len(sorted):
			pick, d = sorted[left], s.Score-sorted[left].Score
			left--
		default:
			dl, dr := s.Score-sorted[left].Score, sorted[right].Score-s.Score
			if dl < dr || (dl == dr && sorted[left].ID < sorted[right].ID) {
				pick, d = sorted[left], dl
				left--
			} else {
				pick, d = sorted[right], dr
				right++
			}
		}
		d = math.Abs(d)

		if d > caliper {
			break
		}
		if len(buf) >= k && d > buf[len(buf)-1].Distance {
			break
		}
		buf = append(buf, Neighbor{Source: s.ID, Target: pick.ID, Distance: d})
	}

	sort.SliceStable(buf, func(i, j int) bool {
		if buf[i].Distance != buf[j].Distance {
			return buf[i].Distance < buf[j].Distance
		}
		return buf[i].Target < buf[j].Target
	})
	if len(buf) > k {
		buf = buf[:k]
	}
	return buf
}
