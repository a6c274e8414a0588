package learn

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

type treeNode struct {
	feature   int
	threshold float64
	left      int // -1 for a leaf
	right     int
	value     float64
}

// RegressionTree is a CART tree minimizing squared error
type RegressionTree struct {
	MaxDepth        int // 0 = unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int

	nodes []treeNode
}

// fit grows the tree over the sample positions (duplicates allowed for bootstrap draws)
func (t *RegressionTree) fit(x *mat.Dense, y []float64, sample []int, rng *rand.Rand) {
	t.nodes = t.nodes[:0]
	_, p := x.Dims()
	features := make([]int, p)
	for i := range features {
		features[i] = i
	}
	t.grow(x, y, sample, 0, features, rng)
}

func (t *RegressionTree) grow(x *mat.Dense, y []float64, idx []int, depth int, features []int, rng *rand.Rand) int {
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	id := len(t.nodes)
	t.nodes = append(t.nodes, treeNode{left: -1, right: -1, value: sum / float64(len(idx))})

	if len(idx) < t.MinSamplesSplit || (t.MaxDepth > 0 && depth >= t.MaxDepth) || pure(y, idx) {
		return id
	}

	feature, threshold, ok := t.bestSplit(x, y, idx, sum, features, rng)
	if !ok {
		return id
	}

	var left, right []int
	for _, i := range idx {
		if x.At(i, feature) <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := t.grow(x, y, left, depth+1, features, rng)
	r := t.grow(x, y, right, depth+1, features, rng)
	t.nodes[id].feature = feature
	t.nodes[id].threshold = threshold
	t.nodes[id].left = l
	t.nodes[id].right = r
	return id
}

// bestSplit scans every feature (visited in a random order) for the threshold that
// maximizes sumL²/nL + sumR²/nR, which is equivalent to minimizing child SSE.
func (t *RegressionTree) bestSplit(x *mat.Dense, y []float64, idx []int, total float64, features []int, rng *rand.Rand) (int, float64, bool) {
	rng.Shuffle(len(features), func(i, j int) { features[i], features[j] = features[j], features[i] })

	n := len(idx)
	minLeaf := t.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}
	parentScore := total * total / float64(n)

	bestScore := parentScore
	bestFeature, bestThreshold, found := -1, 0.0, false
	sorted := make([]int, n)
	for _, f := range features {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, b int) bool {
			return x.At(sorted[a], f) < x.At(sorted[b], f)
		})

		var leftSum float64
		for k := 1; k < n; k++ {
			leftSum += y[sorted[k-1]]
			if k < minLeaf || n-k < minLeaf {
				continue
			}
			lo, hi := x.At(sorted[k-1], f), x.At(sorted[k], f)
			if lo == hi {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(k) + rightSum*rightSum/float64(n-k)
			if score > bestScore+1e-12 || !found {
				bestScore = score
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func pure(y []float64, idx []int) bool {
	first := y[idx[0]]
	for _, i := range idx[1:] {
		if y[i] != first {
			return false
		}
	}
	return true
}

func (t *RegressionTree) predictRow(row []float64) float64 {
	node := 0
	for t.nodes[node].left >= 0 {
		n := t.nodes[node]
		if row[n.feature] <= n.threshold {
			node = n.left
		} else {
			node = n.right
		}
	}
	return t.nodes[node].value
}
