package learn

import (
	"fmt"
	"math/rand"
	"sort"
)

// Fold is one train/test split of row positions
type Fold struct {
	Train []int
	Test  []int
}

// KFold partitions positions 0..n-1 into k disjoint test folds of near-equal
// size; the first n%k folds carry one extra row. With shuffle the positions are
// permuted by a generator seeded with seed before slicing.
func KFold(n, k int, shuffle bool, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("kfold: need at least 2 folds, got %d", k)
	}
	if k > n {
		return nil, fmt.Errorf("kfold: cannot split %d rows into %d folds", n, k)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if shuffle {
		rng := rand.New(rand.NewSource(seed))
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	folds := make([]Fold, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		test := make([]int, size)
		copy(test, order[start:start+size])
		sort.Ints(test)
		start += size

		inTest := make(map[int]bool, size)
		for _, p := range test {
			inTest[p] = true
		}
		train := make([]int, 0, n-size)
		for p := 0; p < n; p++ {
			if !inTest[p] {
				train = append(train, p)
			}
		}
		folds[f] = Fold{Train: train, Test: test}
	}
	return folds, nil
}
