package learn

import (
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// RandomForestRegressor averages bootstrap-trained regression trees.
// Every tree draws its own seed from RandomState up front, so the fitted forest
// does not depend on the order in which trees finish.
type RandomForestRegressor struct {
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Bootstrap       bool
	RandomState     int64

	trees []*RegressionTree
}

// ForestOption configures a RandomForestRegressor
type ForestOption func(*RandomForestRegressor)

// WithEstimators sets the number of trees
func WithEstimators(n int) ForestOption { return func(rf *RandomForestRegressor) { rf.NEstimators = n } }

// WithMaxDepth limits tree depth; 0 grows trees until leaves are pure or too small
func WithMaxDepth(d int) ForestOption { return func(rf *RandomForestRegressor) { rf.MaxDepth = d } }

// WithMinSamplesSplit sets the fewest rows a node needs to be split
func WithMinSamplesSplit(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the fewest rows either child of a split may hold
func WithMinSamplesLeaf(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MinSamplesLeaf = n }
}

// NewRandomForestRegressor initializes the forest with the usual defaults
func NewRandomForestRegressor(seed int64, opts ...ForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     seed,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the forest on x (n×p) and targets y
func (rf *RandomForestRegressor) Fit(x mat.Matrix, y []float64) error {
	xd := asDense(x)
	n, _ := xd.Dims()
	if n == 0 {
		return fmt.Errorf("randomforest: empty x")
	}
	if len(y) != n {
		return fmt.Errorf("randomforest: %d rows but %d targets", n, len(y))
	}
	if rf.NEstimators < 1 {
		return fmt.Errorf("randomforest: need at least one estimator")
	}

	master := rand.New(rand.NewSource(rf.RandomState))
	seeds := make([]int64, rf.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]*RegressionTree, rf.NEstimators)
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		i := i
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seeds[i]))
			sample := make([]int, n)
			for k := range sample {
				if rf.Bootstrap {
					sample[k] = rng.Intn(n)
				} else {
					sample[k] = k
				}
			}
			tree := &RegressionTree{
				MaxDepth:        rf.MaxDepth,
				MinSamplesSplit: rf.MinSamplesSplit,
				MinSamplesLeaf:  rf.MinSamplesLeaf,
			}
			tree.fit(xd, y, sample, rng)
			trees[i] = tree
			return nil
		})
	}
	_ = g.Wait()
	rf.trees = trees
	return nil
}

// Predict returns the mean tree prediction for every row of x
func (rf *RandomForestRegressor) Predict(x mat.Matrix) []float64 {
	xd := asDense(x)
	n, _ := xd.Dims()
	out := make([]float64, n)
	if len(rf.trees) == 0 {
		return out
	}
	for i := 0; i < n; i++ {
		row := xd.RawRowView(i)
		var s float64
		for _, t := range rf.trees {
			s += t.predictRow(row)
		}
		out[i] = s / float64(len(rf.trees))
	}
	return out
}
