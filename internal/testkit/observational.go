package testkit

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ObservationalConfig configures synthetic observational data with a known effect.
// Customers with higher age, income, or loyalty are more likely to receive the
// campaign and also spend more, so naive group differences are biased.
type ObservationalConfig struct {
	Rows int

	// Effect is the treatment effect on spend for non-loyal customers
	Effect float64
	// LoyalEffectShift is added to Effect for loyal customers
	LoyalEffectShift float64

	NoiseSigma float64
	Seed       uint64
}

// DefaultObservationalConfig returns a moderately confounded campaign dataset
func DefaultObservationalConfig() ObservationalConfig {
	return ObservationalConfig{
		Rows:             1000,
		Effect:           3.0,
		LoyalEffectShift: 0,
		NoiseSigma:       1.0,
		Seed:             42,
	}
}

// Observational is a generated dataset plus its ground truth
type Observational struct {
	Rows []map[string]interface{}

	Treatment   string
	Outcome     string
	Confounders []string

	// TrueATE and TrueATT are sample averages of the per-row effects
	TrueATE float64
	TrueATT float64
	// NaiveDifference is mean(outcome | treated) - mean(outcome | control)
	NaiveDifference float64
}

var regions = []string{"north", "south", "west"}

// ObservationalGenerator produces seeded observational datasets
type ObservationalGenerator struct {
	config ObservationalConfig
	src    rand.Source
}

// NewObservationalGenerator creates a generator; equal seeds give equal data
func NewObservationalGenerator(config ObservationalConfig) *ObservationalGenerator {
	return &ObservationalGenerator{
		config: config,
		src:    rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15),
	}
}

// Generate draws the dataset
func (g *ObservationalGenerator) Generate() (*Observational, error) {
	if g.config.Rows < 2 {
		return nil, fmt.Errorf("need at least 2 rows, got %d", g.config.Rows)
	}
	if g.config.NoiseSigma < 0 {
		return nil, fmt.Errorf("noise sigma must be non-negative")
	}

	age := distuv.Normal{Mu: 40, Sigma: 10, Src: g.src}
	income := distuv.LogNormal{Mu: math.Log(50), Sigma: 0.4, Src: g.src}
	loyal := distuv.Bernoulli{P: 0.35, Src: g.src}
	region := distuv.NewCategorical([]float64{0.5, 0.3, 0.2}, g.src)
	uniform := distuv.Uniform{Min: 0, Max: 1, Src: g.src}
	noise := distuv.Normal{Mu: 0, Sigma: math.Max(g.config.NoiseSigma, 1e-12), Src: g.src}

	out := &Observational{
		Rows:        make([]map[string]interface{}, g.config.Rows),
		Treatment:   "received_campaign",
		Outcome:     "spend",
		Confounders: []string{"age", "income", "loyal", "region"},
	}

	var effectSum, treatedEffectSum, treatedSpend, controlSpend float64
	var nTreated int
	for i := range out.Rows {
		a := math.Min(math.Max(age.Rand(), 18), 80)
		inc := income.Rand()
		l := loyal.Rand()
		r := int(region.Rand())

		logit := -1.0 + 0.04*(a-40) + 0.03*(inc-50) + 1.0*l + []float64{0, 0.3, -0.4}[r]
		treated := uniform.Rand() < 1/(1+math.Exp(-logit))

		effect := g.config.Effect + g.config.LoyalEffectShift*l
		spend := 20 + 0.3*a + 0.2*inc + 5*l + []float64{0, 2, -1}[r]
		if g.config.NoiseSigma > 0 {
			spend += noise.Rand()
		}

		effectSum += effect
		if treated {
			spend += effect
			nTreated++
			treatedEffectSum += effect
			treatedSpend += spend
		} else {
			controlSpend += spend
		}

		out.Rows[i] = map[string]interface{}{
			"customer_id":       i + 1,
			"age":               math.Round(a*10) / 10,
			"income":            math.Round(inc*100) / 100,
			"loyal":             l == 1,
			"region":            regions[r],
			"received_campaign": boolToInt(treated),
			"spend":             spend,
		}
	}

	n := float64(g.config.Rows)
	out.TrueATE = effectSum / n
	if nTreated == 0 || nTreated == g.config.Rows {
		return nil, fmt.Errorf("generated a single treatment group; try another seed or more rows")
	}
	out.TrueATT = treatedEffectSum / float64(nTreated)
	out.NaiveDifference = treatedSpend/float64(nTreated) - controlSpend/(n-float64(nTreated))
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
