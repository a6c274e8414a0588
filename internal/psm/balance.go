package psm

import (
	"gocausal/domain/causal"
	"gocausal/domain/dataset"
	"gocausal/internal/features"
	"gocausal/internal/profiling"
)

// covariateBalance reports, per design column, the standardized mean
// difference over the full arms and over the ATT pairs. Matched means are
// pair-level, so a control reused by several treated rows counts once per
// pair. Both use the full-arm pooled spread so the two columns are comparable.
func covariateBalance(dm *features.DesignMatrix, m matching) []causal.CovariateBalance {
	out := make([]causal.CovariateBalance, len(dm.Columns))
	for j, name := range dm.Columns {
		col := make([]float64, dm.Rows())
		for i := range col {
			col[i] = dm.X.At(i, j)
		}

		treated := pick(col, m.positions(m.treated))
		control := pick(col, m.positions(m.control))
		spread := profiling.PooledSD(profiling.Summarize(treated), profiling.Summarize(control))

		out[j] = causal.CovariateBalance{
			Feature:   name,
			SMDBefore: causal.Float(profiling.SMD(treated, control, spread)),
		}
		if len(m.attPairs) > 0 {
			mt := make([]float64, len(m.attPairs))
			mc := make([]float64, len(m.attPairs))
			for k, p := range m.attPairs {
				mt[k], mc[k] = col[m.pos[p.Treated]], col[m.pos[p.Control]]
			}
			out[j].SMDAfter = causal.Float(profiling.SMD(mt, mc, spread))
		}
	}
	return out
}

// positions resolves the units' row ids to design matrix rows
func (m matching) positions(units []Unit) []int {
	out := make([]int, len(units))
	for i, u := range units {
		out[i] = m.pos[u.ID]
	}
	return out
}

// byID keys a record-ordered vector by row id
func byID(ids []dataset.RowID, values []float64) map[dataset.RowID]float64 {
	out := make(map[dataset.RowID]float64, len(ids))
	for i, id := range ids {
		out[id] = values[i]
	}
	return out
}

func pick(col []float64, positions []int) []float64 {
	out := make([]float64, len(positions))
	for i, p := range positions {
		out[i] = col[p]
	}
	return out
}
