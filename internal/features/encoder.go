package features

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"gocausal/domain/causal"
	"gocausal/domain/dataset"
)

// DesignMatrix is the numeric encoding of the confounders, one row per dataset row
type DesignMatrix struct {
	RowIDs  []dataset.RowID
	Columns []string
	X       *mat.Dense
	Scaled  bool
}

// Rows returns the number of rows
func (m *DesignMatrix) Rows() int {
	return len(m.RowIDs)
}

// Subset copies the given row positions into a new matrix
func (m *DesignMatrix) Subset(positions []int) *mat.Dense {
	_, c := m.X.Dims()
	out := mat.NewDense(len(positions), c, nil)
	for i, p := range positions {
		out.SetRow(i, m.X.RawRowView(p))
	}
	return out
}

// columnPlan records how one confounder expands into design columns
type columnPlan struct {
	name    string
	numeric bool
	levels  []string // sorted; levels[0] is the dropped reference
}

// Encode builds the design matrix for the confounders.
//
// Numeric and boolean columns pass through in confounder order. Every other
// column is treated as categorical: its labels are sorted lexically, the first
// is dropped as the reference level, and one 0/1 indicator per remaining level
// is appended after the pass-through columns, named "<column>_<level>". A null
// categorical cell encodes as all zeros. When scale is true every resulting
// column is standardized on the full sample.
func Encode(ds *dataset.Dataset, confounders []string, scale bool) (*DesignMatrix, error) {
	if ds.Len() == 0 {
		return nil, causal.NewInvalidParameterError("data", "dataset has no rows")
	}

	plans := make([]columnPlan, 0, len(confounders))
	for _, name := range confounders {
		plan, err := planColumn(ds, name)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}

	var names []string
	for _, p := range plans {
		if p.numeric {
			names = append(names, p.name)
		}
	}
	for _, p := range plans {
		if p.numeric {
			continue
		}
		for _, level := range p.levels[1:] {
			names = append(names, p.name+"_"+level)
		}
	}
	if len(names) == 0 {
		return nil, causal.NewInvalidColumnError(strings.Join(confounders, ","), "confounders encode to zero features")
	}

	n := ds.Len()
	x := mat.NewDense(n, len(names), nil)
	for i, rec := range ds.Records {
		j := 0
		for _, p := range plans {
			if !p.numeric {
				continue
			}
			v, _ := asNumber(rec.Values[p.name])
			x.Set(i, j, v)
			j++
		}
		for _, p := range plans {
			if p.numeric {
				continue
			}
			v := rec.Values[p.name]
			if !isNull(v) {
				label := category(v)
				// levels[1:] occupy columns j .. j+len(levels)-2
				if k := sort.SearchStrings(p.levels, label); k > 0 && k < len(p.levels) && p.levels[k] == label {
					x.Set(i, j+k-1, 1)
				}
			}
			j += len(p.levels) - 1
		}
	}

	dm := &DesignMatrix{RowIDs: ds.RowIDs(), Columns: names, X: x}
	if scale {
		scaled, _, err := FitTransform(x)
		if err != nil {
			return nil, err
		}
		dm.X = scaled
		dm.Scaled = true
	}
	return dm, nil
}

func planColumn(ds *dataset.Dataset, name string) (columnPlan, error) {
	if !ds.HasColumn(name) {
		return columnPlan{}, causal.NewInvalidColumnError(name, "not present in dataset")
	}

	values := ds.Column(name)
	numeric := true
	nonNull := 0
	for _, v := range values {
		if isNull(v) {
			continue
		}
		nonNull++
		if _, ok := asNumber(v); !ok {
			numeric = false
		}
	}
	if nonNull == 0 {
		return columnPlan{}, causal.NewInvalidColumnError(name, "entirely null")
	}

	if numeric {
		if nonNull < len(values) {
			for i, v := range values {
				if isNull(v) {
					return columnPlan{}, causal.NewInvalidColumnError(name, fmt.Sprintf("numeric column has a null at row %d", ds.Records[i].ID))
				}
			}
		}
		return columnPlan{name: name, numeric: true}, nil
	}

	seen := make(map[string]struct{})
	var levels []string
	for _, v := range values {
		if isNull(v) {
			continue
		}
		label := category(v)
		if _, ok := seen[label]; !ok {
			seen[label] = struct{}{}
			levels = append(levels, label)
		}
	}
	sort.Strings(levels)
	return columnPlan{name: name, levels: levels}, nil
}
