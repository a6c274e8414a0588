package features

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gocausal/domain/causal"
	"gocausal/domain/dataset"
)

// asNumber interprets a typed cell as a float. Booleans count as 0/1.
func asNumber(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// isNull reports a missing cell: nil or a NaN float
func isNull(v interface{}) bool {
	if v == nil {
		return true
	}
	if f, ok := v.(float64); ok && math.IsNaN(f) {
		return true
	}
	return false
}

// category renders a cell as its category label
func category(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// TreatmentVector extracts the treatment column as 0/1 floats.
// Accepted cells: numeric 0/1, bool, and the strings "0", "1", "true", "false".
func TreatmentVector(ds *dataset.Dataset, column string) ([]float64, error) {
	if !ds.HasColumn(column) {
		return nil, causal.NewInvalidColumnError(column, "not present in dataset")
	}
	out := make([]float64, ds.Len())
	for i, rec := range ds.Records {
		v := rec.Values[column]
		if isNull(v) {
			return nil, causal.NewInvalidColumnError(column, fmt.Sprintf("null treatment at row %d", rec.ID))
		}
		t, ok := asBinary(v)
		if !ok {
			return nil, causal.NewInvalidColumnError(column, fmt.Sprintf("value %v at row %d is not coercible to 0/1", v, rec.ID))
		}
		out[i] = t
	}
	return out, nil
}

func asBinary(v interface{}) (float64, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if b, err := strconv.ParseBool(s); err == nil {
			if b {
				return 1, true
			}
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		v = f
	}
	f, ok := asNumber(v)
	if !ok || (f != 0 && f != 1) {
		return 0, false
	}
	return f, true
}

// OutcomeVector extracts the outcome column as floats; every cell must be numeric
func OutcomeVector(ds *dataset.Dataset, column string) ([]float64, error) {
	if !ds.HasColumn(column) {
		return nil, causal.NewInvalidColumnError(column, "not present in dataset")
	}
	out := make([]float64, ds.Len())
	for i, rec := range ds.Records {
		v := rec.Values[column]
		if isNull(v) {
			return nil, causal.NewInvalidColumnError(column, fmt.Sprintf("null outcome at row %d", rec.ID))
		}
		f, ok := asNumber(v)
		if !ok {
			return nil, causal.NewInvalidColumnError(column, fmt.Sprintf("non-numeric outcome %v at row %d", v, rec.ID))
		}
		out[i] = f
	}
	return out, nil
}

// DistinctClasses counts distinct values in a 0/1 vector
func DistinctClasses(t []float64) int {
	var has0, has1 bool
	for _, v := range t {
		if v == 1 {
			has1 = true
		} else {
			has0 = true
		}
	}
	n := 0
	if has0 {
		n++
	}
	if has1 {
		n++
	}
	return n
}
