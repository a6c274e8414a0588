package coercer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ColumnType is the type inferred for a text column
type ColumnType string

const (
	TypeNumeric   ColumnType = "numeric"
	TypeBoolean   ColumnType = "boolean"
	TypeTimestamp ColumnType = "timestamp"
	TypeString    ColumnType = "string"
)

// TypeCoercer turns text cells from files into typed dataset values
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines the coercion thresholds and rules
type CoercionConfig struct {
	NumericThreshold   float64  `json:"numeric_threshold"`   // share of non-missing values that must parse as numbers
	BooleanThreshold   float64  `json:"boolean_threshold"`   // share that must parse as booleans
	TimestampThreshold float64  `json:"timestamp_threshold"` // share that must parse as timestamps
	NormalizeStrings   bool     `json:"normalize_strings"`   // lowercase categorical labels
	MissingTokens      []string `json:"missing_tokens"`
}

// DefaultCoercionConfig returns the defaults used by the file readers
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		NumericThreshold:   0.8,
		BooleanThreshold:   0.9,
		TimestampThreshold: 0.8,
		NormalizeStrings:   false,
		MissingTokens:      []string{"", "na", "n/a", "nan", "null", "none", "-"},
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	return &TypeCoercer{config: config}
}

// TypeAnalysis contains the results of type distribution analysis
type TypeAnalysis struct {
	TotalCount      int        `json:"total_count"`
	ValidCount      int        `json:"valid_count"`
	NumericCount    int        `json:"numeric_count"`
	BooleanCount    int        `json:"boolean_count"`
	TimestampCount  int        `json:"timestamp_count"`
	NumericRatio    float64    `json:"numeric_ratio"`
	BooleanRatio    float64    `json:"boolean_ratio"`
	TimestampRatio  float64    `json:"timestamp_ratio"`
	RecommendedType ColumnType `json:"recommended_type"`
}

// AnalyzeColumn decides the column type from its non-missing cells
func (c *TypeCoercer) AnalyzeColumn(values []string) TypeAnalysis {
	analysis := TypeAnalysis{TotalCount: len(values)}
	for _, v := range values {
		if c.isMissing(v) {
			continue
		}
		analysis.ValidCount++
		if _, ok := parseNumeric(v); ok {
			analysis.NumericCount++
		}
		if _, ok := parseBoolean(v); ok {
			analysis.BooleanCount++
		}
		if _, ok := parseTimestamp(v); ok {
			analysis.TimestampCount++
		}
	}

	if analysis.ValidCount > 0 {
		valid := float64(analysis.ValidCount)
		analysis.NumericRatio = float64(analysis.NumericCount) / valid
		analysis.BooleanRatio = float64(analysis.BooleanCount) / valid
		analysis.TimestampRatio = float64(analysis.TimestampCount) / valid
	}
	analysis.RecommendedType = c.recommend(analysis)
	return analysis
}

// CoerceColumn converts every cell to the column type. Missing cells and cells
// that do not parse as the column type become nil. Timestamps become Unix seconds.
func (c *TypeCoercer) CoerceColumn(values []string, t ColumnType) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		if c.isMissing(v) {
			continue
		}
		switch t {
		case TypeNumeric:
			if f, ok := parseNumeric(v); ok {
				out[i] = f
			}
		case TypeBoolean:
			if b, ok := parseBoolean(v); ok {
				out[i] = b
			}
		case TypeTimestamp:
			if ts, ok := parseTimestamp(v); ok {
				out[i] = float64(ts.Unix())
			}
		default:
			out[i] = c.normalizeString(v)
		}
	}
	return out
}

// CoerceTable types a header + string rows table into dataset rows
func (c *TypeCoercer) CoerceTable(headers []string, rows []map[string]string) ([]map[string]interface{}, map[string]ColumnType) {
	out := make([]map[string]interface{}, len(rows))
	for i := range out {
		out[i] = make(map[string]interface{}, len(headers))
	}
	types := make(map[string]ColumnType, len(headers))

	col := make([]string, len(rows))
	for _, h := range headers {
		for i, row := range rows {
			col[i] = row[h]
		}
		t := c.AnalyzeColumn(col).RecommendedType
		types[h] = t
		for i, v := range c.CoerceColumn(col, t) {
			out[i][h] = v
		}
	}
	return out, types
}

func (c *TypeCoercer) recommend(analysis TypeAnalysis) ColumnType {
	if analysis.ValidCount == 0 {
		return TypeString
	}
	// 0/1 columns parse as both; numeric wins so treatment indicators stay numeric
	if analysis.NumericRatio >= c.config.NumericThreshold {
		return TypeNumeric
	}
	if analysis.BooleanRatio >= c.config.BooleanThreshold {
		return TypeBoolean
	}
	if analysis.TimestampRatio >= c.config.TimestampThreshold {
		return TypeTimestamp
	}
	return TypeString
}

func (c *TypeCoercer) isMissing(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, tok := range c.config.MissingTokens {
		if v == tok {
			return true
		}
	}
	return false
}

var whitespace = regexp.MustCompile(`\s+`)

// normalizeString trims, collapses whitespace, strips control characters and,
// when configured, lowercases
func (c *TypeCoercer) normalizeString(s string) string {
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
	if c.config.NormalizeStrings {
		s = strings.ToLower(s)
	}
	return s
}

// parseNumeric handles parentheses negatives, currency symbols, percent signs,
// and European decimal commas
func parseNumeric(strVal string) (float64, bool) {
	cleanVal := strings.TrimSpace(strVal)
	if cleanVal == "" {
		return 0, false
	}

	isNegative := false
	if strings.HasPrefix(cleanVal, "(") && strings.HasSuffix(cleanVal, ")") {
		cleanVal = strings.TrimSuffix(strings.TrimPrefix(cleanVal, "("), ")")
		isNegative = true
	}

	for _, symbol := range []string{"$", "€", "£", "¥", "USD", "EUR", "GBP", "JPY", "%"} {
		cleanVal = strings.ReplaceAll(cleanVal, symbol, "")
	}
	cleanVal = strings.TrimSpace(cleanVal)

	hasComma := strings.Contains(cleanVal, ",")
	hasPeriod := strings.Contains(cleanVal, ".")
	hasSpace := strings.Contains(cleanVal, " ")
	switch {
	case hasComma && (hasPeriod || hasSpace):
		commaIdx := strings.LastIndex(cleanVal, ",")
		if commaIdx > strings.LastIndex(cleanVal, ".") {
			// 1.234,56 or 1 234,56
			cleanVal = strings.NewReplacer(".", "", " ", "").Replace(cleanVal)
			cleanVal = strings.ReplaceAll(cleanVal, ",", ".")
		} else {
			// 1,234.56
			cleanVal = strings.NewReplacer(",", "", " ", "").Replace(cleanVal)
		}
	case hasComma:
		if strings.Count(cleanVal, ",") == 1 && len(cleanVal)-strings.Index(cleanVal, ",")-1 != 3 {
			cleanVal = strings.ReplaceAll(cleanVal, ",", ".")
		} else {
			cleanVal = strings.ReplaceAll(cleanVal, ",", "")
		}
	default:
		cleanVal = strings.ReplaceAll(cleanVal, " ", "")
	}

	if isNegative {
		cleanVal = "-" + cleanVal
	}

	val, err := strconv.ParseFloat(cleanVal, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	return val, true
}

func parseBoolean(strVal string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(strVal)) {
	case "true", "1", "yes", "y", "on", "t":
		return true, true
	case "false", "0", "no", "n", "off", "f":
		return false, true
	}
	return false, false
}

var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
	"02-Jan-2006",
}

func parseTimestamp(strVal string) (time.Time, bool) {
	s := strings.TrimSpace(strVal)
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
