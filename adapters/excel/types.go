package excel

import "gocausal/adapters/coercer"

// RawRowData represents a row of raw file data as string key-value pairs
type RawRowData map[string]string

// TableData represents the complete untyped table
type TableData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
}

// TypedData is the coerced table ready to become a dataset
type TypedData struct {
	Headers []string
	Rows    []map[string]interface{}
	Types   map[string]coercer.ColumnType
}
