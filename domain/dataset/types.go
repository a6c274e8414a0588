package dataset

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateRowID is returned when two records carry the same id
var ErrDuplicateRowID = errors.New("duplicate row id")

// RowID is the stable identity of a row, assigned once at ingestion.
// It is the join key for matched-pair reporting and is never reassigned.
type RowID int

// Record is one row of a dataset keyed by column name.
// Values are scalars: float64/int/json.Number for numerics, bool, string, or nil.
type Record struct {
	ID     RowID
	Values map[string]interface{}
}

// Dataset is an ordered, immutable-by-convention collection of records
type Dataset struct {
	Records []Record
	columns []string
}

// New builds a dataset from raw rows, assigning row ids 0..n-1 in input order
func New(rows []map[string]interface{}) *Dataset {
	records := make([]Record, len(rows))
	seen := make(map[string]struct{})
	var columns []string
	for i, row := range rows {
		values := make(map[string]interface{}, len(row))
		for k, v := range row {
			values[k] = v
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				columns = append(columns, k)
			}
		}
		records[i] = Record{ID: RowID(i), Values: values}
	}
	sort.Strings(columns)
	return &Dataset{Records: records, columns: columns}
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Columns returns every column name seen in any row, sorted
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// HasColumn reports whether any row carries the column
func (d *Dataset) HasColumn(name string) bool {
	i := sort.SearchStrings(d.columns, name)
	return i < len(d.columns) && d.columns[i] == name
}

// Column returns the raw values of a column in row order; missing cells are nil
func (d *Dataset) Column(name string) []interface{} {
	out := make([]interface{}, len(d.Records))
	for i, rec := range d.Records {
		out[i] = rec.Values[name]
	}
	return out
}

// RowIDs returns the ids of every row in order
func (d *Dataset) RowIDs() []RowID {
	ids := make([]RowID, len(d.Records))
	for i, rec := range d.Records {
		ids[i] = rec.ID
	}
	return ids
}

// Positions maps every row id to its index in Records. Ids need not be dense:
// a subset of a dataset keeps the ids its rows were ingested with.
func (d *Dataset) Positions() (map[RowID]int, error) {
	pos := make(map[RowID]int, len(d.Records))
	for i, rec := range d.Records {
		if _, ok := pos[rec.ID]; ok {
			return nil, fmt.Errorf("%w %d", ErrDuplicateRowID, rec.ID)
		}
		pos[rec.ID] = i
	}
	return pos, nil
}

// Rows returns a shallow copy of each record's values, for augmentation by callers
func (d *Dataset) Rows() []map[string]interface{} {
	out := make([]map[string]interface{}, len(d.Records))
	for i, rec := range d.Records {
		row := make(map[string]interface{}, len(rec.Values)+4)
		for k, v := range rec.Values {
			row[k] = v
		}
		out[i] = row
	}
	return out
}
