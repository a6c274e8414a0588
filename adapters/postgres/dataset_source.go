package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"gocausal/internal/errors"
)

// DatasetSource loads estimation rows from PostgreSQL
type DatasetSource struct {
	db *sqlx.DB
}

// NewDatasetSource wraps an open connection
func NewDatasetSource(db *sqlx.DB) *DatasetSource {
	return &DatasetSource{db: db}
}

// Connect opens and pings a PostgreSQL connection
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	if url == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to database")
	}
	return db, nil
}

// LoadTable selects the given columns (all when empty) from a table.
// Identifiers are quoted, so names are taken literally.
func (s *DatasetSource) LoadTable(ctx context.Context, table string, columns []string, limit int) ([]map[string]interface{}, error) {
	query, err := buildSelect(table, columns, limit)
	if err != nil {
		return nil, err
	}
	return s.LoadQuery(ctx, query)
}

// LoadQuery runs a read query and returns one row map per result row
func (s *DatasetSource) LoadQuery(ctx context.Context, query string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset: %w", err)
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		row := make(map[string]interface{})
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan dataset row: %w", err)
		}
		for k, v := range row {
			row[k] = normalizeValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset rows: %w", err)
	}
	return out, nil
}

func buildSelect(table string, columns []string, limit int) (string, error) {
	if strings.TrimSpace(table) == "" {
		return "", errors.InvalidInput("table name is required")
	}

	cols := "*"
	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = pq.QuoteIdentifier(c)
		}
		cols = strings.Join(quoted, ", ")
	}

	// schema-qualified names are quoted part by part
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = pq.QuoteIdentifier(p)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", cols, strings.Join(parts, "."))
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	return query, nil
}

// normalizeValue maps driver values onto the types the estimators read.
// lib/pq returns NUMERIC and text as []byte; timestamps become Unix seconds.
func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case []byte:
		s := string(x)
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return s
	case time.Time:
		return float64(x.Unix())
	default:
		return v
	}
}
