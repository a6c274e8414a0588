package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"gocausal/adapters/excel"
	"gocausal/adapters/jsonrows"
	"gocausal/adapters/postgres"
	"gocausal/domain/causal"
	"gocausal/internal"
	"gocausal/internal/report"
)

// sourceFlags select where the dataset comes from: a file, a URL, or a table
type sourceFlags struct {
	data        string
	sheet       string
	jsonPath    string
	table       string
	query       string
	databaseURL string
	limit       int
}

func (s *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.data, "data", "d", "", "CSV, XLSX, JSON or NDJSON file, or an http(s) URL returning JSON")
	cmd.Flags().StringVar(&s.sheet, "sheet", "", "XLSX sheet (default first sheet)")
	cmd.Flags().StringVar(&s.jsonPath, "json-path", "", "Path to the row array inside a JSON document, e.g. data.rows")
	cmd.Flags().StringVar(&s.table, "table", "", "PostgreSQL table to read, optionally schema-qualified")
	cmd.Flags().StringVar(&s.query, "query", "", "PostgreSQL query to read instead of --table")
	cmd.Flags().StringVar(&s.databaseURL, "database-url", "", "PostgreSQL connection URL (default $DATABASE_URL)")
	cmd.Flags().IntVar(&s.limit, "limit", 0, "Maximum rows to read from --table")
}

// load reads rows from the selected source
func (s *sourceFlags) load(ctx context.Context, roles causal.ColumnRoles, logger *internal.Logger) ([]map[string]interface{}, error) {
	switch {
	case s.table != "" || s.query != "":
		return s.loadPostgres(ctx, roles)
	case s.data == "":
		return nil, fmt.Errorf("one of --data, --table or --query is required")
	case isJSONSource(s.data):
		reader := jsonrows.NewReader(jsonrows.Source{DataPath: s.jsonPath, AuthToken: os.Getenv("DATA_AUTH_TOKEN")})
		return reader.Load(ctx, s.data)
	default:
		cfg := excel.DefaultReaderConfig(s.data)
		cfg.Sheet = s.sheet
		typed, err := excel.NewDataReader(cfg, logger).ReadRows()
		if err != nil {
			return nil, err
		}
		return typed.Rows, nil
	}
}

func (s *sourceFlags) loadPostgres(ctx context.Context, roles causal.ColumnRoles) ([]map[string]interface{}, error) {
	url := s.databaseURL
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	db, err := postgres.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	source := postgres.NewDatasetSource(db)
	if s.query != "" {
		return source.LoadQuery(ctx, s.query)
	}
	columns := append([]string{roles.Treatment, roles.Outcome}, roles.Confounders...)
	return source.LoadTable(ctx, s.table, columns, s.limit)
}

func isJSONSource(location string) bool {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return true
	}
	switch strings.ToLower(filepath.Ext(location)) {
	case ".json", ".ndjson", ".jsonl":
		return true
	}
	return false
}

// roleFlags name the treatment, outcome, and confounder columns
type roleFlags struct {
	treatment   string
	outcome     string
	confounders []string
}

func (r *roleFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&r.treatment, "treatment", "t", "", "Binary treatment column")
	cmd.Flags().StringVarP(&r.outcome, "outcome", "y", "", "Outcome column")
	cmd.Flags().StringSliceVarP(&r.confounders, "confounders", "c", nil, "Comma-separated confounder columns")
	_ = cmd.MarkFlagRequired("treatment")
	_ = cmd.MarkFlagRequired("outcome")
	_ = cmd.MarkFlagRequired("confounders")
}

func (r *roleFlags) roles() causal.ColumnRoles {
	return causal.ColumnRoles{Treatment: r.treatment, Outcome: r.outcome, Confounders: r.confounders}
}

// write renders the result in the selected format
func (g *globalFlags) write(cmd *cobra.Command, result interface{}, markdown string) error {
	var out []byte
	switch strings.ToLower(g.format) {
	case "md", "markdown":
		out = []byte(markdown)
	case "html":
		out = report.HTML(markdown)
	case "json":
		b, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		out = append(b, '\n')
	default:
		return fmt.Errorf("unknown report format %q (use md, html or json)", g.format)
	}

	if g.output == "" {
		_, err := cmd.OutOrStdout().Write(out)
		return err
	}
	if err := os.WriteFile(g.output, out, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", g.output, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s\n", g.output)
	return nil
}
