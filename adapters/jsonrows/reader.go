package jsonrows

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Source describes where a JSON dataset lives
type Source struct {
	// DataPath is a gjson path to the row array, e.g. "data" or "result.rows".
	// Empty means the document itself is the array (or NDJSON).
	DataPath  string
	Headers   map[string]string
	AuthToken string // sent as a bearer token for URL sources
	Timeout   time.Duration
}

// Reader loads row objects from JSON files, HTTP endpoints, or raw bytes
type Reader struct {
	source     Source
	httpClient *http.Client
}

// NewReader creates a reader for the source
func NewReader(source Source) *Reader {
	timeout := source.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Reader{source: source, httpClient: &http.Client{Timeout: timeout}}
}

// Load reads from an http(s) URL or a file path
func (r *Reader) Load(ctx context.Context, location string) ([]map[string]interface{}, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return r.Fetch(ctx, location)
	}
	return r.ReadFile(location)
}

// ReadFile parses a JSON or NDJSON file
func (r *Reader) ReadFile(path string) ([]map[string]interface{}, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return r.Parse(body)
}

// Fetch downloads and parses a JSON document
func (r *Reader) Fetch(ctx context.Context, url string) ([]map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range r.source.Headers {
		req.Header.Set(k, v)
	}
	if r.source.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.source.AuthToken)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return r.Parse(body)
}

// Parse extracts row objects. Arrays yield one row per element, a single object
// yields one row, and newline-delimited objects are accepted when no DataPath
// is set. Nested objects and arrays are kept as their raw JSON text.
func (r *Reader) Parse(body []byte) ([]map[string]interface{}, error) {
	if !gjson.ValidBytes(body) {
		if r.source.DataPath == "" {
			return parseNDJSON(body)
		}
		return nil, fmt.Errorf("invalid JSON document")
	}

	result := gjson.ParseBytes(body)
	if r.source.DataPath != "" {
		result = result.Get(r.source.DataPath)
		if !result.Exists() {
			return nil, fmt.Errorf("data path '%s' not found in document", r.source.DataPath)
		}
	}

	switch {
	case result.IsArray():
		var rows []map[string]interface{}
		var bad error
		result.ForEach(func(i, item gjson.Result) bool {
			if !item.IsObject() {
				bad = fmt.Errorf("element %d is not an object", i.Int())
				return false
			}
			rows = append(rows, toRow(item))
			return true
		})
		if bad != nil {
			return nil, bad
		}
		return rows, nil
	case result.IsObject():
		return []map[string]interface{}{toRow(result)}, nil
	default:
		return nil, fmt.Errorf("data is not an array or object")
	}
}

func parseNDJSON(body []byte) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		if !gjson.ValidBytes(text) {
			return nil, fmt.Errorf("line %d is not valid JSON", line)
		}
		item := gjson.ParseBytes(text)
		if !item.IsObject() {
			return nil, fmt.Errorf("line %d is not an object", line)
		}
		rows = append(rows, toRow(item))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

func toRow(obj gjson.Result) map[string]interface{} {
	row := make(map[string]interface{})
	obj.ForEach(func(key, value gjson.Result) bool {
		row[key.String()] = cell(value)
		return true
	})
	return row
}

func cell(v gjson.Result) interface{} {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.Number:
		return v.Float()
	case gjson.String:
		return v.String()
	default:
		return v.Raw
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
