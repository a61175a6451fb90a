// Package query provides analytics over the parquet lakehouse. It uses
// DuckDB to scan partition files directly, complementing the store's
// partition-pruned reads with SQL over whole datasets.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/pricelake/internal/lake/paths"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

// Options configures the query service.
type Options struct {
	// MemoryLimit is the DuckDB memory limit (e.g. "1GB"). Empty leaves
	// the engine default.
	MemoryLimit string

	// Timeout bounds a single query. Zero means 30s.
	Timeout time.Duration

	// MaxRows caps result sizes. Zero means 10000.
	MaxRows int
}

// DefaultOptions returns default query options.
func DefaultOptions() Options {
	return Options{
		Timeout: 30 * time.Second,
		MaxRows: 10000,
	}
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
}

// RangeQuery selects bars for one symbol over a window.
type RangeQuery struct {
	Layer   types.Layer
	Dataset string
	Symbol  string
	From    time.Time
	To      time.Time
	Limit   int
}

// Service runs SQL over the lakehouse through an in-memory DuckDB.
type Service struct {
	mu     sync.Mutex
	layout *paths.Layout
	db     *sql.DB
	opts   Options
	stats  Stats
}

// New creates a query service over the layout.
func New(layout *paths.Layout, opts Options) (*Service, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.MaxRows <= 0 {
		opts.MaxRows = DefaultOptions().MaxRows
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if opts.MemoryLimit != "" {
		if _, err := db.Exec(fmt.Sprintf("SET memory_limit='%s'", opts.MemoryLimit)); err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}

	return &Service{layout: layout, db: db, opts: opts}, nil
}

// Close closes the query service.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Stats returns a snapshot of query statistics.
func (s *Service) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// glob returns the partition glob for a dataset.
func (s *Service) glob(layer types.Layer, dataset string) string {
	return filepath.Join(s.layout.DatasetDir(layer, dataset), "**", paths.DataFileName)
}

// QueryRange returns bars for a symbol window, newest first.
func (s *Service) QueryRange(ctx context.Context, q RangeQuery) ([]types.PriceBar, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	limit := q.Limit
	if limit <= 0 || limit > s.opts.MaxRows {
		limit = s.opts.MaxRows
	}

	// Dates are stored as ISO strings, so string comparison orders them.
	query := `
		SELECT symbol, date, open, high, low, close, adj_close, volume
		FROM read_parquet(?)
		WHERE symbol = ?
		  AND (? = '' OR date >= ?)
		  AND (? = '' OR date <= ?)
		ORDER BY date DESC
		LIMIT ?`

	from, to := "", ""
	if !q.From.IsZero() {
		from = q.From.Format(time.DateOnly)
	}
	if !q.To.IsZero() {
		to = q.To.Format(time.DateOnly)
	}

	rows, err := s.db.QueryContext(ctx, query,
		s.glob(q.Layer, q.Dataset), q.Symbol, from, from, to, to, limit)
	if err != nil {
		s.recordError()
		return nil, fmt.Errorf("query range: %w", err)
	}
	defer rows.Close()

	var out []types.PriceBar
	for rows.Next() {
		var (
			b    types.PriceBar
			date string
			adj  sql.NullFloat64
		)
		if err := rows.Scan(&b.Symbol, &date, &b.Open, &b.High, &b.Low, &b.Close, &adj, &b.Volume); err != nil {
			s.recordError()
			return nil, err
		}
		if b.Date, err = time.ParseInLocation(time.DateOnly, date, time.UTC); err != nil {
			s.recordError()
			return nil, fmt.Errorf("parse date %q: %w", date, err)
		}
		if adj.Valid {
			b.AdjClose = &adj.Float64
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		s.recordError()
		return nil, err
	}

	s.record(len(out))
	return out, nil
}

// ExecuteSQL runs a raw SQL statement and returns generic rows, capped at
// MaxRows.
func (s *Service) ExecuteSQL(ctx context.Context, query string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.recordError()
		return nil, fmt.Errorf("execute sql: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() && len(out) < s.opts.MaxRows {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			s.recordError()
			return nil, err
		}
		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = values[i]
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		s.recordError()
		return nil, err
	}

	s.record(len(out))
	return out, nil
}

func (s *Service) record(rows int) {
	s.mu.Lock()
	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(rows)
	s.mu.Unlock()
}

func (s *Service) recordError() {
	s.mu.Lock()
	s.stats.Errors++
	s.mu.Unlock()
}
