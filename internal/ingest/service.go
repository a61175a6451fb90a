// Package ingest orchestrates the write path: build a request, fetch,
// validate, store, and emit audit events. Pure orchestration; merge
// semantics and idempotency live in the storage engine.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xtxerr/pricelake/internal/fetch"
	"github.com/xtxerr/pricelake/internal/lake"
	"github.com/xtxerr/pricelake/internal/lake/spec"
	"github.com/xtxerr/pricelake/internal/lake/types"
	"github.com/xtxerr/pricelake/internal/logging"
	"github.com/xtxerr/pricelake/internal/validation"
)

// Options configures ingestion defaults.
type Options struct {
	// WriteMode is the merge semantics for ingested windows.
	WriteMode types.WriteMode

	// LayoutVersion is stamped into requests and receipts.
	LayoutVersion int

	// PrimaryKey overrides the default (symbol, date) key.
	PrimaryKey []string

	// Concurrency bounds the parallel per-symbol fan-out. Zero means 4.
	Concurrency int
}

// DefaultOptions returns the ingestion defaults.
func DefaultOptions() Options {
	return Options{
		WriteMode:     types.WriteModeUpsert,
		LayoutVersion: 1,
		Concurrency:   4,
	}
}

// Service wires a fetcher to a storage engine.
type Service struct {
	repo    lake.Repo
	fetcher fetch.Fetcher
	opts    Options
	log     *slog.Logger

	// Concurrent identical requests collapse onto one execution; the
	// manifest would de-duplicate them anyway, but this avoids redundant
	// fetches in-process.
	group singleflight.Group
}

// New creates an ingestion service.
func New(repo lake.Repo, fetcher fetch.Fetcher, opts Options) *Service {
	if opts.WriteMode == "" {
		opts.WriteMode = types.WriteModeUpsert
	}
	if opts.LayoutVersion == 0 {
		opts.LayoutVersion = 1
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &Service{
		repo:    repo,
		fetcher: fetcher,
		opts:    opts,
		log:     logging.Component("ingest"),
	}
}

// Request builds the normalized write request for a symbol window.
func (s *Service) Request(symbol string, from, to time.Time) spec.WriteRequest {
	return spec.WriteRequest{
		Source:        types.Source(s.fetcher.SourceName()),
		Engine:        s.repo.Engine(),
		Location:      s.repo.Location(),
		Symbols:       []string{symbol},
		DateFrom:      from,
		DateTo:        to,
		WriteMode:     s.opts.WriteMode,
		PrimaryKey:    s.opts.PrimaryKey,
		LayoutVersion: s.opts.LayoutVersion,
	}.Normalize()
}

// IngestWindow fetches, validates and stores one symbol's window, returning
// the write receipt. An upstream returning nothing is a valid no-op: the
// receipt has rows=0 and the manifest still records the request.
func (s *Service) IngestWindow(ctx context.Context, symbol string, from, to time.Time) (*spec.Receipt, error) {
	req := s.Request(symbol, from, to)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := req.IdempotencyKey()

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.ingest(ctx, req, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*spec.Receipt), nil
}

func (s *Service) ingest(ctx context.Context, req spec.WriteRequest, key string) (*spec.Receipt, error) {
	runID := spec.NewRunID()
	start := time.Now()
	symbol := req.Symbol()

	records, err := s.fetcher.FetchDaily(ctx, symbol, req.DateFrom, req.DateTo)
	if err != nil {
		return nil, err
	}

	var bars []types.PriceBar
	if len(records) > 0 {
		bars, err = validation.Batch(records)
		if err != nil {
			return nil, err
		}
	}

	receipt, err := s.repo.Write(ctx, bars, req, runID)
	if err != nil {
		return nil, err
	}

	event := "write.done"
	if receipt.Rows == 0 {
		event = "write.empty"
	}
	s.log.Info(event,
		"run_id", receipt.RunID,
		"idempotency_key", key,
		"source", string(receipt.Source),
		"engine", string(receipt.Engine),
		"symbol", symbol,
		"date_from", req.DateFrom.Format(time.DateOnly),
		"date_to", req.DateTo.Format(time.DateOnly),
		"rows", receipt.Rows,
		"inserted", receipt.Inserted,
		"updated", receipt.Updated,
		"skipped", receipt.Skipped,
		"duration_ms", time.Since(start).Milliseconds())

	return receipt, nil
}

// IngestLastYear ingests the trailing 365-day window ending at on (today
// when zero).
func (s *Service) IngestLastYear(ctx context.Context, symbol string, on time.Time) (*spec.Receipt, error) {
	if on.IsZero() {
		on = time.Now().UTC()
	}
	on = types.Day(on)
	return s.IngestWindow(ctx, symbol, on.AddDate(0, 0, -365), on)
}

// IngestMany fans one window out across symbols, each as its own logical
// request with its own receipt. The first failure cancels the rest.
func (s *Service) IngestMany(ctx context.Context, symbols []string, from, to time.Time) ([]*spec.Receipt, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	receipts := make([]*spec.Receipt, len(symbols))
	for i, symbol := range symbols {
		g.Go(func() error {
			r, err := s.IngestWindow(ctx, symbol, from, to)
			if err != nil {
				return err
			}
			receipts[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return receipts, nil
}

// Read proxies a range read to the engine.
func (s *Service) Read(ctx context.Context, symbol string, opts lake.ReadOptions) ([]types.PriceBar, error) {
	return s.repo.Read(ctx, symbol, opts)
}
