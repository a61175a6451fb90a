package aggregate

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/xtxerr/pricelake/internal/errors"
	"github.com/xtxerr/pricelake/internal/lake/parquet"
	"github.com/xtxerr/pricelake/internal/lake/paths"
	"github.com/xtxerr/pricelake/internal/lake/types"
	"github.com/xtxerr/pricelake/internal/logging"
)

// BuilderOptions configures the monthly rollup builder.
type BuilderOptions struct {
	// SourceDataset is the silver daily dataset to read from.
	SourceDataset string
	// TargetDataset is the gold dataset to write monthly rows into.
	TargetDataset string
	// Percentiles enables p50/p90/p95/p99 of daily closes per month.
	Percentiles bool
	// Parquet holds compression settings for the gold files.
	Parquet parquet.Options
}

// DefaultBuilderOptions returns the standard rollup configuration.
func DefaultBuilderOptions() BuilderOptions {
	return BuilderOptions{
		SourceDataset: "prices",
		TargetDataset: "prices_monthly",
		Percentiles:   true,
		Parquet:       parquet.DefaultOptions(),
	}
}

// Builder recomputes gold-layer monthly aggregates from silver daily
// partitions. Rebuilds are full per symbol: every silver partition for
// the symbol is re-read and every affected gold partition is rewritten,
// so the rollup is always derivable from the daily data alone.
type Builder struct {
	layout *paths.Layout
	opts   BuilderOptions
	log    *slog.Logger
}

// NewBuilder creates a rollup builder over the given layout.
func NewBuilder(layout *paths.Layout, opts BuilderOptions) *Builder {
	if opts.SourceDataset == "" {
		opts.SourceDataset = "prices"
	}
	if opts.TargetDataset == "" {
		opts.TargetDataset = "prices_monthly"
	}
	return &Builder{
		layout: layout,
		opts:   opts,
		log:    logging.Component("aggregate"),
	}
}

// BuildResult summarizes one symbol rebuild.
type BuildResult struct {
	Symbol     string
	BarsRead   int
	Months     int
	Partitions int
}

// BuildSymbol rebuilds all monthly partitions for one symbol.
func (b *Builder) BuildSymbol(ctx context.Context, symbol string) (*BuildResult, error) {
	start := time.Now()

	files, err := b.layout.ListPartitions(types.LayerSilver, b.opts.SourceDataset, symbol)
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Time]*Monthly)
	barsRead := 0

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bars, err := parquet.ReadPartition(file)
		if err != nil {
			return nil, err
		}
		for _, bar := range bars {
			month := MonthOf(bar.Date)
			agg, ok := buckets[month]
			if !ok {
				agg = NewMonthly(symbol, bar.Date, b.opts.Percentiles)
				buckets[month] = agg
			}
			agg.Add(bar)
			barsRead++
		}
	}

	months := make([]time.Time, 0, len(buckets))
	for month := range buckets {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	written := 0
	for _, month := range months {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.writeMonth(symbol, month, buckets[month]); err != nil {
			return nil, err
		}
		written++
	}

	result := &BuildResult{
		Symbol:     symbol,
		BarsRead:   barsRead,
		Months:     len(buckets),
		Partitions: written,
	}
	b.log.Info("rollup.done",
		"symbol", symbol,
		"bars", barsRead,
		"months", len(buckets),
		"duration_ms", time.Since(start).Milliseconds())
	return result, nil
}

// writeMonth writes a single gold partition holding one monthly row.
func (b *Builder) writeMonth(symbol string, month time.Time, agg *Monthly) error {
	path, err := b.layout.PartitionFile(types.LayerGold, b.opts.TargetDataset, symbol, month, "")
	if err != nil {
		return err
	}

	w, err := parquet.NewMonthlyWriter(path, b.opts.Parquet)
	if err != nil {
		return errors.NewStorage(err, path)
	}
	if err := w.Write([]parquet.MonthlyRow{agg.Row()}); err != nil {
		w.Close()
		return errors.NewStorage(err, path)
	}
	return w.Close()
}

// ReadMonthly loads all monthly rows for a symbol, newest month first.
func (b *Builder) ReadMonthly(ctx context.Context, symbol string) ([]parquet.MonthlyRow, error) {
	files, err := b.layout.ListPartitions(types.LayerGold, b.opts.TargetDataset, symbol)
	if err != nil {
		return nil, err
	}

	var out []parquet.MonthlyRow
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := parquet.NewMonthlyReader(file)
		if err != nil {
			return nil, errors.NewStorage(err, file)
		}
		rows, err := r.ReadAll()
		r.Close()
		if err != nil {
			return nil, errors.NewStorage(err, file)
		}
		out = append(out, rows...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Month > out[j].Month })
	return out, nil
}
