package fetch

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"time"
)

// SyntheticFetcher generates deterministic bars for dev wiring and tests.
// The same (symbol, date) always yields the same bar; weekends are skipped
// like a real trading calendar.
type SyntheticFetcher struct {
	source string
}

// NewSyntheticFetcher creates a synthetic fetcher.
func NewSyntheticFetcher() *SyntheticFetcher {
	return &SyntheticFetcher{source: "synthetic"}
}

// SourceName returns the source identifier for lineage.
func (f *SyntheticFetcher) SourceName() string { return f.source }

// FetchDaily generates one bar per weekday in the window.
func (f *SyntheticFetcher) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]Record, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	var records []Record
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		records = append(records, synthBar(symbol, d))
	}
	return records, nil
}

// synthBar derives a bar from a hash of the symbol and date, shaped so the
// business rules (low <= high, close within range) always hold.
func synthBar(symbol string, d time.Time) Record {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte(d.Format(time.DateOnly)))
	seed := h.Sum64()

	base := 50 + float64(seed%20000)/100 // 50.00 .. 249.99
	swing := 1 + float64((seed>>16)%500)/100
	open := base
	high := base + swing
	low := math.Max(base-swing, 0)
	close := low + float64((seed>>24)%100)/100*(high-low)
	adj := close * 0.99

	return Record{
		Symbol:   symbol,
		Date:     d.Format(time.DateOnly),
		Open:     round2(open),
		High:     round2(high),
		Low:      round2(low),
		Close:    round2(close),
		AdjClose: &adj,
		Volume:   int64(1_000_000 + seed%9_000_000),
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
