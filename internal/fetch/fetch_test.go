package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/xtxerr/pricelake/internal/errors"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Get("synthetic"); !errors.Is(err, errors.ErrUnknownFetcher) {
		t.Errorf("empty registry: err = %v, want ErrUnknownFetcher", err)
	}

	r.Register(NewSyntheticFetcher())
	r.Register(NewCSVFetcher("yfinance", "http://localhost:9000", nil))

	f, err := r.Get("synthetic")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.SourceName() != "synthetic" {
		t.Errorf("source = %s", f.SourceName())
	}

	names := r.List()
	if len(names) != 2 || names[0] != "synthetic" || names[1] != "yfinance" {
		t.Errorf("list = %v", names)
	}
}

func TestSyntheticFetcher_Deterministic(t *testing.T) {
	f := NewSyntheticFetcher()
	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)

	first, err := f.FetchDaily(context.Background(), "aapl", from, to)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	second, err := f.FetchDaily(context.Background(), "AAPL", from, to)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if len(first) != 5 {
		t.Fatalf("got %d records for a 5-weekday window", len(first))
	}
	for i := range first {
		if first[i].Symbol != "AAPL" {
			t.Errorf("symbol not normalized: %s", first[i].Symbol)
		}
		// AdjClose is a pointer; compare values, not addresses.
		a, b := first[i], second[i]
		if *a.AdjClose != *b.AdjClose {
			t.Errorf("record %d: adj close differs across identical fetches", i)
		}
		a.AdjClose, b.AdjClose = nil, nil
		if a != b {
			t.Errorf("record %d differs across identical fetches", i)
		}
	}
}

func TestSyntheticFetcher_SkipsWeekends(t *testing.T) {
	f := NewSyntheticFetcher()
	// 2026-01-03 is a Saturday, 2026-01-04 a Sunday.
	from := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)

	records, err := f.FetchDaily(context.Background(), "AAPL", from, to)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records for a weekend-only window", len(records))
	}
}

func TestSyntheticFetcher_BarShape(t *testing.T) {
	f := NewSyntheticFetcher()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	records, err := f.FetchDaily(context.Background(), "MSFT", from, to)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("no records")
	}
	for _, r := range records {
		if r.Low > r.High {
			t.Errorf("%s: low %v > high %v", r.Date, r.Low, r.High)
		}
		if r.Close < r.Low || r.Close > r.High {
			t.Errorf("%s: close %v outside [%v, %v]", r.Date, r.Close, r.Low, r.High)
		}
		if r.Open <= 0 || r.Volume <= 0 {
			t.Errorf("%s: open %v volume %d", r.Date, r.Open, r.Volume)
		}
		if r.AdjClose == nil {
			t.Errorf("%s: missing adj close", r.Date)
		}
	}
}

func TestSyntheticFetcher_ContextCancel(t *testing.T) {
	f := NewSyntheticFetcher()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	from := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if _, err := f.FetchDaily(ctx, "AAPL", from, from); err == nil {
		t.Fatal("expected context error")
	}
}
