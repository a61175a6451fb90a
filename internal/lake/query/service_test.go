package query

import (
	"context"
	"testing"
	"time"

	"github.com/xtxerr/pricelake/internal/lake/parquet"
	"github.com/xtxerr/pricelake/internal/lake/paths"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

func newService(t *testing.T) (*Service, *paths.Layout) {
	t.Helper()
	layout := paths.New(t.TempDir())
	s, err := New(layout, DefaultOptions())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, layout
}

func writeBars(t *testing.T, layout *paths.Layout, symbol string, days ...int) {
	t.Helper()
	var bars []types.PriceBar
	for _, day := range days {
		bars = append(bars, types.PriceBar{
			Symbol: symbol,
			Date:   time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC),
			Open:   100, High: 104, Low: 98,
			Close:  100 + float64(day),
			Volume: int64(1000 * day),
		})
	}
	path, err := layout.PartitionFile(types.LayerSilver, "prices", symbol,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "")
	if err != nil {
		t.Fatalf("partition file: %v", err)
	}
	if err := parquet.WritePartition(path, bars, parquet.DefaultOptions()); err != nil {
		t.Fatalf("write partition: %v", err)
	}
}

func TestQueryRange(t *testing.T) {
	s, layout := newService(t)
	writeBars(t, layout, "AAPL", 5, 6, 7, 8, 9)
	writeBars(t, layout, "MSFT", 5, 6)

	bars, err := s.QueryRange(context.Background(), RangeQuery{
		Layer:   types.LayerSilver,
		Dataset: "prices",
		Symbol:  "AAPL",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	if len(bars) != 5 {
		t.Fatalf("got %d bars, want 5", len(bars))
	}
	// Newest first
	if bars[0].Date.Day() != 9 || bars[4].Date.Day() != 5 {
		t.Errorf("order = %v .. %v", bars[0].Date, bars[4].Date)
	}
	for _, b := range bars {
		if b.Symbol != "AAPL" {
			t.Errorf("leaked symbol %s", b.Symbol)
		}
	}
}

func TestQueryRange_Window(t *testing.T) {
	s, layout := newService(t)
	writeBars(t, layout, "AAPL", 5, 6, 7, 8, 9)

	bars, err := s.QueryRange(context.Background(), RangeQuery{
		Layer:   types.LayerSilver,
		Dataset: "prices",
		Symbol:  "AAPL",
		From:    time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want 3", len(bars))
	}
	if bars[0].Date.Day() != 8 || bars[2].Date.Day() != 6 {
		t.Errorf("window = %v .. %v", bars[0].Date, bars[2].Date)
	}
}

func TestQueryRange_Limit(t *testing.T) {
	s, layout := newService(t)
	writeBars(t, layout, "AAPL", 5, 6, 7, 8, 9)

	bars, err := s.QueryRange(context.Background(), RangeQuery{
		Layer:   types.LayerSilver,
		Dataset: "prices",
		Symbol:  "AAPL",
		Limit:   2,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	// Limit keeps the newest rows
	if bars[0].Date.Day() != 9 || bars[1].Date.Day() != 8 {
		t.Errorf("limited = %v, %v", bars[0].Date, bars[1].Date)
	}
}

func TestExecuteSQL(t *testing.T) {
	s, _ := newService(t)

	rows, err := s.ExecuteSQL(context.Background(), "SELECT 1 AS one, 'x' AS name")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0]["name"] != "x" {
		t.Errorf("row = %v", rows[0])
	}

	stats := s.Stats()
	if stats.QueriesExecuted != 1 || stats.RowsReturned != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestExecuteSQL_Invalid(t *testing.T) {
	s, _ := newService(t)

	if _, err := s.ExecuteSQL(context.Background(), "SELEKT nope"); err == nil {
		t.Fatal("expected syntax error")
	}
	if s.Stats().Errors != 1 {
		t.Errorf("errors = %d, want 1", s.Stats().Errors)
	}
}
