package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/xtxerr/pricelake/internal/fetch"
	"github.com/xtxerr/pricelake/internal/lake"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

func newService() *Service {
	return New(lake.NewMemStore(types.SourceSynthetic), fetch.NewSyntheticFetcher(), DefaultOptions())
}

// 2026-01-05 is a Monday; the week through Friday holds 5 trading days.
var (
	monday = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	friday = time.Date(2026, 1, 9, 0, 0, 0, 0, time.UTC)
)

func TestService_IngestWindow(t *testing.T) {
	s := newService()

	receipt, err := s.IngestWindow(context.Background(), "AAPL", monday, friday)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if receipt.Rows != 5 || receipt.Inserted != 5 {
		t.Errorf("receipt rows/inserted = %d/%d, want 5/5", receipt.Rows, receipt.Inserted)
	}
	if receipt.Source != types.SourceSynthetic {
		t.Errorf("source = %q", receipt.Source)
	}
	if receipt.WriteMode != types.WriteModeUpsert {
		t.Errorf("write mode = %q", receipt.WriteMode)
	}

	bars, err := s.Read(context.Background(), "AAPL", lake.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(bars) != 5 {
		t.Errorf("read %d bars, want 5", len(bars))
	}
	for _, b := range bars {
		if err := b.Validate(); err != nil {
			t.Errorf("stored bar invalid: %v", err)
		}
	}
}

func TestService_IngestWindowIdempotent(t *testing.T) {
	s := newService()
	ctx := context.Background()

	first, err := s.IngestWindow(ctx, "AAPL", monday, friday)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := s.IngestWindow(ctx, "AAPL", monday, friday)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}

	if second.RunID != first.RunID {
		t.Error("repeated ingest did not replay the recorded receipt")
	}
}

func TestService_IngestEmptyWindow(t *testing.T) {
	s := newService()

	// 2026-01-03 is a Saturday: the synthetic calendar has no bars.
	saturday := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	receipt, err := s.IngestWindow(context.Background(), "AAPL", saturday, saturday)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}

	if receipt.Rows != 0 || receipt.Inserted != 0 {
		t.Errorf("empty window receipt = %+v", receipt)
	}

	// The empty outcome is still recorded: a retry replays it.
	replay, err := s.IngestWindow(context.Background(), "AAPL", saturday, saturday)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.RunID != receipt.RunID {
		t.Error("empty window was not recorded for idempotency")
	}
}

func TestService_IngestMany(t *testing.T) {
	s := newService()

	symbols := []string{"AAPL", "MSFT", "GOOG"}
	receipts, err := s.IngestMany(context.Background(), symbols, monday, friday)
	if err != nil {
		t.Fatalf("ingest many: %v", err)
	}
	if len(receipts) != len(symbols) {
		t.Fatalf("got %d receipts, want %d", len(receipts), len(symbols))
	}

	seen := make(map[string]bool)
	for i, r := range receipts {
		if r == nil {
			t.Fatalf("receipt %d is nil", i)
		}
		if r.Rows != 5 {
			t.Errorf("%s: rows = %d, want 5", symbols[i], r.Rows)
		}
		if seen[r.IdempotencyKey] {
			t.Errorf("duplicate idempotency key across symbols")
		}
		seen[r.IdempotencyKey] = true
	}
}

func TestService_IngestLastYear(t *testing.T) {
	s := newService()

	receipt, err := s.IngestLastYear(context.Background(), "AAPL", friday)
	if err != nil {
		t.Fatalf("ingest last year: %v", err)
	}
	// 365 calendar days hold roughly 260 weekdays.
	if receipt.Rows < 250 || receipt.Rows > 262 {
		t.Errorf("rows = %d, want a year of weekdays", receipt.Rows)
	}
}

func TestService_Request(t *testing.T) {
	s := newService()

	req := s.Request("aapl", monday, friday)
	if req.Symbol() != "AAPL" {
		t.Errorf("symbol = %q", req.Symbol())
	}
	if req.Engine != types.EngineMemory {
		t.Errorf("engine = %q", req.Engine)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("built request invalid: %v", err)
	}
}
