package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/xtxerr/pricelake/internal/errors"
	"github.com/xtxerr/pricelake/internal/lake"
	"github.com/xtxerr/pricelake/internal/lake/parquet"
	"github.com/xtxerr/pricelake/internal/lake/paths"
	"github.com/xtxerr/pricelake/internal/lake/spec"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(paths.New(t.TempDir()), Options{
		Layer:   types.LayerSilver,
		Dataset: "prices",
		Source:  types.SourceSynthetic,
		Parquet: parquet.DefaultOptions(),
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func request(symbols []string, from, to time.Time) spec.WriteRequest {
	return spec.WriteRequest{
		Source:   types.SourceSynthetic,
		Engine:   types.EngineParquet,
		Location: "prices",
		Symbols:  symbols,
		DateFrom: from,
		DateTo:   to,
	}
}

func bar(symbol string, year int, month time.Month, day int, close float64) types.PriceBar {
	return types.PriceBar{
		Symbol: symbol,
		Date:   time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		Open:   close - 1,
		High:   close + 2,
		Low:    close - 2,
		Close:  close,
		Volume: 1000,
	}
}

func TestStore_WriteRead(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rows := []types.PriceBar{
		bar("AAPL", 2026, 1, 5, 100),
		bar("AAPL", 2026, 1, 6, 101),
		bar("AAPL", 2026, 2, 2, 102), // second partition
	}
	req := request([]string{"AAPL"},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC))

	receipt, err := s.Write(ctx, rows, req, "")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if receipt.Rows != 3 || receipt.Inserted != 3 {
		t.Errorf("receipt = rows %d inserted %d, want 3/3", receipt.Rows, receipt.Inserted)
	}
	if receipt.RunID == "" {
		t.Error("receipt has no run id")
	}
	if receipt.Symbol != "AAPL" {
		t.Errorf("receipt symbol = %q", receipt.Symbol)
	}

	got, err := s.Read(ctx, "AAPL", lake.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("read %d bars, want 3", len(got))
	}
	// Newest first
	if got[0].Day() != "2026-02-02" {
		t.Errorf("first bar = %s, want 2026-02-02", got[0].Day())
	}
}

func TestStore_IdempotentReplay(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	rows := []types.PriceBar{bar("AAPL", 2026, 1, 5, 100)}
	req := request([]string{"AAPL"},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))

	first, err := s.Write(ctx, rows, req, "")
	if err != nil {
		t.Fatalf("first write: %v", err)
	}

	// Same logical request with different rows: the recorded receipt is
	// replayed verbatim and no partition is touched.
	second, err := s.Write(ctx, []types.PriceBar{bar("AAPL", 2026, 1, 5, 999)}, req, "")
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if second.RunID != first.RunID {
		t.Errorf("replay run_id = %s, want %s", second.RunID, first.RunID)
	}
	if second.Inserted != first.Inserted || !second.TS.Equal(first.TS) {
		t.Error("replay receipt differs from recorded receipt")
	}

	got, err := s.Read(ctx, "AAPL", lake.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 1 || got[0].Close != 100 {
		t.Errorf("partition changed on replayed write: %+v", got)
	}
}

func TestStore_EmptyBatch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	req := request([]string{"AAPL"},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))

	receipt, err := s.Write(ctx, nil, req, "")
	if err != nil {
		t.Fatalf("empty write: %v", err)
	}
	if receipt.Rows != 0 || receipt.Inserted != 0 {
		t.Errorf("empty write receipt = %+v", receipt)
	}

	// The empty outcome is recorded: a retry replays it.
	replay, err := s.Write(ctx, nil, req, "")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replay.RunID != receipt.RunID {
		t.Error("empty write was not recorded in the manifest")
	}
}

func TestStore_UpsertAccounting(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	window := func(day int) (time.Time, time.Time) {
		return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC)
	}

	from, to := window(5)
	if _, err := s.Write(ctx, []types.PriceBar{
		bar("AAPL", 2026, 1, 2, 100),
		bar("AAPL", 2026, 1, 3, 101),
	}, request([]string{"AAPL"}, from, to), ""); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	// Wider window -> new key -> fresh write, not a replay.
	from, to = window(10)
	receipt, err := s.Write(ctx, []types.PriceBar{
		bar("AAPL", 2026, 1, 2, 100), // unchanged -> skip
		bar("AAPL", 2026, 1, 3, 200), // changed -> update
		bar("AAPL", 2026, 1, 4, 102), // new -> insert
	}, request([]string{"AAPL"}, from, to), "")
	if err != nil {
		t.Fatalf("second write: %v", err)
	}

	if receipt.Inserted != 1 || receipt.Updated != 1 || receipt.Skipped != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1",
			receipt.Inserted, receipt.Updated, receipt.Skipped)
	}
	if receipt.Rows != receipt.Inserted+receipt.Updated+receipt.Skipped {
		t.Error("count invariant violated")
	}
}

func TestStore_InsertOverwriteWindow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	seed := request([]string{"AAPL"},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	if _, err := s.Write(ctx, []types.PriceBar{
		bar("AAPL", 2026, 1, 2, 100),
		bar("AAPL", 2026, 1, 3, 101),
		bar("AAPL", 2026, 1, 4, 102),
	}, seed, ""); err != nil {
		t.Fatalf("seed: %v", err)
	}

	over := request([]string{"AAPL"},
		time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC))
	over.WriteMode = types.WriteModeInsertOverwrite

	receipt, err := s.Write(ctx, []types.PriceBar{
		bar("AAPL", 2026, 1, 3, 999),
	}, over, "")
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if receipt.Inserted != 1 || receipt.Updated != 0 || receipt.Skipped != 0 {
		t.Errorf("counts = %d/%d/%d, want 1/0/0",
			receipt.Inserted, receipt.Updated, receipt.Skipped)
	}

	got, err := s.Read(ctx, "AAPL", lake.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("read %d bars, want 3 (rows outside batch preserved)", len(got))
	}
	for _, b := range got {
		if b.Day() == "2026-01-03" && b.Close != 999 {
			t.Errorf("overwritten row close = %v, want 999", b.Close)
		}
	}
}

func TestStore_ReadWindowAndLimit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	var rows []types.PriceBar
	for m := time.January; m <= time.March; m++ {
		rows = append(rows, bar("AAPL", 2026, m, 10, float64(100+int(m))))
	}
	req := request([]string{"AAPL"},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC))
	if _, err := s.Write(ctx, rows, req, ""); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := s.Read(ctx, "AAPL", lake.ReadOptions{
		DateFrom: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("read window: %v", err)
	}
	if len(got) != 1 || got[0].Day() != "2026-02-10" {
		t.Errorf("windowed read = %+v", got)
	}

	got, err = s.Read(ctx, "AAPL", lake.ReadOptions{Limit: 2})
	if err != nil {
		t.Fatalf("read limit: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("limit read returned %d bars", len(got))
	}
	if got[0].Day() != "2026-03-10" || got[1].Day() != "2026-02-10" {
		t.Errorf("limit kept wrong bars: %s, %s", got[0].Day(), got[1].Day())
	}
}

func TestStore_ReadUnknownSymbol(t *testing.T) {
	s := newStore(t)

	got, err := s.Read(context.Background(), "NOPE", lake.ReadOptions{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("unknown symbol returned %d bars", len(got))
	}
}

func TestStore_ValidationErrors(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		req     spec.WriteRequest
		wantErr error
	}{
		{"no symbols", request(nil, from, to), errors.ErrNoSymbols},
		{"inverted window", request([]string{"AAPL"}, to.AddDate(0, 1, 0), to), errors.ErrInvalidDateRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Write(ctx, nil, tt.req, ""); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	badPK := request([]string{"AAPL"}, from, to)
	badPK.PrimaryKey = []string{"symbol", "exchange"}
	if _, err := s.Write(ctx, nil, badPK, ""); !errors.Is(err, errors.ErrMissingPrimaryKeyColumn) {
		t.Errorf("error = %v, want ErrMissingPrimaryKeyColumn", err)
	}
}

func TestStore_AtomicReplaceLeavesNoTempFiles(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	req := request([]string{"AAPL"},
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	if _, err := s.Write(ctx, []types.PriceBar{bar("AAPL", 2026, 1, 5, 100)}, req, ""); err != nil {
		t.Fatalf("write: %v", err)
	}

	dir := s.layout.PartitionDir(types.LayerSilver, "prices", "AAPL",
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "")
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != paths.DataFileName {
			t.Errorf("leftover file in partition dir: %s", e.Name())
		}
	}
}
