package paths

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xtxerr/pricelake/internal/lake/types"
)

var march = time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

func TestLayout_PartitionDir(t *testing.T) {
	l := New("/data/lake")

	tests := []struct {
		name   string
		layer  types.Layer
		source types.Source
		want   string
	}{
		{
			name:  "silver has no source segment",
			layer: types.LayerSilver,
			want:  filepath.Join("/data/lake", "silver", "prices", "symbol=AAPL", "year=2026", "month=03"),
		},
		{
			name:   "bronze carries source segment",
			layer:  types.LayerBronze,
			source: types.SourceYFinance,
			want:   filepath.Join("/data/lake", "bronze", "prices", "source=yfinance", "symbol=AAPL", "year=2026", "month=03"),
		},
		{
			name:  "gold has no source segment",
			layer: types.LayerGold,
			want:  filepath.Join("/data/lake", "gold", "prices", "symbol=AAPL", "year=2026", "month=03"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := l.PartitionDir(tt.layer, "prices", "aapl", march, tt.source)
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLayout_PartitionFile(t *testing.T) {
	l := New(t.TempDir())

	path, err := l.PartitionFile(types.LayerSilver, "prices", "AAPL", march, "")
	if err != nil {
		t.Fatalf("partition file: %v", err)
	}
	if filepath.Base(path) != DataFileName {
		t.Errorf("file name = %s, want %s", filepath.Base(path), DataFileName)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("partition dir not created: %v", err)
	}
}

func TestLayout_ManifestFile(t *testing.T) {
	l := New(t.TempDir())

	path, err := l.ManifestFile(types.LayerSilver, "prices")
	if err != nil {
		t.Fatalf("manifest file: %v", err)
	}
	if filepath.Base(path) != "silver_prices.jsonl" {
		t.Errorf("manifest name = %s", filepath.Base(path))
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("manifests dir not created: %v", err)
	}
}

func TestLayout_ListPartitions(t *testing.T) {
	l := New(t.TempDir())

	// Empty dataset is not an error.
	files, err := l.ListPartitions(types.LayerSilver, "prices", "")
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("empty dataset listed %d files", len(files))
	}

	touch := func(layer types.Layer, symbol string, date time.Time, source types.Source) {
		path, err := l.PartitionFile(layer, "prices", symbol, date, source)
		if err != nil {
			t.Fatalf("partition file: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}

	touch(types.LayerSilver, "AAPL", march, "")
	touch(types.LayerSilver, "AAPL", march.AddDate(0, 1, 0), "")
	touch(types.LayerSilver, "MSFT", march, "")

	files, err = l.ListPartitions(types.LayerSilver, "prices", "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(files) != 3 {
		t.Errorf("listed %d files, want 3", len(files))
	}

	files, err = l.ListPartitions(types.LayerSilver, "prices", "AAPL")
	if err != nil {
		t.Fatalf("list symbol: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("listed %d AAPL files, want 2", len(files))
	}
}

func TestLayout_ListPartitionsBronzeBySymbol(t *testing.T) {
	l := New(t.TempDir())

	for _, src := range []types.Source{types.SourceYFinance, types.SourceAlpaca} {
		path, err := l.PartitionFile(types.LayerBronze, "prices", "AAPL", march, src)
		if err != nil {
			t.Fatalf("partition file: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("touch: %v", err)
		}
	}
	path, err := l.PartitionFile(types.LayerBronze, "prices", "MSFT", march, types.SourceYFinance)
	if err != nil {
		t.Fatalf("partition file: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("touch: %v", err)
	}

	// The symbol filter spans all sources on bronze.
	files, err := l.ListPartitions(types.LayerBronze, "prices", "AAPL")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("listed %d files for AAPL across sources, want 2", len(files))
	}
}
