// Package lake defines the storage engine contract shared by all engine
// variants. Engines form a closed set: the partitioned parquet store under
// lake/store and the in-memory store in this package. New engines are added
// by implementing Repo, not by duck typing.
package lake

import (
	"context"
	"strings"
	"time"

	"github.com/xtxerr/pricelake/internal/lake/spec"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

// ReadOptions narrows a read. A zero DateFrom/DateTo leaves that bound
// open; Limit <= 0 means no truncation.
type ReadOptions struct {
	Limit    int
	DateFrom time.Time
	DateTo   time.Time
}

// Repo is the storage engine contract. Write applies one logical request
// with exactly-once semantics per idempotency key and returns its receipt;
// a repeated request replays the recorded receipt without touching data
// files. Read returns bars for a symbol sorted by date descending.
//
// runID identifies the physical execution for audit lineage; engines mint
// one when it is empty.
type Repo interface {
	Engine() types.Engine
	Location() string
	Write(ctx context.Context, rows []types.PriceBar, req spec.WriteRequest, runID string) (*spec.Receipt, error)
	Read(ctx context.Context, symbol string, opts ReadOptions) ([]types.PriceBar, error)
}

// FilterRange returns the bars within the inclusive [from, to] window,
// honoring open bounds.
func FilterRange(bars []types.PriceBar, from, to time.Time) []types.PriceBar {
	out := make([]types.PriceBar, 0, len(bars))
	for _, b := range bars {
		if !from.IsZero() && b.Date.Before(from) {
			continue
		}
		if !to.IsZero() && b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func timeNow() time.Time {
	return time.Now().UTC()
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
