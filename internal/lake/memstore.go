package lake

import (
	"context"
	"sort"
	"sync"

	"github.com/xtxerr/pricelake/internal/lake/merge"
	"github.com/xtxerr/pricelake/internal/lake/spec"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

// MemStore is the in-memory engine variant. It honors the same write
// semantics as the partitioned store — idempotency ledger, merge modes,
// receipt counts — without touching disk. Used by tests and dev wiring.
type MemStore struct {
	mu       sync.Mutex
	rows     map[string][]types.PriceBar // symbol -> bars
	receipts map[string]*spec.Receipt    // idempotency key -> receipt
	source   types.Source
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(source types.Source) *MemStore {
	return &MemStore{
		rows:     make(map[string][]types.PriceBar),
		receipts: make(map[string]*spec.Receipt),
		source:   source,
	}
}

// Engine returns the engine variant identifier.
func (s *MemStore) Engine() types.Engine { return types.EngineMemory }

// Location returns the engine location for receipts.
func (s *MemStore) Location() string { return "memory" }

// Write applies one logical request. See Repo.
func (s *MemStore) Write(ctx context.Context, rows []types.PriceBar, req spec.WriteRequest, runID string) (*spec.Receipt, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := req.IdempotencyKey()

	s.mu.Lock()
	defer s.mu.Unlock()

	if hit, ok := s.receipts[key]; ok {
		return hit, nil
	}

	if runID == "" {
		runID = spec.NewRunID()
	}

	bySymbol := make(map[string][]types.PriceBar)
	var symbols []string
	for i := range rows {
		b := rows[i]
		b.Normalize()
		if _, seen := bySymbol[b.Symbol]; !seen {
			symbols = append(symbols, b.Symbol)
		}
		bySymbol[b.Symbol] = append(bySymbol[b.Symbol], b)
	}
	sort.Strings(symbols)

	receipt := &spec.Receipt{
		RunID:          runID,
		IdempotencyKey: key,
		Engine:         s.Engine(),
		Source:         s.source,
		Location:       s.Location(),
		Symbol:         req.Symbol(),
		PrimaryKey:     req.PrimaryKey,
		LayoutVersion:  req.LayoutVersion,
		WriteMode:      req.WriteMode,
		Rows:           len(rows),
		TS:             timeNow(),
	}

	for _, sym := range symbols {
		res, err := merge.Merge(s.rows[sym], bySymbol[sym], req.PrimaryKey, req.WriteMode)
		if err != nil {
			return nil, err
		}
		s.rows[sym] = res.Rows
		receipt.Inserted += res.Inserted
		receipt.Updated += res.Updated
		receipt.Skipped += res.Skipped
	}

	s.receipts[key] = receipt
	return receipt, nil
}

// Read returns bars for a symbol, newest first. See Repo.
func (s *MemStore) Read(ctx context.Context, symbol string, opts ReadOptions) ([]types.PriceBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bars := FilterRange(s.rows[normalizeSymbol(symbol)], opts.DateFrom, opts.DateTo)
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.After(bars[j].Date)
	})
	if opts.Limit > 0 && len(bars) > opts.Limit {
		bars = bars[:opts.Limit]
	}
	return bars, nil
}
