// Package fetch defines the upstream data source boundary: the Fetcher
// contract, a registry of named fetchers, and the raw record shape a
// fetcher produces. Network retry and backoff live behind a Fetcher
// implementation, never in the storage core.
package fetch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xtxerr/pricelake/internal/errors"
)

// Record is one raw upstream observation, prior to validation. The
// validation collaborator turns records into storable bars; the core never
// sees a Record.
type Record struct {
	Symbol   string
	Date     string // ISO calendar date as delivered by the source
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose *float64 // Absent from sources that do not adjust
	Volume   int64
}

// Fetcher retrieves daily records for one symbol over an inclusive window.
// An empty result is a valid outcome, not an error; unreachable upstreams
// surface as ErrSourceUnavailable.
type Fetcher interface {
	SourceName() string
	FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]Record, error)
}

// Registry holds the known fetchers by source name.
type Registry struct {
	mu       sync.RWMutex
	fetchers map[string]Fetcher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// Register adds a fetcher under its source name, replacing any previous
// registration for that name.
func (r *Registry) Register(f Fetcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchers[f.SourceName()] = f
}

// Get returns the fetcher registered under name.
func (r *Registry) Get(name string) (Fetcher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fetchers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownFetcher, name)
	}
	return f, nil
}

// List returns the registered source names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fetchers))
	for name := range r.fetchers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
