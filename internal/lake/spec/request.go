// Package spec defines the immutable value contracts of the write path: the
// normalized WriteRequest a caller submits and the Receipt it gets back.
//
// A WriteRequest that normalizes identically to another yields the same
// idempotency key regardless of symbol order, casing, or call site. The key
// is the digest of a canonical JSON serialization with sorted keys and
// stable separators.
package spec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/xtxerr/pricelake/internal/errors"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

// KeyLength is the hex length of an idempotency key (first 128 bits of the
// SHA-256 digest).
const KeyLength = 32

// WriteRequest describes one logical write: which symbols, which window,
// and how to merge. Normalize before use; Validate before deriving a key.
type WriteRequest struct {
	Source        types.Source      `json:"source"`
	Engine        types.Engine      `json:"engine"`
	Location      string            `json:"location"`
	Symbols       []string          `json:"symbols"`
	DateFrom      time.Time         `json:"date_from"`
	DateTo        time.Time         `json:"date_to"`
	WriteMode     types.WriteMode   `json:"write_mode"`
	PrimaryKey    []string          `json:"primary_key"`
	LayoutVersion int               `json:"layout_version"`
	Options       map[string]string `json:"options,omitempty"`
}

// Normalize upper-cases, deduplicates and sorts symbols, truncates the
// window to UTC days, and fills defaults for mode, primary key and layout
// version. It returns a copy; the receiver is not modified.
func (r WriteRequest) Normalize() WriteRequest {
	out := r

	seen := make(map[string]bool, len(r.Symbols))
	syms := make([]string, 0, len(r.Symbols))
	for _, s := range r.Symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		syms = append(syms, s)
	}
	slices.Sort(syms)
	out.Symbols = syms

	if !r.DateFrom.IsZero() {
		out.DateFrom = types.Day(r.DateFrom)
	}
	if !r.DateTo.IsZero() {
		out.DateTo = types.Day(r.DateTo)
	}

	if out.WriteMode == "" {
		out.WriteMode = types.WriteModeUpsert
	}
	if len(out.PrimaryKey) == 0 {
		out.PrimaryKey = slices.Clone(types.DefaultPrimaryKey)
	} else {
		out.PrimaryKey = slices.Clone(out.PrimaryKey)
	}
	if out.LayoutVersion == 0 {
		out.LayoutVersion = 1
	}
	return out
}

// Validate checks the request shape. All failures are input errors; no I/O
// has been attempted when they surface.
func (r *WriteRequest) Validate() error {
	if len(r.Symbols) == 0 {
		return errors.ErrNoSymbols
	}
	if !r.WriteMode.Valid() {
		return fmt.Errorf("%w: %q", errors.ErrInvalidWriteMode, r.WriteMode)
	}
	if !r.Engine.Valid() {
		return fmt.Errorf("%w: %q", errors.ErrInvalidEngine, r.Engine)
	}
	if r.Location == "" {
		return errors.NewMissingField("location")
	}
	if r.DateFrom.IsZero() || r.DateTo.IsZero() {
		return errors.NewMissingField("date window")
	}
	if r.DateFrom.After(r.DateTo) {
		return fmt.Errorf("%w: %s > %s", errors.ErrInvalidDateRange,
			r.DateFrom.Format(time.DateOnly), r.DateTo.Format(time.DateOnly))
	}
	for _, col := range r.PrimaryKey {
		if !types.HasColumn(col) {
			return fmt.Errorf("%w: %q", errors.ErrMissingPrimaryKeyColumn, col)
		}
	}
	return nil
}

// IdempotencyKey derives the deterministic digest of the normalized request.
// Two requests that normalize identically always produce the same key.
func (r WriteRequest) IdempotencyKey() string {
	n := r.Normalize()

	opts := n.Options
	if opts == nil {
		opts = map[string]string{}
	}

	// Map keys serialize sorted, which keeps the payload canonical.
	payload := map[string]any{
		"source":         string(n.Source),
		"engine":         string(n.Engine),
		"location":       n.Location,
		"symbols":        n.Symbols,
		"date_from":      n.DateFrom.Format(time.DateOnly),
		"date_to":        n.DateTo.Format(time.DateOnly),
		"write_mode":     string(n.WriteMode),
		"primary_key":    n.PrimaryKey,
		"layout_version": n.LayoutVersion,
		"options":        opts,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// The payload is built from plain strings and ints; marshal cannot
		// fail for any reachable request.
		panic(fmt.Sprintf("idempotency key marshal: %v", err))
	}

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:KeyLength]
}

// Symbol returns the single symbol of the request, or the MULTI sentinel
// for multi-symbol batches.
func (r *WriteRequest) Symbol() string {
	switch len(r.Symbols) {
	case 0:
		return ""
	case 1:
		return r.Symbols[0]
	default:
		return types.SymbolMulti
	}
}
