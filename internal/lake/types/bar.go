package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SymbolMulti is the receipt symbol sentinel for batches spanning more than
// one symbol.
const SymbolMulti = "MULTI"

// DefaultPrimaryKey is the primary key used unless a request overrides it.
var DefaultPrimaryKey = []string{"symbol", "date"}

// PriceBar represents one daily observation for a symbol.
// This is the primary data unit flowing through the storage system.
type PriceBar struct {
	// Identity
	Symbol string // Upper-cased ticker (e.g., "AAPL")
	Date   time.Time // Trading day, UTC midnight

	// Measures
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose *float64 // Optional; some sources do not provide it
	Volume   int64
}

// Day truncates a timestamp to its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Day returns the bar's trading day as an ISO date string.
func (b *PriceBar) Day() string {
	return b.Date.Format(time.DateOnly)
}

// Normalize upper-cases the symbol and truncates the date to a UTC day.
func (b *PriceBar) Normalize() {
	b.Symbol = strings.ToUpper(strings.TrimSpace(b.Symbol))
	b.Date = Day(b.Date)
}

// Validate checks structural and business validity: non-negative measures,
// low <= high, and close within the observed range.
func (b *PriceBar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if b.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	for _, m := range []struct {
		name  string
		value float64
	}{
		{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close},
	} {
		if m.value < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", m.name, m.value)
		}
	}
	if b.AdjClose != nil && *b.AdjClose < 0 {
		return fmt.Errorf("adj_close must be non-negative, got %v", *b.AdjClose)
	}
	if b.Volume < 0 {
		return fmt.Errorf("volume must be non-negative, got %d", b.Volume)
	}
	if b.Low > b.High {
		return fmt.Errorf("low (%v) > high (%v)", b.Low, b.High)
	}
	lo := min(b.Open, b.High, b.Low, b.Close)
	hi := max(b.Open, b.High, b.Low, b.Close)
	if b.Close < lo || b.Close > hi {
		return fmt.Errorf("close (%v) outside observed range [%v, %v]", b.Close, lo, hi)
	}
	return nil
}

// Columns lists the bar columns in stable storage order.
func Columns() []string {
	return []string{"symbol", "date", "open", "high", "low", "close", "adj_close", "volume"}
}

// HasColumn reports whether name is a known bar column.
func HasColumn(name string) bool {
	for _, c := range Columns() {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the canonical string value of the named column, used to
// build primary key strings. The bool is false for unknown columns.
func (b *PriceBar) Column(name string) (string, bool) {
	switch name {
	case "symbol":
		return b.Symbol, true
	case "date":
		return b.Date.Format(time.DateOnly), true
	case "open":
		return formatFloat(b.Open), true
	case "high":
		return formatFloat(b.High), true
	case "low":
		return formatFloat(b.Low), true
	case "close":
		return formatFloat(b.Close), true
	case "adj_close":
		if b.AdjClose == nil {
			return "", true
		}
		return formatFloat(*b.AdjClose), true
	case "volume":
		return strconv.FormatInt(b.Volume, 10), true
	}
	return "", false
}

// Key builds the primary key string for the bar from the given key columns.
// Callers must have validated the columns via HasColumn.
func (b *PriceBar) Key(primaryKey []string) string {
	parts := make([]string, len(primaryKey))
	for i, col := range primaryKey {
		parts[i], _ = b.Column(col)
	}
	return strings.Join(parts, "|")
}

// EqualMeasures compares all non-key columns of two bars. The optional
// adj_close is compared NULL-aware: two nils are equal, nil vs non-nil differ.
func (b *PriceBar) EqualMeasures(o *PriceBar, primaryKey []string) bool {
	key := make(map[string]bool, len(primaryKey))
	for _, col := range primaryKey {
		key[col] = true
	}
	for _, col := range Columns() {
		if key[col] {
			continue
		}
		switch col {
		case "symbol":
			if b.Symbol != o.Symbol {
				return false
			}
		case "date":
			if !b.Date.Equal(o.Date) {
				return false
			}
		case "open":
			if b.Open != o.Open {
				return false
			}
		case "high":
			if b.High != o.High {
				return false
			}
		case "low":
			if b.Low != o.Low {
				return false
			}
		case "close":
			if b.Close != o.Close {
				return false
			}
		case "adj_close":
			if (b.AdjClose == nil) != (o.AdjClose == nil) {
				return false
			}
			if b.AdjClose != nil && *b.AdjClose != *o.AdjClose {
				return false
			}
		case "volume":
			if b.Volume != o.Volume {
				return false
			}
		}
	}
	return true
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Float64Ptr returns a pointer to f. Convenience for building bars with an
// adjusted close.
func Float64Ptr(f float64) *float64 {
	return &f
}
