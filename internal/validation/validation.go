// Package validation turns raw upstream records into storable bars. The
// storage core never receives an invalid row: structural and business rule
// failures surface here as a structured error naming the record and field.
package validation

import (
	"fmt"
	"time"

	"github.com/xtxerr/pricelake/internal/errors"
	"github.com/xtxerr/pricelake/internal/fetch"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

// RecordError identifies the failing record and field of a batch.
type RecordError struct {
	Index  int
	Symbol string
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d (%s): %s: %s", e.Index, e.Symbol, e.Field, e.Reason)
}

// Unwrap ties record errors into the sentinel taxonomy.
func (e *RecordError) Unwrap() error {
	return errors.ErrInvalidRecord
}

// Batch validates raw records into normalized bars. All failing records are
// reported, not just the first.
func Batch(records []fetch.Record) ([]types.PriceBar, error) {
	verrs := errors.NewValidationErrors()
	bars := make([]types.PriceBar, 0, len(records))

	for i, rec := range records {
		bar, err := one(i, rec)
		if err != nil {
			verrs.Add(err)
			continue
		}
		bars = append(bars, bar)
	}

	if verrs.HasErrors() {
		return nil, verrs.Err()
	}
	return bars, nil
}

func one(index int, rec fetch.Record) (types.PriceBar, error) {
	fail := func(field, reason string) (types.PriceBar, error) {
		return types.PriceBar{}, &RecordError{Index: index, Symbol: rec.Symbol, Field: field, Reason: reason}
	}

	if rec.Symbol == "" {
		return fail("symbol", "empty")
	}
	date, err := time.ParseInLocation(time.DateOnly, rec.Date, time.UTC)
	if err != nil {
		return fail("date", fmt.Sprintf("%q is not an ISO date", rec.Date))
	}

	bar := types.PriceBar{
		Symbol:   rec.Symbol,
		Date:     date,
		Open:     rec.Open,
		High:     rec.High,
		Low:      rec.Low,
		Close:    rec.Close,
		AdjClose: rec.AdjClose,
		Volume:   rec.Volume,
	}
	bar.Normalize()

	if err := bar.Validate(); err != nil {
		return fail("measures", err.Error())
	}
	return bar, nil
}
