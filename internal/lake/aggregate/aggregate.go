// Package aggregate builds gold-layer monthly rollups from the silver
// daily dataset. Each monthly aggregate carries count, first open, last
// close, extremes, total volume and optional close-price percentiles
// computed with DDSketch.
package aggregate

import (
	"math"
	"time"

	"github.com/DataDog/sketches-go/ddsketch"

	"github.com/xtxerr/pricelake/internal/lake/parquet"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

// Monthly maintains running statistics for one symbol-month bucket.
type Monthly struct {
	symbol string
	month  time.Time // first day of the month, UTC

	count     int64
	volume    int64
	minLow    float64
	maxHigh   float64
	firstDate time.Time
	lastDate  time.Time
	firstOpen float64
	lastClose float64

	// DDSketch over daily closes (nil if percentiles disabled)
	sketch *ddsketch.DDSketch
}

// NewMonthly creates an empty aggregate for the month containing date.
func NewMonthly(symbol string, date time.Time, enablePercentiles bool) *Monthly {
	m := &Monthly{
		symbol:  symbol,
		month:   MonthOf(date),
		minLow:  math.MaxFloat64,
		maxHigh: -math.MaxFloat64,
	}
	if enablePercentiles {
		// Relative accuracy of 1%
		if sketch, err := ddsketch.NewDefaultDDSketch(0.01); err == nil {
			m.sketch = sketch
		}
	}
	return m
}

// MonthOf truncates a date to the first day of its UTC month.
func MonthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// Add folds one daily bar into the aggregate.
func (m *Monthly) Add(bar types.PriceBar) {
	m.count++
	m.volume += bar.Volume

	if bar.Low < m.minLow {
		m.minLow = bar.Low
	}
	if bar.High > m.maxHigh {
		m.maxHigh = bar.High
	}
	if m.firstDate.IsZero() || bar.Date.Before(m.firstDate) {
		m.firstDate = bar.Date
		m.firstOpen = bar.Open
	}
	if m.lastDate.IsZero() || bar.Date.After(m.lastDate) {
		m.lastDate = bar.Date
		m.lastClose = bar.Close
	}

	if m.sketch != nil {
		// Add only fails for non-finite values, which validation excludes.
		_ = m.sketch.Add(bar.Close)
	}
}

// Count returns the number of bars folded in.
func (m *Monthly) Count() int64 {
	return m.count
}

// Row materializes the aggregate as a parquet row.
func (m *Monthly) Row() parquet.MonthlyRow {
	row := parquet.MonthlyRow{
		Symbol:    m.symbol,
		Month:     m.month.Format("2006-01"),
		Count:     m.count,
		Open:      m.firstOpen,
		Close:     m.lastClose,
		MinLow:    m.minLow,
		MaxHigh:   m.maxHigh,
		Volume:    m.volume,
		FirstDate: m.firstDate.Format(time.DateOnly),
		LastDate:  m.lastDate.Format(time.DateOnly),
	}
	if m.count == 0 {
		row.MinLow, row.MaxHigh = 0, 0
		return row
	}

	if m.sketch != nil {
		qs, err := m.sketch.GetValuesAtQuantiles([]float64{0.5, 0.9, 0.95, 0.99})
		if err == nil && len(qs) == 4 {
			row.P50, row.P90, row.P95, row.P99 = qs[0], qs[1], qs[2], qs[3]
		}
	}
	return row
}
