package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/pricelake/internal/errors"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

// Options configures the Parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// CompressionLevel for algorithms that support it (zstd: 1-22)
	CompressionLevel int
}

// CompressionType represents a Parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default Parquet options.
func DefaultOptions() Options {
	return Options{
		Compression:      CompressionZstd,
		CompressionLevel: 3,
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// BarRow represents a daily price bar in Parquet format. Column order is
// the stable storage order: primary key columns first, then measures.
type BarRow struct {
	Symbol   string   `parquet:"symbol,zstd"`
	Date     string   `parquet:"date,zstd"` // ISO calendar date
	Open     float64  `parquet:"open"`
	High     float64  `parquet:"high"`
	Low      float64  `parquet:"low"`
	Close    float64  `parquet:"close"`
	AdjClose *float64 `parquet:"adj_close,optional"`
	Volume   int64    `parquet:"volume"`
}

// MonthlyRow represents a gold-layer monthly aggregate in Parquet format.
type MonthlyRow struct {
	Symbol    string  `parquet:"symbol,zstd"`
	Month     string  `parquet:"month,zstd"` // "2006-01"
	Count     int64   `parquet:"count"`
	Open      float64 `parquet:"open"`
	Close     float64 `parquet:"close"`
	MinLow    float64 `parquet:"min_low"`
	MaxHigh   float64 `parquet:"max_high"`
	Volume    int64   `parquet:"volume"`
	P50       float64 `parquet:"p50,optional"`
	P90       float64 `parquet:"p90,optional"`
	P95       float64 `parquet:"p95,optional"`
	P99       float64 `parquet:"p99,optional"`
	FirstDate string  `parquet:"first_date"`
	LastDate  string  `parquet:"last_date"`
}

// BarToRow converts a PriceBar to a BarRow.
func BarToRow(b *types.PriceBar) BarRow {
	return BarRow{
		Symbol:   b.Symbol,
		Date:     b.Date.Format(time.DateOnly),
		Open:     b.Open,
		High:     b.High,
		Low:      b.Low,
		Close:    b.Close,
		AdjClose: b.AdjClose,
		Volume:   b.Volume,
	}
}

// RowToBar converts a BarRow to a PriceBar.
func RowToBar(r *BarRow) (types.PriceBar, error) {
	date, err := time.ParseInLocation(time.DateOnly, r.Date, time.UTC)
	if err != nil {
		return types.PriceBar{}, fmt.Errorf("parse date %q: %w", r.Date, err)
	}
	return types.PriceBar{
		Symbol:   r.Symbol,
		Date:     date,
		Open:     r.Open,
		High:     r.High,
		Low:      r.Low,
		Close:    r.Close,
		AdjClose: r.AdjClose,
		Volume:   r.Volume,
	}, nil
}

// BarWriter writes bars to a Parquet file.
type BarWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[BarRow]
	rowCount int64
	closed   bool
}

// NewBarWriter creates a new bar Parquet writer.
func NewBarWriter(path string, opts Options) (*BarWriter, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writerOpts := []parquet.WriterOption{
		parquet.Compression(getCompression(opts.Compression)),
	}

	writer := parquet.NewGenericWriter[BarRow](f, writerOpts...)

	return &BarWriter{
		path:   path,
		file:   f,
		writer: writer,
	}, nil
}

// Write writes bars to the Parquet file.
func (w *BarWriter) Write(bars []types.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	rows := make([]BarRow, len(bars))
	for i := range bars {
		rows[i] = BarToRow(&bars[i])
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close closes the writer.
func (w *BarWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *BarWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *BarWriter) Path() string {
	return w.path
}

// MonthlyWriter writes monthly aggregates to a Parquet file.
type MonthlyWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[MonthlyRow]
	rowCount int64
	closed   bool
}

// NewMonthlyWriter creates a new monthly aggregate Parquet writer.
func NewMonthlyWriter(path string, opts Options) (*MonthlyWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writerOpts := []parquet.WriterOption{
		parquet.Compression(getCompression(opts.Compression)),
	}

	writer := parquet.NewGenericWriter[MonthlyRow](f, writerOpts...)

	return &MonthlyWriter{
		path:   path,
		file:   f,
		writer: writer,
	}, nil
}

// Write writes monthly aggregates to the Parquet file.
func (w *MonthlyWriter) Write(rows []MonthlyRow) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrWriterClosed
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close closes the writer.
func (w *MonthlyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *MonthlyWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// WritePartition atomically replaces the partition at path with the given
// bars. Rows are written to a temp file in the same directory and renamed
// over the destination, so a crash mid-write leaves the prior version
// intact and no reader ever observes a partial file.
func WritePartition(path string, bars []types.PriceBar, opts Options) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.NewStorage(err, dir)
	}

	tmp, err := os.CreateTemp(dir, ".data-*.parquet")
	if err != nil {
		return errors.NewStorage(err, dir)
	}
	tmpPath := tmp.Name()

	writer := parquet.NewGenericWriter[BarRow](tmp,
		parquet.Compression(getCompression(opts.Compression)))

	rows := make([]BarRow, len(bars))
	for i := range bars {
		rows[i] = BarToRow(&bars[i])
	}

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewStorage(err, path)
	}

	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return fail(err)
		}
	}
	if err := writer.Close(); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fail(err)
	}
	return nil
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = fmt.Errorf("parquet writer is closed")
