package parquet

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"

	"github.com/xtxerr/pricelake/internal/lake/types"
)

// BarReader reads daily bars from a Parquet file.
type BarReader struct {
	file   *os.File
	reader *parquet.GenericReader[BarRow]
	path   string
}

// NewBarReader creates a new bar Parquet reader.
func NewBarReader(path string) (*BarReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size(), parquet.ReadBufferSize(1024*1024))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	reader := parquet.NewGenericReader[BarRow](pf)

	return &BarReader{
		file:   f,
		reader: reader,
		path:   path,
	}, nil
}

// ReadAll reads all bars from the file.
func (r *BarReader) ReadAll() ([]types.PriceBar, error) {
	numRows := r.reader.NumRows()
	rows := make([]BarRow, numRows)

	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, err
	}

	bars := make([]types.PriceBar, n)
	for i := 0; i < n; i++ {
		bar, err := RowToBar(&rows[i])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		bars[i] = bar
	}

	return bars, nil
}

// NumRows returns the total number of rows in the file.
func (r *BarReader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *BarReader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Path returns the file path.
func (r *BarReader) Path() string {
	return r.path
}

// MonthlyReader reads monthly aggregates from a Parquet file.
type MonthlyReader struct {
	file   *os.File
	reader *parquet.GenericReader[MonthlyRow]
	path   string
}

// NewMonthlyReader creates a new monthly aggregate Parquet reader.
func NewMonthlyReader(path string) (*MonthlyReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size(), parquet.ReadBufferSize(1024*1024))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	reader := parquet.NewGenericReader[MonthlyRow](pf)

	return &MonthlyReader{
		file:   f,
		reader: reader,
		path:   path,
	}, nil
}

// ReadAll reads all monthly aggregates from the file.
func (r *MonthlyReader) ReadAll() ([]MonthlyRow, error) {
	numRows := r.reader.NumRows()
	rows := make([]MonthlyRow, numRows)

	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, err
	}

	return rows[:n], nil
}

// NumRows returns the total number of rows in the file.
func (r *MonthlyReader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *MonthlyReader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// ReadPartition reads all bars from a partition file. A missing file yields
// an empty slice, matching the read-side contract that absent partitions
// are not errors.
func ReadPartition(path string) ([]types.PriceBar, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	r, err := NewBarReader(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.ReadAll()
}
