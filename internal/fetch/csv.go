package fetch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/pricelake/internal/errors"
)

// CSVFetcher fetches daily bars from an HTTP endpoint serving CSV with the
// header: date,open,high,low,close,adj_close,volume. The adj_close column
// may be empty, in which case the record carries no adjusted close.
type CSVFetcher struct {
	source   string
	endpoint string
	client   *http.Client
}

// NewCSVFetcher creates a fetcher against the given endpoint. A nil client
// uses a default with a 30s timeout.
func NewCSVFetcher(source, endpoint string, client *http.Client) *CSVFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &CSVFetcher{source: source, endpoint: endpoint, client: client}
}

// SourceName returns the source identifier for lineage.
func (f *CSVFetcher) SourceName() string { return f.source }

// FetchDaily retrieves the window for one symbol.
func (f *CSVFetcher) FetchDaily(ctx context.Context, symbol string, from, to time.Time) ([]Record, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("symbol", symbol)
	q.Set("from", from.Format(time.DateOnly))
	q.Set("to", to.Format(time.DateOnly))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrSourceUnavailable, f.source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Unknown symbol: a valid empty outcome, not a failure.
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", errors.ErrSourceUnavailable, f.source, resp.StatusCode)
	}

	return parseCSV(resp.Body, symbol)
}

// csvColumns is the expected header, in order.
var csvColumns = []string{"date", "open", "high", "low", "close", "adj_close", "volume"}

func parseCSV(r io.Reader, symbol string) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, want := range csvColumns {
		if want == "adj_close" {
			continue // optional column
		}
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("csv missing column %q", want)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}

		rec := Record{Symbol: symbol, Date: row[col["date"]]}
		if rec.Open, err = parseField(row, col, "open", line); err != nil {
			return nil, err
		}
		if rec.High, err = parseField(row, col, "high", line); err != nil {
			return nil, err
		}
		if rec.Low, err = parseField(row, col, "low", line); err != nil {
			return nil, err
		}
		if rec.Close, err = parseField(row, col, "close", line); err != nil {
			return nil, err
		}
		if i, ok := col["adj_close"]; ok && i < len(row) && strings.TrimSpace(row[i]) != "" {
			v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: adj_close: %w", line, err)
			}
			rec.AdjClose = &v
		}
		vol, err := strconv.ParseInt(strings.TrimSpace(row[col["volume"]]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: volume: %w", line, err)
		}
		rec.Volume = vol

		records = append(records, rec)
	}
	return records, nil
}

func parseField(row []string, col map[string]int, name string, line int) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(row[col[name]]), 64)
	if err != nil {
		return 0, fmt.Errorf("csv line %d: %s: %w", line, name, err)
	}
	return v, nil
}
