// Package manifest implements the append-only idempotency ledger.
//
// The ledger is a newline-delimited UTF-8 file with one serialized Receipt
// per line, keyed by idempotency key. Entries are only ever appended, never
// rewritten, so a crash mid-append leaves at worst a corrupt trailing line
// which the reader detects and skips. Lookup is a linear scan; indexing the
// ledger is an explicit non-goal at this scale.
package manifest

import (
	"bufio"
	"log/slog"
	"os"
	"sync"

	"github.com/goccy/go-json"

	"github.com/xtxerr/pricelake/internal/errors"
	"github.com/xtxerr/pricelake/internal/lake/spec"
	"github.com/xtxerr/pricelake/internal/logging"
)

// Manifest is a durable idempotency ledger. It is opened once, lives for
// the process, and is closed on shutdown. Safe for concurrent use.
type Manifest struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
	log    *slog.Logger
}

// Open opens (creating if needed) the ledger at path for appending.
func Open(path string) (*Manifest, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.NewStorage(err, path)
	}
	return &Manifest{
		path: path,
		file: f,
		log:  logging.Component("manifest"),
	}, nil
}

// Path returns the ledger file path.
func (m *Manifest) Path() string {
	return m.path
}

// Lookup scans the ledger for the first entry with the given key. Since a
// key is appended at most once, the first match is also the only match.
// Malformed lines are skipped with a warning; the ledger favors availability
// of the idempotency check over strict integrity.
func (m *Manifest) Lookup(key string) (*spec.Receipt, error) {
	f, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.NewStorage(err, m.path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec spec.Receipt
		if err := json.Unmarshal(line, &rec); err != nil {
			m.log.Warn("skipping corrupt manifest line",
				"path", m.path, "line", lineNo, "error", err)
			continue
		}
		if rec.IdempotencyKey == key {
			return &rec, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.NewStorage(err, m.path)
	}
	return nil, nil
}

// Append records a receipt under its idempotency key. The append is itself
// idempotent: if the key is already present the write is silently skipped,
// which protects against duplicate appends from retried or racing callers.
func (m *Manifest) Append(key string, receipt *spec.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.ErrManifestClosed
	}

	existing, err := m.Lookup(key)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	data, err := json.Marshal(receipt)
	if err != nil {
		return errors.Wrap(err, "marshal receipt")
	}
	data = append(data, '\n')

	if _, err := m.file.Write(data); err != nil {
		return errors.NewStorage(err, m.path)
	}
	return m.file.Sync()
}

// Close closes the ledger. Further appends fail; lookups on a closed
// manifest still work because they open the file independently.
func (m *Manifest) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	return m.file.Close()
}
