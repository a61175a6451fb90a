// Package paths maps (layer, dataset, symbol, date) tuples to partition
// files and manifests on disk. The layout is hive-style:
//
//	{base}/{layer}/{dataset}/[source=S/]symbol=SYM/year=YYYY/month=MM/data.parquet
//
// The bronze layer carries a source= segment for lineage; silver and gold
// do not. Manifests live under {base}/_metadata/manifests, one per
// (layer, dataset) pair so idempotency checks are global across symbols.
package paths

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xtxerr/pricelake/internal/errors"
	"github.com/xtxerr/pricelake/internal/lake/types"
)

// DataFileName is the fixed name of the partition data file.
const DataFileName = "data.parquet"

// Layout computes partition and manifest paths under a base directory.
type Layout struct {
	base string
}

// New creates a layout rooted at base.
func New(base string) *Layout {
	return &Layout{base: base}
}

// Base returns the root data directory.
func (l *Layout) Base() string {
	return l.base
}

// DatasetDir returns the directory holding all partitions of a dataset.
func (l *Layout) DatasetDir(layer types.Layer, dataset string) string {
	return filepath.Join(l.base, string(layer), dataset)
}

// PartitionDir returns the partition directory for a symbol and date. The
// source segment is included only on the bronze layer.
func (l *Layout) PartitionDir(layer types.Layer, dataset, symbol string, date time.Time, source types.Source) string {
	dir := l.DatasetDir(layer, dataset)
	if layer == types.LayerBronze && source != "" {
		dir = filepath.Join(dir, "source="+string(source))
	}
	return filepath.Join(dir,
		"symbol="+strings.ToUpper(symbol),
		fmt.Sprintf("year=%d", date.Year()),
		fmt.Sprintf("month=%02d", int(date.Month())),
	)
}

// PartitionFile returns the data file path for a partition, creating the
// containing directory. Directory creation is idempotent; the only failures
// are filesystem errors, which surface as storage errors.
func (l *Layout) PartitionFile(layer types.Layer, dataset, symbol string, date time.Time, source types.Source) (string, error) {
	dir := l.PartitionDir(layer, dataset, symbol, date, source)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.NewStorage(err, dir)
	}
	return filepath.Join(dir, DataFileName), nil
}

// ManifestFile returns the manifest path for a (layer, dataset) pair,
// creating the manifests directory.
func (l *Layout) ManifestFile(layer types.Layer, dataset string) (string, error) {
	dir := filepath.Join(l.base, "_metadata", "manifests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.NewStorage(err, dir)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%s.jsonl", layer, dataset)), nil
}

// ListPartitions returns all partition data files for a dataset, sorted by
// path. With a non-empty symbol the walk is restricted to that symbol's
// subtree. A dataset that does not exist yet yields an empty slice.
func (l *Layout) ListPartitions(layer types.Layer, dataset, symbol string) ([]string, error) {
	root := l.DatasetDir(layer, dataset)
	if symbol != "" && layer != types.LayerBronze {
		root = filepath.Join(root, "symbol="+strings.ToUpper(symbol))
	}

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != DataFileName {
			return nil
		}
		// Bronze walks from the dataset root because the source segment
		// sits above the symbol segment; filter by path instead.
		if symbol != "" && layer == types.LayerBronze &&
			!strings.Contains(path, "symbol="+strings.ToUpper(symbol)+string(filepath.Separator)) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, errors.NewStorage(err, root)
	}

	sort.Strings(files)
	return files, nil
}
