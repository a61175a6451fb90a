// Package retention prunes aged bronze partitions. Silver stays the
// system of record and gold is derivable, so only the bronze layer is
// subject to age-based cleanup.
package retention

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/xtxerr/pricelake/internal/lake/paths"
	"github.com/xtxerr/pricelake/internal/lake/types"
	"github.com/xtxerr/pricelake/internal/logging"
)

// Options configures the retention manager.
type Options struct {
	// Dataset is the bronze dataset to prune.
	Dataset string
	// MaxAge is how long a bronze partition is kept, measured from the
	// end of the partition's month. Zero disables pruning.
	MaxAge time.Duration
}

// DefaultOptions keeps bronze partitions for two years.
func DefaultOptions() Options {
	return Options{
		Dataset: "prices",
		MaxAge:  2 * 365 * 24 * time.Hour,
	}
}

// Manager handles cleanup of expired bronze partitions.
type Manager struct {
	mu     sync.RWMutex
	layout *paths.Layout
	opts   Options
	stats  Stats
	log    *slog.Logger
}

// Stats holds cumulative retention statistics.
type Stats struct {
	LastRunTime       time.Time
	PartitionsDeleted int64
	BytesFreed        int64
	PartitionsSkipped int64
	Errors            int64
}

// CleanupResult holds the result of one cleanup run.
type CleanupResult struct {
	PartitionsDeleted int
	BytesFreed        int64
	PartitionsSkipped int
	Errors            []error
}

// New creates a retention manager over the given layout.
func New(layout *paths.Layout, opts Options) *Manager {
	if opts.Dataset == "" {
		opts.Dataset = "prices"
	}
	return &Manager{
		layout: layout,
		opts:   opts,
		log:    logging.Component("retention"),
	}
}

// RunCleanup deletes all expired bronze partitions.
func (m *Manager) RunCleanup() CleanupResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.LastRunTime = time.Now()

	result := m.cleanup(false)

	m.stats.PartitionsDeleted += int64(result.PartitionsDeleted)
	m.stats.BytesFreed += result.BytesFreed
	m.stats.PartitionsSkipped += int64(result.PartitionsSkipped)
	m.stats.Errors += int64(len(result.Errors))

	m.log.Info("cleanup.done",
		"deleted", result.PartitionsDeleted,
		"skipped", result.PartitionsSkipped,
		"bytes_freed", result.BytesFreed,
		"errors", len(result.Errors))
	return result
}

// DryRun reports what a cleanup would delete without deleting anything.
func (m *Manager) DryRun() CleanupResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cleanup(true)
}

func (m *Manager) cleanup(dryRun bool) CleanupResult {
	var result CleanupResult

	if m.opts.MaxAge <= 0 {
		return result
	}
	cutoff := time.Now().UTC().Add(-m.opts.MaxAge)

	files, err := m.layout.ListPartitions(types.LayerBronze, m.opts.Dataset, "")
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("list partitions: %w", err))
		return result
	}

	for _, file := range files {
		monthEnd, err := partitionMonthEnd(file)
		if err != nil {
			result.PartitionsSkipped++
			continue
		}
		if monthEnd.After(cutoff) {
			result.PartitionsSkipped++
			continue
		}

		info, err := os.Stat(file)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("stat %s: %w", file, err))
			continue
		}

		if !dryRun {
			// Remove the month directory, not just the file, so empty
			// year=/month= trees do not accumulate.
			if err := os.RemoveAll(filepath.Dir(file)); err != nil {
				result.Errors = append(result.Errors, fmt.Errorf("delete %s: %w", file, err))
				continue
			}
		}

		result.PartitionsDeleted++
		result.BytesFreed += info.Size()
	}

	return result
}

// partitionMonthEnd resolves a partition path to the last instant of its
// month, parsed from the year= and month= path segments.
func partitionMonthEnd(path string) (time.Time, error) {
	year, month := 0, 0
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if v, ok := strings.CutPrefix(seg, "year="); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return time.Time{}, err
			}
			year = n
		}
		if v, ok := strings.CutPrefix(seg, "month="); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return time.Time{}, err
			}
			month = n
		}
	}
	if year == 0 || month < 1 || month > 12 {
		return time.Time{}, fmt.Errorf("no partition date in %s", path)
	}
	return time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Second), nil
}

// Stats returns cumulative statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// DiskUsage holds per-layer usage information.
type DiskUsage struct {
	PartitionCount int
	TotalSize      int64
}

// GetDiskUsage reports partition counts and sizes for each layer of the
// pruned dataset (gold uses the monthly dataset naming convention).
func (m *Manager) GetDiskUsage() map[types.Layer]DiskUsage {
	m.mu.RLock()
	defer m.mu.RUnlock()

	usage := make(map[types.Layer]DiskUsage)

	for _, layer := range []types.Layer{types.LayerBronze, types.LayerSilver, types.LayerGold} {
		dataset := m.opts.Dataset
		if layer == types.LayerGold {
			dataset = m.opts.Dataset + "_monthly"
		}

		files, err := m.layout.ListPartitions(layer, dataset, "")
		if err != nil {
			continue
		}

		var totalSize int64
		for _, f := range files {
			if info, err := os.Stat(f); err == nil {
				totalSize += info.Size()
			}
		}
		usage[layer] = DiskUsage{
			PartitionCount: len(files),
			TotalSize:      totalSize,
		}
	}

	return usage
}

// FormatDiskUsage renders usage as a human-readable block.
func (m *Manager) FormatDiskUsage() string {
	usage := m.GetDiskUsage()

	var result string
	var totalSize int64
	var totalFiles int

	for _, layer := range []types.Layer{types.LayerBronze, types.LayerSilver, types.LayerGold} {
		u := usage[layer]
		totalSize += u.TotalSize
		totalFiles += u.PartitionCount

		result += fmt.Sprintf("  %s: %d partitions, %s\n",
			layer, u.PartitionCount, formatBytes(u.TotalSize))
	}

	return fmt.Sprintf("Disk Usage:\n%s  Total: %d partitions, %s\n",
		result, totalFiles, formatBytes(totalSize))
}

func formatBytes(b int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case b >= TB:
		return fmt.Sprintf("%.2f TB", float64(b)/float64(TB))
	case b >= GB:
		return fmt.Sprintf("%.2f GB", float64(b)/float64(GB))
	case b >= MB:
		return fmt.Sprintf("%.2f MB", float64(b)/float64(MB))
	case b >= KB:
		return fmt.Sprintf("%.2f KB", float64(b)/float64(KB))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
