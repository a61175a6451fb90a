package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xtxerr/pricelake/internal/lake/types"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	// DataDir
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}

	// Listen
	if c.Listen == "" {
		errs = append(errs, errors.New("listen is required"))
	}

	// Store
	if err := c.Store.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}

	// Fetch
	if err := c.Fetch.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("fetch: %w", err))
	}

	// Ingest
	if err := c.Ingest.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ingest: %w", err))
	}

	// Jobs
	if err := c.Jobs.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("jobs: %w", err))
	}

	// Query
	if err := c.Query.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("query: %w", err))
	}

	// Logging
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the store configuration.
func (c *StoreConfig) Validate() error {
	var errs []error

	if !types.Layer(c.Layer).Valid() {
		errs = append(errs, fmt.Errorf("layer must be one of: bronze, silver, gold"))
	}

	if c.Dataset == "" {
		errs = append(errs, errors.New("dataset is required"))
	}

	if c.LayoutVersion < 1 {
		errs = append(errs, errors.New("layout_version must be >= 1"))
	}

	validAlgorithms := map[string]bool{
		"snappy": true,
		"zstd":   true,
		"lz4":    true,
		"gzip":   true,
		"none":   true,
		"":       true, // Empty defaults to zstd
	}
	if !validAlgorithms[c.Compression.Algorithm] {
		errs = append(errs, errors.New("compression.algorithm must be one of: snappy, zstd, lz4, gzip, none"))
	}

	if c.Compression.Algorithm == "zstd" && (c.Compression.Level < 0 || c.Compression.Level > 22) {
		errs = append(errs, errors.New("compression.level for zstd must be between 0 and 22"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the fetch configuration.
func (c *FetchConfig) Validate() error {
	var errs []error

	if !types.Source(c.Source).Valid() {
		errs = append(errs, errors.New("source must be one of: yfinance, alpaca, synthetic"))
	}

	// Synthetic is self-contained; CSV-backed sources need an endpoint.
	if types.Source(c.Source) != types.SourceSynthetic && c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required for non-synthetic sources"))
	}

	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the ingest configuration.
func (c *IngestConfig) Validate() error {
	var errs []error

	if _, err := types.ParseWriteMode(c.WriteMode); err != nil {
		errs = append(errs, errors.New("write_mode must be one of: upsert, append, insert_overwrite"))
	}

	if c.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the jobs configuration.
func (c *JobsConfig) Validate() error {
	var errs []error

	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the query configuration.
func (c *QueryConfig) Validate() error {
	var errs []error

	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	if c.MaxRows <= 0 {
		errs = append(errs, errors.New("max_rows must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate checks the logging configuration.
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"":      true, // Empty defaults to info
	}
	if !validLevels[c.Level] {
		return errors.New("level must be one of: debug, info, warn, error")
	}
	return nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Join(c.DataDir, "bronze"),
		filepath.Join(c.DataDir, "silver"),
		filepath.Join(c.DataDir, "gold"),
		filepath.Join(c.DataDir, "_metadata", "manifests"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
