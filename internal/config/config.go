package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete daemon configuration.
type Config struct {
	// DataDir is the root directory for all lake files.
	DataDir string `yaml:"data_dir"`

	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Store configures the partitioned price store.
	Store StoreConfig `yaml:"store"`

	// Fetch configures the upstream price source.
	Fetch FetchConfig `yaml:"fetch"`

	// Ingest configures the ingest service.
	Ingest IngestConfig `yaml:"ingest"`

	// Jobs configures the background job worker.
	Jobs JobsConfig `yaml:"jobs"`

	// Aggregate configures the monthly rollup builder.
	Aggregate AggregateConfig `yaml:"aggregate"`

	// Retention configures bronze partition cleanup.
	Retention RetentionConfig `yaml:"retention"`

	// Query configures the DuckDB query service.
	Query QueryConfig `yaml:"query"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the partitioned price store.
type StoreConfig struct {
	// Layer is the layer written by the ingest path: bronze, silver, gold.
	Layer string `yaml:"layer"`

	// Dataset is the dataset name under the layer.
	Dataset string `yaml:"dataset"`

	// LayoutVersion selects the on-disk partition layout.
	LayoutVersion int `yaml:"layout_version"`

	// Compression configures Parquet compression.
	Compression CompressionConfig `yaml:"compression"`
}

// CompressionConfig configures Parquet compression.
type CompressionConfig struct {
	// Algorithm is the compression algorithm: snappy, zstd, lz4, gzip, none.
	Algorithm string `yaml:"algorithm"`

	// Level is the compression level (for zstd: 1-22).
	Level int `yaml:"level"`
}

// FetchConfig configures the upstream price source.
type FetchConfig struct {
	// Source is the fetcher to use: yfinance, alpaca, synthetic.
	Source string `yaml:"source"`

	// Endpoint is the HTTP endpoint for CSV-backed sources.
	Endpoint string `yaml:"endpoint"`

	// Timeout is the per-request fetch timeout.
	Timeout time.Duration `yaml:"timeout"`
}

// IngestConfig configures the ingest service.
type IngestConfig struct {
	// WriteMode is the default merge mode: upsert, append, insert_overwrite.
	WriteMode string `yaml:"write_mode"`

	// Concurrency bounds parallel multi-symbol ingests.
	Concurrency int `yaml:"concurrency"`
}

// JobsConfig configures the background job worker.
type JobsConfig struct {
	// Workers is the number of parallel job workers.
	Workers int `yaml:"workers"`

	// PollInterval is how often idle workers check the queue.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// AggregateConfig configures the monthly rollup builder.
type AggregateConfig struct {
	// Percentiles enables DDSketch close-price percentiles.
	Percentiles bool `yaml:"percentiles"`
}

// RetentionConfig configures bronze partition cleanup.
type RetentionConfig struct {
	// BronzeMaxAge is how long bronze partitions are kept. Zero disables
	// pruning.
	BronzeMaxAge time.Duration `yaml:"bronze_max_age"`
}

// QueryConfig configures the DuckDB query service.
type QueryConfig struct {
	// MemoryLimit is the DuckDB memory limit.
	MemoryLimit string `yaml:"memory_limit"`

	// Timeout is the query timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRows is the maximum number of rows returned.
	MaxRows int `yaml:"max_rows"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches output from text to JSON.
	JSON bool `yaml:"json"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "/var/lib/pricelake",
		Listen:  ":8080",
		Store: StoreConfig{
			Layer:         "silver",
			Dataset:       "prices",
			LayoutVersion: 1,
			Compression: CompressionConfig{
				Algorithm: "zstd",
				Level:     3,
			},
		},
		Fetch: FetchConfig{
			Source:  "synthetic",
			Timeout: 30 * time.Second,
		},
		Ingest: IngestConfig{
			WriteMode:   "upsert",
			Concurrency: 4,
		},
		Jobs: JobsConfig{
			Workers:      2,
			PollInterval: 250 * time.Millisecond,
		},
		Aggregate: AggregateConfig{
			Percentiles: true,
		},
		Retention: RetentionConfig{
			BronzeMaxAge: 2 * 365 * 24 * time.Hour,
		},
		Query: QueryConfig{
			MemoryLimit: "2GB",
			Timeout:     30 * time.Second,
			MaxRows:     10000,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
