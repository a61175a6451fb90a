// pricelaked is the price lake daemon.
package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xtxerr/pricelake/internal/config"
	"github.com/xtxerr/pricelake/internal/fetch"
	"github.com/xtxerr/pricelake/internal/ingest"
	"github.com/xtxerr/pricelake/internal/jobs"
	"github.com/xtxerr/pricelake/internal/lake/aggregate"
	"github.com/xtxerr/pricelake/internal/lake/parquet"
	"github.com/xtxerr/pricelake/internal/lake/paths"
	"github.com/xtxerr/pricelake/internal/lake/query"
	"github.com/xtxerr/pricelake/internal/lake/retention"
	"github.com/xtxerr/pricelake/internal/lake/store"
	"github.com/xtxerr/pricelake/internal/lake/types"
	"github.com/xtxerr/pricelake/internal/logging"
	"github.com/xtxerr/pricelake/internal/server"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	// CLI flags
	cfgPath := flag.String("config", "config.yaml", "config file path")
	listen := flag.String("listen", "", "listen address (overrides config)")
	dataDir := flag.String("data-dir", "", "data directory (overrides config)")
	source := flag.String("source", "", "price source (overrides config)")
	logLevel := flag.String("log-level", "", "log level (overrides config)")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Printf("No config file found, using defaults")
			cfg = config.DefaultConfig()
		} else {
			log.Fatalf("Load config: %v", err)
		}
	}

	// CLI overrides
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *source != "" {
		cfg.Fetch.Source = *source
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logging.Init(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.JSON)
	logging.Info("starting", "version", Version, "data_dir", cfg.DataDir)

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Ensure directories: %v", err)
	}

	// =========================================================================
	// Storage (partitioned parquet lake)
	// =========================================================================

	layout := paths.New(cfg.DataDir)

	parquetOpts := parquet.Options{
		Compression:      parquet.ParseCompressionType(cfg.Store.Compression.Algorithm),
		CompressionLevel: cfg.Store.Compression.Level,
	}

	repo, err := store.New(layout, store.Options{
		Layer:   types.Layer(cfg.Store.Layer),
		Dataset: cfg.Store.Dataset,
		Source:  types.Source(cfg.Fetch.Source),
		Parquet: parquetOpts,
	})
	if err != nil {
		log.Fatalf("Create store: %v", err)
	}

	// =========================================================================
	// Fetchers
	// =========================================================================

	registry := fetch.NewRegistry()
	registry.Register(fetch.NewSyntheticFetcher())
	if cfg.Fetch.Endpoint != "" {
		for _, src := range []types.Source{types.SourceYFinance, types.SourceAlpaca} {
			registry.Register(fetch.NewCSVFetcher(string(src), cfg.Fetch.Endpoint, nil))
		}
	}

	fetcher, err := registry.Get(cfg.Fetch.Source)
	if err != nil {
		log.Fatalf("Unknown source %q: %v", cfg.Fetch.Source, err)
	}

	// =========================================================================
	// Ingest Service and Job Worker
	// =========================================================================

	svc := ingest.New(repo, fetcher, ingest.Options{
		WriteMode:     types.WriteMode(cfg.Ingest.WriteMode),
		LayoutVersion: cfg.Store.LayoutVersion,
		Concurrency:   cfg.Ingest.Concurrency,
	})

	queue := jobs.NewMemQueue()
	runs := jobs.NewRunRegistry()
	worker := jobs.NewWorker(queue, svc, runs, jobs.WorkerOptions{
		Workers:      cfg.Jobs.Workers,
		PollInterval: cfg.Jobs.PollInterval,
	})
	if err := worker.Start(); err != nil {
		log.Fatalf("Start worker: %v", err)
	}

	// =========================================================================
	// Rollups, Retention, Query
	// =========================================================================

	builder := aggregate.NewBuilder(layout, aggregate.BuilderOptions{
		SourceDataset: cfg.Store.Dataset,
		TargetDataset: cfg.Store.Dataset + "_monthly",
		Percentiles:   cfg.Aggregate.Percentiles,
		Parquet:       parquetOpts,
	})

	ret := retention.New(layout, retention.Options{
		Dataset: cfg.Store.Dataset,
		MaxAge:  cfg.Retention.BronzeMaxAge,
	})

	qs, err := query.New(layout, query.Options{
		MemoryLimit: cfg.Query.MemoryLimit,
		Timeout:     cfg.Query.Timeout,
		MaxRows:     cfg.Query.MaxRows,
	})
	if err != nil {
		// The lake remains usable without ad-hoc SQL.
		logging.Warn("query service unavailable", "error", err)
		qs = nil
	}

	// Nightly retention sweep
	retentionStop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ret.RunCleanup()
			case <-retentionStop:
				return
			}
		}
	}()

	// =========================================================================
	// HTTP Server, Signal Handling and Graceful Shutdown
	// =========================================================================

	srvOpts := server.DefaultOptions()
	srvOpts.Listen = cfg.Listen
	srv := server.New(svc, worker, runs, builder, ret, qs, srvOpts)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		logging.Info("shutting down")

		// Stop accepting new work first
		if err := srv.Stop(); err != nil {
			logging.Warn("server stop", "error", err)
		}

		close(retentionStop)
		worker.Stop()
		queue.Close()

		if qs != nil {
			if err := qs.Close(); err != nil {
				logging.Warn("query close", "error", err)
			}
		}
		if err := repo.Close(); err != nil {
			logging.Warn("store close", "error", err)
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
