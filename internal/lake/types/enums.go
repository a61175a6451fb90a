package types

import "fmt"

// WriteMode governs how an incoming batch is merged into a partition.
type WriteMode string

const (
	// WriteModeUpsert inserts new keys and updates existing keys whose
	// non-key values changed; unchanged rows are skipped.
	WriteModeUpsert WriteMode = "upsert"

	// WriteModeAppend inserts new keys only; existing keys are skipped
	// entirely, never updated.
	WriteModeAppend WriteMode = "append"

	// WriteModeInsertOverwrite removes existing rows whose key appears in
	// the incoming batch, then writes the whole batch. Rows outside the
	// batch's key set are preserved (windowed replace, not a truncate).
	WriteModeInsertOverwrite WriteMode = "insert_overwrite"
)

// Valid reports whether the mode is one of the known write modes.
func (m WriteMode) Valid() bool {
	switch m {
	case WriteModeUpsert, WriteModeAppend, WriteModeInsertOverwrite:
		return true
	}
	return false
}

// ParseWriteMode parses a write mode string.
func ParseWriteMode(s string) (WriteMode, error) {
	m := WriteMode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown write mode: %q", s)
	}
	return m, nil
}

// Engine identifies a storage engine variant.
type Engine string

const (
	// EngineParquet is the partitioned parquet lakehouse engine.
	EngineParquet Engine = "parquet"

	// EngineMemory is the in-memory engine used for tests and dev wiring.
	EngineMemory Engine = "memory"
)

// Valid reports whether the engine is one of the known variants.
func (e Engine) Valid() bool {
	switch e {
	case EngineParquet, EngineMemory:
		return true
	}
	return false
}

// Source identifies an upstream data source for lineage.
type Source string

const (
	SourceYFinance  Source = "yfinance"
	SourceAlpaca    Source = "alpaca"
	SourceSynthetic Source = "synthetic"
)

// Valid reports whether the source is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceYFinance, SourceAlpaca, SourceSynthetic:
		return true
	}
	return false
}

// Layer is a lakehouse layer. Bronze holds raw per-source data, silver the
// cleaned canonical dataset, gold derived aggregates.
type Layer string

const (
	LayerBronze Layer = "bronze"
	LayerSilver Layer = "silver"
	LayerGold   Layer = "gold"
)

// Valid reports whether the layer is one of the known layers.
func (l Layer) Valid() bool {
	switch l {
	case LayerBronze, LayerSilver, LayerGold:
		return true
	}
	return false
}
