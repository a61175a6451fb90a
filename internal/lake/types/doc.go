// Package types defines the core data types used throughout the lakehouse.
//
// Key types:
//   - PriceBar: one daily observation for a symbol
//   - WriteMode: merge semantics for a write (upsert, append, insert_overwrite)
//   - Layer: lakehouse layer (bronze, silver, gold)
package types
