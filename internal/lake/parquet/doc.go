// Package parquet implements Parquet file reading and writing for daily
// bars and monthly aggregates.
//
// The package provides:
//   - BarWriter/BarReader for daily bar partitions
//   - MonthlyWriter/MonthlyReader for gold-layer monthly aggregates
//   - WritePartition, an atomic replace (temp file + rename) so a reader
//     never observes a partially written partition
//   - Support for multiple compression algorithms (snappy, zstd, lz4, gzip)
package parquet
