// Package dataprocessing implements the ingestion pipeline for the CEA
// property transaction feed: a streaming quote-aware CSV reader, the
// transaction date normalizer, the single-pass aggregation engine that
// builds the derived dashboard views, and the salesperson directory
// loader.
//
// The pipeline is strictly single-threaded and single-pass. The reader
// holds one line in memory at a time; memory growth is proportional to
// the number of distinct salespersons and retained records, not to file
// size.
package dataprocessing
