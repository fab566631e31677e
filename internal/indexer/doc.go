// Package indexer drives the ingestion pipeline. It discovers source files,
// windows them into chunks for the lexical channel, and embeds summarizer
// output for the semantic channel, writing both through the store. Files are
// processed concurrently with a bounded worker pool; a single failing file is
// recorded and skipped rather than aborting the run.
package indexer
