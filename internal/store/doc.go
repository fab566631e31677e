// Package store persists the two collections behind the index: document
// summaries with their embedding vectors and line-windowed chunks for
// lexical retrieval. It is a transport layer over SQLite: upserts are
// idempotent by id, semantic queries return raw distances, and lexical
// queries return candidates in stable chunk-id order. Scoring, ranking, and
// path filtering belong to the search engines, not here.
//
// Vectors are stored as little-endian float32 blobs. Metadata is flattened
// to a string map before storage; list-valued fields are comma-joined by the
// codec in this package.
package store
