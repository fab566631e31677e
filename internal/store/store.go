package store

import (
	"context"
	"errors"

	"github.com/benvenker/neumann/pkg/types"
)

var (
	// ErrNotFound is returned when a requested document doesn't exist.
	ErrNotFound = errors.New("not found")
)

// OverfetchMultiplier widens lexical queries when a path filter will be
// applied client-side. The store cannot push substring matching on paths down
// to its predicates, so the adapter trades extra candidates for recall.
const OverfetchMultiplier = 10

// SemanticCandidate is one raw nearest-neighbor hit from the summaries
// collection. Distance is the raw vector distance; normalization to a score
// happens in the semantic search engine so the adapter stays a pure transport
// layer.
type SemanticCandidate struct {
	DocID       string
	SummaryText string
	Distance    float64
	Metadata    types.SummaryMetadata
}

// LexicalCandidate is one chunk matching the store-level predicates of a
// lexical query. Hit counting and scoring happen in the lexical engine.
type LexicalCandidate struct {
	ChunkID    string
	DocID      string
	Text       string
	SourcePath string
	Language   string
	LineStart  int
	LineEnd    int
	PageURIs   []string
	DocLen     int // Byte length of Text, used by the length penalty
}

// LexicalPredicates are the store-evaluated constraints of a lexical query.
// Terms are AND-ed substring predicates; Regexes are OR-ed patterns (a
// pattern that fails to compile is skipped). PathFiltered signals that the
// caller will filter on source path client-side, so the store over-fetches
// by OverfetchMultiplier.
type LexicalPredicates struct {
	Terms        []string
	Regexes      []string
	PathFiltered bool
	K            int
}

// Store manages the two logical collections of the index: semantic summaries
// with vectors and lexical chunks with body predicates. Upserts are
// idempotent by id.
type Store interface {
	// UpsertSummary creates or replaces the single live summary for a
	// document.
	UpsertSummary(ctx context.Context, summary *types.DocumentSummary) error

	// UpsertChunks replaces all chunks of the affected documents with the
	// given set. Re-ingesting a document supersedes its prior chunks.
	UpsertChunks(ctx context.Context, chunks []types.Chunk) error

	// QuerySemantic returns the k nearest summaries by vector distance,
	// closest first, with raw distances.
	QuerySemantic(ctx context.Context, vector []float32, k int) ([]SemanticCandidate, error)

	// QueryLexical returns chunks satisfying the predicates, in stable
	// chunk-id order.
	QueryLexical(ctx context.Context, pred LexicalPredicates) ([]LexicalCandidate, error)

	// Counts reports the number of live summaries and chunks.
	Counts(ctx context.Context) (summaries, chunks int, err error)

	Close() error
}
