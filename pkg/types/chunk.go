package types

import (
	"errors"
	"fmt"
)

// MaxChunkBytes is the maximum serialized size of a chunk's text. It is a hard
// constraint imposed by the downstream store's per-document size cap.
const MaxChunkBytes = 16384

// Chunk represents a contiguous line range of one source document, the unit of
// lexical indexing.
type Chunk struct {
	// Identification
	ChunkID string // Stable: "<docID>#L<start>-<end>", "@<seg>" suffix for byte-split segments
	DocID   string

	// Content
	Text string // Raw text with original newlines preserved

	// Location (1-based, inclusive)
	LineStart int
	LineEnd   int

	// Metadata
	SourcePath string
	Language   string
	PageURIs   []string // Ordered page image URIs, may be empty
}

// ChunkID derives the stable chunk identifier from a document id and line range.
func ChunkIDFor(docID string, lineStart, lineEnd int) string {
	return fmt.Sprintf("%s#L%d-%d", docID, lineStart, lineEnd)
}

// SegmentChunkIDFor derives the identifier for one byte-split segment of an
// oversized line. Splitting yields several chunks covering the same line, so
// the plain line-range id would collide on the store's primary key.
func SegmentChunkIDFor(docID string, line, segment int) string {
	return fmt.Sprintf("%s#L%d-%d@%d", docID, line, line, segment)
}

// Validate checks the chunk's structural invariants.
func (c *Chunk) Validate() error {
	if c.DocID == "" {
		return errors.New("chunk doc id cannot be empty")
	}
	if c.Text == "" {
		return errors.New("chunk text cannot be empty")
	}
	if c.LineStart <= 0 || c.LineEnd <= 0 {
		return errors.New("line numbers must be positive")
	}
	if c.LineStart > c.LineEnd {
		return errors.New("line start must be before or equal to line end")
	}
	return nil
}

// SerializedSize returns the byte length of the chunk text as stored.
func (c *Chunk) SerializedSize() int {
	return len(c.Text)
}
