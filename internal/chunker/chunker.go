package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benvenker/neumann/pkg/types"
)

const (
	// DefaultPerChunkLines is the target window size in lines.
	DefaultPerChunkLines = 180

	// DefaultOverlapLines is the number of lines shared between consecutive
	// windows.
	DefaultOverlapLines = 30
)

// ErrInvalidConfig is returned when chunking parameters would not advance or
// are non-positive. It is never retried; the caller must fix configuration.
var ErrInvalidConfig = errors.New("invalid chunking config")

// SourceDocument carries the raw text of one document plus the associations
// injected by the caller. The chunker itself is a pure function over these
// inputs.
type SourceDocument struct {
	DocID      string
	SourcePath string
	Language   string
	Text       string
	PageURIs   []string
}

// Chunker splits raw file text into overlapping line-bounded windows, keeping
// each window's serialized size under the store's per-document byte cap.
type Chunker struct {
	perChunkLines int
	overlapLines  int
}

// New creates a Chunker, validating the window parameters.
func New(perChunkLines, overlapLines int) (*Chunker, error) {
	if perChunkLines <= 0 {
		return nil, fmt.Errorf("%w: per-chunk lines must be positive, got %d", ErrInvalidConfig, perChunkLines)
	}
	if overlapLines < 0 {
		return nil, fmt.Errorf("%w: overlap lines must be non-negative, got %d", ErrInvalidConfig, overlapLines)
	}
	if overlapLines >= perChunkLines {
		return nil, fmt.Errorf("%w: overlap (%d) must be less than per-chunk lines (%d)",
			ErrInvalidConfig, overlapLines, perChunkLines)
	}
	return &Chunker{perChunkLines: perChunkLines, overlapLines: overlapLines}, nil
}

// Chunk splits the document into overlapping chunks. Identical input always
// yields identical line ranges; re-indexing a document supersedes prior chunks
// because chunk ids are derived from the doc id and line range.
func (c *Chunker) Chunk(doc SourceDocument) []types.Chunk {
	lines := splitLinesKeepEnds(doc.Text)
	n := len(lines)
	if n == 0 {
		return nil
	}

	// Per-line byte sizes so window shrinking does not re-join repeatedly.
	sizes := make([]int, n)
	for i, line := range lines {
		sizes[i] = len(line)
	}

	var chunks []types.Chunk
	emit := func(chunkID, text string, lineStart, lineEnd int) {
		chunks = append(chunks, types.Chunk{
			ChunkID:    chunkID,
			DocID:      doc.DocID,
			Text:       text,
			LineStart:  lineStart,
			LineEnd:    lineEnd,
			SourcePath: doc.SourcePath,
			Language:   doc.Language,
			PageURIs:   doc.PageURIs,
		})
	}

	start := 0
	for start < n {
		end := start + c.perChunkLines
		if end > n {
			end = n
		}

		// Greedy shrink until the window fits the byte ceiling.
		chunkBytes := 0
		for i := start; i < end; i++ {
			chunkBytes += sizes[i]
		}
		for chunkBytes > types.MaxChunkBytes && end > start+1 {
			end--
			chunkBytes -= sizes[end]
		}

		// A single line that alone exceeds the ceiling is split on UTF-8
		// boundaries rather than dropped or truncated. Segments share a line
		// range, so each gets an ordinal suffix to keep chunk ids unique.
		if chunkBytes > types.MaxChunkBytes && end == start+1 {
			for i, seg := range splitByBytes(lines[start], types.MaxChunkBytes) {
				emit(types.SegmentChunkIDFor(doc.DocID, start+1, i+1), seg, start+1, start+1)
			}
			start++
			continue
		}

		emit(types.ChunkIDFor(doc.DocID, start+1, end), strings.Join(lines[start:end], ""), start+1, end)

		if end >= n {
			break
		}

		// If the byte ceiling shrank the window, step by the actual length so
		// no lines are skipped and the loop always advances.
		step := end - start - c.overlapLines
		if step < 1 {
			step = 1
		}
		start += step
	}

	return chunks
}

// splitLinesKeepEnds splits text into lines with their trailing newlines
// preserved, so joining the lines reproduces the original text exactly.
func splitLinesKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

// splitByBytes splits s into segments of at most maxBytes bytes, backing off
// from UTF-8 continuation bytes so no rune is cut in half.
func splitByBytes(s string, maxBytes int) []string {
	b := []byte(s)
	var out []string
	i := 0
	for i < len(b) {
		j := i + maxBytes
		if j > len(b) {
			j = len(b)
		}
		// Continuation bytes look like 0b10xxxxxx.
		for j > i && j < len(b) && b[j]&0xC0 == 0x80 {
			j--
		}
		out = append(out, string(b[i:j]))
		i = j
	}
	return out
}
