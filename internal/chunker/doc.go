// Package chunker divides raw document text into overlapping line-bounded
// windows for lexical indexing.
//
// # Basic Usage
//
//	c, err := chunker.New(180, 30)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	chunks := c.Chunk(chunker.SourceDocument{
//	    DocID:      chunker.MakeDocID(path, root),
//	    SourcePath: path,
//	    Language:   chunker.DetectLanguage(path),
//	    Text:       text,
//	    PageURIs:   chunker.LoadPageURIs(manifest),
//	})
//
// # Windowing
//
// Windows cover perChunkLines lines and advance by perChunkLines minus
// overlapLines, so consecutive chunks share overlapLines lines. The final
// window is truncated to the remaining lines. Each chunk's serialized text
// stays at or below types.MaxChunkBytes; a window shrinks line by line until
// it fits, and a single line that alone exceeds the ceiling is split on UTF-8
// boundaries into multiple chunks sharing one line range.
//
// Chunking is deterministic: the same text and parameters always produce the
// same (LineStart, LineEnd) sequence, which makes re-indexing idempotent.
package chunker
