package chunker

import (
	"path/filepath"
	"strings"
)

// MakeDocID generates the canonical document id for a source path. Path parts
// are joined with double underscores and spaces become single underscores so
// the id stays URL and filesystem friendly. When inputRoot is non-empty the id
// is computed from the path relative to it, keeping ids stable across machines.
//
// The same computation is used by ingestion and by the external renderer, so
// the id is the join key between chunks, summaries, and page manifests.
func MakeDocID(path, inputRoot string) string {
	rel := path
	if inputRoot != "" {
		if r, err := filepath.Rel(inputRoot, path); err == nil {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)

	// Strip any leading volume or root so absolute paths produce clean ids.
	if v := filepath.VolumeName(rel); v != "" {
		rel = rel[len(v):]
	}
	rel = strings.TrimPrefix(rel, "/")

	parts := strings.Split(rel, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		kept = append(kept, strings.ReplaceAll(p, " ", "_"))
	}
	return strings.Join(kept, "__")
}
