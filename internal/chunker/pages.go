package chunker

import (
	"bufio"
	"encoding/json"
	"os"
	"sort"
)

// pageRow is one line of a pages.jsonl manifest written by the renderer.
type pageRow struct {
	Page int    `json:"page"`
	URI  string `json:"uri"`
}

// LoadPageURIs reads a pages.jsonl manifest and returns its URIs ordered by
// page number with duplicates removed. A missing or unreadable file yields an
// empty list; malformed rows are skipped. The renderer is an external
// collaborator, so its output is treated as best-effort.
func LoadPageURIs(manifestPath string) []string {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil
	}
	defer func() { _ = f.Close() }()

	var rows []pageRow
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row pageRow
		if err := json.Unmarshal(line, &row); err != nil {
			continue
		}
		if row.URI == "" {
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Page < rows[j].Page })

	seen := make(map[string]struct{}, len(rows))
	uris := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.URI]; dup {
			continue
		}
		seen[row.URI] = struct{}{}
		uris = append(uris, row.URI)
	}
	return uris
}
