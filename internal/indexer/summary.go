package indexer

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/benvenker/neumann/pkg/types"
)

// summaryFrontMatter mirrors the YAML header the summarizer writes at the top
// of each .summary.md file.
type summaryFrontMatter struct {
	DocID            string   `yaml:"doc_id"`
	SourcePath       string   `yaml:"source_path"`
	Language         string   `yaml:"language"`
	ProductTags      []string `yaml:"product_tags"`
	LastUpdated      string   `yaml:"last_updated"`
	KeyTopics        []string `yaml:"key_topics"`
	APISymbols       []string `yaml:"api_symbols"`
	RelatedFiles     []string `yaml:"related_files"`
	SuggestedQueries []string `yaml:"suggested_queries"`
}

// LoadSummaryFile reads a summarizer artifact and splits it into structured
// metadata and the markdown body that gets embedded.
func LoadSummaryFile(path string) (*types.DocumentSummary, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSummary(string(content))
}

// ParseSummary parses "---\n<yaml>\n---\n<body>" summary content.
func ParseSummary(content string) (*types.DocumentSummary, error) {
	front, body, err := splitFrontMatter(content)
	if err != nil {
		return nil, err
	}

	var fm summaryFrontMatter
	if err := yaml.Unmarshal([]byte(front), &fm); err != nil {
		return nil, fmt.Errorf("invalid summary front matter: %w", err)
	}
	if fm.DocID == "" {
		return nil, fmt.Errorf("summary front matter missing doc_id")
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("summary body is empty")
	}

	meta := types.SummaryMetadata{
		DocID:            fm.DocID,
		SourcePath:       fm.SourcePath,
		Language:         fm.Language,
		ProductTags:      fm.ProductTags,
		KeyTopics:        fm.KeyTopics,
		APISymbols:       fm.APISymbols,
		RelatedFiles:     fm.RelatedFiles,
		SuggestedQueries: fm.SuggestedQueries,
	}
	if fm.LastUpdated != "" {
		ts, err := parseSummaryTime(fm.LastUpdated)
		if err != nil {
			return nil, fmt.Errorf("invalid last_updated %q: %w", fm.LastUpdated, err)
		}
		meta.LastUpdated = ts
	}

	return &types.DocumentSummary{
		DocID:       fm.DocID,
		SummaryText: body,
		Metadata:    meta,
	}, nil
}

// splitFrontMatter separates the YAML header from the markdown body.
func splitFrontMatter(content string) (front, body string, err error) {
	const delimiter = "---"

	trimmed := strings.TrimLeft(content, "\ufeff\n\r")
	if !strings.HasPrefix(trimmed, delimiter) {
		return "", "", fmt.Errorf("summary has no front matter")
	}
	rest := strings.TrimPrefix(trimmed, delimiter)
	rest = strings.TrimPrefix(rest, "\n")

	idx := strings.Index(rest, "\n"+delimiter)
	if idx < 0 {
		return "", "", fmt.Errorf("summary front matter is unterminated")
	}

	front = rest[:idx]
	body = rest[idx+len("\n"+delimiter):]
	body = strings.TrimPrefix(body, "\n")
	return front, body, nil
}

// parseSummaryTime accepts the timestamp formats summarizers have produced:
// RFC3339 and ISO timestamps without a zone.
func parseSummaryTime(s string) (time.Time, error) {
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.999999Z",
		"2006-01-02T15:04:05",
	} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp format")
}
