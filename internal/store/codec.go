package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/benvenker/neumann/pkg/types"
)

// Metadata field names as stored in the flat string representation.
const (
	metaDocID       = "doc_id"
	metaSourcePath  = "source_path"
	metaLang        = "lang"
	metaLastUpdated = "last_updated"

	metaProductTags      = "product_tags"
	metaKeyTopics        = "key_topics"
	metaAPISymbols       = "api_symbols"
	metaRelatedFiles     = "related_files"
	metaSuggestedQueries = "suggested_queries"
	metaPageURIs         = "page_uris"
)

// listKeys is the fixed set of metadata fields with list-valued semantics.
// The underlying store only holds flat strings, so these are comma-joined on
// encode and comma-split on decode.
//
// Known limitation: values containing commas corrupt round-tripping; the
// codec does not escape commas. Changing the delimiter would break the
// existing on-disk format, so the limitation stands until the format is
// versioned.
var listKeys = map[string]bool{
	metaProductTags:      true,
	metaKeyTopics:        true,
	metaAPISymbols:       true,
	metaRelatedFiles:     true,
	metaSuggestedQueries: true,
	metaPageURIs:         true,
}

// EncodeMetadata flattens a metadata map to the string-only representation
// the store accepts. List values under known keys are comma-joined; all other
// values pass through with scalar semantics.
func EncodeMetadata(meta map[string]interface{}) map[string]string {
	flat := make(map[string]string, len(meta))
	for key, value := range meta {
		switch v := value.(type) {
		case []string:
			flat[key] = strings.Join(v, ",")
		case string:
			flat[key] = v
		default:
			flat[key] = fmt.Sprintf("%v", v)
		}
	}
	return flat
}

// DecodeMetadata rehydrates a flat string map: known list keys are split on
// comma back into sequences, everything else stays a scalar string. An empty
// string under a list key decodes to an empty list, not [""].
func DecodeMetadata(flat map[string]string) map[string]interface{} {
	meta := make(map[string]interface{}, len(flat))
	for key, value := range flat {
		if listKeys[key] {
			meta[key] = splitList(value)
			continue
		}
		meta[key] = value
	}
	return meta
}

func splitList(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinList(values []string) string {
	return strings.Join(values, ",")
}

// encodeSummaryMetadata flattens the closed summary schema for storage.
func encodeSummaryMetadata(m types.SummaryMetadata) map[string]string {
	flat := map[string]string{
		metaDocID:            m.DocID,
		metaSourcePath:       m.SourcePath,
		metaLang:             m.Language,
		metaProductTags:      joinList(m.ProductTags),
		metaKeyTopics:        joinList(m.KeyTopics),
		metaAPISymbols:       joinList(m.APISymbols),
		metaRelatedFiles:     joinList(m.RelatedFiles),
		metaSuggestedQueries: joinList(m.SuggestedQueries),
		metaPageURIs:         joinList(m.PageURIs),
	}
	if !m.LastUpdated.IsZero() {
		flat[metaLastUpdated] = m.LastUpdated.UTC().Format(time.RFC3339)
	}
	return flat
}

// decodeSummaryMetadata rehydrates the closed summary schema. List fields are
// always returned as sequences, never as encoded strings.
func decodeSummaryMetadata(flat map[string]string) types.SummaryMetadata {
	m := types.SummaryMetadata{
		DocID:            flat[metaDocID],
		SourcePath:       flat[metaSourcePath],
		Language:         flat[metaLang],
		ProductTags:      splitList(flat[metaProductTags]),
		KeyTopics:        splitList(flat[metaKeyTopics]),
		APISymbols:       splitList(flat[metaAPISymbols]),
		RelatedFiles:     splitList(flat[metaRelatedFiles]),
		SuggestedQueries: splitList(flat[metaSuggestedQueries]),
		PageURIs:         splitList(flat[metaPageURIs]),
	}
	if ts := flat[metaLastUpdated]; ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			m.LastUpdated = parsed
		}
	}
	return m
}
