package types

import (
	"errors"
	"time"
)

// SummaryMetadata is the closed metadata schema attached to a document summary.
// Fields are explicit rather than an open map so a key typo cannot silently drop
// data during encode/decode round-trips.
type SummaryMetadata struct {
	DocID            string
	SourcePath       string
	Language         string
	LastUpdated      time.Time
	ProductTags      []string
	KeyTopics        []string
	APISymbols       []string
	RelatedFiles     []string
	SuggestedQueries []string
	PageURIs         []string
}

// DocumentSummary is the semantic-channel record for one source document.
// At most one live summary exists per DocID; re-upserting replaces it.
type DocumentSummary struct {
	DocID       string
	SummaryText string
	Embedding   []float32 // Fixed dimension, provider-dependent
	Metadata    SummaryMetadata
}

// Validate checks the summary's structural invariants. The embedding may be
// empty here; dimension checks against the model table happen in the embedder.
func (s *DocumentSummary) Validate() error {
	if s.DocID == "" {
		return errors.New("summary doc id cannot be empty")
	}
	if s.SummaryText == "" {
		return errors.New("summary text cannot be empty")
	}
	if s.Metadata.DocID != "" && s.Metadata.DocID != s.DocID {
		return errors.New("summary metadata doc id does not match")
	}
	return nil
}
