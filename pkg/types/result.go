package types

import "fmt"

// ReasonKind tags the origin of a match explanation.
type ReasonKind string

const (
	ReasonTerm     ReasonKind = "term"
	ReasonRegex    ReasonKind = "regex"
	ReasonPath     ReasonKind = "path"
	ReasonSemantic ReasonKind = "semantic"
	ReasonBaseline ReasonKind = "baseline"
)

// Reason is a structured match explanation. Ranking code works with these
// records; they render to human-readable strings only at the output boundary.
type Reason struct {
	Kind     ReasonKind
	Pattern  string  // Matched term, regex source, path substring, or query text
	Count    int     // Capped hit count for term/regex reasons
	Capped   bool    // True when Count hit the per-pattern cap
	Distance float64 // Raw vector distance for semantic reasons
	Baseline float64 // Applied baseline score for baseline reasons
}

// String renders the reason for display.
func (r Reason) String() string {
	switch r.Kind {
	case ReasonTerm:
		if r.Capped {
			return fmt.Sprintf("matched term: %s (%d times, capped at %d)", r.Pattern, r.Count, r.Count)
		}
		return fmt.Sprintf("matched term: %s (%d times)", r.Pattern, r.Count)
	case ReasonRegex:
		if r.Capped {
			return fmt.Sprintf("matched regex: %s (%d times, capped at %d)", r.Pattern, r.Count, r.Count)
		}
		return fmt.Sprintf("matched regex: %s (%d times)", r.Pattern, r.Count)
	case ReasonPath:
		return fmt.Sprintf("path filter matched: %s", r.Pattern)
	case ReasonSemantic:
		return fmt.Sprintf("semantic match for %q (distance %.4f)", r.Pattern, r.Distance)
	case ReasonBaseline:
		return fmt.Sprintf("path-only match baseline applied: %.2f", r.Baseline)
	}
	return string(r.Kind)
}

// RenderReasons converts structured reasons to display strings, preserving order.
func RenderReasons(reasons []Reason) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = r.String()
	}
	return out
}

// SearchResult is one ranked row of a search response. A document appearing in
// both channels of a hybrid search is merged into a single result.
type SearchResult struct {
	DocID      string
	SourcePath string

	// Scoring
	Score    float64 // Final combined score
	SemScore float64 // Semantic channel score in [0,1], 0 when channel inactive
	LexScore float64 // Lexical channel score in [0,1], 0 when channel inactive
	RRFScore float64 // Reciprocal rank fusion tie-breaker

	// Location, present when the lexical channel contributed
	LineStart int
	LineEnd   int

	PageURIs []string
	Why      []Reason
	Metadata SummaryMetadata
}

// Validate checks the result invariants before it crosses the output boundary.
func (r *SearchResult) Validate() error {
	if r.DocID == "" {
		return ErrInvalidDocID
	}
	if r.Score > 0 && len(r.Why) == 0 {
		return ErrMissingWhy
	}
	if r.SemScore < 0 || r.SemScore > 1 {
		return ErrScoreOutOfRange
	}
	if r.LexScore < 0 || r.LexScore > 1 {
		return ErrScoreOutOfRange
	}
	return nil
}
