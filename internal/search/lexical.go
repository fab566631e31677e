package search

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/benvenker/neumann/internal/store"
	"github.com/benvenker/neumann/pkg/types"
)

const (
	// HitCap bounds per-pattern hit counts so one hyper-frequent term
	// cannot dominate the raw score.
	HitCap = 3

	// TermWeight and RegexWeight scale capped hit counts in the raw score.
	TermWeight  = 1.0
	RegexWeight = 1.0

	// PathOnlyBaseline is the score assigned to chunks that matched only
	// the path filter, with no body hits to rank on.
	PathOnlyBaseline = 0.25

	// lengthPenaltyScale sets where the length penalty starts to bite.
	lengthPenaltyScale = 4096
)

// LexicalQuery is one lexical search request. At least one of Terms, Regexes,
// or PathLike must be set.
type LexicalQuery struct {
	Terms    []string
	Regexes  []string
	PathLike string
	K        int
}

// LexicalEngine ranks chunks by exact term and regex hits.
type LexicalEngine struct {
	store store.Store
}

// NewLexicalEngine creates a lexical search engine over the given store.
func NewLexicalEngine(s store.Store) *LexicalEngine {
	return &LexicalEngine{store: s}
}

// lexicalHit carries the ranking state of one candidate chunk.
type lexicalHit struct {
	cand       store.LexicalCandidate
	score      float64
	categories int // Distinct matched terms and regexes
	totalHits  int // Uncapped hit total, used only for tie-breaking
	why        []types.Reason
}

// Search returns up to K results ranked by lexical score. Results are
// deduplicated by document id, keeping each document's best chunk.
func (e *LexicalEngine) Search(ctx context.Context, q LexicalQuery) ([]types.SearchResult, error) {
	if len(q.Terms) == 0 && len(q.Regexes) == 0 && q.PathLike == "" {
		return nil, ErrNoFilterProvided
	}
	if q.K <= 0 {
		return []types.SearchResult{}, nil
	}

	candidates, err := e.store.QueryLexical(ctx, store.LexicalPredicates{
		Terms:        q.Terms,
		Regexes:      q.Regexes,
		PathFiltered: q.PathLike != "",
		K:            q.K,
	})
	if err != nil {
		return nil, fmt.Errorf("lexical query failed: %w", err)
	}

	patterns := compileValidPatterns(q.Regexes)
	hits := make([]lexicalHit, 0, len(candidates))
	for _, cand := range candidates {
		if q.PathLike != "" && !pathMatches(cand.SourcePath, q.PathLike) {
			continue
		}
		hits = append(hits, scoreCandidate(cand, q, patterns))
	}

	best := dedupeByDocument(hits)
	sortHits(best)
	if len(best) > q.K {
		best = best[:q.K]
	}

	results := make([]types.SearchResult, len(best))
	for i, h := range best {
		results[i] = types.SearchResult{
			DocID:      h.cand.DocID,
			SourcePath: h.cand.SourcePath,
			Score:      h.score,
			LexScore:   h.score,
			LineStart:  h.cand.LineStart,
			LineEnd:    h.cand.LineEnd,
			PageURIs:   h.cand.PageURIs,
			Why:        h.why,
		}
	}
	return results, nil
}

// scoreCandidate computes the capped raw score, its length-penalized
// normalization, and the match explanations for one chunk.
func scoreCandidate(cand store.LexicalCandidate, q LexicalQuery, patterns []compiledPattern) lexicalHit {
	h := lexicalHit{cand: cand}

	var raw float64
	for _, term := range q.Terms {
		count := strings.Count(cand.Text, term)
		if count == 0 {
			continue
		}
		capped := count
		if capped > HitCap {
			capped = HitCap
		}
		raw += float64(capped) * TermWeight
		h.categories++
		h.totalHits += count
		h.why = append(h.why, types.Reason{
			Kind:    types.ReasonTerm,
			Pattern: term,
			Count:   capped,
			Capped:  count > HitCap,
		})
	}
	for _, p := range patterns {
		count := len(p.re.FindAllStringIndex(cand.Text, -1))
		if count == 0 {
			continue
		}
		capped := count
		if capped > HitCap {
			capped = HitCap
		}
		raw += float64(capped) * RegexWeight
		h.categories++
		h.totalHits += count
		h.why = append(h.why, types.Reason{
			Kind:    types.ReasonRegex,
			Pattern: p.source,
			Count:   capped,
			Capped:  count > HitCap,
		})
	}

	if q.PathLike != "" {
		h.why = append(h.why, types.Reason{Kind: types.ReasonPath, Pattern: q.PathLike})
	}

	if raw == 0 {
		// Path-only match: nothing in the body to rank on.
		h.score = PathOnlyBaseline
		h.why = append(h.why, types.Reason{Kind: types.ReasonBaseline, Baseline: PathOnlyBaseline})
		return h
	}

	maxRaw := float64(HitCap) * (float64(len(q.Terms))*TermWeight + float64(len(patterns))*RegexWeight)
	h.score = (raw / lengthPenalty(cand.DocLen)) / maxRaw
	return h
}

// lengthPenalty discounts very long chunks so files with coincidental matches
// do not outrank concise precise ones. Monotonically increasing, 1 at zero
// length.
func lengthPenalty(docLen int) float64 {
	return 1 + math.Log1p(float64(docLen)/lengthPenaltyScale)
}

// dedupeByDocument keeps the best-ranked chunk per document.
func dedupeByDocument(hits []lexicalHit) []lexicalHit {
	bestByDoc := make(map[string]int, len(hits))
	out := make([]lexicalHit, 0, len(hits))
	for _, h := range hits {
		idx, seen := bestByDoc[h.cand.DocID]
		if !seen {
			bestByDoc[h.cand.DocID] = len(out)
			out = append(out, h)
			continue
		}
		if hitLess(out[idx], h) {
			out[idx] = h
		}
	}
	return out
}

// sortHits orders hits by score, then by the hierarchical tie-break. Capping
// collapses distinct match intensities to the same score, so ties are common.
func sortHits(hits []lexicalHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hitLess(hits[j], hits[i])
	})
}

// hitLess reports whether a ranks strictly below b.
func hitLess(a, b lexicalHit) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	if a.categories != b.categories {
		return a.categories < b.categories
	}
	if a.totalHits != b.totalHits {
		return a.totalHits < b.totalHits
	}
	if a.cand.DocLen != b.cand.DocLen {
		return a.cand.DocLen > b.cand.DocLen // Shorter ranks higher
	}
	return a.cand.DocID > b.cand.DocID
}

// pathMatches is the client-side path filter: case-insensitive substring.
func pathMatches(sourcePath, pathLike string) bool {
	return strings.Contains(strings.ToLower(sourcePath), strings.ToLower(pathLike))
}

type compiledPattern struct {
	source string
	re     *regexp.Regexp
}

// compileValidPatterns compiles regex sources, silently skipping ones that do
// not compile.
func compileValidPatterns(exprs []string) []compiledPattern {
	out := make([]compiledPattern, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			continue
		}
		out = append(out, compiledPattern{source: expr, re: re})
	}
	return out
}
