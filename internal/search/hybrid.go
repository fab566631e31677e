package search

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/benvenker/neumann/pkg/types"
)

// RRFConstant is the standard reciprocal rank fusion smoothing term.
const RRFConstant = 60

const (
	queryCacheSize = 1000
	queryCacheTTL  = time.Hour
)

// HybridQuery is one fused search request. The semantic channel runs when
// Query is non-empty; the lexical channel runs when any of Terms, Regexes, or
// PathLike is set. At least one channel must be applicable.
type HybridQuery struct {
	Query    string
	Terms    []string
	Regexes  []string
	PathLike string
	K        int

	// Channel weights. Each must lie in [0,1] and their sum must be
	// positive. Callers that want the conventional blend pass 0.6/0.4.
	WSemantic float64
	WLexical  float64

	UseCache bool
}

// HybridEngine fuses the semantic and lexical channels into one ranked list.
type HybridEngine struct {
	semantic *SemanticEngine
	lexical  *LexicalEngine

	cacheMu sync.Mutex
	cache   *lru.Cache[[32]byte, *cacheEntry]
}

type cacheEntry struct {
	results   []types.SearchResult
	expiresAt time.Time
}

// NewHybridEngine creates a hybrid fusion engine over the two channels.
func NewHybridEngine(semantic *SemanticEngine, lexical *LexicalEngine) *HybridEngine {
	cache, err := lru.New[[32]byte, *cacheEntry](queryCacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant
		panic(fmt.Sprintf("failed to create query cache: %v", err))
	}
	return &HybridEngine{semantic: semantic, lexical: lexical, cache: cache}
}

// Search runs the applicable channels concurrently, merges candidates by
// document id, and orders them by weighted score with reciprocal rank fusion
// as the tie-breaker. A failing channel fails the whole request; a silently
// degraded single-channel result would mislead callers about confidence.
func (e *HybridEngine) Search(ctx context.Context, q HybridQuery) ([]types.SearchResult, error) {
	semActive := strings.TrimSpace(q.Query) != ""
	lexActive := len(q.Terms) > 0 || len(q.Regexes) > 0 || q.PathLike != ""
	if !semActive && !lexActive {
		return nil, ErrNoChannelProvided
	}
	if err := validateWeights(q.WSemantic, q.WLexical); err != nil {
		return nil, err
	}
	if q.K <= 0 {
		return []types.SearchResult{}, nil
	}

	key := cacheKey(q)
	if q.UseCache {
		if cached, ok := e.checkCache(key); ok {
			return cached, nil
		}
	}

	var semResults, lexResults []types.SearchResult
	g, gctx := errgroup.WithContext(ctx)
	if semActive {
		g.Go(func() error {
			var err error
			semResults, err = e.semantic.Search(gctx, q.Query, q.K)
			if err != nil {
				return fmt.Errorf("semantic channel: %w", err)
			}
			return nil
		})
	}
	if lexActive {
		g.Go(func() error {
			var err error
			lexResults, err = e.lexical.Search(gctx, LexicalQuery{
				Terms:    q.Terms,
				Regexes:  q.Regexes,
				PathLike: q.PathLike,
				K:        q.K,
			})
			if err != nil {
				return fmt.Errorf("lexical channel: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := fuse(semResults, lexResults, q.WSemantic, q.WLexical)
	if len(merged) > q.K {
		merged = merged[:q.K]
	}

	if q.UseCache {
		e.storeInCache(key, merged)
	}
	return merged, nil
}

func validateWeights(wSem, wLex float64) error {
	if wSem < 0 || wSem > 1 || wLex < 0 || wLex > 1 || wSem+wLex <= 0 {
		return ErrInvalidWeights
	}
	return nil
}

// fuse merges per-channel rankings into one list keyed by document id.
func fuse(semResults, lexResults []types.SearchResult, wSem, wLex float64) []types.SearchResult {
	byDoc := make(map[string]*types.SearchResult)
	order := make([]string, 0, len(semResults)+len(lexResults))

	for rank, r := range semResults {
		merged := r
		merged.RRFScore = 1.0 / (RRFConstant + float64(rank+1))
		byDoc[r.DocID] = &merged
		order = append(order, r.DocID)
	}

	for rank, r := range lexResults {
		rrf := 1.0 / (RRFConstant + float64(rank+1))
		existing, seen := byDoc[r.DocID]
		if !seen {
			merged := r
			merged.RRFScore = rrf
			byDoc[r.DocID] = &merged
			order = append(order, r.DocID)
			continue
		}
		// One row per document: the lexical hit supplies the line range
		// and path, explanations run semantic first, page URIs union.
		existing.LexScore = r.LexScore
		existing.LineStart = r.LineStart
		existing.LineEnd = r.LineEnd
		if r.SourcePath != "" {
			existing.SourcePath = r.SourcePath
		}
		existing.PageURIs = unionPageURIs(existing.PageURIs, r.PageURIs)
		existing.Why = append(existing.Why, r.Why...)
		existing.RRFScore += rrf
	}

	out := make([]types.SearchResult, 0, len(order))
	for _, docID := range order {
		r := byDoc[docID]
		r.Score = r.SemScore*wSem + r.LexScore*wLex
		out = append(out, *r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].DocID < out[j].DocID
	})
	return out
}

// unionPageURIs concatenates both channels' page URIs, first occurrence wins.
func unionPageURIs(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, uri := range a {
		if !seen[uri] {
			seen[uri] = true
			out = append(out, uri)
		}
	}
	for _, uri := range b {
		if !seen[uri] {
			seen[uri] = true
			out = append(out, uri)
		}
	}
	return out
}

func (e *HybridEngine) checkCache(key [32]byte) ([]types.SearchResult, bool) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	entry, found := e.cache.Get(key)
	if !found {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		e.cache.Remove(key)
		return nil, false
	}
	return copyResults(entry.results), true
}

func (e *HybridEngine) storeInCache(key [32]byte, results []types.SearchResult) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache.Add(key, &cacheEntry{
		results:   copyResults(results),
		expiresAt: time.Now().Add(queryCacheTTL),
	})
}

// InvalidateCache drops all cached queries. Called after ingestion so stale
// rankings never outlive the index state they were computed from.
func (e *HybridEngine) InvalidateCache() {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache.Purge()
}

// copyResults deep-copies results so cached entries cannot be mutated by
// callers.
func copyResults(src []types.SearchResult) []types.SearchResult {
	dst := make([]types.SearchResult, len(src))
	for i, r := range src {
		dst[i] = r
		dst[i].PageURIs = append([]string(nil), r.PageURIs...)
		dst[i].Why = append([]types.Reason(nil), r.Why...)
	}
	return dst
}

// cacheKey builds a deterministic hash of every request field that affects
// ranking.
func cacheKey(q HybridQuery) [32]byte {
	var data strings.Builder
	data.WriteString(q.Query)
	data.WriteString("|")
	data.WriteString(strings.Join(q.Terms, ","))
	data.WriteString("|")
	data.WriteString(strings.Join(q.Regexes, ","))
	data.WriteString("|")
	data.WriteString(q.PathLike)
	data.WriteString("|")
	fmt.Fprintf(&data, "%d|%.4f|%.4f", q.K, q.WSemantic, q.WLexical)
	return sha256.Sum256([]byte(data.String()))
}
