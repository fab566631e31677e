package search

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benvenker/neumann/internal/store"
	"github.com/benvenker/neumann/pkg/types"
)

// fakeStore is an in-memory Store that applies the same predicate contract as
// the SQLite adapter: AND-ed terms, OR-ed valid regexes, stable chunk-id
// order, overfetch on path-filtered queries.
type fakeStore struct {
	chunks    []store.LexicalCandidate
	semantic  []store.SemanticCandidate
	lexErr    error
	semErr    error
	semCalled bool
	lexCalled bool
}

func (f *fakeStore) UpsertSummary(ctx context.Context, summary *types.DocumentSummary) error {
	return nil
}

func (f *fakeStore) UpsertChunks(ctx context.Context, chunks []types.Chunk) error {
	return nil
}

func (f *fakeStore) QuerySemantic(ctx context.Context, vector []float32, k int) ([]store.SemanticCandidate, error) {
	f.semCalled = true
	if f.semErr != nil {
		return nil, f.semErr
	}
	if k <= 0 {
		return []store.SemanticCandidate{}, nil
	}
	out := append([]store.SemanticCandidate(nil), f.semantic...)
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (f *fakeStore) QueryLexical(ctx context.Context, pred store.LexicalPredicates) ([]store.LexicalCandidate, error) {
	f.lexCalled = true
	if f.lexErr != nil {
		return nil, f.lexErr
	}
	if pred.K <= 0 {
		return []store.LexicalCandidate{}, nil
	}

	var patterns []*regexp.Regexp
	for _, expr := range pred.Regexes {
		if re, err := regexp.Compile(expr); err == nil {
			patterns = append(patterns, re)
		}
	}
	if len(pred.Terms) == 0 && len(patterns) == 0 && !pred.PathFiltered {
		return []store.LexicalCandidate{}, nil
	}

	limit := pred.K
	if pred.PathFiltered {
		limit = pred.K * store.OverfetchMultiplier
	}

	sorted := append([]store.LexicalCandidate(nil), f.chunks...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkID < sorted[j].ChunkID })

	out := make([]store.LexicalCandidate, 0, limit)
candidates:
	for _, c := range sorted {
		for _, term := range pred.Terms {
			if !strings.Contains(c.Text, term) {
				continue candidates
			}
		}
		if len(patterns) > 0 {
			matched := false
			for _, re := range patterns {
				if re.MatchString(c.Text) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, c)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeStore) Counts(ctx context.Context) (int, int, error) {
	return len(f.semantic), len(f.chunks), nil
}

func (f *fakeStore) Close() error { return nil }

func chunkCandidate(chunkID, docID, text, sourcePath string) store.LexicalCandidate {
	return store.LexicalCandidate{
		ChunkID:    chunkID,
		DocID:      docID,
		Text:       text,
		SourcePath: sourcePath,
		Language:   "text",
		LineStart:  1,
		LineEnd:    5,
		DocLen:     len(text),
	}
}

func TestLexicalSearch_NoFilterProvided(t *testing.T) {
	engine := NewLexicalEngine(&fakeStore{})

	_, err := engine.Search(context.Background(), LexicalQuery{K: 10})
	assert.ErrorIs(t, err, ErrNoFilterProvided)
}

func TestLexicalSearch_KNonPositiveReturnsEmpty(t *testing.T) {
	fs := &fakeStore{chunks: []store.LexicalCandidate{
		chunkCandidate("c1", "doc1", "test content", "src/a.ts"),
	}}
	engine := NewLexicalEngine(fs)

	got, err := engine.Search(context.Background(), LexicalQuery{Terms: []string{"test"}, K: 0})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = engine.Search(context.Background(), LexicalQuery{Terms: []string{"test"}, K: -1})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLexicalSearch_CappedHitRanking(t *testing.T) {
	// One document carries the term 5 times, another once. The 5-hit
	// document ranks first and its explanation shows the cap.
	fs := &fakeStore{chunks: []store.LexicalCandidate{
		chunkCandidate("c1", "doc-many", "foo foo foo foo foo", "src/many.ts"),
		chunkCandidate("c2", "doc-once", "just one foo here ok", "src/once.ts"),
	}}
	engine := NewLexicalEngine(fs)

	got, err := engine.Search(context.Background(), LexicalQuery{Terms: []string{"foo"}, K: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "doc-many", got[0].DocID)
	assert.Equal(t, "doc-once", got[1].DocID)

	why := types.RenderReasons(got[0].Why)
	require.Len(t, why, 1)
	assert.Equal(t, "matched term: foo (3 times, capped at 3)", why[0])

	why = types.RenderReasons(got[1].Why)
	require.Len(t, why, 1)
	assert.Equal(t, "matched term: foo (1 times)", why[0])
}

func TestLexicalSearch_CapTieBrokenByUncappedHits(t *testing.T) {
	// Both documents cap at 3 and share a doc length, so the uncapped hit
	// total decides.
	fs := &fakeStore{chunks: []store.LexicalCandidate{
		chunkCandidate("c1", "doc-five", "foo foo foo foo foo", "src/a.ts"),
		chunkCandidate("c2", "doc-three", "foo foo foo 1234567", "src/b.ts"),
	}}
	engine := NewLexicalEngine(fs)

	got, err := engine.Search(context.Background(), LexicalQuery{Terms: []string{"foo"}, K: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc-five", got[0].DocID)
}

func TestLexicalSearch_TieBrokenByShorterDoc(t *testing.T) {
	fs := &fakeStore{chunks: []store.LexicalCandidate{
		chunkCandidate("c1", "doc-long", "foo plus a lot of extra trailing content in this chunk", "src/a.ts"),
		chunkCandidate("c2", "doc-short", "foo", "src/b.ts"),
	}}
	engine := NewLexicalEngine(fs)

	got, err := engine.Search(context.Background(), LexicalQuery{Terms: []string{"foo"}, K: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc-short", got[0].DocID)
}

func TestLexicalSearch_PathFilterAppliedClientSide(t *testing.T) {
	fs := &fakeStore{chunks: []store.LexicalCandidate{
		chunkCandidate("c1", "doc1", "Authentication flow", "src/auth/login.ts"),
		chunkCandidate("c2", "doc2", "Authentication flow", "src/billing/pay.ts"),
	}}
	engine := NewLexicalEngine(fs)

	got, err := engine.Search(context.Background(), LexicalQuery{
		Terms:    []string{"Authentication"},
		PathLike: "auth",
		K:        10,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "doc1", got[0].DocID)
	assert.Contains(t, got[0].SourcePath, "auth")

	why := types.RenderReasons(got[0].Why)
	require.Len(t, why, 2)
	assert.Equal(t, "matched term: Authentication (1 times)", why[0])
	assert.Equal(t, "path filter matched: auth", why[1])
}

func TestLexicalSearch_PathOnlyBaseline(t *testing.T) {
	fs := &fakeStore{chunks: []store.LexicalCandidate{
		chunkCandidate("c1", "doc1", "no relevant tokens here", "src/auth/login.ts"),
	}}
	engine := NewLexicalEngine(fs)

	got, err := engine.Search(context.Background(), LexicalQuery{PathLike: "auth", K: 10})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, PathOnlyBaseline, got[0].Score)
	assert.Equal(t, PathOnlyBaseline, got[0].LexScore)

	why := types.RenderReasons(got[0].Why)
	assert.Contains(t, why, "path-only match baseline applied: 0.25")
}

func TestLexicalSearch_InvalidRegexSkipped(t *testing.T) {
	fs := &fakeStore{chunks: []store.LexicalCandidate{
		chunkCandidate("c1", "doc1", "const api_key = 'secret123'", "src/a.ts"),
	}}
	engine := NewLexicalEngine(fs)

	got, err := engine.Search(context.Background(), LexicalQuery{
		Regexes: []string{"[", `secret\d+`},
		K:       10,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)

	why := types.RenderReasons(got[0].Why)
	require.Len(t, why, 1)
	assert.Equal(t, `matched regex: secret\d+ (1 times)`, why[0])
}

func TestLexicalSearch_DedupesByDocument(t *testing.T) {
	// Two chunks of the same document both match; only the better one
	// survives.
	fs := &fakeStore{chunks: []store.LexicalCandidate{
		chunkCandidate("doc1#L1-5", "doc1", "foo", "src/a.ts"),
		chunkCandidate("doc1#L6-10", "doc1", "foo foo foo", "src/a.ts"),
		chunkCandidate("doc2#L1-5", "doc2", "foo", "src/b.ts"),
	}}
	engine := NewLexicalEngine(fs)

	got, err := engine.Search(context.Background(), LexicalQuery{Terms: []string{"foo"}, K: 10})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "doc1", got[0].DocID)

	// The surviving chunk is the higher scoring one.
	best := got[0].Why[0]
	assert.Equal(t, 3, best.Count)
}

func TestLexicalSearch_StoreErrorSurfaced(t *testing.T) {
	fs := &fakeStore{lexErr: errors.New("disk on fire")}
	engine := NewLexicalEngine(fs)

	_, err := engine.Search(context.Background(), LexicalQuery{Terms: []string{"x"}, K: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestLexicalSearch_ScoreWithinUnitInterval(t *testing.T) {
	fs := &fakeStore{chunks: []store.LexicalCandidate{
		chunkCandidate("c1", "doc1", strings.Repeat("foo bar ", 500), "src/a.ts"),
		chunkCandidate("c2", "doc2", "foo bar", "src/b.ts"),
	}}
	engine := NewLexicalEngine(fs)

	got, err := engine.Search(context.Background(), LexicalQuery{
		Terms:   []string{"foo"},
		Regexes: []string{"bar"},
		K:       10,
	})
	require.NoError(t, err)
	for _, r := range got {
		assert.GreaterOrEqual(t, r.LexScore, 0.0)
		assert.LessOrEqual(t, r.LexScore, 1.0)
	}
}
