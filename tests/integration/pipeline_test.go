package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/benvenker/neumann/internal/chunker"
	"github.com/benvenker/neumann/internal/indexer"
	"github.com/benvenker/neumann/internal/search"
	"github.com/benvenker/neumann/internal/store"
)

const testDimension = 8

// Summary bodies the fixtures carry; vectors are pinned per body so the
// semantic ranking in these tests is exact.
const (
	retrySummaryBody   = "Guide to retrying failed requests with exponential backoff and jitter."
	limiterSummaryBody = "Token bucket rate limiter implementation notes."
)

// PipelineTestSuite exercises the full flow: ingest fixture files, then
// search them through every channel.
type PipelineTestSuite struct {
	suite.Suite
	ctx      context.Context
	store    *store.SQLiteStore
	embedder *MockEmbedder
	indexer  *indexer.Indexer
	lexical  *search.LexicalEngine
	semantic *search.SemanticEngine
	hybrid   *search.HybridEngine
	inputDir string
	outDir   string
}

func TestPipelineSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}

func (s *PipelineTestSuite) SetupTest() {
	s.ctx = context.Background()

	st, err := store.NewSQLiteStore(filepath.Join(s.T().TempDir(), "index.db"))
	s.Require().NoError(err)
	s.store = st

	s.embedder = NewMockEmbedder(testDimension)
	s.embedder.SetVector(retrySummaryBody, []float32{1, 0, 0, 0, 0, 0, 0, 0})
	s.embedder.SetVector(limiterSummaryBody, []float32{0, 1, 0, 0, 0, 0, 0, 0})
	s.embedder.SetVector("how do retries back off", []float32{0.9, 0.1, 0, 0, 0, 0, 0, 0})

	chk, err := chunker.New(40, 5)
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.indexer = indexer.New(chk, st,
		indexer.WithEmbedder(s.embedder),
		indexer.WithLogger(logger),
		indexer.WithWorkers(2))

	s.lexical = search.NewLexicalEngine(st)
	s.semantic = search.NewSemanticEngine(st, s.embedder)
	s.hybrid = search.NewHybridEngine(s.semantic, s.lexical)

	s.writeFixtures()
}

func (s *PipelineTestSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

// writeFixtures lays out an input tree plus the renderer and summarizer
// artifacts the pipeline reads back.
func (s *PipelineTestSuite) writeFixtures() {
	s.inputDir = s.T().TempDir()
	s.outDir = filepath.Join(s.inputDir, "out")

	s.writeFile(filepath.Join("docs", "retry.md"), strings.Join([]string{
		"# Retry Guide",
		"",
		"Clients should retry failed requests with exponential backoff.",
		"Add jitter so concurrent clients do not retry in lockstep.",
		"Cap the backoff at sixty seconds.",
	}, "\n"))
	s.writeFile(filepath.Join("src", "limiter.go"), strings.Join([]string{
		"package limiter",
		"",
		"// Allow reports whether a request may proceed.",
		"func Allow(tokens int) bool {",
		"\treturn tokens > 0",
		"}",
	}, "\n"))
	// Unsupported extension, must be skipped by discovery
	s.writeFile("notes.txt", "not ingested")

	s.writeArtifact("docs__retry.md", "docs/retry.md", "markdown", retrySummaryBody,
		[]string{"http://127.0.0.1:8000/docs__retry.md/page_0001.webp",
			"http://127.0.0.1:8000/docs__retry.md/page_0002.webp"})
	s.writeArtifact("src__limiter.go", "src/limiter.go", "go", limiterSummaryBody, nil)
}

func (s *PipelineTestSuite) writeFile(rel, content string) {
	path := filepath.Join(s.inputDir, rel)
	s.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o755))
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o644))
}

func (s *PipelineTestSuite) writeArtifact(docID, sourcePath, language, body string, pageURIs []string) {
	docDir := filepath.Join(s.outDir, docID)
	s.Require().NoError(os.MkdirAll(docDir, 0o755))

	summary := fmt.Sprintf(`---
doc_id: %s
source_path: %s
language: %s
key_topics:
  - reliability
last_updated: "2025-05-01T00:00:00Z"
---

%s
`, docID, sourcePath, language, body)
	s.Require().NoError(os.WriteFile(filepath.Join(docDir, "summary.summary.md"), []byte(summary), 0o644))

	if len(pageURIs) > 0 {
		pagesDir := filepath.Join(docDir, "pages")
		s.Require().NoError(os.MkdirAll(pagesDir, 0o755))
		var lines []string
		for i, uri := range pageURIs {
			lines = append(lines, fmt.Sprintf(`{"page": %d, "uri": %q}`, i+1, uri))
		}
		manifest := strings.Join(lines, "\n") + "\n"
		s.Require().NoError(os.WriteFile(filepath.Join(pagesDir, "pages.jsonl"), []byte(manifest), 0o644))
	}
}

func (s *PipelineTestSuite) ingest() *indexer.Statistics {
	stats, err := s.indexer.Ingest(s.ctx, s.inputDir, s.outDir)
	s.Require().NoError(err)
	return stats
}

func (s *PipelineTestSuite) TestIngestStatistics() {
	stats := s.ingest()

	s.Equal(2, stats.FilesIndexed, "txt file is not a supported source")
	s.Equal(0, stats.FilesFailed)
	s.Equal(2, stats.SummariesIndexed)
	s.Equal(2, stats.ChunksCreated, "both fixtures fit in a single chunk")
	s.Empty(stats.ErrorMessages)

	summaries, chunks, err := s.store.Counts(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, summaries)
	s.Equal(2, chunks)
}

func (s *PipelineTestSuite) TestIngestIsIdempotent() {
	s.ingest()
	s.ingest()

	summaries, chunks, err := s.store.Counts(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, summaries, "re-ingesting must replace, not duplicate")
	s.Equal(2, chunks)
}

func (s *PipelineTestSuite) TestLexicalSearchAfterIngest() {
	s.ingest()

	results, err := s.lexical.Search(s.ctx, search.LexicalQuery{
		Terms: []string{"backoff"},
		K:     10,
	})
	s.Require().NoError(err)
	s.Require().Len(results, 1)

	r := results[0]
	s.Equal("docs__retry.md", r.DocID)
	s.Equal("docs/retry.md", r.SourcePath)
	s.Equal(1, r.LineStart)
	s.Equal(5, r.LineEnd)
	s.Len(r.PageURIs, 2, "page manifest URIs flow through to results")
	s.Require().Len(r.Why, 1)
	s.Equal("matched term: backoff (2 times)", r.Why[0].String())
}

func (s *PipelineTestSuite) TestSemanticSearchAfterIngest() {
	s.ingest()

	results, err := s.semantic.Search(s.ctx, "how do retries back off", 10)
	s.Require().NoError(err)
	s.Require().Len(results, 2)

	s.Equal("docs__retry.md", results[0].DocID, "retry guide vector is closest to the query")
	s.Equal("src__limiter.go", results[1].DocID)
	s.Greater(results[0].SemScore, results[1].SemScore)

	s.Equal("reliability", results[0].Metadata.KeyTopics[0])
	s.Len(results[0].PageURIs, 2, "manifest URIs override summary front matter")
}

func (s *PipelineTestSuite) TestHybridSearchMergesChannels() {
	s.ingest()

	results, err := s.hybrid.Search(s.ctx, search.HybridQuery{
		Query:     "how do retries back off",
		Terms:     []string{"backoff"},
		K:         10,
		WSemantic: 0.6,
		WLexical:  0.4,
	})
	s.Require().NoError(err)
	s.Require().NotEmpty(results)

	top := results[0]
	s.Equal("docs__retry.md", top.DocID)
	s.Positive(top.SemScore)
	s.Positive(top.LexScore)
	s.Equal(1, top.LineStart, "lexical channel supplies the line range")

	// Semantic explanation first, then the lexical ones
	s.Require().GreaterOrEqual(len(top.Why), 2)
	s.Contains(top.Why[0].String(), "semantic match for")
	s.Contains(top.Why[1].String(), "matched term: backoff")
}

func (s *PipelineTestSuite) TestHybridLexicalOnlyWeights() {
	s.ingest()
	before := s.embedder.Calls()

	results, err := s.hybrid.Search(s.ctx, search.HybridQuery{
		Terms:    []string{"backoff"},
		K:        10,
		WLexical: 1.0,
	})
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal("docs__retry.md", results[0].DocID)
	s.Zero(results[0].SemScore)
	s.Equal(before, s.embedder.Calls(), "no query means the semantic channel stays idle")
}
