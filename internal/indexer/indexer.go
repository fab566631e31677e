package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/benvenker/neumann/internal/chunker"
	"github.com/benvenker/neumann/internal/embedder"
	"github.com/benvenker/neumann/internal/store"
)

// supportedExtensions lists the source file types the pipeline ingests.
var supportedExtensions = map[string]bool{
	".md": true, ".markdown": true, ".mdx": true,
	".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".py": true, ".go": true, ".rs": true, ".java": true,
	".c": true, ".cpp": true, ".h": true, ".hpp": true, ".cs": true,
}

// Indexer coordinates the ingestion pipeline: discover -> chunk -> store,
// plus summary embedding when a summary file and an embedding client are
// available.
type Indexer struct {
	chunker  *chunker.Chunker
	store    store.Store
	embedder embedder.Embedder // nil disables the semantic channel
	logger   *slog.Logger
	workers  int
}

// Statistics contains statistics about one ingestion run
type Statistics struct {
	FilesIndexed     int
	FilesFailed      int
	ChunksCreated    int
	SummariesIndexed int
	SummariesSkipped int
	Duration         time.Duration
	ErrorMessages    []string
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithEmbedder enables summary embedding during ingestion.
func WithEmbedder(e embedder.Embedder) Option {
	return func(idx *Indexer) { idx.embedder = e }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(idx *Indexer) { idx.logger = logger }
}

// WithWorkers sets the concurrency limit for per-file ingestion.
func WithWorkers(n int) Option {
	return func(idx *Indexer) {
		if n > 0 {
			idx.workers = n
		}
	}
}

// New creates a new Indexer instance
func New(c *chunker.Chunker, s store.Store, opts ...Option) *Indexer {
	idx := &Indexer{
		chunker: c,
		store:   s,
		logger:  slog.Default(),
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Ingest processes every supported file under inputDir. The renderer and
// summarizer collaborators write their artifacts under outDir keyed by
// document id; this pipeline reads them back (page manifests, summary files)
// but never generates them. Per-file failures are recorded and skipped so one
// broken file cannot sink a whole run.
func (idx *Indexer) Ingest(ctx context.Context, inputDir, outDir string) (*Statistics, error) {
	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	sources, err := idx.discoverSources(inputDir, outDir)
	if err != nil {
		return nil, fmt.Errorf("failed to discover sources: %w", err)
	}
	idx.logger.Info("starting ingest",
		"input_dir", inputDir,
		"files", len(sources),
		"workers", idx.workers)

	var (
		indexed          int32
		failed           int32
		chunksCreated    int32
		summariesIndexed int32
		summariesSkipped int32
	)
	var mu sync.Mutex // Protects stats.ErrorMessages

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for _, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := idx.ingestFile(gctx, src, inputDir, outDir)
			if err != nil {
				atomic.AddInt32(&failed, 1)
				mu.Lock()
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", src, err))
				mu.Unlock()
				idx.logger.Warn("failed to ingest file", "path", src, "error", err)
				return nil
			}
			atomic.AddInt32(&indexed, 1)
			atomic.AddInt32(&chunksCreated, int32(res.chunks))
			if res.summaryIndexed {
				atomic.AddInt32(&summariesIndexed, 1)
			} else {
				atomic.AddInt32(&summariesSkipped, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.FilesIndexed = int(indexed)
	stats.FilesFailed = int(failed)
	stats.ChunksCreated = int(chunksCreated)
	stats.SummariesIndexed = int(summariesIndexed)
	stats.SummariesSkipped = int(summariesSkipped)
	stats.Duration = time.Since(startTime)

	idx.logger.Info("ingest complete",
		"files_indexed", stats.FilesIndexed,
		"files_failed", stats.FilesFailed,
		"chunks", stats.ChunksCreated,
		"summaries", stats.SummariesIndexed,
		"duration", stats.Duration)
	return stats, nil
}

// fileResult tallies one file's contribution to the run statistics.
type fileResult struct {
	chunks         int
	summaryIndexed bool
}

// ingestFile runs the full pipeline for a single source file.
func (idx *Indexer) ingestFile(ctx context.Context, srcPath, inputDir, outDir string) (*fileResult, error) {
	docID := chunker.MakeDocID(srcPath, inputDir)

	content, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	pageURIs := chunker.LoadPageURIs(filepath.Join(outDir, docID, "pages", "pages.jsonl"))

	relPath, err := filepath.Rel(inputDir, srcPath)
	if err != nil {
		relPath = srcPath
	}
	relPath = filepath.ToSlash(relPath)

	chunks := idx.chunker.Chunk(chunker.SourceDocument{
		DocID:      docID,
		SourcePath: relPath,
		Language:   chunker.DetectLanguage(srcPath),
		Text:       string(content),
		PageURIs:   pageURIs,
	})
	if err := idx.store.UpsertChunks(ctx, chunks); err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	res := &fileResult{chunks: len(chunks)}

	indexed, err := idx.ingestSummary(ctx, docID, outDir, pageURIs)
	if err != nil {
		return nil, err
	}
	res.summaryIndexed = indexed
	return res, nil
}

// ingestSummary embeds and stores the summarizer's output for one document,
// when it exists and an embedding client is configured.
func (idx *Indexer) ingestSummary(ctx context.Context, docID, outDir string, pageURIs []string) (bool, error) {
	if idx.embedder == nil {
		return false, nil
	}

	summaryPath := filepath.Join(outDir, docID, "summary.summary.md")
	summary, err := LoadSummaryFile(summaryPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load summary: %w", err)
	}

	// The rendered page URIs always come from the manifest, not from
	// whatever the summarizer recorded.
	summary.DocID = docID
	summary.Metadata.DocID = docID
	summary.Metadata.PageURIs = pageURIs

	vectors, err := idx.embedder.EmbedTexts(ctx, []string{summary.SummaryText})
	if err != nil {
		return false, fmt.Errorf("failed to embed summary: %w", err)
	}
	if len(vectors) != 1 {
		return false, fmt.Errorf("expected 1 summary vector, got %d", len(vectors))
	}
	summary.Embedding = vectors[0]

	if err := idx.store.UpsertSummary(ctx, summary); err != nil {
		return false, fmt.Errorf("failed to store summary: %w", err)
	}
	return true, nil
}

// discoverSources finds all supported files under root, skipping hidden
// directories and the artifact tree, which by default nests inside root.
func (idx *Indexer) discoverSources(root, outDir string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path == outDir {
				return filepath.SkipDir
			}
			if strings.HasPrefix(info.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if supportedExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
