package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/benvenker/neumann/pkg/types"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore creates a new SQLite store instance and applies migrations
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertSummary creates or replaces the single live summary for a document.
func (s *SQLiteStore) UpsertSummary(ctx context.Context, summary *types.DocumentSummary) error {
	if err := summary.Validate(); err != nil {
		return fmt.Errorf("invalid summary: %w", err)
	}

	metadataJSON, err := json.Marshal(encodeSummaryMetadata(summary.Metadata))
	if err != nil {
		return fmt.Errorf("failed to encode summary metadata: %w", err)
	}

	var vectorBlob []byte
	var dimension sql.NullInt64
	if len(summary.Embedding) > 0 {
		vectorBlob = serializeVector(summary.Embedding)
		dimension = sql.NullInt64{Int64: int64(len(summary.Embedding)), Valid: true}
	}

	query := `
		INSERT INTO summaries (doc_id, summary_text, vector, dimension, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			summary_text = excluded.summary_text,
			vector = excluded.vector,
			dimension = excluded.dimension,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	if _, err := s.db.ExecContext(ctx, query,
		summary.DocID, summary.SummaryText, vectorBlob, dimension, string(metadataJSON), now, now); err != nil {
		return fmt.Errorf("failed to upsert summary %s: %w", summary.DocID, err)
	}
	return nil
}

// UpsertChunks replaces all chunks of the affected documents with the given
// set. Deleting by doc_id first keeps stale windows from a previous ingest of
// the same document out of the index.
func (s *SQLiteStore) UpsertChunks(ctx context.Context, chunks []types.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return fmt.Errorf("invalid chunk %s: %w", chunks[i].ChunkID, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	seen := make(map[string]bool)
	for i := range chunks {
		docID := chunks[i].DocID
		if seen[docID] {
			continue
		}
		seen[docID] = true
		if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", docID); err != nil {
			return fmt.Errorf("failed to supersede chunks for %s: %w", docID, err)
		}
	}

	insert := `
		INSERT INTO chunks (chunk_id, doc_id, content, source_path, lang, line_start, line_end, page_uris)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range chunks {
		c := &chunks[i]
		if _, err := stmt.ExecContext(ctx,
			c.ChunkID, c.DocID, c.Text, c.SourcePath, c.Language,
			c.LineStart, c.LineEnd, joinList(c.PageURIs)); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ChunkID, err)
		}
	}

	return tx.Commit()
}

// QuerySemantic returns the k nearest summaries by cosine distance, closest
// first. Distances stay raw; score normalization is the caller's concern.
func (s *SQLiteStore) QuerySemantic(ctx context.Context, vector []float32, k int) ([]SemanticCandidate, error) {
	if k <= 0 || len(vector) == 0 {
		return []SemanticCandidate{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, summary_text, vector, metadata
		FROM summaries
		WHERE vector IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]SemanticCandidate, 0, k)
	for rows.Next() {
		var docID, summaryText, metadataJSON string
		var vectorBlob []byte
		if err := rows.Scan(&docID, &summaryText, &vectorBlob, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan summary: %w", err)
		}

		stored := deserializeVector(vectorBlob)
		if len(stored) != len(vector) {
			continue // Dimension mismatch, skip
		}

		var flat map[string]string
		if err := json.Unmarshal([]byte(metadataJSON), &flat); err != nil {
			return nil, fmt.Errorf("corrupt metadata for summary %s: %w", docID, err)
		}

		candidates = append(candidates, SemanticCandidate{
			DocID:       docID,
			SummaryText: summaryText,
			Distance:    cosineDistance(vector, stored),
			Metadata:    decodeSummaryMetadata(flat),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Distance != candidates[j].Distance {
			return candidates[i].Distance < candidates[j].Distance
		}
		return candidates[i].DocID < candidates[j].DocID
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

// QueryLexical returns chunks satisfying the predicates in stable chunk-id
// order. Terms are pushed down as AND-ed substring predicates; regex patterns
// are compiled here and applied while scanning (a chunk must match at least
// one when any compile). Patterns that fail to compile are skipped.
func (s *SQLiteStore) QueryLexical(ctx context.Context, pred LexicalPredicates) ([]LexicalCandidate, error) {
	if pred.K <= 0 {
		return []LexicalCandidate{}, nil
	}

	patterns := compilePatterns(pred.Regexes)

	// Invalid patterns are treated as never given. With no body predicate
	// left, the only reason to scan is a path-only pass by the caller.
	if len(pred.Terms) == 0 && len(patterns) == 0 && !pred.PathFiltered {
		return []LexicalCandidate{}, nil
	}

	limit := pred.K
	if pred.PathFiltered {
		limit = pred.K * OverfetchMultiplier
	}

	query := `
		SELECT chunk_id, doc_id, content, source_path, lang, line_start, line_end, page_uris
		FROM chunks
		WHERE 1=1
	`
	args := make([]interface{}, 0, len(pred.Terms))
	for _, term := range pred.Terms {
		query += " AND instr(content, ?) > 0"
		args = append(args, term)
	}
	query += " ORDER BY chunk_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]LexicalCandidate, 0, limit)
	for rows.Next() {
		var c LexicalCandidate
		var pageURIs string
		if err := rows.Scan(&c.ChunkID, &c.DocID, &c.Text, &c.SourcePath, &c.Language,
			&c.LineStart, &c.LineEnd, &pageURIs); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}

		if len(patterns) > 0 && !anyPatternMatches(patterns, c.Text) {
			continue
		}

		c.PageURIs = splitList(pageURIs)
		c.DocLen = len(c.Text)
		candidates = append(candidates, c)
		if len(candidates) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return candidates, nil
}

// Counts reports the number of live summaries and chunks.
func (s *SQLiteStore) Counts(ctx context.Context) (summaries, chunks int, err error) {
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM summaries").Scan(&summaries); err != nil {
		return 0, 0, fmt.Errorf("failed to count summaries: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&chunks); err != nil {
		return 0, 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return summaries, chunks, nil
}

// GetSummary retrieves a single summary by document id.
func (s *SQLiteStore) GetSummary(ctx context.Context, docID string) (*types.DocumentSummary, error) {
	var summaryText, metadataJSON string
	var vectorBlob []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT summary_text, vector, metadata FROM summaries WHERE doc_id = ?
	`, docID).Scan(&summaryText, &vectorBlob, &metadataJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var flat map[string]string
	if err := json.Unmarshal([]byte(metadataJSON), &flat); err != nil {
		return nil, fmt.Errorf("corrupt metadata for summary %s: %w", docID, err)
	}

	return &types.DocumentSummary{
		DocID:       docID,
		SummaryText: summaryText,
		Embedding:   deserializeVector(vectorBlob),
		Metadata:    decodeSummaryMetadata(flat),
	}, nil
}

func compilePatterns(exprs []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			continue // Invalid patterns are skipped, not fatal
		}
		patterns = append(patterns, re)
	}
	return patterns
}

func anyPatternMatches(patterns []*regexp.Regexp, text string) bool {
	for _, re := range patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
