package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/benvenker/neumann/internal/chunker"
	"github.com/benvenker/neumann/internal/config"
	"github.com/benvenker/neumann/internal/embedder"
	"github.com/benvenker/neumann/internal/indexer"
	"github.com/benvenker/neumann/internal/search"
	"github.com/benvenker/neumann/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "neumann"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	store    *store.SQLiteStore
	indexer  *indexer.Indexer
	hybrid   *search.HybridEngine
	lexical  *search.LexicalEngine
	semantic *search.SemanticEngine
	embedder embedder.Embedder // nil without an API key
	cfg      *config.Config
	logger   *slog.Logger
}

// NewServer creates a new MCP server instance. Without an OpenAI key the
// semantic channel is disabled: indexing still writes chunks and lexical
// search works, but summary embedding and semantic queries report an error.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	dbPath, err := expandHome(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	// One embedding client shared by the indexer and the semantic engine,
	// so summary vectors cached during ingest serve later queries.
	var emb embedder.Embedder
	if cfg.HasOpenAIKey() {
		client, err := embedder.FromConfig(cfg)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		emb = client
	}

	chk, err := chunker.New(cfg.LinesPerChunk, cfg.Overlap)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	idxOpts := []indexer.Option{indexer.WithLogger(logger)}
	if emb != nil {
		idxOpts = append(idxOpts, indexer.WithEmbedder(emb))
	}
	idx := indexer.New(chk, st, idxOpts...)

	lexEngine := search.NewLexicalEngine(st)
	var semEngine *search.SemanticEngine
	if emb != nil {
		semEngine = search.NewSemanticEngine(st, emb)
	}

	var hybrid *search.HybridEngine
	if semEngine != nil {
		hybrid = search.NewHybridEngine(semEngine, lexEngine)
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion),
		store:    st,
		indexer:  idx,
		hybrid:   hybrid,
		lexical:  lexEngine,
		semantic: semEngine,
		embedder: emb,
		cfg:      cfg,
		logger:   logger,
	}
	s.registerTools()
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	defer s.close()
	s.logger.Info("serving on stdio",
		"db_path", s.cfg.DBPath,
		"semantic_enabled", s.embedder != nil)
	return server.ServeStdio(s.mcp)
}

func (s *Server) close() {
	if s.embedder != nil {
		_ = s.embedder.Close()
	}
	_ = s.store.Close()
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexDocumentsTool(), s.handleIndexDocuments)
	s.mcp.AddTool(searchTool(), s.handleSearch)
	s.mcp.AddTool(lexicalSearchTool(), s.handleLexicalSearch)
	s.mcp.AddTool(semanticSearchTool(), s.handleSemanticSearch)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

// expandHome resolves a leading ~/ in a path against the user's home
// directory.
func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") && path != "~" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
