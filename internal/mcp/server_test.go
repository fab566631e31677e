package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benvenker/neumann/internal/config"
	"github.com/benvenker/neumann/pkg/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DBPath:         filepath.Join(t.TempDir(), "index.db"),
		EmbeddingModel: config.DefaultEmbeddingModel,
		LinesPerChunk:  config.DefaultLinesPerChunk,
		Overlap:        config.DefaultOverlap,
		AssetBaseURL:   config.DefaultAssetBaseURL,
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := NewServer(testConfig(t), logger)
	require.NoError(t, err)
	t.Cleanup(s.close)
	return s
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool result should be text content")
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func TestNewServer_WithoutAPIKey(t *testing.T) {
	s := newTestServer(t)

	assert.NotNil(t, s.store)
	assert.NotNil(t, s.indexer)
	assert.NotNil(t, s.lexical, "lexical search works without an embedding provider")
	assert.Nil(t, s.embedder)
	assert.Nil(t, s.semantic, "semantic engine requires an API key")
	assert.Nil(t, s.hybrid, "hybrid engine requires an API key")
}

func TestNewServer_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Overlap = cfg.LinesPerChunk // Overlap must be strictly smaller

	_, err := NewServer(cfg, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestHandleSearch_SemanticDisabled(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSearch(context.Background(), callRequest("search", map[string]interface{}{
		"query": "anything",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeSemanticDisabled, mcpErr.Code)
}

func TestHandleSemanticSearch_SemanticDisabled(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleSemanticSearch(context.Background(), callRequest("semantic_search", map[string]interface{}{
		"query": "anything",
	}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeSemanticDisabled, mcpErr.Code)
}

func TestHandleLexicalSearch_EndToEnd(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	chunks := []types.Chunk{
		{
			ChunkID:    "doc-a#L1-10",
			DocID:      "doc-a",
			Text:       "retry with exponential backoff on 429 responses",
			LineStart:  1,
			LineEnd:    10,
			SourcePath: "docs/retry.md",
			Language:   "markdown",
		},
		{
			ChunkID:    "doc-b#L1-10",
			DocID:      "doc-b",
			Text:       "unrelated content about chunking",
			LineStart:  1,
			LineEnd:    10,
			SourcePath: "docs/chunking.md",
			Language:   "markdown",
		},
	}
	require.NoError(t, s.store.UpsertChunks(ctx, chunks))

	result, err := s.handleLexicalSearch(ctx, callRequest("lexical_search", map[string]interface{}{
		"must_terms": []interface{}{"backoff"},
		"k":          float64(5),
	}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.Equal(t, float64(1), payload["count"])

	results, ok := payload["results"].([]interface{})
	require.True(t, ok)
	require.Len(t, results, 1)

	row, ok := results[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "doc-a", row["doc_id"])
	assert.Equal(t, "docs/retry.md", row["source_path"])
	assert.Equal(t, float64(1), row["line_start"])
	assert.Equal(t, float64(10), row["line_end"])

	why, ok := row["why"].([]interface{})
	require.True(t, ok)
	require.Len(t, why, 1)
	assert.Equal(t, "matched term: backoff (1 times)", why[0])
}

func TestHandleLexicalSearch_NoFilter(t *testing.T) {
	s := newTestServer(t)

	_, err := s.handleLexicalSearch(context.Background(), callRequest("lexical_search", map[string]interface{}{}))
	require.Error(t, err)

	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
}

func TestHandleLexicalSearch_KOutOfRange(t *testing.T) {
	s := newTestServer(t)

	for _, k := range []float64{0, 101, -3} {
		_, err := s.handleLexicalSearch(context.Background(), callRequest("lexical_search", map[string]interface{}{
			"must_terms": []interface{}{"x"},
			"k":          k,
		}))
		require.Error(t, err)

		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
	}
}

func TestHandleIndexDocuments_InvalidPath(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing input_dir", map[string]interface{}{}},
		{"empty input_dir", map[string]interface{}{"input_dir": ""}},
		{"relative input_dir", map[string]interface{}{"input_dir": "relative/path"}},
		{"nonexistent input_dir", map[string]interface{}{"input_dir": "/definitely/not/a/real/path"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.handleIndexDocuments(context.Background(), callRequest("index_documents", tt.args))
			require.Error(t, err)

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
		})
	}
}

func TestHandleGetStatus(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.store.UpsertChunks(ctx, []types.Chunk{{
		ChunkID:    "doc-a#L1-5",
		DocID:      "doc-a",
		Text:       "status check fixture",
		LineStart:  1,
		LineEnd:    5,
		SourcePath: "a.md",
	}}))

	result, err := s.handleGetStatus(ctx, callRequest("get_status", map[string]interface{}{}))
	require.NoError(t, err)

	payload := resultJSON(t, result)
	assert.Equal(t, ServerVersion, payload["server_version"])
	assert.Equal(t, float64(0), payload["summaries"])
	assert.Equal(t, float64(1), payload["chunks"])
	assert.Equal(t, false, payload["semantic_enabled"])
	assert.NotContains(t, payload, "embedding_model")
}

func TestExpandHome(t *testing.T) {
	got, err := expandHome("/absolute/path.db")
	require.NoError(t, err)
	assert.Equal(t, "/absolute/path.db", got)

	got, err = expandHome("~/data/index.db")
	require.NoError(t, err)
	assert.False(t, filepath.IsAbs("~"), "tilde itself is not absolute")
	assert.True(t, filepath.IsAbs(got), "expanded path should be absolute")
	assert.Contains(t, got, filepath.Join("data", "index.db"))
}
