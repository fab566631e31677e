package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/benvenker/neumann/internal/search"
	"github.com/benvenker/neumann/internal/store"
	"github.com/benvenker/neumann/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams    = -32602 // Invalid method parameters
	ErrorCodeInternalError    = -32603 // Internal JSON-RPC error
	ErrorCodeSemanticDisabled = -32001 // Embedding provider not configured
	ErrorCodeEmptyQuery       = -32002 // Query parameter is empty
	ErrorCodeNoChannel        = -32003 // Neither query nor lexical filters given
	ErrorCodeInvalidWeights   = -32004 // Channel weights out of range or zero sum
)

// Default search parameters
const (
	DefaultK         = 10
	MaxK             = 100
	DefaultWSemantic = 0.6
	DefaultWLexical  = 0.4
)

// handleIndexDocuments handles the index_documents tool invocation
func (s *Server) handleIndexDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	inputDir, ok := args["input_dir"].(string)
	if !ok || inputDir == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "input_dir parameter is required", map[string]interface{}{
			"param":  "input_dir",
			"reason": "missing or empty",
		})
	}
	if err := validateDir(inputDir); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid input_dir", map[string]interface{}{
			"param":  "input_dir",
			"reason": err.Error(),
		})
	}

	outDir := getStringDefault(args, "out_dir", filepath.Join(inputDir, "out"))

	stats, err := s.indexer.Ingest(ctx, inputDir, outDir)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Indexed content changed underneath any cached queries
	if s.hybrid != nil {
		s.hybrid.InvalidateCache()
	}

	response := map[string]interface{}{
		"files_indexed":     stats.FilesIndexed,
		"files_failed":      stats.FilesFailed,
		"chunks_created":    stats.ChunksCreated,
		"summaries_indexed": stats.SummariesIndexed,
		"summaries_skipped": stats.SummariesSkipped,
		"duration_ms":       stats.Duration.Milliseconds(),
	}
	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearch handles the hybrid search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	if s.hybrid == nil {
		return nil, newMCPError(ErrorCodeSemanticDisabled,
			"hybrid search requires an embedding provider; set OPENAI_API_KEY or use lexical_search", nil)
	}

	k := getIntDefault(args, "k", DefaultK)
	if k < 1 || k > MaxK {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("k must be between 1 and %d", MaxK), map[string]interface{}{
			"param": "k",
			"value": k,
		})
	}

	q := search.HybridQuery{
		Query:     getStringDefault(args, "query", ""),
		Terms:     getStringSlice(args, "must_terms"),
		Regexes:   getStringSlice(args, "regexes"),
		PathLike:  getStringDefault(args, "path_like", ""),
		K:         k,
		WSemantic: getFloatDefault(args, "w_semantic", DefaultWSemantic),
		WLexical:  getFloatDefault(args, "w_lexical", DefaultWLexical),
		UseCache:  true,
	}

	results, err := s.hybrid.Search(ctx, q)
	if err != nil {
		return nil, searchError(err)
	}

	response := map[string]interface{}{
		"count":   len(results),
		"results": renderResults(results),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleLexicalSearch handles the lexical_search tool invocation
func (s *Server) handleLexicalSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	k := getIntDefault(args, "k", DefaultK)
	if k < 1 || k > MaxK {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("k must be between 1 and %d", MaxK), map[string]interface{}{
			"param": "k",
			"value": k,
		})
	}

	q := search.LexicalQuery{
		Terms:    getStringSlice(args, "must_terms"),
		Regexes:  getStringSlice(args, "regexes"),
		PathLike: getStringDefault(args, "path_like", ""),
		K:        k,
	}

	results, err := s.lexical.Search(ctx, q)
	if err != nil {
		return nil, searchError(err)
	}

	response := map[string]interface{}{
		"count":   len(results),
		"results": renderResults(results),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSemanticSearch handles the semantic_search tool invocation
func (s *Server) handleSemanticSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	if s.semantic == nil {
		return nil, newMCPError(ErrorCodeSemanticDisabled,
			"semantic search requires an embedding provider; set OPENAI_API_KEY", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	k := getIntDefault(args, "k", DefaultK)
	if k < 1 || k > MaxK {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("k must be between 1 and %d", MaxK), map[string]interface{}{
			"param": "k",
			"value": k,
		})
	}

	results, err := s.semantic.Search(ctx, query, k)
	if err != nil {
		return nil, searchError(err)
	}

	response := map[string]interface{}{
		"count":   len(results),
		"results": renderResults(results),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summaries, chunks, err := s.store.Counts(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read index counts", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"server_version":   ServerVersion,
		"db_path":          s.cfg.DBPath,
		"sqlite_driver":    store.DriverName,
		"sqlite_build":     store.BuildMode,
		"summaries":        summaries,
		"chunks":           chunks,
		"lines_per_chunk":  s.cfg.LinesPerChunk,
		"overlap":          s.cfg.Overlap,
		"semantic_enabled": s.embedder != nil,
	}
	if s.embedder != nil {
		response["embedding_model"] = s.embedder.Model()
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// searchError maps engine sentinel errors to MCP error codes
func searchError(err error) error {
	switch {
	case errors.Is(err, search.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query cannot be empty", nil)
	case errors.Is(err, search.ErrNoFilterProvided):
		return newMCPError(ErrorCodeInvalidParams,
			"at least one of must_terms, regexes, or path_like is required", nil)
	case errors.Is(err, search.ErrNoChannelProvided):
		return newMCPError(ErrorCodeNoChannel,
			"provide a query for semantic search, lexical filters, or both", nil)
	case errors.Is(err, search.ErrInvalidWeights):
		return newMCPError(ErrorCodeInvalidWeights,
			"weights must lie in [0,1] and sum to a positive value", nil)
	default:
		return newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// renderResults converts ranked results into the wire representation
func renderResults(results []types.SearchResult) []interface{} {
	out := make([]interface{}, 0, len(results))
	for _, r := range results {
		row := map[string]interface{}{
			"doc_id":      r.DocID,
			"source_path": r.SourcePath,
			"score":       r.Score,
			"sem_score":   r.SemScore,
			"lex_score":   r.LexScore,
			"rrf_score":   r.RRFScore,
			"why":         types.RenderReasons(r.Why),
		}
		if r.LineStart > 0 {
			row["line_start"] = r.LineStart
			row["line_end"] = r.LineEnd
		}
		if len(r.PageURIs) > 0 {
			row["page_uris"] = r.PageURIs
		}
		if meta := renderMetadata(r.Metadata); len(meta) > 0 {
			row["metadata"] = meta
		}
		out = append(out, row)
	}
	return out
}

// renderMetadata flattens summary metadata, omitting empty fields
func renderMetadata(m types.SummaryMetadata) map[string]interface{} {
	meta := make(map[string]interface{})
	if m.Language != "" {
		meta["lang"] = m.Language
	}
	if !m.LastUpdated.IsZero() {
		meta["last_updated"] = m.LastUpdated.UTC().Format(time.RFC3339)
	}
	if len(m.ProductTags) > 0 {
		meta["product_tags"] = m.ProductTags
	}
	if len(m.KeyTopics) > 0 {
		meta["key_topics"] = m.KeyTopics
	}
	if len(m.APISymbols) > 0 {
		meta["api_symbols"] = m.APISymbols
	}
	if len(m.RelatedFiles) > 0 {
		meta["related_files"] = m.RelatedFiles
	}
	if len(m.SuggestedQueries) > 0 {
		meta["suggested_queries"] = m.SuggestedQueries
	}
	return meta
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validateDir checks that a path exists and is a readable directory
func validateDir(path string) error {
	if !filepath.IsAbs(path) {
		return errors.New("path must be absolute")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return errors.New("path does not exist")
	}
	if err != nil {
		return errors.New("path is not readable")
	}
	if !info.IsDir() {
		return errors.New("path is not a directory")
	}
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	if val, ok := args[key].(int); ok {
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter, tolerating the
// []interface{} shape JSON decoding produces
func getStringSlice(args map[string]interface{}, key string) []string {
	switch val := args[key].(type) {
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
