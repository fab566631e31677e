package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexDocumentsTool returns the tool definition for index_documents
func indexDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_documents",
		Description: "Ingest a directory of documentation and code files into the search index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"input_dir": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory of source files to ingest",
				},
				"out_dir": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the renderer/summarizer output directory (page manifests and summary files). Defaults to input_dir/out",
				},
			},
			Required: []string{"input_dir"},
		},
	}
}

// searchTool returns the tool definition for the hybrid search tool
func searchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search",
		Description: "Hybrid search: semantic similarity over document summaries fused with exact lexical matching over chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query for the semantic channel",
				},
				"must_terms": map[string]interface{}{
					"type":        "array",
					"description": "Exact substrings that must all appear in a chunk (lexical channel)",
					"items":       map[string]interface{}{"type": "string"},
				},
				"regexes": map[string]interface{}{
					"type":        "array",
					"description": "Regex patterns, any of which must match (lexical channel); invalid patterns are skipped",
					"items":       map[string]interface{}{"type": "string"},
				},
				"path_like": map[string]interface{}{
					"type":        "string",
					"description": "Case-insensitive substring filter on source path",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"w_semantic": map[string]interface{}{
					"type":        "number",
					"description": "Semantic channel weight in [0,1]",
					"default":     0.6,
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"w_lexical": map[string]interface{}{
					"type":        "number",
					"description": "Lexical channel weight in [0,1]",
					"default":     0.4,
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
		},
	}
}

// lexicalSearchTool returns the tool definition for lexical_search
func lexicalSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "lexical_search",
		Description: "Exact term and regex search over indexed chunks, no embeddings involved",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"must_terms": map[string]interface{}{
					"type":        "array",
					"description": "Exact substrings that must all appear in a chunk",
					"items":       map[string]interface{}{"type": "string"},
				},
				"regexes": map[string]interface{}{
					"type":        "array",
					"description": "Regex patterns, any of which must match; invalid patterns are skipped",
					"items":       map[string]interface{}{"type": "string"},
				},
				"path_like": map[string]interface{}{
					"type":        "string",
					"description": "Case-insensitive substring filter on source path",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}

// semanticSearchTool returns the tool definition for semantic_search
func semanticSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "semantic_search",
		Description: "Semantic similarity search over document summaries",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report index statistics and configuration",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
