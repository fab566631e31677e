// Package mcp implements the Model Context Protocol (MCP) server for Neumann.
//
// The server exposes five tools to MCP clients over stdio:
//   - index_documents: ingest a directory of docs and code into the index
//   - search: hybrid semantic plus lexical search with weighted fusion
//   - lexical_search: exact term and regex search over chunks
//   - semantic_search: vector similarity search over document summaries
//   - get_status: index statistics and configuration
//
// MCP is JSON-RPC 2.0 over stdio, so stdout is reserved for protocol
// traffic and all logging goes to stderr.
//
// # Tool: search
//
// The hybrid tool accepts any combination of a natural language query and
// lexical filters. At least one channel must be active:
//
//	{
//	  "name": "search",
//	  "arguments": {
//	    "query": "how do I configure retry backoff",
//	    "must_terms": ["backoff"],
//	    "path_like": "docs/",
//	    "k": 10,
//	    "w_semantic": 0.6,
//	    "w_lexical": 0.4
//	  }
//	}
//
// Each result carries the combined score, the per-channel scores, and a
// "why" list explaining every match.
//
// # Error Handling
//
// Failures are reported as JSON-RPC errors:
//   - -32602: invalid params (missing or out-of-range arguments)
//   - -32603: internal error (database, filesystem, provider)
//   - -32001: embedding provider not configured
//   - -32002: empty query
//   - -32003: neither query nor lexical filters given
//   - -32004: invalid channel weights
//
// Without an OPENAI_API_KEY the semantic stack is disabled: indexing still
// writes chunks and lexical_search works, while search and semantic_search
// return -32001.
package mcp
