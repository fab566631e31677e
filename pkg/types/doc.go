// Package types defines the shared data model for the Neumann search pipeline:
// chunks (the unit of lexical indexing), document summaries (the unit of
// semantic indexing), and ranked search results with structured match
// explanations.
package types
