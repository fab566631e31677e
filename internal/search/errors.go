package search

import "errors"

var (
	// ErrEmptyQuery is returned when a semantic or hybrid query has no text.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrNoFilterProvided is returned when a lexical search carries neither
	// terms, nor regexes, nor a path filter.
	ErrNoFilterProvided = errors.New("at least one of terms, regexes, or path filter is required")

	// ErrNoChannelProvided is returned when a hybrid search disables both
	// channels.
	ErrNoChannelProvided = errors.New("at least one search channel is required")

	// ErrInvalidWeights is returned when hybrid channel weights are outside
	// [0,1] or sum to zero.
	ErrInvalidWeights = errors.New("channel weights must be in [0,1] and sum to a positive value")
)
