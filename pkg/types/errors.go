package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidDocID    = errors.New("invalid doc id")
	ErrMissingWhy      = errors.New("scored result must carry match explanations")
	ErrScoreOutOfRange = errors.New("channel score must be between 0 and 1")
)
