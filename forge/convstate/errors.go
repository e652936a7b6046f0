package convstate

import "errors"

var (
	// ErrNoIteration is returned when an operation requires an open
	// iteration but none has been started.
	ErrNoIteration = errors.New("no iteration has been started yet")

	// ErrSnapshot wraps snapshot encode/decode failures.
	ErrSnapshot = errors.New("snapshot")

	// ErrEmptyDigestSummary rejects a digest whose summary is empty.
	ErrEmptyDigestSummary = errors.New("digest summary must be non-empty")
)
