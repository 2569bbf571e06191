package nlu

import "errors"

// Domain errors for the nlu package.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotRecognized is returned when no sentence in the graph matches a query.
	ErrNotRecognized = errors.New("nlu: intent not recognized")

	// ErrInvalidTemplate is returned when a sentence template or sentences
	// payload cannot be parsed.
	ErrInvalidTemplate = errors.New("nlu: invalid sentence template")

	// ErrNoSentences is returned when training input yields no sentences.
	ErrNoSentences = errors.New("nlu: no sentences to train on")

	// ErrTooManySentences is returned when template expansion exceeds the
	// configured per-intent limit.
	ErrTooManySentences = errors.New("nlu: too many sentences")

	// ErrInvalidGraph is returned when an encoded graph cannot be decoded.
	ErrInvalidGraph = errors.New("nlu: invalid intent graph")
)
