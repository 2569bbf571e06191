package graphstore

import "errors"

var (
	// ErrNotFound is returned when no graph has been stored yet.
	ErrNotFound = errors.New("graphstore: graph not found")

	// ErrNoPersister is returned by Persist when the store has no persister.
	ErrNoPersister = errors.New("graphstore: no persister configured")

	// ErrPersistFailed wraps write failures.
	ErrPersistFailed = errors.New("graphstore: persist failed")
)
