package transform

import "errors"

var (
	// ErrUnknownCasing is returned when a casing name is not recognised.
	ErrUnknownCasing = errors.New("transform: unknown casing")

	// ErrUnsupportedLanguage is returned when number expansion is requested
	// for a language without a word table.
	ErrUnsupportedLanguage = errors.New("transform: unsupported language for number expansion")
)
