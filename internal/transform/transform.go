// Package transform provides the word-level text transforms applied to
// queries (and optionally training sentences) before they reach the
// recognizer.
//
// A transform is a pure function over a single word or a whole text. The
// casing transforms are idempotent: applying one twice yields the same
// result as applying it once.
package transform

import (
	"fmt"
	"strings"
)

// Func maps input text to canonicalised text.
type Func func(text string) string

// Casing selects the case transform applied to words.
type Casing string

const (
	// CasingIgnore leaves text untouched.
	CasingIgnore Casing = "ignore"

	// CasingUpper converts text to upper case.
	CasingUpper Casing = "upper"

	// CasingLower converts text to lower case.
	CasingLower Casing = "lower"
)

// ParseCasing converts a configuration string to a Casing.
// The empty string maps to CasingIgnore.
func ParseCasing(s string) (Casing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ignore", "identity", "none":
		return CasingIgnore, nil
	case "upper":
		return CasingUpper, nil
	case "lower":
		return CasingLower, nil
	default:
		return "", fmt.Errorf("%w: %q (want ignore, upper or lower)", ErrUnknownCasing, s)
	}
}

// Func returns the transform function for this casing.
// Unknown values behave like CasingIgnore.
func (c Casing) Func() Func {
	switch c {
	case CasingUpper:
		return strings.ToUpper
	case CasingLower:
		return strings.ToLower
	default:
		return Identity
	}
}

// Identity returns text unchanged.
func Identity(text string) string {
	return text
}

// Chain composes transforms left to right. Nil entries are skipped.
func Chain(funcs ...Func) Func {
	active := make([]Func, 0, len(funcs))
	for _, f := range funcs {
		if f != nil {
			active = append(active, f)
		}
	}

	if len(active) == 0 {
		return Identity
	}

	return func(text string) string {
		for _, f := range active {
			text = f(text)
		}
		return text
	}
}
