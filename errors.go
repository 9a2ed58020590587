// Package marginalia anchors comments to character ranges of a rendered
// document and stacks their cards in a side rail without overlap.
package marginalia

import "errors"

// Range errors
var (
	// ErrInvalidRange indicates a text range with start >= end or a negative bound.
	ErrInvalidRange = errors.New("invalid text range")

	// ErrInvalidPosition indicates an address outside the document text.
	ErrInvalidPosition = errors.New("position out of bounds")
)

// Search errors
var (
	// ErrEmptyPattern indicates a search for an empty string or pattern.
	ErrEmptyPattern = errors.New("empty search pattern")
)

// Store errors
var (
	// ErrNotFound indicates that a highlight id does not exist in the store.
	ErrNotFound = errors.New("highlight not found")
)

// Resolver errors
var (
	// ErrInvalidAncestor indicates that the positioning ancestor does not
	// contain the content root, so resolved positions would not share a
	// coordinate space with the text.
	ErrInvalidAncestor = errors.New("positioning ancestor does not contain content")
)

// Configuration errors
var (
	// ErrInvalidGap indicates a negative stacking gap.
	ErrInvalidGap = errors.New("stacking gap must not be negative")

	// ErrInvalidColumns indicates a layout with no columns to wrap into.
	ErrInvalidColumns = errors.New("layout columns must be positive")
)
