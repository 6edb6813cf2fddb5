package book

import "errors"

var (
	// ErrNotFound is returned when a book or chapter does not exist.
	ErrNotFound = errors.New("book: not found")
	// ErrMalformedResponse is returned when a model reply cannot be
	// parsed into the expected structure. Cached values are left intact.
	ErrMalformedResponse = errors.New("book: malformed model response")
	// ErrBadPosition is returned for chapter positions outside the
	// contiguous 1..N range.
	ErrBadPosition = errors.New("book: position out of range")
)
