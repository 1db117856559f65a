package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery signals an empty, whitespace-only or oversized query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidLimit signals a result limit outside [1, max].
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrInvalidAlpha signals a fusion weight outside [0, 1].
	ErrInvalidAlpha = errors.New("invalid alpha")
	// ErrInvalidMode signals an unknown search mode.
	ErrInvalidMode = errors.New("invalid search mode")
	// ErrInvalidDocument signals a document that fails validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrShapeMismatch signals a vector whose dimension differs from the index dimension.
	ErrShapeMismatch = errors.New("embedding shape mismatch")
	// ErrNotFound signals a missing document.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID signals an add for an id that is already indexed.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrDependencyTimeout signals that an external dependency did not answer in time.
	ErrDependencyTimeout = errors.New("dependency timeout")
	// ErrEmbeddingUnavailable signals an embedding provider failure.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrIndexCorrupt signals an internal inconsistency between indices.
	ErrIndexCorrupt = errors.New("index corrupt")
)

// IndexCorruptError wraps ErrIndexCorrupt with the component that detected it.
type IndexCorruptError struct {
	Component string
	Detail    string
}

func (e *IndexCorruptError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrIndexCorrupt.Error(), e.Component, e.Detail)
}

func (e *IndexCorruptError) Unwrap() error { return ErrIndexCorrupt }

// NewIndexCorrupt creates an index corruption error.
func NewIndexCorrupt(component, detail string) error {
	return &IndexCorruptError{Component: component, Detail: detail}
}

// IsDependencyFailure reports whether err comes from an external dependency
// (embedding provider or cache store) rather than from the caller's input.
func IsDependencyFailure(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) || errors.Is(err, ErrDependencyTimeout)
}
