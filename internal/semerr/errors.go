// Package semerr defines the error taxonomy shared across the service.
// Every component boundary returns errors carrying a machine-readable Kind
// so callers (and the HTTP layer) can decide to retry, skip, or alert.
package semerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error.
type Kind string

const (
	// KindInvalidArgument is malformed caller input (empty identifier/text/query,
	// non-positive k, oversized query). Recoverable; a client error.
	KindInvalidArgument Kind = "invalid_argument"
	// KindNotFound means the referenced entity does not exist.
	KindNotFound Kind = "not_found"
	// KindPermissionDenied means the caller is authenticated but does not own the entity.
	KindPermissionDenied Kind = "permission_denied"
	// KindUnauthenticated means the API key is missing or wrong.
	KindUnauthenticated Kind = "unauthenticated"
	// KindDimensionMismatch means an embedding has an unexpected size, which
	// indicates the model was swapped without rebuilding the index.
	KindDimensionMismatch Kind = "dimension_mismatch"
	// KindPersistenceFailed means a disk write failed after the in-memory state
	// was already mutated. The entry is searchable in-process but not durable.
	KindPersistenceFailed Kind = "persistence_failed"
	// KindCorruptState means the persisted artifacts disagree (one missing, or
	// lengths differ). Fatal at startup; the process must refuse to serve.
	KindCorruptState Kind = "corrupt_persisted_state"
	// KindModelUnavailable means the embedding model failed to load. Fatal at startup.
	KindModelUnavailable Kind = "model_unavailable"
	// KindInternal is any other server-side failure.
	KindInternal Kind = "internal"
)

// Error is an error with a Kind and a short operator-readable message.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// New returns an Error with the given kind and message.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf returns an Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error wrapping err. Returns nil if err is nil.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the Kind of err, or KindInternal for untyped errors.
// Returns "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a Kind to an HTTP status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindDimensionMismatch, KindPersistenceFailed, KindCorruptState,
		KindModelUnavailable, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
