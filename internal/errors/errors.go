package errors

import (
	"errors"
	"fmt"
	"time"
)

// Base error types
var (
	ErrFieldUnavailable       = errors.New("field unavailable")
	ErrClusterUnreachable     = errors.New("cluster unreachable")
	ErrCacheUnavailable       = errors.New("cache unavailable")
	ErrInsufficientHistory    = errors.New("insufficient history")
	ErrAllClustersUnreachable = errors.New("all clusters unreachable")
)

// ErrorType represents the category of a collection error
type ErrorType string

const (
	// ErrorTypeField marks a single failed remote read; the snapshot
	// continues with that field absent.
	ErrorTypeField ErrorType = "field_unavailable"
	// ErrorTypeUnreachable marks a connectivity-level failure that fails the
	// whole cluster for this run.
	ErrorTypeUnreachable ErrorType = "cluster_unreachable"
	// ErrorTypeCache marks a missing, corrupt or version-mismatched cache.
	ErrorTypeCache ErrorType = "cache_unavailable"
	// ErrorTypeHistory marks capacity history too short to project from.
	ErrorTypeHistory ErrorType = "insufficient_history"
)

// CollectError is a structured error for collection operations
type CollectError struct {
	Type       ErrorType
	Op         string // Operation that failed (e.g., "fetch_nodes", "fetch_capacity")
	Profile    string // Profile name where the error occurred
	Err        error  // Underlying error
	StatusCode int    // HTTP status code if applicable
	Timestamp  time.Time
}

func (e *CollectError) Error() string {
	if e.Profile != "" {
		return fmt.Sprintf("%s failed on %s: %v", e.Op, e.Profile, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *CollectError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *CollectError) Is(target error) bool {
	if target == nil {
		return false
	}

	switch target {
	case ErrFieldUnavailable:
		return e.Type == ErrorTypeField
	case ErrClusterUnreachable:
		return e.Type == ErrorTypeUnreachable
	case ErrCacheUnavailable:
		return e.Type == ErrorTypeCache
	case ErrInsufficientHistory:
		return e.Type == ErrorTypeHistory
	}

	return errors.Is(e.Err, target)
}

// NewCollectError creates a new CollectError
func NewCollectError(errorType ErrorType, op, profile string, err error) *CollectError {
	return &CollectError{
		Type:      errorType,
		Op:        op,
		Profile:   profile,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// WithStatusCode adds an HTTP status code to the error
func (e *CollectError) WithStatusCode(code int) *CollectError {
	e.StatusCode = code
	return e
}

// WrapFieldError wraps a failed optional read with context
func WrapFieldError(op, profile string, err error) error {
	return NewCollectError(ErrorTypeField, op, profile, err)
}

// WrapUnreachableError wraps a cluster-level connectivity failure with context
func WrapUnreachableError(op, profile string, err error) error {
	return NewCollectError(ErrorTypeUnreachable, op, profile, err)
}

// IsUnreachableError checks whether an error failed the whole cluster
func IsUnreachableError(err error) bool {
	var collectErr *CollectError
	if errors.As(err, &collectErr) {
		return collectErr.Type == ErrorTypeUnreachable
	}
	return errors.Is(err, ErrClusterUnreachable)
}
