package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file is too large")
	ErrBinaryContent     = errors.New("file does not contain plain text")
	ErrLineTooLong       = errors.New("line exceeds maximum length")
	ErrUnknownEvent      = errors.New("unknown event kind")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrQueueClosed       = errors.New("worker queue closed")
	ErrInvalidTransition = errors.New("invalid request status transition")
	ErrReadDatabaseRow   = errors.New("failed to read database row")
)

// ErrorKind classifies processing failures for retry and reply decisions.
type ErrorKind string

const (
	KindInvalidInput ErrorKind = "invalid_input"
	KindTransient    ErrorKind = "transient"
	KindInternal     ErrorKind = "internal"
)

// ProcessingError carries a kind and the operation that failed.
type ProcessingError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ProcessingError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func InvalidInput(op string, err error) error {
	return &ProcessingError{Kind: KindInvalidInput, Op: op, Err: err}
}

func Transient(op string, err error) error {
	return &ProcessingError{Kind: KindTransient, Op: op, Err: err}
}

func Internal(op string, err error) error {
	return &ProcessingError{Kind: KindInternal, Op: op, Err: err}
}

// KindOf reports the kind of err. Unclassified errors are internal, except
// deadline expiry which is treated as transient.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindInternal
}

// IsRetryable reports whether err may succeed on another attempt.
func IsRetryable(err error) bool {
	return KindOf(err) == KindTransient
}
