package domain

import (
	"errors"
	"fmt"
)

// FailureKind names the terminal failure classes of the pipeline. Each kind
// maps to exactly one user-facing notification (or, for UnsupportedType, to
// none at all).
type FailureKind string

const (
	FailAuthentication FailureKind = "authentication_failed"
	FailUnauthorized   FailureKind = "unauthorized"
	FailUnsupported    FailureKind = "unsupported_type"
	FailMedia          FailureKind = "media_unavailable"
	FailExtraction     FailureKind = "extraction_failed"
	FailMalformed      FailureKind = "malformed_result"
	FailInvalidExpense FailureKind = "invalid_expense"
	FailPersistence    FailureKind = "persistence_failed"
)

// StageError is the only error type that crosses stage boundaries inside the
// dispatcher. It names the failure class, the stage that raised it and wraps
// the underlying cause for logging.
type StageError struct {
	Kind  FailureKind
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Abort wraps err as a StageError for the given stage and kind.
func Abort(kind FailureKind, stage string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

// KindOf extracts the failure kind from err, or "" if err carries no
// StageError.
func KindOf(err error) FailureKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}
