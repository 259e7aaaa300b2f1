package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("could not read database row")

	// Concurrency
	ErrVersionConflict = errors.New("concurrent modification: version mismatch")
	ErrJobBusy         = errors.New("job is owned by another worker")

	// Job lifecycle
	ErrJobNotResumable  = errors.New("job is not in a resumable state")
	ErrJobTerminal      = errors.New("job already finished")
	ErrNothingToSalvage = errors.New("job has no artifacts to salvage")
	ErrNotSalvageable   = errors.New("only failed or cancelled jobs can be salvaged")
	ErrStageOutOfOrder  = errors.New("stage cannot start before earlier stages succeed")

	// Article lifecycle
	ErrInvalidTransition = errors.New("article status does not allow this operation")
	ErrNotScheduled      = errors.New("article is not scheduled")
	ErrFireTimeNotFuture = errors.New("publish time must be in the future")
)

// AdmissionError reports an exhausted quota. It is retryable after RetryAfter.
type AdmissionError struct {
	Class      string
	RetryAfter time.Duration
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Class, e.RetryAfter.Round(time.Second))
}

// ValidationError reports caller input that must be corrected before resubmitting.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

type StageErrorKind string

const (
	StageErrExternal   StageErrorKind = "external"
	StageErrTimeout    StageErrorKind = "timeout"
	StageErrMalformed  StageErrorKind = "malformed"
	StageErrAdmission  StageErrorKind = "admission"
	StageErrValidation StageErrorKind = "validation"
)

// StageError is recorded on the failing stage. It terminates only the owning job.
type StageError struct {
	Stage string
	Kind  StageErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func NewStageError(stage string, kind StageErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

func AsAdmission(err error) (*AdmissionError, bool) {
	var ae *AdmissionError
	ok := errors.As(err, &ae)
	return ae, ok
}

func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

func AsStage(err error) (*StageError, bool) {
	var se *StageError
	ok := errors.As(err, &se)
	return se, ok
}
