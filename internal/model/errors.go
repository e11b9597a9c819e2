package model

import (
	"errors"
	"fmt"
)

// RecordError represents a violation detected by the recording core.
//
// Record errors include:
//   - Validation: malformed or out-of-range field on a record
//   - Reference: dangling participant reference
//   - Duplicate trial: (participant, block, trial) coordinate collision
//   - Ordering: non-monotonic timestamp within a participant's stream
//   - Persistence: storage or flush failure
//   - Session closed: append after the session was closed
//
// RecordError includes structured fields for diagnostics and recovery.
type RecordError struct {
	// Code identifies the error category.
	Code RecordErrorCode

	// Message is a human-readable description.
	Message string

	// ParticipantID identifies the affected participant, when known.
	ParticipantID ParticipantID

	// Field names the offending field for validation errors.
	Field string

	// Err is the underlying cause, if any (persistence errors).
	Err error
}

// RecordErrorCode categorizes record errors.
type RecordErrorCode string

const (
	// ErrCodeValidation indicates a malformed or out-of-range field.
	ErrCodeValidation RecordErrorCode = "VALIDATION"

	// ErrCodeReference indicates a reference to an unknown participant.
	ErrCodeReference RecordErrorCode = "REFERENCE"

	// ErrCodeDuplicateTrial indicates a (participant, block, trial) collision.
	ErrCodeDuplicateTrial RecordErrorCode = "DUPLICATE_TRIAL"

	// ErrCodeOrdering indicates a timestamp earlier than the last recorded
	// one for the same participant.
	ErrCodeOrdering RecordErrorCode = "ORDERING"

	// ErrCodePersistence indicates a storage or flush failure.
	ErrCodePersistence RecordErrorCode = "PERSISTENCE"

	// ErrCodeSessionClosed indicates an append after session close.
	ErrCodeSessionClosed RecordErrorCode = "SESSION_CLOSED"
)

// Error implements the error interface.
func (e *RecordError) Error() string {
	switch {
	case e.ParticipantID != 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s (participant=%d): %v", e.Code, e.Message, e.ParticipantID, e.Err)
	case e.ParticipantID != 0:
		return fmt.Sprintf("%s: %s (participant=%d)", e.Code, e.Message, e.ParticipantID)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *RecordError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the RecordErrorCode from an error chain.
// Returns "" if the error is not a RecordError.
func CodeOf(err error) RecordErrorCode {
	var re *RecordError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return CodeOf(err) == ErrCodeValidation }

// IsReference reports whether err is a dangling-reference error.
func IsReference(err error) bool { return CodeOf(err) == ErrCodeReference }

// IsDuplicateTrial reports whether err is a trial coordinate collision.
func IsDuplicateTrial(err error) bool { return CodeOf(err) == ErrCodeDuplicateTrial }

// IsOrdering reports whether err is a timestamp ordering violation.
func IsOrdering(err error) bool { return CodeOf(err) == ErrCodeOrdering }

// IsPersistence reports whether err is a storage failure.
func IsPersistence(err error) bool { return CodeOf(err) == ErrCodePersistence }

// IsSessionClosed reports whether err is an append-after-close error.
func IsSessionClosed(err error) bool { return CodeOf(err) == ErrCodeSessionClosed }

// NewValidationError creates a RecordError for a bad field value.
func NewValidationError(field, message string) *RecordError {
	return &RecordError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// NewReferenceError creates a RecordError for an unknown participant.
func NewReferenceError(id ParticipantID) *RecordError {
	return &RecordError{
		Code:          ErrCodeReference,
		Message:       "participant does not exist",
		ParticipantID: id,
	}
}

// NewDuplicateTrialError creates a RecordError for a coordinate collision.
func NewDuplicateTrialError(id ParticipantID, block, trial int) *RecordError {
	return &RecordError{
		Code:          ErrCodeDuplicateTrial,
		Message:       fmt.Sprintf("trial (block=%d, trial=%d) already recorded", block, trial),
		ParticipantID: id,
	}
}

// NewOrderingError creates a RecordError for a non-monotonic timestamp.
func NewOrderingError(id ParticipantID, ts, last float64) *RecordError {
	return &RecordError{
		Code:          ErrCodeOrdering,
		Message:       fmt.Sprintf("timestamp %v precedes last recorded %v", ts, last),
		ParticipantID: id,
	}
}

// NewPersistenceError wraps a storage failure.
func NewPersistenceError(message string, err error) *RecordError {
	return &RecordError{
		Code:    ErrCodePersistence,
		Message: message,
		Err:     err,
	}
}

// NewSessionClosedError creates a RecordError for an append after close.
func NewSessionClosedError(id ParticipantID) *RecordError {
	return &RecordError{
		Code:          ErrCodeSessionClosed,
		Message:       "recording session is closed",
		ParticipantID: id,
	}
}
