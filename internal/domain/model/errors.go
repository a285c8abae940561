package model

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrInvalidDeadline = errors.New("invalid deadline")
)

// ErrorKind classifies a rejected submission.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindIdentityMismatch  ErrorKind = "identity_mismatch"
	KindDeadlineExceeded  ErrorKind = "deadline_exceeded"
	KindRateLimitExceeded ErrorKind = "rate_limit_exceeded"
	KindChecksumMismatch  ErrorKind = "checksum_mismatch"
	KindUnknownAssignment ErrorKind = "unknown_assignment"
	KindUnexpected        ErrorKind = "unexpected_error"
)

// Status maps a kind to its HTTP status code.
func (k ErrorKind) Status() int {
	switch k {
	case KindValidation, KindDeadlineExceeded, KindRateLimitExceeded, KindChecksumMismatch:
		return http.StatusBadRequest
	case KindIdentityMismatch:
		return http.StatusForbidden
	case KindUnknownAssignment:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// SubmissionError is a terminal rejection. Fields names the offending
// metrics, files or identity fields where that applies.
type SubmissionError struct {
	Kind    ErrorKind
	Message string
	Fields  []string
	Diff    []FieldDiff
	Limit   int
	Err     error
}

func (e *SubmissionError) Error() string {
	msg := e.Message
	if len(e.Fields) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.Fields, ", "))
	}
	if e.Err != nil && e.Kind == KindUnexpected {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Status returns the HTTP status for the error.
func (e *SubmissionError) Status() int { return e.Kind.Status() }

// Detail is the diagnostic string exposed to clients. Unexpected errors keep
// the cause out of the public message and report it here instead.
func (e *SubmissionError) Detail() string {
	switch {
	case len(e.Diff) > 0:
		parts := make([]string, len(e.Diff))
		for i, d := range e.Diff {
			parts[i] = fmt.Sprintf("%s: registered %q, submitted %q", d.Field, d.Registered, d.Submitted)
		}
		return strings.Join(parts, "; ")
	case len(e.Fields) > 0:
		return strings.Join(e.Fields, ", ")
	case e.Err != nil:
		return e.Err.Error()
	}
	return ""
}

// Is matches against another SubmissionError by kind, so callers can write
// errors.Is(err, &model.SubmissionError{Kind: model.KindRateLimitExceeded}).
func (e *SubmissionError) Is(target error) bool {
	t, ok := target.(*SubmissionError)
	return ok && t.Kind == e.Kind
}

// KindOf extracts the kind from err, defaulting to KindUnexpected.
func KindOf(err error) ErrorKind {
	var se *SubmissionError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnexpected
}

func NewValidationError(msg string, fields ...string) *SubmissionError {
	return &SubmissionError{Kind: KindValidation, Message: msg, Fields: fields}
}

func NewIdentityMismatchError(diff []FieldDiff) *SubmissionError {
	fields := make([]string, len(diff))
	for i, d := range diff {
		fields[i] = d.Field
	}
	return &SubmissionError{
		Kind:    KindIdentityMismatch,
		Message: "student information does not match the first registration for this student id",
		Fields:  fields,
		Diff:    diff,
	}
}

func NewDeadlineExceededError() *SubmissionError {
	return &SubmissionError{Kind: KindDeadlineExceeded, Message: "the submission deadline for this assignment has passed"}
}

func NewRateLimitExceededError(limit int) *SubmissionError {
	return &SubmissionError{
		Kind:    KindRateLimitExceeded,
		Message: fmt.Sprintf("daily submission limit reached (%d per day)", limit),
		Limit:   limit,
	}
}

func NewChecksumMismatchError(files []string) *SubmissionError {
	return &SubmissionError{Kind: KindChecksumMismatch, Message: "checksum verification failed", Fields: files}
}

func NewUnknownAssignmentError(id string) *SubmissionError {
	return &SubmissionError{Kind: KindUnknownAssignment, Message: fmt.Sprintf("assignment %q not found", id)}
}

func NewUnexpectedError(err error) *SubmissionError {
	return &SubmissionError{Kind: KindUnexpected, Message: "internal error while processing submission", Err: err}
}
