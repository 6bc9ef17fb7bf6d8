// Package errs defines the failure kinds shared by the gateway, the research
// stages and the adapters that expose them.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindInvalidInput         Kind = "invalid_input"
	KindAuthentication       Kind = "authentication"
	KindUpstream             Kind = "upstream"
	KindMalformedResponse    Kind = "malformed_response"
	KindSchemaViolation      Kind = "schema_violation"
	KindPersonaCountMismatch Kind = "persona_count_mismatch"
	KindCancelled            Kind = "cancelled"
)

// Retryable reports whether a failure of this kind may succeed if the same
// request is sent again. Only transport/backend failures qualify.
func (k Kind) Retryable() bool {
	return k == KindUpstream
}

// Error is the single error type surfaced across stage boundaries.
type Error struct {
	Kind  Kind
	Stage string // empty outside the pipeline
	Field string // offending field for schema violations
	Raw   string // raw backend content for malformed responses
	Msg   string
	Err   error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (field %s)", msg, e.Field)
	}
	if e.Stage != "" {
		msg = fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: K}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Stage == "" || t.Stage == e.Stage)
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, format, args...)
}

func Schema(field, format string, args ...any) *Error {
	e := New(KindSchemaViolation, format, args...)
	e.Field = field
	return e
}

func Malformed(raw string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Msg: "response is not valid JSON", Raw: raw, Err: err}
}

func CountMismatch(expected, actual int) *Error {
	return New(KindPersonaCountMismatch, "expected %d personas, got %d", expected, actual)
}

// WithStage returns a copy of err tagged with stage. Errors outside the
// taxonomy are classified as upstream failures.
func WithStage(err error, stage string) *Error {
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Stage = stage
		return &cp
	}
	return &Error{Kind: KindUpstream, Stage: stage, Err: err}
}

// KindOf returns the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As is a shorthand for errors.As into *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
