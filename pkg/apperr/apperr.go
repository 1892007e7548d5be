package apperr

import (
	"errors"

	"go.uber.org/zap"
)

// Kind classifies an error so the transport layer can map it without
// inspecting messages.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindRateLimited      Kind = "rate_limited"
	KindNotFound         Kind = "not_found"
	KindExpired          Kind = "expired"
	KindConflict         Kind = "conflict"
	KindAttemptsExceeded Kind = "attempts_exceeded"
	KindInvalidCode      Kind = "invalid_code"
	KindUnauthorized     Kind = "unauthorized"
	KindInternal         Kind = "internal"
)

// Error is a user-facing failure with enough context for logging.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// With attaches a structured field and returns the same error.
func (e *Error) With(key string, value interface{}) *Error {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// ZapFields renders the error context for zap.
func (e *Error) ZapFields() []zap.Field {
	fields := make([]zap.Field, 0, len(e.Fields)+3)
	fields = append(fields, zap.String("kind", string(e.Kind)), zap.String("op", e.Op))
	for k, v := range e.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	if e.Err != nil {
		fields = append(fields, zap.NamedError("cause", e.Err))
	}
	return fields
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Validation(op, message string) *Error {
	return New(KindValidation, op, message)
}

// Internal wraps an unexpected failure. The message stays generic so storage
// details never reach callers.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Message: "internal error", Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
