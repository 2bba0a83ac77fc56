package receipts

import (
	"errors"
	"fmt"
)

// Kind classifies a failed submission or history read. Every kind is
// reported to HTTP callers as a 500.
type Kind string

const (
	KindUnavailable Kind = "service_unavailable"
	KindStorage     Kind = "storage_error"
	KindRecognition Kind = "recognition_error"
	KindPersistence Kind = "persistence_error"
	KindUnexpected  Kind = "unexpected_error"
)

// Error is returned by every Service operation that fails.
type Error struct {
	Kind Kind
	// Code is the provider's error code (e.g. "NoSuchBucket",
	// "InvalidImageFormatException") when one is available.
	Code string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// ErrNotConfigured is wrapped by KindUnavailable errors.
var ErrNotConfigured = errors.New("service not configured")

// ErrNotFound is returned by RecordStore.Get when no record has the id.
var ErrNotFound = errors.New("record not found")

// KindOf reports the Kind of err, or KindUnexpected if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

func unavailable(what string) *Error {
	return &Error{Kind: KindUnavailable, Err: fmt.Errorf("%s: %w", what, ErrNotConfigured)}
}

func wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Code: providerCode(err), Err: err}
}

// providerCode extracts a provider error code from anything in err's chain
// that exposes one. smithy-go API errors and storage.ProviderError both do.
func providerCode(err error) string {
	var coder interface{ ErrorCode() string }
	if errors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}
