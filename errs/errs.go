// Package errs provides structured error envelopes for fiscaldesk services.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Code identifies an error category within the persistence pipeline.
type Code string

const (
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeConfig indicates a configuration problem, such as a missing table header.
	CodeConfig Code = "config"
	// CodeResolution indicates the entity id resolver produced a non-canonical id.
	CodeResolution Code = "resolution"
	// CodeNetwork indicates a network transport failure.
	CodeNetwork Code = "network"
	// CodeRateLimited indicates the request exceeded the backend's rate limits.
	CodeRateLimited Code = "rate_limited"
	// CodeProvider indicates an upstream tax-data provider failure.
	CodeProvider Code = "provider_error"
	// CodeNotFound indicates a missing resource.
	CodeNotFound Code = "not_found"
	// CodeUnavailable indicates the service is temporarily unavailable.
	CodeUnavailable Code = "unavailable"
)

// E captures structured error information produced across the fiscaldesk stack.
type E struct {
	Scope        string
	Code         Code
	HTTP         int
	ProviderCode string
	ProviderMsg  string
	Message      string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the given scope and error code.
func New(scope string, code Code, opts ...Option) *E {
	e := &E{
		Scope:        strings.TrimSpace(scope),
		Code:         code,
		HTTP:         0,
		ProviderCode: "",
		ProviderMsg:  "",
		Message:      "",
		cause:        nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithProviderCode captures the raw provider error code.
func WithProviderCode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) {
		e.ProviderCode = trimmed
	}
}

// WithProviderMessage captures the raw provider error message.
func WithProviderMessage(msg string) Option {
	return func(e *E) {
		e.ProviderMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	scope := strings.TrimSpace(e.Scope)
	if scope == "" {
		scope = "unknown"
	}
	parts = append(parts, "scope="+scope)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.ProviderCode != "" {
		parts = append(parts, "provider_code="+strconv.Quote(e.ProviderCode))
	}
	if e.ProviderMsg != "" {
		parts = append(parts, "provider_msg="+strconv.Quote(e.ProviderMsg))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// CodeOf extracts the error code from an envelope anywhere in the chain.
func CodeOf(err error) Code {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Transient reports whether the error is worth retrying against the backend.
// Rate limits, network faults, and 5xx statuses qualify; everything else
// propagates immediately.
func Transient(err error) bool {
	var e *E
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case CodeRateLimited, CodeNetwork, CodeUnavailable:
		return true
	}
	return e.HTTP == 429 || e.HTTP >= 500
}
