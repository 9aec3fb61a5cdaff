package llm

import (
	"fmt"
	"strings"
)

// ErrorCode classifies failures across all providers so the manager and
// callers can react uniformly regardless of which backend produced them.
type ErrorCode string

const (
	// ErrConfiguration covers unknown adapter type tags and unresolved
	// default/target provider names. Raised before any network call.
	ErrConfiguration ErrorCode = "LLM_CONFIGURATION"
	// ErrInitialization covers unreachable backends and missing credentials
	// at startup. Scoped to one provider.
	ErrInitialization ErrorCode = "LLM_INITIALIZATION"
	// ErrUnauthorized means the backend rejected the credential.
	ErrUnauthorized ErrorCode = "LLM_UNAUTHORIZED"
	// ErrRateLimited means the backend throttled the request.
	ErrRateLimited ErrorCode = "LLM_RATE_LIMITED"
	// ErrNetwork covers transport failures and upstream 5xx responses.
	ErrNetwork ErrorCode = "LLM_NETWORK"
	// ErrProtocol covers malformed requests and undecodable replies.
	ErrProtocol ErrorCode = "LLM_PROTOCOL"
)

// Error is the classified failure type raised by a single adapter call or by
// the manager's own resolution steps.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable,omitempty"`
	Provider   string    `json:"provider,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying transport or decode error, if any.
func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches the underlying error and returns the receiver.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// ConfigurationError builds an ErrConfiguration error.
func ConfigurationError(format string, args ...any) *Error {
	return &Error{Code: ErrConfiguration, Message: fmt.Sprintf(format, args...)}
}

// InitializationError builds an ErrInitialization error scoped to provider.
func InitializationError(provider, format string, args ...any) *Error {
	return &Error{Code: ErrInitialization, Provider: provider, Message: fmt.Sprintf(format, args...)}
}

// Attempt records the outcome of one provider call inside a failover chain.
type Attempt struct {
	Provider string
	Err      error
}

// AllProvidersFailedError aggregates the cause from every attempted provider
// after the target and its whole fallback chain have failed. No failure
// information is dropped mid-chain; it all surfaces here.
type AllProvidersFailedError struct {
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s: %v", a.Provider, a.Err))
	}
	return fmt.Sprintf("all providers failed (%d attempted): %s",
		len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes the individual attempt errors to errors.Is / errors.As.
func (e *AllProvidersFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}
