package errx

import (
	"errors"
	"fmt"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal error"
	// RedisErrorMessage describes Redis related failures.
	RedisErrorMessage = "redis operation failed"
	// RedisNotFoundMessage describes a missing Redis key.
	RedisNotFoundMessage = "redis key not found"
)

// Kind classifies agent errors. Kinds double as the internal error codes
// surfaced to operators; they are never shown verbatim to end users.
type Kind string

const (
	KindRetrievalUnavailable Kind = "retrieval_unavailable"
	KindToolError            Kind = "tool_error"
	KindUnknownTool          Kind = "unknown_tool"
	KindInvalidToolInput     Kind = "invalid_tool_input"
	KindConfirmationRequired Kind = "confirmation_required"
	KindModelUnavailable     Kind = "model_unavailable"
	KindMalformedResponse    Kind = "malformed_response"
	KindStepLimitExceeded    Kind = "step_limit_exceeded"
	KindGroundingViolation   Kind = "grounding_violation"
	KindStorage              Kind = "storage"
	KindInternal             Kind = "internal"
)

// AgentError wraps an underlying error with a Kind and a safe message.
type AgentError struct {
	Err     error
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AgentError) Unwrap() error {
	return e.Err
}

// New creates a new AgentError with the provided information.
func New(err error, kind Kind, message string) *AgentError {
	return &AgentError{
		Err:     err,
		Kind:    kind,
		Message: message,
	}
}

// Newf creates a new AgentError with a formatted message and no cause.
func Newf(kind Kind, format string, args ...any) *AgentError {
	return &AgentError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// Is reports whether the target matches the underlying error or the AgentError itself.
func (e *AgentError) Is(target error) bool {
	if t, ok := target.(*AgentError); ok {
		return e.Kind == t.Kind
	}
	return errors.Is(e.Err, target)
}

// As allows casting to AgentError or the wrapped error in a chain.
func (e *AgentError) As(target any) bool {
	if t, ok := target.(**AgentError); ok {
		*t = e
		return true
	}
	return errors.As(e.Err, target)
}

// KindOf extracts the Kind from an error chain, defaulting to KindInternal.
func KindOf(err error) Kind {
	var ae *AgentError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Fatal reports whether an error kind terminates the turn. All other kinds
// are absorbed by the orchestration loop and fed back to the router.
func Fatal(kind Kind) bool {
	switch kind {
	case KindModelUnavailable, KindMalformedResponse, KindStepLimitExceeded, KindStorage:
		return true
	default:
		return false
	}
}
