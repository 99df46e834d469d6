package generator

import (
	"context"
	"errors"
	"fmt"

	"top_criteria_generator/schema"
)

// ConfigurationError means the capability cannot be invoked at all, typically
// because its credential is unset.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return e.Setting + " not configured"
}

// InvocationKind classifies a ModelInvocationError.
type InvocationKind string

const (
	KindTransport     InvocationKind = "transport"
	KindCredential    InvocationKind = "credential"
	KindRateLimit     InvocationKind = "rate_limit"
	KindSchemaDecode  InvocationKind = "schema_decode"
	KindRefusal       InvocationKind = "refusal"
	KindEmptyResponse InvocationKind = "empty_response"
	KindTimeout       InvocationKind = "timeout"
	KindCanceled      InvocationKind = "canceled"
	KindProvider      InvocationKind = "provider"
)

// ModelInvocationError means the capability failed to return a document.
type ModelInvocationError struct {
	Kind       InvocationKind
	Provider   string
	StatusCode int
	Err        error
}

func (e *ModelInvocationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ModelInvocationError) Unwrap() error { return e.Err }

// Message is the capability's own message without the provider prefix.
func (e *ModelInvocationError) Message() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// ValidationHint is surfaced with content validation failures.
const ValidationHint = "the model returned content outside the schema bounds; consider simplifying the schema or making fields optional"

// ContentValidationError means the model returned a document that failed the
// independent validation pass. The whole document is rejected.
type ContentValidationError struct {
	Violations schema.ValidationErrors
	Hint       string
}

func (e *ContentValidationError) Error() string {
	return fmt.Sprintf("generated content failed validation: %d violation(s)", len(e.Violations))
}

func (e *ContentValidationError) Unwrap() error { return e.Violations }

// Details lists each violation as "path: message".
func (e *ContentValidationError) Details() []string {
	return e.Violations.Messages()
}

// classifyContext maps a context failure to an invocation kind.
func classifyContext(err error) (InvocationKind, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout, true
	case errors.Is(err, context.Canceled):
		return KindCanceled, true
	}
	return "", false
}

// kindForStatus maps an HTTP status returned by a provider API.
func kindForStatus(code int) InvocationKind {
	switch {
	case code == 401 || code == 403:
		return KindCredential
	case code == 429:
		return KindRateLimit
	case code == 400 || code == 422:
		return KindSchemaDecode
	default:
		return KindProvider
	}
}
