// Package apperror defines the typed errors that cross the command
// boundary and the uniform envelope they are serialized into. Internal
// detail (stack traces, file paths) never leaves unfiltered.
package apperror

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Kind identifies the error class for boundary mapping.
type Kind string

const (
	// KindValidation covers malformed or incomplete input. Recoverable
	// and user-correctable; never logged as a system fault.
	KindValidation Kind = "VALIDATION_ERROR"
	// KindNotFound means a referenced template/scan/asset/client does
	// not exist.
	KindNotFound Kind = "NOT_FOUND"
	// KindProbeExecution means the probing subprocess failed to start,
	// crashed, or was denied privilege.
	KindProbeExecution Kind = "PROBE_EXECUTION_ERROR"
	// KindPersistence means the repository collaborator failed.
	KindPersistence Kind = "PERSISTENCE_ERROR"
	// KindCapability means the requested scan profile needs elevated
	// privileges not available to this process.
	KindCapability Kind = "CAPABILITY_ERROR"
	// KindInternal is the fallback for anything unclassified.
	KindInternal Kind = "INTERNAL_ERROR"
)

// Error is a classified application error.
type Error struct {
	Kind    Kind
	Message string
	Details string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a classified error with a user-facing message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. The cause stays available for
// logging but is not serialized across the boundary.
func Wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// Validation is shorthand for a user-correctable input error.
func Validation(format string, args ...interface{}) *Error {
	return New(KindValidation, format, args...)
}

// NotFound is shorthand for a missing-entity error.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s not found: %s", entity, id)}
}

// KindOf extracts the Kind from err, walking the wrap chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Envelope is the uniform error shape returned over the command
// boundary: {code, message, details?}.
type Envelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ToEnvelope converts any error into the boundary envelope. Unclassified
// errors are masked so raw internals never reach the UI layer.
func ToEnvelope(err error) Envelope {
	var ae *Error
	if errors.As(err, &ae) {
		return Envelope{Code: string(ae.Kind), Message: ae.Message, Details: ae.Details}
	}
	return Envelope{Code: string(KindInternal), Message: "internal error"}
}

// HTTPStatus maps an error class to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindCapability:
		return http.StatusForbidden
	case KindProbeExecution, KindPersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
