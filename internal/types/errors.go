package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing provider errors.
type ErrorCode string

// Error code constants. The prefix of every code names its ErrorKind.
const (
	// Config: malformed or missing configuration, payload fields, unknown
	// routes/schedules and unsupported topics or operations.
	ErrCodeConfigInvalid          ErrorCode = "config_invalid"
	ErrCodeConfigMissingField     ErrorCode = "config_missing_field"
	ErrCodeConfigUnknownRoute     ErrorCode = "config_unknown_route"
	ErrCodeConfigUnknownSchedule  ErrorCode = "config_unknown_schedule"
	ErrCodeConfigUnsupportedTopic ErrorCode = "config_unsupported_topic"
	ErrCodeConfigUnsupportedOp    ErrorCode = "config_unsupported_operation"
	ErrCodeConfigInvalidTenant    ErrorCode = "config_invalid_tenant"
	ErrCodeConfigUnknownComponent ErrorCode = "config_unknown_component"

	// Auth: secret capability failures.
	ErrCodeAuthSecretStore      ErrorCode = "auth_secret_store_failure"
	ErrCodeAuthSignature        ErrorCode = "auth_signature_invalid"
	ErrCodeAuthStoreUnavailable ErrorCode = "auth_secret_store_unavailable"

	// Transport: outbound send failures.
	ErrCodeTransportSend        ErrorCode = "transport_send_failed"
	ErrCodeTransportStatus      ErrorCode = "transport_bad_status"
	ErrCodeTransportUnavailable ErrorCode = "transport_unavailable"

	// Other: persistence and serialization failures.
	ErrCodeOtherPersistence   ErrorCode = "other_persistence_failure"
	ErrCodeOtherSerialization ErrorCode = "other_serialization_failure"
	ErrCodeOtherUnexpected    ErrorCode = "other_unexpected"
)

// ErrorKind is the four-class error taxonomy every ErrorCode belongs to.
type ErrorKind string

const (
	KindConfig    ErrorKind = "config"
	KindAuth      ErrorKind = "auth"
	KindTransport ErrorKind = "transport"
	KindOther     ErrorKind = "other"
)

// Kind returns the class of the code. Unknown codes are KindOther.
func (c ErrorCode) Kind() ErrorKind {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "config_"):
		return KindConfig
	case strings.HasPrefix(s, "auth_"):
		return KindAuth
	case strings.HasPrefix(s, "transport_"):
		return KindTransport
	default:
		return KindOther
	}
}

// HTTPStatus maps an ErrorCode to the status the gateway answers with.
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == ErrCodeConfigUnknownRoute, c == ErrCodeConfigUnknownSchedule, c == ErrCodeConfigUnknownComponent:
		return http.StatusNotFound // 404
	case c == ErrCodeAuthSignature:
		return http.StatusUnauthorized // 401
	case c.Kind() == KindConfig:
		return http.StatusBadRequest // 400
	case c.Kind() == KindAuth, c.Kind() == KindTransport:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}

// kindLabel renders the human prefix used by AppError.Error.
var kindLabel = map[ErrorKind]string{
	KindConfig:    "configuration error",
	KindAuth:      "authentication error",
	KindTransport: "transport error",
	KindOther:     "unexpected error",
}

// AppError is the standard error type returned by adapters and capabilities.
// It supports errors.Is/errors.As through Unwrap.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", kindLabel[e.Code.Kind()], e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", kindLabel[e.Code.Kind()], e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Kind returns the error class.
func (e *AppError) Kind() ErrorKind {
	return e.Code.Kind()
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// ConfigErrorf builds a Config-class error with a formatted message.
func ConfigErrorf(code ErrorCode, format string, args ...any) *AppError {
	return NewAppError(code, fmt.Sprintf(format, args...), nil)
}

// MissingFieldError reports a required payload or config field that is absent.
func MissingFieldError(kind, field string) *AppError {
	return NewAppErrorWithDetails(
		ErrCodeConfigMissingField,
		fmt.Sprintf("missing %s field %s", kind, field),
		nil,
		map[string]any{"field": field},
	)
}

// KindOf returns the class of err, or KindOther when err carries no AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind()
	}
	return KindOther
}

// IsKind reports whether err (or any error it wraps) is an AppError of kind.
func IsKind(err error, kind ErrorKind) bool {
	if err == nil {
		return false
	}
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind() == kind
}
