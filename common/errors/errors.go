package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Stable error codes returned to API callers.
const (
	TypeValidation      = "VALIDATION_ERROR"
	TypeNotFound        = "NOT_FOUND"
	TypeConflict        = "CONFLICT"
	TypeStateConflict   = "STATE_CONFLICT"
	TypeExternalService = "EXTERNAL_SERVICE_ERROR"
	TypeInternal        = "INTERNAL_ERROR"
	TypeUnauthorized    = "UNAUTHORIZED"
	TypeForbidden       = "FORBIDDEN"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"-"`
	Type    string `json:"code"`
	Message string `json:"error"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same type so callers can use errors.Is(err, ErrNotFound).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, typ, message string, err error) *Error {
	return &Error{
		Code:    code,
		Type:    typ,
		Message: message,
		Err:     err,
	}
}

func Validation(format string, args ...any) *Error {
	return New(http.StatusBadRequest, TypeValidation, fmt.Sprintf(format, args...), nil)
}

func NotFound(format string, args ...any) *Error {
	return New(http.StatusNotFound, TypeNotFound, fmt.Sprintf(format, args...), nil)
}

func Conflict(format string, args ...any) *Error {
	return New(http.StatusConflict, TypeConflict, fmt.Sprintf(format, args...), nil)
}

// StateConflict is returned when a mutation targets an order in a terminal status.
func StateConflict(format string, args ...any) *Error {
	return New(http.StatusConflict, TypeStateConflict, fmt.Sprintf(format, args...), nil)
}

func ExternalService(message string, err error) *Error {
	return New(http.StatusBadGateway, TypeExternalService, message, err)
}

// Internal wraps an unexpected failure. The cause is kept for logging and
// never rendered to the caller.
func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, TypeInternal, message, err)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, TypeUnauthorized, message, nil)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, TypeForbidden, message, nil)
}

// Sentinels for errors.Is comparisons. Only Type is compared.
var (
	ErrValidation      = &Error{Type: TypeValidation}
	ErrNotFound        = &Error{Type: TypeNotFound}
	ErrConflict        = &Error{Type: TypeConflict}
	ErrStateConflict   = &Error{Type: TypeStateConflict}
	ErrExternalService = &Error{Type: TypeExternalService}
	ErrInternal        = &Error{Type: TypeInternal}
	ErrUnauthorized    = &Error{Type: TypeUnauthorized}
	ErrForbidden       = &Error{Type: TypeForbidden}
)

// From converts any error into an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// Public returns the representation safe to send to clients.
func (e *Error) Public() *Error {
	if e.Type == TypeInternal {
		return &Error{Code: http.StatusInternalServerError, Type: TypeInternal, Message: "Internal server error"}
	}
	return &Error{Code: e.Code, Type: e.Type, Message: e.Message}
}
