// Package apierr defines the structured errors the gateway reports to
// clients. Every client-visible failure is one of a small closed set of
// kinds carrying an HTTP status, a stable name, and a message.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status  int    `json:"status"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func InvalidArgument(format string, args ...any) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Name:    "InvalidArgument",
		Message: fmt.Sprintf(format, args...),
	}
}

func NotFound(format string, args ...any) *Error {
	return &Error{
		Status:  http.StatusNotFound,
		Name:    "NotFound",
		Message: fmt.Sprintf(format, args...),
	}
}

func PermissionDenied(format string, args ...any) *Error {
	return &Error{
		Status:  http.StatusForbidden,
		Name:    "PermissionDenied",
		Message: fmt.Sprintf(format, args...),
	}
}

func Internal(format string, args ...any) *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Name:    "InternalError",
		Message: fmt.Sprintf(format, args...),
	}
}

// From classifies an arbitrary error. Known kinds pass through unchanged;
// anything else is reported as an internal error without leaking detail.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal server error")
}

func IsInvalidArgument(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest
}

func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
