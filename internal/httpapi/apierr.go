// Package httpapi implements the Control API (C11): the chi-routed HTTP
// surface over every other component, generalizing
// internal/admin/handler.go's net/http.ServeMux handlers into a
// resource-per-file router with a shared error taxonomy, per spec.md §7.
package httpapi

import "net/http"

// Code is the machine-readable error taxonomy surfaced in every error
// response body, per spec.md §7.
type Code string

const (
	CodeValidation     Code = "VALIDATION_ERROR"
	CodeUnauthorized   Code = "UNAUTHORIZED"
	CodeForbidden      Code = "FORBIDDEN"
	CodeNotFound       Code = "NOT_FOUND"
	CodeConflict       Code = "CONFLICT"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeDependencyDown Code = "DEPENDENCY_DOWN"
	CodeInternal       Code = "INTERNAL"
)

// httpStatus maps each Code to its HTTP status, in one place per spec.md §7.
func (c Code) httpStatus() int {
	switch c {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	case CodeDependencyDown:
		return http.StatusServiceUnavailable
	case CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// apiError is an error carrying a Code, surfaced through the standard
// {error, message, detail?, correlation_id} body.
type apiError struct {
	Code    Code
	Message string
	Detail  string
}

func (e *apiError) Error() string { return e.Message }

func newError(code Code, message string) *apiError { return &apiError{Code: code, Message: message} }

func newErrorf(code Code, detail, message string) *apiError {
	return &apiError{Code: code, Message: message, Detail: detail}
}
