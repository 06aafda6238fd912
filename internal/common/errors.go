// Package common provides shared utilities used across all features
package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Routing error taxonomy. Callers match with errors.Is.
var (
	ErrInvalidConfig    = errors.New("invalid routing config")
	ErrUnknownToken     = errors.New("unknown token")
	ErrQuoteUnavailable = errors.New("quote unavailable")
	ErrNoRouteFound     = errors.New("no route found")
	ErrProviderTimeout  = errors.New("provider timeout")
	ErrStaleSnapshot    = errors.New("stale snapshot")
)

// InvalidConfigf wraps ErrInvalidConfig with a formatted reason.
func InvalidConfigf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// HttpError represents an HTTP error with status code and message
type HttpError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s %s", e.StatusCode, e.Code, e.Message)
}

func messageOrDefault(msg string, defaultMsg string) string {
	if msg != "" {
		return msg
	}
	return defaultMsg
}

func HTTPErrorBadRequest(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusBadRequest,
		Code:       "BAD_REQUEST",
		Message:    messageOrDefault(msg, "Bad request"),
	}
}

func HTTPErrorNotFound(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    messageOrDefault(msg, "Not found"),
	}
}

func HTTPErrorInternalError(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    messageOrDefault(msg, "Internal server error"),
	}
}

func HTTPErrorResourceConflict(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusConflict,
		Code:       "STALE_SNAPSHOT",
		Message:    messageOrDefault(msg, "Snapshot block does not match"),
	}
}

func HTTPErrorGatewayTimeout(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusGatewayTimeout,
		Code:       "PROVIDER_TIMEOUT",
		Message:    messageOrDefault(msg, "Upstream provider timed out"),
	}
}

func HTTPErrorServiceUnavailable(msg string) *HttpError {
	return &HttpError{
		StatusCode: http.StatusServiceUnavailable,
		Code:       "QUOTE_UNAVAILABLE",
		Message:    messageOrDefault(msg, "Quote unavailable"),
	}
}

// HTTPErrorFrom maps a routing error onto its HTTP representation.
func HTTPErrorFrom(err error) *HttpError {
	var httpErr *HttpError
	switch {
	case errors.As(err, &httpErr):
		return httpErr
	case errors.Is(err, ErrInvalidConfig):
		e := HTTPErrorBadRequest(err.Error())
		e.Code = "INVALID_CONFIG"
		return e
	case errors.Is(err, ErrUnknownToken):
		e := HTTPErrorBadRequest(err.Error())
		e.Code = "UNKNOWN_TOKEN"
		return e
	case errors.Is(err, ErrProviderTimeout):
		return HTTPErrorGatewayTimeout(err.Error())
	case errors.Is(err, ErrStaleSnapshot):
		return HTTPErrorResourceConflict(err.Error())
	case errors.Is(err, ErrQuoteUnavailable):
		return HTTPErrorServiceUnavailable(err.Error())
	case errors.Is(err, ErrNoRouteFound):
		return HTTPErrorNotFound(err.Error())
	default:
		return HTTPErrorInternalError("")
	}
}
