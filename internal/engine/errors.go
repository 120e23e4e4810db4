package engine

import (
	"errors"
	"fmt"
)

// RequestError is returned for any non-2xx engine response.
type RequestError struct {
	Engine     string
	Method     string
	Path       string
	StatusCode int
	Body       string // first 512 bytes
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("engine %s: %s %s returned %d", e.Engine, e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("engine %s: %s %s returned %d: %s", e.Engine, e.Method, e.Path, e.StatusCode, e.Body)
}

// IsStatus reports whether err wraps a RequestError with the given status.
func IsStatus(err error, status int) bool {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode == status
	}
	return false
}

// StatusCode extracts the HTTP status from err, or 0 if err is not a
// RequestError.
func StatusCode(err error) int {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode
	}
	return 0
}
