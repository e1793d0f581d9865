package client

import (
	"errors"
	"fmt"
)

// HTTPError is a non-2xx response that survived every retry.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

// APIError is a {"success":false} answer. These are not retried; the
// message is meant to be shown to the user as is.
type APIError struct {
	Message string
	// Expired is set when a get action hit an expired link.
	Expired bool
}

func (e *APIError) Error() string { return e.Message }

// IsExpired reports whether err is an expired-link answer.
func IsExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Expired
}
