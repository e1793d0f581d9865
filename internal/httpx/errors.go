package httpx

import (
	"net/http"

	"github.com/sundayezeilo/linksnap/internal/errx"
)

type kindMapping struct {
	status int
	code   string
}

var kindMappings = map[errx.Kind]kindMapping{
	errx.NotFound:     {http.StatusNotFound, "not_found"},
	errx.Conflict:     {http.StatusConflict, "conflict"},
	errx.Invalid:      {http.StatusBadRequest, "invalid_input"},
	errx.Unauthorized: {http.StatusUnauthorized, "unauthorized"},
	errx.Forbidden:    {http.StatusForbidden, "forbidden"},
	errx.Expired:      {http.StatusGone, "expired"},
	errx.Unavailable:  {http.StatusServiceUnavailable, "unavailable"},
}

var internalMapping = kindMapping{http.StatusInternalServerError, "internal_error"}

func mappingFor(kind errx.Kind) kindMapping {
	if m, ok := kindMappings[kind]; ok {
		return m
	}
	return internalMapping
}

// ErrorKindToStatus maps errx.Kind to the status used by REST-style routes
// such as the redirect endpoint.
func ErrorKindToStatus(kind errx.Kind) int {
	return mappingFor(kind).status
}

// ErrorKindToCode maps errx.Kind to a stable code for logs.
func ErrorKindToCode(kind errx.Kind) string {
	return mappingFor(kind).code
}

// ActionStatus is the status used by the action API. User-correctable
// failures travel inside a 200 envelope; only upstream and server failures
// use a 5xx status, which clients treat as retryable.
func ActionStatus(kind errx.Kind) int {
	switch status := ErrorKindToStatus(kind); status {
	case http.StatusServiceUnavailable, http.StatusInternalServerError:
		return status
	default:
		return http.StatusOK
	}
}
