package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound indicates the backend has no such resource (HTTP 404).
	ErrNotFound = errors.New("resource not found")
	// ErrTransient covers network failures, timeouts, 429 and 5xx responses.
	ErrTransient = errors.New("transient backend failure")
	// ErrRejected indicates the backend refused the request (any other 4xx).
	ErrRejected = errors.New("request rejected")
)

// StatusError records a non-2xx response. It unwraps to the sentinel for
// its status class.
type StatusError struct {
	Endpoint string
	Status   int
	Detail   string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.Status)
}

func (e *StatusError) Unwrap() error {
	return classify(e.Status)
}

func classify(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusTooManyRequests, status == http.StatusRequestTimeout, status >= 500:
		return ErrTransient
	default:
		return ErrRejected
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "transient"
	}
}
