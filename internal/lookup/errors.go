package lookup

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthRequired means no API key was supplied. No request is attempted.
var ErrAuthRequired = errors.New("lookup: API key cannot be empty")

// ErrEmptyDigest means a lookup was requested without a file hash.
var ErrEmptyDigest = errors.New("lookup: file hash is required")

// ErrClosed is returned by FetchReport after Close.
var ErrClosed = errors.New("lookup: client closed")

// StatusError is a non-success, non-404 response from the lookup service.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("lookup: API error %d %s, details: %s", e.Status, http.StatusText(e.Status), e.Body)
}

// NetworkError wraps transport failures (DNS, connect, TLS, canceled reads).
type NetworkError struct {
	Cause error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("lookup: network error while accessing the lookup service: %v", e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }
