package backend

import "fmt"

// NetworkError means the request never reached the backend.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "backend unreachable: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError represents a backend error response (status outside 2xx).
// Message is taken from the response body when one is provided.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }

// DecodeError means the backend answered but the body was not the JSON
// shape we expect.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError is a local precondition failure raised before any
// network call is made. Message is user-facing.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
