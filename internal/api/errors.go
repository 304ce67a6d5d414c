package api

import "errors"

// ErrInvalidRequest marks client errors so handlers can map them to 400
// instead of 500. Wrap with newInvalidRequest; match with errors.Is.
var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}
