package backend

import "errors"

var (
	// ErrInit reports that a model or decode context could not be
	// constructed. Fatal to session creation; never retried here.
	ErrInit = errors.New("backend initialization failed")

	// ErrDecode reports a non-success decode call. Decoder-internal state
	// after a failed call is not assumed safe, so callers must not retry
	// against the same context.
	ErrDecode = errors.New("decode failed")

	// ErrCapacity reports a violated batch precondition. This is a
	// programming-contract error (a caller bypassed EnsureCapacity), not a
	// recoverable runtime condition.
	ErrCapacity = errors.New("batch capacity exceeded")

	// ErrUnavailable reports that the binary was built without native
	// decoder support (the llama build tag).
	ErrUnavailable = errors.New("native decoder support not built in")
)
