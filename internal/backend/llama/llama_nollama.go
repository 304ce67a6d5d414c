//go:build !llama

// Package llama implements the backend contract over an in-process
// llama.cpp library. This build was made without the llama tag, so Open
// only reports that the native decoder is missing.
package llama

import (
	"fmt"

	"github.com/samcharles93/crucible/internal/backend"
	"github.com/samcharles93/crucible/internal/logger"
)

// Built reports whether this binary carries the native decoder.
const Built = false

// Open fails: the binary was built without the llama tag.
func Open(path string, _ backend.Params, _ logger.Logger) (backend.Backend, error) {
	return nil, fmt.Errorf("%w: open %s (rebuild with -tags llama)", backend.ErrUnavailable, path)
}
