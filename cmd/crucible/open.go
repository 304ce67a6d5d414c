package main

import (
	"github.com/samcharles93/crucible/internal/backend"
	"github.com/samcharles93/crucible/internal/backend/llama"
	"github.com/samcharles93/crucible/internal/logger"
)

type samplerConfigurer interface {
	ConfigureSampler(p backend.Params) error
}

// flagParams assembles backend parameters from the shared flag variables.
func flagParams(lanes int) backend.Params {
	return backend.Params{
		ContextSize: int(maxContext),
		Threads:     int(threads),
		GPULayers:   int(gpuLayers),
		MaxLanes:    lanes,
		Temperature: float32(temperature),
		TopK:        int(topK),
		TopP:        float32(topP),
		MinP:        float32(minP),
		Seed:        seed,
	}
}

// openBackend opens the native decoder with the shared flag parameters.
// A temperature of zero means greedy decoding; Open treats zero-valued
// fields as unset, so greedy is applied through the sampler-configuring
// capability after the fact.
func openBackend(path string, lanes int, log logger.Logger) (backend.Backend, error) {
	p := flagParams(lanes)
	b, err := llama.Open(path, p, log)
	if err != nil {
		return nil, err
	}
	if p.Temperature <= 0 {
		if sc, ok := b.(samplerConfigurer); ok {
			if err := sc.ConfigureSampler(p); err != nil {
				_ = b.Close()
				return nil, err
			}
		}
	}
	return b, nil
}
