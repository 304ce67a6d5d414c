package api

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/crucible/internal/backend"
	"github.com/samcharles93/crucible/internal/family"
	"github.com/samcharles93/crucible/internal/logger"
	"github.com/samcharles93/crucible/internal/reasoning"
	"github.com/samcharles93/crucible/internal/session"
)

var timeNow = func() time.Time {
	return time.Now()
}

const (
	defaultModelID   = "crucible"
	defaultMaxTokens = 256
)

// Reasoning formats accepted in completion requests.
const (
	ReasoningRaw      = "raw"
	ReasoningSeparate = "separate"
	ReasoningStrip    = "strip"
)

// BackendProvider hands out exclusive access to a loaded backend. A
// backend is single-writer, so two completions must never drive one
// concurrently; providers serialize callers.
type BackendProvider interface {
	WithBackend(ctx context.Context, fn func(b backend.Backend, defaults backend.Params) error) error
}

// LockedBackendProvider serializes requests over one loaded backend.
type LockedBackendProvider struct {
	mu       sync.Mutex
	b        backend.Backend
	defaults backend.Params
}

func NewLockedBackendProvider(b backend.Backend, defaults backend.Params) *LockedBackendProvider {
	return &LockedBackendProvider{b: b, defaults: defaults.Resolve()}
}

func (p *LockedBackendProvider) WithBackend(ctx context.Context, fn func(b backend.Backend, defaults backend.Params) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(p.b, p.defaults)
}

// samplerConfigurer is implemented by backends that can rebuild their
// sampler chain after open. Request-level sampling overrides are applied
// through it when available and silently ignored otherwise.
type samplerConfigurer interface {
	ConfigureSampler(p backend.Params) error
}

// CompletionService turns completion requests into generation runs.
type CompletionService struct {
	provider BackendProvider
	model    string
	log      logger.Logger
}

func NewCompletionService(provider BackendProvider, model string, log logger.Logger) *CompletionService {
	if model == "" {
		model = defaultModelID
	}
	if log == nil {
		log = logger.Default()
	}
	return &CompletionService{
		provider: provider,
		model:    model,
		log:      log,
	}
}

// Model returns the id the service reports for its loaded model.
func (s *CompletionService) Model() string {
	return s.model
}

// generationError carries the text accumulated before a mid-generation
// failure so handlers can preserve it in the error payload.
type generationError struct {
	err  error
	text string
}

func (e *generationError) Error() string { return e.err.Error() }

func (e *generationError) Unwrap() error { return e.err }

// Complete runs one generation. When stream is non-nil, increments are
// written to it as they decode and the final chunk carries stop reason,
// usage and timings; the returned response is populated either way.
func (s *CompletionService) Complete(ctx context.Context, req *CompletionRequest, stream StreamWriter) (*CompletionResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, newInvalidRequest("prompt is required")
	}
	if req.Model != "" && req.Model != s.model {
		return nil, newInvalidRequest(fmt.Sprintf("model %q is not loaded", req.Model))
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		if *req.MaxTokens <= 0 {
			return nil, newInvalidRequest("max_tokens must be positive")
		}
		maxTokens = *req.MaxTokens
	}
	format := req.ReasoningFormat
	if format == "" {
		format = ReasoningRaw
	}
	switch format {
	case ReasoningRaw, ReasoningSeparate, ReasoningStrip:
	default:
		return nil, newInvalidRequest(fmt.Sprintf("unknown reasoning_format %q", req.ReasoningFormat))
	}

	resp := &CompletionResponse{
		ID:      "cmpl-" + uuid.NewString(),
		Object:  "text_completion",
		Created: timeNow().Unix(),
		Model:   s.model,
	}

	err := s.provider.WithBackend(ctx, func(b backend.Backend, defaults backend.Params) error {
		s.applySamplerOverrides(b, defaults, req)

		prof := family.Detect(b.ModelDesc())
		stops := make([]string, 0, len(prof.Stops)+len(req.Stop))
		stops = append(stops, prof.Stops...)
		stops = append(stops, req.Stop...)

		sess, err := session.New(b, session.Options{
			StopStrings: stops,
			Logger:      s.log,
		})
		if err != nil {
			return err
		}
		// Fresh key/value memory for every request.
		sess.Clear()

		system, user := prof.RenderPrompt(req.System, req.Prompt)
		if err := sess.Start(session.Prompt{
			System:       system,
			User:         user,
			MaxNewTokens: maxTokens,
		}); err != nil {
			return err
		}

		var split *reasoning.Splitter
		if format != ReasoningRaw {
			split = &reasoning.Splitter{}
		}
		var content, thinking strings.Builder

		emit := func(delta string) error {
			text, thought := delta, ""
			if split != nil {
				text, thought = split.Push(delta)
			}
			content.WriteString(text)
			thinking.WriteString(thought)
			if format == ReasoningStrip {
				thought = ""
			}
			if stream == nil || (text == "" && thought == "") {
				return nil
			}
			return stream.Chunk(resp, text, thought)
		}

		for {
			if err := ctx.Err(); err != nil {
				return &generationError{err: err, text: content.String()}
			}
			piece, done, err := sess.Step()
			if err != nil {
				return &generationError{err: err, text: content.String()}
			}
			if piece != "" {
				if err := emit(piece); err != nil {
					return &generationError{err: err, text: content.String()}
				}
			}
			if done {
				break
			}
		}
		if split != nil {
			text, thought := split.Flush()
			content.WriteString(text)
			thinking.WriteString(thought)
			if format == ReasoningStrip {
				thought = ""
			}
			if stream != nil && (text != "" || thought != "") {
				if err := stream.Chunk(resp, text, thought); err != nil {
					return &generationError{err: err, text: content.String()}
				}
			}
		}

		snap := sess.Metrics()
		resp.Text = content.String()
		if format == ReasoningSeparate {
			resp.Reasoning = thinking.String()
		}
		resp.StopReason = string(sess.Reason())
		resp.Usage = Usage{
			PromptTokens:     snap.PrefillTokens,
			CompletionTokens: snap.DecodeTokens,
			TotalTokens:      snap.PrefillTokens + snap.DecodeTokens,
		}
		resp.Timings = &Timings{
			TimeToFirstTokenMS: millis(snap.TimeToFirstToken),
			PrefillMS:          millis(snap.PrefillTime),
			DecodeMS:           millis(snap.DecodeTime),
			PromptTPS:          snap.PromptTPS(),
			GenerationTPS:      snap.GenerationTPS(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if stream != nil {
		if err := stream.Finish(resp); err != nil {
			return resp, err
		}
	}
	return resp, nil
}

// applySamplerOverrides rebuilds the backend sampler from the opened
// defaults with the request's overrides layered on top. Backends without
// the capability keep their opened sampling.
func (s *CompletionService) applySamplerOverrides(b backend.Backend, defaults backend.Params, req *CompletionRequest) {
	sc, ok := b.(samplerConfigurer)
	if !ok {
		if req.Temperature != nil || req.TopK != nil || req.TopP != nil || req.Seed != nil {
			s.log.Debug("backend cannot reconfigure sampling; request overrides ignored")
		}
		return
	}
	p := defaults
	if req.Temperature != nil {
		p.Temperature = float32(*req.Temperature)
	}
	if req.TopK != nil {
		p.TopK = *req.TopK
	}
	if req.TopP != nil {
		p.TopP = float32(*req.TopP)
	}
	if req.Seed != nil {
		p.Seed = *req.Seed
	}
	if err := sc.ConfigureSampler(p); err != nil {
		s.log.Warn("sampler reconfigure failed; keeping previous sampling", "error", err)
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
