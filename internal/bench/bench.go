// Package bench measures decode throughput. The synthetic mode drives
// the backend directly with placeholder tokens, timing a bulk prompt
// decode and a run of per-token decodes across parallel lanes; the
// corpus mode runs real prompts through a session and collects its
// metrics. Results export to JSON, CSV, Arrow, and a local history
// database.
package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/samcharles93/crucible/internal/backend"
	"github.com/samcharles93/crucible/internal/logger"
	"github.com/samcharles93/crucible/internal/session"
)

// Config shapes a synthetic benchmark run.
type Config struct {
	// PromptTokens is the size of the bulk prompt decode.
	PromptTokens int
	// GenTokens is how many per-token decode steps to time.
	GenTokens int
	// Lanes is how many sequences decode in parallel during the
	// generation phase.
	Lanes int
	// Trials repeats the measurement for mean and deviation.
	Trials int
	// Warmup runs one small unrecorded pass first, so model and cache
	// setup costs stay out of the first trial.
	Warmup bool
}

// DefaultConfig mirrors the usual 512/128 single-lane measurement.
func DefaultConfig() Config {
	return Config{
		PromptTokens: 512,
		GenTokens:    128,
		Lanes:        1,
		Trials:       3,
		Warmup:       true,
	}
}

func (c Config) validate() error {
	if c.PromptTokens < 1 || c.GenTokens < 1 || c.Lanes < 1 || c.Trials < 1 {
		return fmt.Errorf("prompt tokens, generation tokens, lanes, and trials must all be at least 1")
	}
	return nil
}

// Trial is one measured repetition.
type Trial struct {
	PromptTokens    int           `json:"prompt_tokens"`
	GeneratedTokens int           `json:"generated_tokens"`
	PromptTime      time.Duration `json:"prompt_time_ns"`
	GenerationTime  time.Duration `json:"generation_time_ns"`
	PromptTPS       float64       `json:"prompt_tps"`
	GenerationTPS   float64       `json:"generation_tps"`
}

// Result is a completed benchmark.
type Result struct {
	Mode        string    `json:"mode"`
	ModelDesc   string    `json:"model_desc"`
	ModelSize   uint64    `json:"model_size_bytes"`
	ModelParams uint64    `json:"model_params"`
	Config      Config    `json:"config"`
	StartedAt   time.Time `json:"started_at"`
	Trials      []Trial   `json:"trials"`
}

// PromptStats summarizes prompt throughput across trials.
func (r *Result) PromptStats() Stats {
	xs := make([]float64, len(r.Trials))
	for i, t := range r.Trials {
		xs[i] = t.PromptTPS
	}
	return Summarize(xs)
}

// GenerationStats summarizes generation throughput across trials.
func (r *Result) GenerationStats() Stats {
	xs := make([]float64, len(r.Trials))
	for i, t := range r.Trials {
		xs[i] = t.GenerationTPS
	}
	return Summarize(xs)
}

// Runner executes benchmarks over one backend.
type Runner struct {
	backend backend.Backend
	log     logger.Logger
}

func NewRunner(b backend.Backend, log logger.Logger) *Runner {
	if log == nil {
		log = logger.Default()
	}
	return &Runner{backend: b, log: log}
}

// placeholderToken fills synthetic batches; only decode cost matters,
// not what the token is.
const placeholderToken backend.Token = 0

// Run executes the synthetic measurement.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Warmup {
		r.log.Debug("benchmark warmup")
		warm := Config{PromptTokens: 8, GenTokens: 4, Lanes: 1, Trials: 1}
		if _, err := r.measure(ctx, warm, backend.NewBatch(8, 1)); err != nil {
			return nil, fmt.Errorf("warmup: %w", err)
		}
	}

	started := time.Now()
	batch := backend.NewBatch(max(cfg.PromptTokens, cfg.Lanes), cfg.Lanes)
	trials, err := r.measure(ctx, cfg, batch)
	if err != nil {
		return nil, err
	}

	return &Result{
		Mode:        "synthetic",
		ModelDesc:   r.backend.ModelDesc(),
		ModelSize:   r.backend.ModelSize(),
		ModelParams: r.backend.ModelParams(),
		Config:      cfg,
		StartedAt:   started,
		Trials:      trials,
	}, nil
}

func (r *Runner) measure(ctx context.Context, cfg Config, batch *backend.Batch) ([]Trial, error) {
	trials := make([]Trial, 0, cfg.Trials)
	for trial := 0; trial < cfg.Trials; trial++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		promptTime, err := r.promptPhase(cfg.PromptTokens, batch)
		if err != nil {
			return nil, fmt.Errorf("trial %d prompt phase: %w", trial+1, err)
		}
		genTime, err := r.generationPhase(ctx, cfg.GenTokens, cfg.Lanes, batch)
		if err != nil {
			return nil, fmt.Errorf("trial %d generation phase: %w", trial+1, err)
		}

		t := Trial{
			PromptTokens:    cfg.PromptTokens,
			GeneratedTokens: cfg.GenTokens * cfg.Lanes,
			PromptTime:      promptTime,
			GenerationTime:  genTime,
			PromptTPS:       throughput(cfg.PromptTokens, promptTime),
			GenerationTPS:   throughput(cfg.GenTokens*cfg.Lanes, genTime),
		}
		trials = append(trials, t)
		r.log.Debug("benchmark trial",
			"trial", trial+1,
			"prompt_tps", t.PromptTPS,
			"generation_tps", t.GenerationTPS)
	}
	return trials, nil
}

// promptPhase times one bulk decode of n placeholder tokens on a single
// sequence, logits requested only for the last slot.
func (r *Runner) promptPhase(n int, batch *backend.Batch) (time.Duration, error) {
	batch.EnsureCapacity(n, 1)
	batch.Clear()
	for i := 0; i < n; i++ {
		if err := batch.Add(placeholderToken, int32(i), []int32{0}, i == n-1); err != nil {
			return 0, err
		}
	}

	r.backend.ClearMemory(false)
	start := time.Now()
	if err := r.backend.Decode(batch); err != nil {
		return 0, err
	}
	elapsed := time.Since(start)
	r.backend.ClearMemory(false)
	return elapsed, nil
}

// generationPhase times steps single-position decodes, each carrying
// one slot per lane so parallel sequences share the pass.
func (r *Runner) generationPhase(ctx context.Context, steps, lanes int, batch *backend.Batch) (time.Duration, error) {
	batch.EnsureCapacity(lanes, lanes)

	start := time.Now()
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		batch.Clear()
		for lane := 0; lane < lanes; lane++ {
			if err := batch.Add(placeholderToken, int32(i), []int32{int32(lane)}, true); err != nil {
				return 0, err
			}
		}
		if err := r.backend.Decode(batch); err != nil {
			return 0, err
		}
	}
	elapsed := time.Since(start)
	r.backend.ClearMemory(false)
	return elapsed, nil
}

// RunCorpus benchmarks real prompts end to end through a session. Each
// prompt runs in a cleared context; per-prompt session metrics become
// the trials.
func (r *Runner) RunCorpus(ctx context.Context, s *session.Session, prompts []string, maxNewTokens int) (*Result, error) {
	if len(prompts) == 0 {
		return nil, fmt.Errorf("corpus is empty")
	}
	if maxNewTokens < 1 {
		return nil, fmt.Errorf("max new tokens must be at least 1")
	}

	started := time.Now()
	trials := make([]Trial, 0, len(prompts))
	for i, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.Clear()
		if err := s.Start(session.Prompt{User: prompt, MaxNewTokens: maxNewTokens}); err != nil {
			return nil, fmt.Errorf("prompt %d: %w", i+1, err)
		}
		if err := s.Run(nil); err != nil {
			return nil, fmt.Errorf("prompt %d: %w", i+1, err)
		}

		snap := s.Metrics()
		trials = append(trials, Trial{
			PromptTokens:    snap.PrefillTokens,
			GeneratedTokens: snap.DecodeTokens,
			PromptTime:      snap.PrefillTime,
			GenerationTime:  snap.DecodeTime,
			PromptTPS:       snap.PromptTPS(),
			GenerationTPS:   snap.GenerationTPS(),
		})
	}

	return &Result{
		Mode:        "corpus",
		ModelDesc:   r.backend.ModelDesc(),
		ModelSize:   r.backend.ModelSize(),
		ModelParams: r.backend.ModelParams(),
		Config:      Config{GenTokens: maxNewTokens, Lanes: 1, Trials: len(prompts)},
		StartedAt:   started,
		Trials:      trials,
	}, nil
}

func throughput(tokens int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(tokens) / elapsed.Seconds()
}
