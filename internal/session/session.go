// Package session drives a single interactive generation over a native
// decoding backend: prefill the prompt in one decode call, then emit one
// token per step until a stop condition fires. A session is a strictly
// single-writer object; all mutating calls are serialized internally and
// concurrent generations require separate sessions over separate backend
// contexts.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/samcharles93/crucible/internal/backend"
	"github.com/samcharles93/crucible/internal/logger"
	"github.com/samcharles93/crucible/internal/metrics"
	"github.com/samcharles93/crucible/internal/textstream"
)

// ErrState is returned when an operation is invalid for the session's
// current state, such as stepping a session that was never started.
var ErrState = errors.New("operation not valid in current session state")

// State identifies where a session is in its generation lifecycle.
type State int

const (
	StateIdle State = iota
	StatePrefilling
	StateDecoding
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrefilling:
		return "prefilling"
	case StateDecoding:
		return "decoding"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StopReason records why a completed generation ended.
type StopReason string

const (
	StopNone        StopReason = ""
	StopEOG         StopReason = "eog"
	StopLength      StopReason = "length"
	StopSequence    StopReason = "stop"
	StopContextFull StopReason = "context_full"
)

// defaultBatchCapacity is the initial slot count of the shared batch; it
// grows on demand when a prompt needs more.
const defaultBatchCapacity = 512

var laneZero = []int32{0}

// Options configures a new Session.
type Options struct {
	// StopStrings end the generation when they appear in the output.
	// Matched text and everything after it is excluded from the result.
	StopStrings []string

	// BatchCapacity sets the initial batch slot count. Zero means the
	// default; the batch grows as needed either way.
	BatchCapacity int

	Logger logger.Logger
}

// Prompt is the input to one generation.
type Prompt struct {
	// System is retained in full even when it alone overflows the
	// context window. Empty means no system segment.
	System string

	User string

	// MaxNewTokens bounds how many tokens may be generated. Must be
	// positive.
	MaxNewTokens int

	// UserTokenCap, when positive, further limits how many user tokens
	// survive fitting regardless of the window-derived budget.
	UserTokenCap int
}

// Session owns one generation stream over a backend context.
type Session struct {
	mu sync.Mutex

	backend backend.Backend
	batch   *backend.Batch
	asm     textstream.Assembler
	stop    *textstream.StopMatcher
	tracker *Tracker
	log     logger.Logger

	state        State
	reason       StopReason
	maxNewTokens int
	position     int32
	promptLen    int
	decoded      int
}

// New creates a session over an initialized backend.
func New(b backend.Backend, opts Options) (*Session, error) {
	if b == nil {
		return nil, fmt.Errorf("nil backend: %w", backend.ErrInit)
	}
	capacity := opts.BatchCapacity
	if capacity <= 0 {
		capacity = defaultBatchCapacity
	}
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	metrics.RecordSessionStart()
	return &Session{
		backend: b,
		batch:   backend.NewBatch(capacity, 1),
		stop:    textstream.NewStopMatcher(opts.StopStrings),
		tracker: NewTracker(),
		log:     log,
		state:   StateIdle,
	}, nil
}

// Start tokenizes and fits the prompt, then runs the prefill decode over
// all prompt tokens at once. On success the session is ready to Step.
// Start itself never purges backend decode memory, and prompt positions
// restart at zero, so callers begin each generation with Clear.
func (s *Session) Start(p Prompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.MaxNewTokens <= 0 {
		return fmt.Errorf("max new tokens must be positive, got %d", p.MaxNewTokens)
	}

	s.resetGeneration()
	s.state = StatePrefilling
	s.tracker.BeginPrefill()
	s.maxNewTokens = p.MaxNewTokens

	var system []backend.Token
	if p.System != "" {
		toks, err := s.backend.Tokenize(p.System, true)
		if err != nil {
			s.state = StateFailed
			return fmt.Errorf("tokenize system prompt: %w", err)
		}
		system = toks
	}
	user, err := s.backend.Tokenize(p.User, p.System == "")
	if err != nil {
		s.state = StateFailed
		return fmt.Errorf("tokenize user prompt: %w", err)
	}
	if len(system)+len(user) == 0 {
		s.state = StateIdle
		return fmt.Errorf("prompt produced no tokens")
	}

	prompt := FitPrompt(s.backend.ContextWindow(), system, user, p.MaxNewTokens, p.UserTokenCap)
	s.log.Debug("prompt fitted",
		"system_tokens", len(system),
		"user_tokens", len(user),
		"prompt_tokens", len(prompt),
		"context_window", s.backend.ContextWindow())

	s.batch.EnsureCapacity(len(prompt), 1)
	s.batch.Clear()
	for i, tok := range prompt {
		if err := s.batch.Add(tok, int32(i), laneZero, i == len(prompt)-1); err != nil {
			s.state = StateFailed
			return fmt.Errorf("stage prompt token %d: %w", i, err)
		}
	}

	err = s.backend.Decode(s.batch)
	metrics.RecordDecode(err)
	if err != nil {
		s.state = StateFailed
		return fmt.Errorf("prefill decode: %w", err)
	}

	s.position = int32(len(prompt))
	s.promptLen = len(prompt)
	s.tracker.EndPrefill(len(prompt))
	metrics.RecordPrefill(len(prompt), s.tracker.Snapshot().PrefillTime)
	s.state = StateDecoding
	return nil
}

// Step samples and processes one token. It returns the newly emitted
// text increment, whether the generation has finished, and any backend
// error. The increment may be empty while multi-byte sequences or stop
// candidates are pending, and may be non-empty on the final step. After
// a backend failure the session moves to the failed state but all
// previously emitted output remains readable via OutputText.
func (s *Session) Step() (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateDecoding:
	case StateDone:
		return "", true, fmt.Errorf("step after completion: %w", ErrState)
	default:
		return "", false, fmt.Errorf("step in state %q: %w", s.state, ErrState)
	}

	tok, err := s.backend.SampleNext(s.batch.Count() - 1)
	if err != nil {
		s.state = StateFailed
		return "", false, fmt.Errorf("sample next token: %w", err)
	}
	s.tracker.MarkFirstToken()

	if int(s.position) >= s.backend.ContextWindow() {
		s.finish(StopContextFull)
		return "", true, nil
	}
	if s.backend.IsEndOfGeneration(tok) {
		s.finish(StopEOG)
		return "", true, nil
	}

	piece := s.asm.Push(s.backend.TokenBytes(tok))
	increment, matched := s.stop.Push(piece)
	if matched {
		s.finish(StopSequence)
		return increment, true, nil
	}

	s.batch.Clear()
	if err := s.batch.Add(tok, s.position, laneZero, true); err != nil {
		s.state = StateFailed
		return "", false, fmt.Errorf("stage token: %w", err)
	}
	err = s.backend.Decode(s.batch)
	metrics.RecordDecode(err)
	if err != nil {
		s.state = StateFailed
		return "", false, fmt.Errorf("decode token: %w", err)
	}

	s.position++
	s.decoded++
	s.tracker.RecordDecoded()
	if s.decoded >= s.maxNewTokens {
		s.finish(StopLength)
		return increment, true, nil
	}
	return increment, false, nil
}

// Run steps the session to completion, invoking emit for every non-empty
// increment. It is a convenience loop over Step for hosts that do not
// need per-step control.
func (s *Session) Run(emit func(string)) error {
	for {
		increment, done, err := s.Step()
		if err != nil {
			return err
		}
		if increment != "" && emit != nil {
			emit(increment)
		}
		if done {
			return nil
		}
	}
}

// Clear purges the backend's held decode memory and resets all
// per-generation state, returning the session to idle.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend.ClearMemory(true)
	s.resetGeneration()
	s.state = StateIdle
}

func (s *Session) resetGeneration() {
	s.position = 0
	s.promptLen = 0
	s.decoded = 0
	s.maxNewTokens = 0
	s.reason = StopNone
	s.asm.Reset()
	s.stop.Reset()
	s.tracker.Reset()
}

func (s *Session) finish(reason StopReason) {
	s.state = StateDone
	s.reason = reason
	s.tracker.Finish()
	snap := s.tracker.Snapshot()
	metrics.RecordCompletion(string(reason), snap.DecodeTokens, snap.TimeToFirstToken, snap.GenerationTPS())
	s.log.Debug("generation finished",
		"reason", string(reason),
		"prompt_tokens", snap.PrefillTokens,
		"generated_tokens", snap.DecodeTokens,
		"generation_tps", snap.GenerationTPS())
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Reason reports why the generation stopped, or StopNone while it has
// not.
func (s *Session) Reason() StopReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// OutputText returns everything emitted so far, with any matched stop
// string and trailing text already excluded.
func (s *Session) OutputText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop.Text()
}

// PromptTokens reports how many tokens the fitted prompt occupied.
func (s *Session) PromptTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promptLen
}

// Metrics returns the current performance snapshot.
func (s *Session) Metrics() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker.Snapshot()
}

// ModelDesc reports the backend's model description string.
func (s *Session) ModelDesc() string { return s.backend.ModelDesc() }

// ModelSize reports the backend model's weight size in bytes.
func (s *Session) ModelSize() uint64 { return s.backend.ModelSize() }

// ModelParams reports the backend model's parameter count.
func (s *Session) ModelParams() uint64 { return s.backend.ModelParams() }

// ContextWindow reports the backend context length in tokens.
func (s *Session) ContextWindow() int { return s.backend.ContextWindow() }
