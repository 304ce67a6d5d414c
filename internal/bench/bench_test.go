package bench

import (
	"context"
	"testing"

	"github.com/samcharles93/crucible/internal/backend"
	"github.com/samcharles93/crucible/internal/session"
)

type decodeCall struct {
	tokens []backend.Token
	pos    []int32
	seqs   [][]int32
	logits []bool
}

// fakeBackend records every decode so tests can verify the batch shapes
// the runner produces.
type fakeBackend struct {
	ctxWindow int
	decodes   []decodeCall
	clears    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{ctxWindow: 4096}
}

func (f *fakeBackend) Tokenize(text string, addLeadingMarker bool) ([]backend.Token, error) {
	var toks []backend.Token
	for _, r := range text {
		toks = append(toks, backend.Token(r))
	}
	return toks, nil
}

func (f *fakeBackend) Decode(b *backend.Batch) error {
	call := decodeCall{}
	for i := 0; i < b.Count(); i++ {
		call.tokens = append(call.tokens, b.Token(i))
		call.pos = append(call.pos, b.Pos(i))
		call.seqs = append(call.seqs, append([]int32(nil), b.SeqIDs(i)...))
		call.logits = append(call.logits, b.WantsLogits(i))
	}
	f.decodes = append(f.decodes, call)
	return nil
}

func (f *fakeBackend) SampleNext(lastLogitSlot int) (backend.Token, error) {
	return 65, nil // never end of generation
}

func (f *fakeBackend) IsEndOfGeneration(tok backend.Token) bool { return false }
func (f *fakeBackend) TokenBytes(tok backend.Token) []byte      { return []byte(string(rune(tok))) }
func (f *fakeBackend) ClearMemory(fullReset bool)               { f.clears++ }
func (f *fakeBackend) ContextWindow() int                       { return f.ctxWindow }
func (f *fakeBackend) ModelDesc() string                        { return "fake 1B F16" }
func (f *fakeBackend) ModelSize() uint64                        { return 1 << 30 }
func (f *fakeBackend) ModelParams() uint64                      { return 1 << 27 }
func (f *fakeBackend) Close() error                             { return nil }

func TestRunDecodePattern(t *testing.T) {
	t.Parallel()
	fb := newFakeBackend()
	r := NewRunner(fb, nil)

	cfg := Config{PromptTokens: 16, GenTokens: 4, Lanes: 2, Trials: 2}
	res, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// Each trial: one bulk prompt decode plus GenTokens stepped decodes.
	if len(fb.decodes) != 2*(1+4) {
		t.Fatalf("decode calls %d, want 10", len(fb.decodes))
	}

	prompt := fb.decodes[0]
	if len(prompt.tokens) != 16 {
		t.Fatalf("prompt decode carries %d slots, want 16", len(prompt.tokens))
	}
	for i, wants := range prompt.logits {
		if wants != (i == 15) {
			t.Fatalf("prompt slot %d logits=%v; only the last slot may request logits", i, wants)
		}
	}

	step := fb.decodes[1]
	if len(step.tokens) != 2 {
		t.Fatalf("generation decode carries %d slots, want 2", len(step.tokens))
	}
	for lane := 0; lane < 2; lane++ {
		if step.pos[lane] != 0 {
			t.Fatalf("first step lane %d at pos %d, want 0", lane, step.pos[lane])
		}
		if len(step.seqs[lane]) != 1 || step.seqs[lane][0] != int32(lane) {
			t.Fatalf("lane %d sequence ids %v, want [%d]", lane, step.seqs[lane], lane)
		}
		if !step.logits[lane] {
			t.Fatalf("lane %d must request logits", lane)
		}
	}
	if fb.decodes[4].pos[0] != 3 {
		t.Fatalf("final step at pos %d, want 3", fb.decodes[4].pos[0])
	}

	// Memory clears bracket the prompt phase and follow the generation
	// phase, every trial.
	if fb.clears != 2*3 {
		t.Fatalf("memory cleared %d times, want 6", fb.clears)
	}

	if len(res.Trials) != 2 {
		t.Fatalf("trials %d, want 2", len(res.Trials))
	}
	for _, tr := range res.Trials {
		if tr.PromptTokens != 16 || tr.GeneratedTokens != 8 {
			t.Fatalf("trial accounting %d/%d, want 16/8", tr.PromptTokens, tr.GeneratedTokens)
		}
		if tr.PromptTPS < 0 || tr.GenerationTPS < 0 {
			t.Fatalf("negative throughput: %+v", tr)
		}
	}
	if res.Mode != "synthetic" || res.ModelDesc != "fake 1B F16" {
		t.Fatalf("result header wrong: %+v", res)
	}
}

func TestRunWarmupIsNotRecorded(t *testing.T) {
	t.Parallel()
	fb := newFakeBackend()
	r := NewRunner(fb, nil)

	cfg := Config{PromptTokens: 16, GenTokens: 4, Lanes: 1, Trials: 1, Warmup: true}
	res, err := r.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Warmup adds its own prompt + 4 steps ahead of the measured ones.
	if len(fb.decodes) != 5+5 {
		t.Fatalf("decode calls %d, want 10", len(fb.decodes))
	}
	if len(res.Trials) != 1 {
		t.Fatalf("trials %d, want 1", len(res.Trials))
	}
}

func TestRunValidatesConfig(t *testing.T) {
	t.Parallel()
	r := NewRunner(newFakeBackend(), nil)
	if _, err := r.Run(context.Background(), Config{}); err == nil {
		t.Fatal("expected validation error for zero config")
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	t.Parallel()
	r := NewRunner(newFakeBackend(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, Config{PromptTokens: 8, GenTokens: 2, Lanes: 1, Trials: 1}); err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestRunCorpus(t *testing.T) {
	t.Parallel()
	fb := newFakeBackend()
	s, err := session.New(fb, session.Options{})
	if err != nil {
		t.Fatalf("session: %v", err)
	}

	r := NewRunner(fb, nil)
	res, err := r.RunCorpus(context.Background(), s, []string{"first prompt", "second"}, 3)
	if err != nil {
		t.Fatalf("corpus: %v", err)
	}

	if res.Mode != "corpus" {
		t.Fatalf("mode %q, want corpus", res.Mode)
	}
	if len(res.Trials) != 2 {
		t.Fatalf("trials %d, want 2", len(res.Trials))
	}
	for i, tr := range res.Trials {
		if tr.GeneratedTokens != 3 {
			t.Fatalf("trial %d generated %d tokens, want 3", i, tr.GeneratedTokens)
		}
	}
	if res.Trials[0].PromptTokens != len("first prompt") {
		t.Fatalf("trial 0 prompt tokens %d, want %d", res.Trials[0].PromptTokens, len("first prompt"))
	}
}

func TestRunCorpusRejectsEmpty(t *testing.T) {
	t.Parallel()
	r := NewRunner(newFakeBackend(), nil)
	s, _ := session.New(newFakeBackend(), session.Options{})
	if _, err := r.RunCorpus(context.Background(), s, nil, 8); err == nil {
		t.Fatal("expected error for empty corpus")
	}
}
