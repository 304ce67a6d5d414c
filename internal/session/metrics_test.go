package session

import (
	"testing"
	"time"
)

// stubClock hands out a controllable time to the tracker.
type stubClock struct {
	t time.Time
}

func (c *stubClock) now() time.Time { return c.t }

func (c *stubClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newStubClock() *stubClock { return &stubClock{t: time.Unix(1700000000, 0)} }

func TestTrackerSnapshot(t *testing.T) {
	t.Parallel()
	clock := newStubClock()
	tr := NewTracker()
	tr.now = clock.now

	tr.BeginPrefill()
	clock.advance(200 * time.Millisecond)
	tr.EndPrefill(9)
	clock.advance(50 * time.Millisecond)
	tr.MarkFirstToken()
	clock.advance(100 * time.Millisecond)
	tr.MarkFirstToken() // later marks must not move the stamp
	for i := 0; i < 3; i++ {
		tr.RecordDecoded()
	}
	clock.advance(900 * time.Millisecond)
	tr.Finish()

	snap := tr.Snapshot()
	if snap.TimeToFirstToken != 250*time.Millisecond {
		t.Fatalf("ttft %v, want 250ms", snap.TimeToFirstToken)
	}
	if snap.PrefillTime != 200*time.Millisecond {
		t.Fatalf("prefill %v, want 200ms", snap.PrefillTime)
	}
	if snap.DecodeTime != time.Second {
		t.Fatalf("decode %v, want 1s", snap.DecodeTime)
	}
	if snap.PrefillTokens != 9 || snap.DecodeTokens != 3 {
		t.Fatalf("counts %d/%d, want 9/3", snap.PrefillTokens, snap.DecodeTokens)
	}
	if got := snap.PromptTPS(); got != 45 {
		t.Fatalf("prompt tps %v, want 45", got)
	}
	if got := snap.GenerationTPS(); got != 3 {
		t.Fatalf("generation tps %v, want 3", got)
	}
}

func TestTrackerFreshSnapshotIsZero(t *testing.T) {
	t.Parallel()
	snap := NewTracker().Snapshot()
	if snap.TimeToFirstToken != 0 || snap.PrefillTime != 0 || snap.DecodeTime != 0 {
		t.Fatalf("fresh snapshot has nonzero durations: %+v", snap)
	}
	if snap.PromptTPS() != 0 || snap.GenerationTPS() != 0 {
		t.Fatal("fresh snapshot must report zero throughput")
	}
}

func TestTrackerFinishFreezesDecodeTime(t *testing.T) {
	t.Parallel()
	clock := newStubClock()
	tr := NewTracker()
	tr.now = clock.now

	tr.BeginPrefill()
	tr.EndPrefill(4)
	tr.MarkFirstToken()
	clock.advance(500 * time.Millisecond)
	tr.Finish()
	clock.advance(time.Hour)

	if got := tr.Snapshot().DecodeTime; got != 500*time.Millisecond {
		t.Fatalf("decode time %v, want 500ms", got)
	}
}

func TestTrackerNoFirstTokenNoDecodeTime(t *testing.T) {
	t.Parallel()
	clock := newStubClock()
	tr := NewTracker()
	tr.now = clock.now

	tr.BeginPrefill()
	clock.advance(time.Second)
	tr.EndPrefill(4)
	clock.advance(time.Second)

	snap := tr.Snapshot()
	if snap.TimeToFirstToken != 0 {
		t.Fatalf("ttft %v, want 0 when no token sampled", snap.TimeToFirstToken)
	}
	if snap.DecodeTime != 0 {
		t.Fatalf("decode time %v, want 0 when no token sampled", snap.DecodeTime)
	}
	if snap.PrefillTime != time.Second {
		t.Fatalf("prefill %v, want 1s", snap.PrefillTime)
	}
}

func TestTrackerResetKeepsClock(t *testing.T) {
	t.Parallel()
	clock := newStubClock()
	tr := NewTracker()
	tr.now = clock.now

	tr.BeginPrefill()
	tr.EndPrefill(8)
	tr.RecordDecoded()
	tr.Reset()

	snap := tr.Snapshot()
	if snap.PrefillTokens != 0 || snap.DecodeTokens != 0 {
		t.Fatalf("counts after reset %d/%d, want 0/0", snap.PrefillTokens, snap.DecodeTokens)
	}

	// The injected clock must survive the reset.
	tr.BeginPrefill()
	clock.advance(time.Minute)
	tr.EndPrefill(1)
	if got := tr.Snapshot().PrefillTime; got != time.Minute {
		t.Fatalf("prefill after reset %v, want 1m", got)
	}
}
