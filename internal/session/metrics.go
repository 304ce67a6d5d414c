package session

import "time"

// Tracker records the phase timestamps and token counts of a single
// generation. All durations derive from three marks: prefill start,
// decode start, and the arrival of the first sampled token.
type Tracker struct {
	now func() time.Time

	prefillStart time.Time
	decodeStart  time.Time
	firstToken   time.Time
	decodeEnd    time.Time

	prefillTokens int
	decodeTokens  int
}

// NewTracker returns a Tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Reset clears all marks and counts for a fresh generation.
func (t *Tracker) Reset() {
	*t = Tracker{now: t.now}
}

// BeginPrefill stamps the start of prompt processing.
func (t *Tracker) BeginPrefill() {
	t.prefillStart = t.now()
}

// EndPrefill stamps the start of the decode phase and records how many
// prompt tokens were processed.
func (t *Tracker) EndPrefill(promptTokens int) {
	t.decodeStart = t.now()
	t.prefillTokens = promptTokens
}

// MarkFirstToken stamps the arrival of the first sampled token. Later
// calls are no-ops, so it is safe to invoke on every step.
func (t *Tracker) MarkFirstToken() {
	if t.firstToken.IsZero() {
		t.firstToken = t.now()
	}
}

// RecordDecoded counts one generated token.
func (t *Tracker) RecordDecoded() {
	t.decodeTokens++
}

// Finish freezes the decode end time so later snapshots stop growing.
func (t *Tracker) Finish() {
	if t.decodeEnd.IsZero() {
		t.decodeEnd = t.now()
	}
}

// Snapshot derives the current latency and throughput figures. Marks
// that were never stamped yield zero durations rather than garbage.
func (t *Tracker) Snapshot() Snapshot {
	snap := Snapshot{
		PrefillTokens: t.prefillTokens,
		DecodeTokens:  t.decodeTokens,
	}
	if !t.prefillStart.IsZero() {
		if !t.firstToken.IsZero() {
			snap.TimeToFirstToken = t.firstToken.Sub(t.prefillStart)
		}
		if !t.decodeStart.IsZero() {
			snap.PrefillTime = t.decodeStart.Sub(t.prefillStart)
		}
	}
	if !t.firstToken.IsZero() {
		end := t.decodeEnd
		if end.IsZero() {
			end = t.now()
		}
		snap.DecodeTime = end.Sub(t.firstToken)
	}
	return snap
}

// Snapshot is a point-in-time view of generation performance.
type Snapshot struct {
	TimeToFirstToken time.Duration
	PrefillTime      time.Duration
	DecodeTime       time.Duration
	PrefillTokens    int
	DecodeTokens     int
}

// PromptTPS reports prefill throughput in tokens per second.
func (s Snapshot) PromptTPS() float64 {
	if s.PrefillTime <= 0 {
		return 0
	}
	return float64(s.PrefillTokens) / s.PrefillTime.Seconds()
}

// GenerationTPS reports decode throughput in tokens per second.
func (s Snapshot) GenerationTPS() float64 {
	if s.DecodeTime <= 0 {
		return 0
	}
	return float64(s.DecodeTokens) / s.DecodeTime.Seconds()
}
