package bench

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestHistoryRoundtrip(t *testing.T) {
	t.Parallel()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	ctx := context.Background()
	older := sampleResult()
	newer := sampleResult()
	newer.StartedAt = older.StartedAt.Add(time.Hour)
	newer.ModelDesc = "newer model"

	if err := h.Record(ctx, older); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := h.Record(ctx, newer); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := h.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows %d, want 2", len(got))
	}
	if got[0].Model != "newer model" {
		t.Fatalf("newest first: got %q", got[0].Model)
	}

	wantPrompt := older.PromptStats()
	if math.Abs(got[1].Prompt.Mean-wantPrompt.Mean) > 1e-9 {
		t.Fatalf("prompt mean %v, want %v", got[1].Prompt.Mean, wantPrompt.Mean)
	}
	if got[1].Config.PromptTokens != 512 || got[1].Config.Trials != 2 {
		t.Fatalf("config roundtrip wrong: %+v", got[1].Config)
	}
	if got[0].CreatedAt.Unix() != newer.StartedAt.Unix() {
		t.Fatalf("created at %v, want %v", got[0].CreatedAt, newer.StartedAt)
	}
}

func TestHistoryRecentLimit(t *testing.T) {
	t.Parallel()
	h, err := OpenHistory(filepath.Join(t.TempDir(), "bench.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer h.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		res := sampleResult()
		res.StartedAt = res.StartedAt.Add(time.Duration(i) * time.Minute)
		if err := h.Record(ctx, res); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	got, err := h.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("rows %d, want 3", len(got))
	}
}
