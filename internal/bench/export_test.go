package bench

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/goccy/go-json"
)

func sampleResult() *Result {
	return &Result{
		Mode:        "synthetic",
		ModelDesc:   "test 7B Q4_K_M",
		ModelSize:   4 << 30,
		ModelParams: 7 << 30,
		Config:      Config{PromptTokens: 512, GenTokens: 128, Lanes: 1, Trials: 2},
		StartedAt:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Trials: []Trial{
			{
				PromptTokens: 512, GeneratedTokens: 128,
				PromptTime: 800 * time.Millisecond, GenerationTime: 4 * time.Second,
				PromptTPS: 640, GenerationTPS: 32,
			},
			{
				PromptTokens: 512, GeneratedTokens: 128,
				PromptTime: 820 * time.Millisecond, GenerationTime: 4100 * time.Millisecond,
				PromptTPS: 624.39, GenerationTPS: 31.22,
			},
		},
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult()); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got Result
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Mode != "synthetic" || len(got.Trials) != 2 {
		t.Fatalf("roundtrip lost data: %+v", got)
	}
	if got.Trials[0].PromptTPS != 640 {
		t.Fatalf("trial tps %v, want 640", got.Trials[0].PromptTPS)
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleResult()); err != nil {
		t.Fatalf("write: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows %d, want header plus 2 trials", len(rows))
	}
	if rows[0][0] != "trial" || rows[0][7] != "prompt_tps" {
		t.Fatalf("header wrong: %v", rows[0])
	}
	if rows[1][3] != "512" || rows[1][7] != "640.00" {
		t.Fatalf("first trial row wrong: %v", rows[1])
	}
	if rows[2][0] != "2" {
		t.Fatalf("second trial row wrong: %v", rows[2])
	}
}

func TestWriteArrow(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := WriteArrow(&buf, sampleResult()); err != nil {
		t.Fatalf("write: %v", err)
	}

	rdr, err := ipc.NewFileReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rdr.Close()

	schema := rdr.Schema()
	if schema.Field(0).Name != "trial" || schema.Field(6).Name != "generation_tps" {
		t.Fatalf("schema fields wrong: %v", schema)
	}
	md := schema.Metadata()
	if idx := md.FindKey("mode"); idx < 0 || md.Values()[idx] != "synthetic" {
		t.Fatalf("schema metadata missing mode: %v", md)
	}

	var rows int64
	for {
		rec, err := rdr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if rows == 0 {
			trials := rec.Column(0).(*array.Int64)
			if trials.Value(0) != 1 {
				t.Fatalf("first trial index %d, want 1", trials.Value(0))
			}
			tps := rec.Column(5).(*array.Float64)
			if tps.Value(0) != 640 {
				t.Fatalf("prompt tps %v, want 640", tps.Value(0))
			}
		}
		rows += rec.NumRows()
	}
	if rows != 2 {
		t.Fatalf("rows %d, want 2", rows)
	}
}

func TestWriteFilePicksFormat(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out.json")
	if err := WriteFile(jsonPath, sampleResult()); err != nil {
		t.Fatalf("json: %v", err)
	}
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
		t.Fatalf("json file does not start with an object: %q", raw[:16])
	}

	if err := WriteFile(filepath.Join(dir, "out.parquet"), sampleResult()); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
