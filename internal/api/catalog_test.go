package api

import (
	"bytes"
	"encoding/binary"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/crucible/internal/gguf"
)

// writeModelFile writes a minimal GGUF header with just enough metadata
// for the catalog to describe it.
func writeModelFile(t *testing.T, path string) {
	t.Helper()

	var buf bytes.Buffer
	raw := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	str := func(s string) {
		raw(uint64(len(s)))
		buf.WriteString(s)
	}

	buf.WriteString("GGUF")
	raw(uint32(3))
	raw(uint64(0)) // tensor count
	raw(uint64(4)) // kv count
	str("general.architecture")
	raw(uint32(gguf.TypeString))
	str("llama")
	str("general.name")
	raw(uint32(gguf.TypeString))
	str("Tiny Test")
	str("llama.context_length")
	raw(uint32(gguf.TypeUint32))
	raw(uint32(2048))
	str("general.file_type")
	raw(uint32(gguf.TypeUint32))
	raw(uint32(7))

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirCatalog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeModelFile(t, filepath.Join(dir, "tiny.gguf"))
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a model"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.gguf"), []byte("GGUFgarbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	models := NewDirCatalog(dir, testLogger()).Models()
	if len(models) != 1 {
		t.Fatalf("expected 1 model, got %d: %+v", len(models), models)
	}
	m := models[0]
	if m.ID != "tiny" {
		t.Fatalf("unexpected id: %q", m.ID)
	}
	if m.Architecture != "llama" {
		t.Fatalf("unexpected architecture: %q", m.Architecture)
	}
	if m.ContextLength != 2048 {
		t.Fatalf("unexpected context length: %d", m.ContextLength)
	}
	if m.Quantization != "Q8_0" {
		t.Fatalf("unexpected quantization: %q", m.Quantization)
	}
	if m.SizeBytes == 0 {
		t.Fatal("expected file size")
	}
}

func TestDirCatalogMissingDir(t *testing.T) {
	t.Parallel()

	models := NewDirCatalog(filepath.Join(t.TempDir(), "absent"), testLogger()).Models()
	if models != nil {
		t.Fatalf("expected no models, got %+v", models)
	}
}

func TestListModelsFromCatalog(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeModelFile(t, filepath.Join(dir, "tiny.gguf"))

	server := NewServer(newTestService(scripted("x")), NewDirCatalog(dir, testLogger()))
	e := echo.New()
	server.Register(e)

	rec := doJSON(t, e, http.MethodGet, "/v1/models", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []ModelInfo `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "tiny" {
		t.Fatalf("unexpected model list: %+v", resp.Data)
	}
	if resp.Data[0].Architecture != "llama" {
		t.Fatalf("unexpected architecture: %q", resp.Data[0].Architecture)
	}
}
