package api

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/samcharles93/crucible/internal/gguf"
	"github.com/samcharles93/crucible/internal/logger"
)

// ModelCatalog lists the models a server reports on /v1/models.
type ModelCatalog interface {
	Models() []ModelInfo
}

// DirCatalog lists the GGUF files under a models directory, reading
// each file's metadata on every call so new downloads show up without a
// restart. Directory entries come back sorted by filename.
type DirCatalog struct {
	dir string
	log logger.Logger
}

func NewDirCatalog(dir string, log logger.Logger) *DirCatalog {
	if log == nil {
		log = logger.Default()
	}
	return &DirCatalog{dir: dir, log: log}
}

func (c *DirCatalog) Models() []ModelInfo {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.log.Warn("models directory unreadable", "dir", c.dir, "error", err)
		return nil
	}

	var models []ModelInfo
	for _, ent := range entries {
		if ent.IsDir() || !strings.EqualFold(filepath.Ext(ent.Name()), ".gguf") {
			continue
		}
		path := filepath.Join(c.dir, ent.Name())
		f, err := gguf.Open(path)
		if err != nil {
			c.log.Warn("skipping unreadable model", "path", path, "error", err)
			continue
		}
		info := ModelInfo{
			ID:           strings.TrimSuffix(ent.Name(), filepath.Ext(ent.Name())),
			Object:       "model",
			Created:      timeNow().Unix(),
			OwnedBy:      "local",
			Architecture: f.Architecture(),
			Quantization: f.Quantization(),
			Parameters:   f.ParamCount(),
			SizeBytes:    f.FileSize,
		}
		if n, ok := f.ContextLength(); ok {
			info.ContextLength = n
		}
		models = append(models, info)
	}
	return models
}
