package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/crucible/internal/gguf"
)

func inspectCmd() *cli.Command {
	var (
		path        string
		showAll     bool
		showKV      bool
		showTensors bool
		filter      string
		limit       int
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of a .gguf model file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "model",
				Aliases:     []string{"m"},
				Usage:       "path to .gguf file",
				Destination: &path,
				Required:    true,
			},
			&cli.BoolFlag{Name: "all", Usage: "show metadata and tensors without limits", Destination: &showAll},
			&cli.BoolFlag{Name: "kv", Usage: "list metadata keys", Destination: &showKV},
			&cli.BoolFlag{Name: "tensors", Usage: "list tensor index", Destination: &showTensors},
			&cli.StringFlag{Name: "filter", Usage: "substring filter for metadata and tensor listings", Destination: &filter},
			&cli.IntFlag{Name: "limit", Usage: "limit listings (0 = no limit)", Value: 50, Destination: &limit},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			_ = ctx

			if showAll {
				showKV = true
				showTensors = true
				if limit == 50 {
					limit = 0
				}
			}

			stat, err := os.Stat(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat model path %q: %v", path, err), 1)
			}
			if stat.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".gguf") {
				return cli.Exit("error: crucible inspect only supports .gguf files", 1)
			}

			f, err := gguf.Open(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open gguf: %v", err), 1)
			}

			fmt.Printf("GGUF Inspect: %s\n", path)
			fmt.Printf("File: %s (%s)\n", filepath.Base(path), formatBytes(uint64(stat.Size())))
			fmt.Printf("GGUF Header: v%d kv=%d tensors=%d alignment=%d data_offset=%d\n",
				f.Version, len(f.KV), len(f.Tensors), f.Alignment, f.TensorDataOffset)

			printModelSummary(f)

			if showKV {
				printMetadata(f, filter, limit)
			}
			if showTensors {
				printTensorIndex(f, filter, limit)
			}
			return nil
		},
	}
}

func printModelSummary(f *gguf.File) {
	section("Model")
	row("name", f.Name())
	row("architecture", f.Architecture())
	if v, ok := f.ContextLength(); ok {
		row("context_length", fmt.Sprintf("%d", v))
	}
	if v, ok := f.EmbeddingLength(); ok {
		row("embedding_length", fmt.Sprintf("%d", v))
	}
	if v, ok := f.BlockCount(); ok {
		row("block_count", fmt.Sprintf("%d", v))
	}
	if p := f.ParamCount(); p > 0 {
		row("parameters", formatParamCount(p))
	}
	row("quantization", f.Quantization())
}

func printMetadata(f *gguf.File, filter string, limit int) {
	section("Metadata")
	keys := make([]string, 0, len(f.KV))
	for k := range f.KV {
		if filter != "" && !strings.Contains(k, filter) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	shown := 0
	for _, k := range keys {
		v := f.KV[k]
		fmt.Printf("%-48s %-8s %s\n", k, v.Type, formatMetaValue(v))
		shown++
		if limit > 0 && shown >= limit {
			break
		}
	}
	if limit > 0 && shown < len(keys) {
		fmt.Printf("... (%d shown of %d)\n", shown, len(keys))
	}
}

func printTensorIndex(f *gguf.File, filter string, limit int) {
	section("Tensors")
	shown := 0
	matched := 0
	for _, t := range f.Tensors {
		if filter != "" && !strings.Contains(t.Name, filter) {
			continue
		}
		matched++
		if limit > 0 && shown >= limit {
			continue
		}
		fmt.Printf("%-48s %-8s %s off=%d\n", t.Name, t.Type, formatDims(t.Dims), t.Offset)
		shown++
	}
	if shown < matched {
		fmt.Printf("... (%d shown of %d)\n", shown, matched)
	}
}

// Long strings (chat templates run to kilobytes) and arrays print as
// summaries rather than raw values.
func formatMetaValue(v gguf.Value) string {
	switch t := v.Value.(type) {
	case string:
		if len(t) > 80 {
			return fmt.Sprintf("%q... (%d chars)", t[:80], len(t))
		}
		return fmt.Sprintf("%q", t)
	case gguf.Array:
		return fmt.Sprintf("[%d x %s]", len(t.Values), t.Elem)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func section(title string) {
	line := strings.Repeat("-", len(title)+8)
	fmt.Printf("\n%s\n--- %s ---\n%s\n", line, title, line)
}

func row(label, value string) {
	if value == "" {
		return
	}
	fmt.Printf("%-24s %s\n", label+":", value)
}

func formatDims(dims []uint64) string {
	if len(dims) == 0 {
		return "[]"
	}
	parts := make([]string, len(dims))
	for i, v := range dims {
		parts[i] = fmt.Sprintf("%d", v)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func formatBytes(b uint64) string {
	const (
		kb = uint64(1024)
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)
	switch {
	case b >= tb:
		return fmt.Sprintf("%.2f TiB", float64(b)/float64(tb))
	case b >= gb:
		return fmt.Sprintf("%.2f GiB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.2f MiB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.2f KiB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
