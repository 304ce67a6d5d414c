package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/crucible/internal/gguf"
)

func listModelsCmd() *cli.Command {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "path to directory containing .gguf models",
			Destination: &modelsPath,
		},
	}
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:    "list-models",
		Aliases: []string{"ls", "models"},
		Usage:   "List available GGUF models",
		Flags:   flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := newLogger()

			dir := strings.TrimSpace(modelsPath)
			if dir == "" {
				dir = strings.TrimSpace(os.Getenv(envCrucibleModelsDir))
			}
			if dir == "" {
				return cli.Exit("error: --models-path is required unless CRUCIBLE_MODELS_DIR is set", 1)
			}

			models, err := discoverModels(dir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(models) == 0 {
				log.Info("no models found", "path", dir)
				return nil
			}

			fmt.Printf("Models in %s:\n\n", dir)
			for _, m := range models {
				name := filepath.Base(m)
				info, err := os.Stat(m)
				if err != nil {
					fmt.Printf("  %s\n", name)
					continue
				}
				size := formatModelSize(uint64(info.Size()))

				// Architecture, parameter count, and quantization come
				// from the GGUF header; unreadable files still list.
				detail := ""
				if f, err := gguf.Open(m); err == nil {
					parts := make([]string, 0, 3)
					if arch := f.Architecture(); arch != "" {
						parts = append(parts, arch)
					}
					if p := f.ParamCount(); p > 0 {
						parts = append(parts, formatParamCount(p))
					}
					if q := f.Quantization(); q != "" {
						parts = append(parts, q)
					}
					detail = strings.Join(parts, " ")
				}

				if detail != "" {
					fmt.Printf("  %-48s %10s  (%s)\n", name, size, detail)
				} else {
					fmt.Printf("  %-48s %10s\n", name, size)
				}
			}
			fmt.Printf("\n%d model(s) found\n", len(models))
			return nil
		},
	}
}

func formatModelSize(bytes uint64) string {
	const (
		kb = uint64(1024)
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func formatParamCount(n uint64) string {
	const (
		k = uint64(1000)
		m = 1000 * k
		b = 1000 * m
	)
	switch {
	case n >= b:
		return fmt.Sprintf("%.2fB", float64(n)/float64(b))
	case n >= m:
		return fmt.Sprintf("%.2fM", float64(n)/float64(m))
	case n >= k:
		return fmt.Sprintf("%.2fK", float64(n)/float64(k))
	default:
		return fmt.Sprintf("%d", n)
	}
}
