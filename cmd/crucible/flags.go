package main

import (
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/crucible/internal/logger"
)

var (
	modelPath  string
	modelsPath string
	maxContext int64
	threads    int64
	gpuLayers  int64

	temperature float64
	topK        int64
	topP        float64
	minP        float64
	seed        int64

	logLevel  string
	logFormat string
	debug     bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to .gguf model file",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "path to directory containing .gguf models",
			Destination: &modelsPath,
		},
		&cli.Int64Flag{
			Name:        "max-context",
			Aliases:     []string{"max-ctx", "ctx", "c"},
			Usage:       "max context length",
			Value:       4096,
			Destination: &maxContext,
		},
		&cli.Int64Flag{
			Name:        "threads",
			Usage:       "decoder thread count (0 = auto)",
			Destination: &threads,
		},
		&cli.Int64Flag{
			Name:        "gpu-layers",
			Aliases:     []string{"ngl"},
			Usage:       "layers to offload to the GPU",
			Destination: &gpuLayers,
		},
	}
}

func samplingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature", "t"},
			Usage:       "sampling temperature (0 = greedy)",
			Value:       0.8,
			Destination: &temperature,
		},
		&cli.Int64Flag{
			Name:        "top-k",
			Aliases:     []string{"top_k", "topk"},
			Usage:       "top-k sampling parameter",
			Value:       40,
			Destination: &topK,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Aliases:     []string{"top_p", "topp"},
			Usage:       "top-p sampling parameter",
			Value:       0.95,
			Destination: &topP,
		},
		&cli.Float64Flag{
			Name:        "min-p",
			Aliases:     []string{"min_p", "minp"},
			Usage:       "min-p sampling parameter (0.0 = disabled)",
			Value:       0.05,
			Destination: &minP,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling RNG seed (default -1 = random)",
			Value:       -1,
			Destination: &seed,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// newLogger builds the command logger from the logging flag values.
func newLogger() logger.Logger {
	level := logLevel
	if debug {
		level = "debug"
	}
	return logger.New(os.Stderr, level, logFormat)
}
