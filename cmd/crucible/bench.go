package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/crucible/internal/bench"
	"github.com/samcharles93/crucible/internal/family"
	"github.com/samcharles93/crucible/internal/session"
)

func benchCmd() *cli.Command {
	var (
		promptTokens int64
		genTokens    int64
		lanes        int64
		trials       int64
		noWarmup     bool
		corpusPath   string
		maxTokens    int64
		exportPath   string
		historyPath  string
	)

	flags := append([]cli.Flag{}, commonModelFlags()...)
	flags = append(flags, samplingFlags()...)
	flags = append(flags, loggingFlags()...)
	flags = append(flags,
		&cli.Int64Flag{
			Name:        "prompt-tokens",
			Aliases:     []string{"pp"},
			Usage:       "synthetic prompt size in tokens",
			Value:       512,
			Destination: &promptTokens,
		},
		&cli.Int64Flag{
			Name:        "gen-tokens",
			Aliases:     []string{"tg"},
			Usage:       "tokens to generate per trial",
			Value:       128,
			Destination: &genTokens,
		},
		&cli.Int64Flag{
			Name:        "parallel",
			Aliases:     []string{"pl"},
			Usage:       "parallel decode lanes in the generation phase",
			Value:       1,
			Destination: &lanes,
		},
		&cli.Int64Flag{
			Name:        "runs",
			Usage:       "number of measured trials",
			Value:       3,
			Destination: &trials,
		},
		&cli.BoolFlag{
			Name:        "no-warmup",
			Usage:       "skip the unrecorded warmup pass",
			Destination: &noWarmup,
		},
		&cli.StringFlag{
			Name:        "corpus",
			Usage:       "file of prompts, one per line, to replay instead of the synthetic load",
			Destination: &corpusPath,
		},
		&cli.Int64Flag{
			Name:        "max-tokens",
			Aliases:     []string{"n"},
			Usage:       "generation cap per corpus prompt",
			Value:       128,
			Destination: &maxTokens,
		},
		&cli.StringFlag{
			Name:        "export",
			Usage:       "write results to file (.json, .csv, .arrow)",
			Destination: &exportPath,
		},
		&cli.StringFlag{
			Name:        "history",
			Usage:       "sqlite file to append results to",
			Destination: &historyPath,
		},
	)

	return &cli.Command{
		Name:  "bench",
		Usage: "Measure prompt and generation throughput",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			applyBenchConfig(c, cfg)

			log := newLogger()

			path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve model: %v", err), 1)
			}

			stat, err := os.Stat(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: stat model path %q: %v", path, err), 1)
			}
			if stat.IsDir() || !strings.HasSuffix(strings.ToLower(path), ".gguf") {
				return cli.Exit("error: bench only supports .gguf files", 1)
			}

			log.Info("loading model for benchmark", "path", path)
			loadStart := time.Now()
			b, err := openBackend(path, int(lanes), log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open model: %v", err), 1)
			}
			defer func() { _ = b.Close() }()
			loadDuration := time.Since(loadStart)

			// Print system info
			fmt.Println("=== Crucible Benchmark ===")
			fmt.Printf("Model:    %s (%s)\n", b.ModelDesc(), formatModelSize(b.ModelSize()))
			fmt.Printf("File:     %s\n", path)
			fmt.Printf("CPUs:     %d\n", runtime.NumCPU())
			fmt.Printf("GOMAXPROCS: %d\n", runtime.GOMAXPROCS(0))
			fmt.Printf("Load:     %s\n", loadDuration.Round(time.Millisecond))
			if corpusPath != "" {
				fmt.Printf("Corpus:   %s (cap %d tokens per prompt)\n", corpusPath, maxTokens)
			} else {
				fmt.Printf("Prompt:   %d tokens\n", promptTokens)
				fmt.Printf("Generate: %d tokens x %d lanes\n", genTokens, lanes)
			}
			fmt.Printf("Runs:     %d\n", trials)
			fmt.Println()

			runner := bench.NewRunner(b, log)

			var res *bench.Result
			if corpusPath != "" {
				prompts, err := readCorpus(corpusPath)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: read corpus: %v", err), 1)
				}
				prof := family.Detect(b.ModelDesc())
				if prof == family.Plain {
					prof = family.Detect(filepath.Base(path))
				}
				sess, err := session.New(b, session.Options{StopStrings: prof.Stops, Logger: log})
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: open session: %v", err), 1)
				}
				res, err = runner.RunCorpus(ctx, sess, prompts, int(maxTokens))
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: corpus benchmark: %v", err), 1)
				}
			} else {
				res, err = runner.Run(ctx, bench.Config{
					PromptTokens: int(promptTokens),
					GenTokens:    int(genTokens),
					Lanes:        int(lanes),
					Trials:       int(trials),
					Warmup:       !noWarmup,
				})
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: benchmark: %v", err), 1)
				}
			}

			// Print results
			fmt.Println("=== Results ===")
			fmt.Printf("%-6s %12s %12s %10s %10s\n", "Run", "Prompt", "Gen", "PromptTok", "GenTok")
			fmt.Printf("%-6s %12s %12s %10s %10s\n", "---", "tps", "tps", "", "")
			for i, tr := range res.Trials {
				fmt.Printf("%-6d %12.2f %12.2f %10d %10d\n",
					i+1, tr.PromptTPS, tr.GenerationTPS, tr.PromptTokens, tr.GeneratedTokens)
			}
			prompt := res.PromptStats()
			gen := res.GenerationStats()
			fmt.Printf("\n%-6s %12s %12s\n", "Avg",
				fmt.Sprintf("%.2f±%.2f", prompt.Mean, prompt.Std),
				fmt.Sprintf("%.2f±%.2f", gen.Mean, gen.Std))

			// Memory stats
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			fmt.Printf("\nMemory: %.1f MB alloc, %.1f MB sys\n",
				float64(mem.Alloc)/(1024*1024),
				float64(mem.Sys)/(1024*1024))

			if exportPath != "" {
				if err := bench.WriteFile(exportPath, res); err != nil {
					return cli.Exit(fmt.Sprintf("error: export results: %v", err), 1)
				}
				fmt.Printf("\nResults written to %s\n", exportPath)
			}

			if historyPath != "" {
				if err := appendHistory(ctx, historyPath, res); err != nil {
					return cli.Exit(fmt.Sprintf("error: record history: %v", err), 1)
				}
			}
			return nil
		},
	}
}

// readCorpus loads one prompt per line, skipping blanks and comments.
func readCorpus(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var prompts []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return prompts, nil
}

// appendHistory records the run and prints the latest entries for
// comparison against earlier runs on the same machine.
func appendHistory(ctx context.Context, path string, res *bench.Result) error {
	h, err := bench.OpenHistory(path)
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()

	if err := h.Record(ctx, res); err != nil {
		return err
	}
	recent, err := h.Recent(ctx, 5)
	if err != nil {
		return err
	}

	fmt.Println("\n=== History (latest 5) ===")
	fmt.Printf("%-20s %-10s %8s %8s %6s %12s %12s\n",
		"When", "Mode", "pp", "tg", "pl", "Prompt tps", "Gen tps")
	for _, s := range recent {
		fmt.Printf("%-20s %-10s %8d %8d %6d %12.2f %12.2f\n",
			s.CreatedAt.Format("2006-01-02 15:04:05"), s.Mode,
			s.Config.PromptTokens, s.Config.GenTokens, s.Config.Lanes,
			s.Prompt.Mean, s.Gen.Mean)
	}
	return nil
}
