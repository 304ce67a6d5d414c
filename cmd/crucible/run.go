package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/crucible/internal/family"
	"github.com/samcharles93/crucible/internal/reasoning"
	"github.com/samcharles93/crucible/internal/session"
)

func runCmd() *cli.Command {
	var (
		prompt        string
		system        string
		maxTokens     int64
		familyName    string
		noTemplate    bool
		echoPrompt    bool
		showConfig    bool
		showStats     bool
		reasoningMode string

		// Profiling
		cpuProfile string
		memProfile string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "prompt text (empty = interactive mode)",
			Destination: &prompt,
		},
		&cli.StringFlag{
			Name:        "system",
			Aliases:     []string{"sys"},
			Usage:       "optional system prompt",
			Destination: &system,
		},
		&cli.Int64Flag{
			Name:        "max-tokens",
			Aliases:     []string{"steps", "n"},
			Usage:       "maximum tokens to generate per reply",
			Value:       512,
			Destination: &maxTokens,
		},
		&cli.StringFlag{
			Name:        "family",
			Usage:       "chat framing family (default: detect from model)",
			Destination: &familyName,
		},
		&cli.BoolFlag{
			Name:        "no-template",
			Usage:       "disable chat framing",
			Destination: &noTemplate,
		},
		&cli.BoolFlag{
			Name:        "echo-prompt",
			Usage:       "print rendered prompt before generation",
			Destination: &echoPrompt,
		},
		&cli.BoolFlag{
			Name:        "show-config",
			Usage:       "print model summary before generation",
			Value:       true,
			Destination: &showConfig,
		},
		&cli.BoolFlag{
			Name:        "stats",
			Usage:       "print generation stats after each reply",
			Value:       true,
			Destination: &showStats,
		},
		&cli.StringFlag{
			Name:        "reasoning",
			Usage:       "thinking-block handling (raw, separate, strip)",
			Value:       "separate",
			Destination: &reasoningMode,
		},
		// Profiling flags
		&cli.StringFlag{
			Name:        "cpuprofile",
			Usage:       "write cpu profile to file",
			Destination: &cpuProfile,
		},
		&cli.StringFlag{
			Name:        "memprofile",
			Usage:       "write memory profile to file",
			Destination: &memProfile,
		},
	}
	flags = append(flags, commonModelFlags()...)
	flags = append(flags, samplingFlags()...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "run",
		Usage: "Generate text from a local model",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if cpuProfile != "" {
				f, err := os.Create(cpuProfile)
				if err != nil {
					return cli.Exit(fmt.Sprintf("could not create CPU profile: %v", err), 1)
				}
				defer func() { _ = f.Close() }()
				if err := pprof.StartCPUProfile(f); err != nil {
					return cli.Exit(fmt.Sprintf("could not start CPU profile: %v", err), 1)
				}
				defer pprof.StopCPUProfile()
			}

			if memProfile != "" {
				defer func() {
					f, err := os.Create(memProfile)
					if err != nil {
						fmt.Fprintf(os.Stderr, "could not create memory profile: %v\n", err)
						return
					}
					defer func() { _ = f.Close() }()
					if err := pprof.WriteHeapProfile(f); err != nil {
						fmt.Fprintf(os.Stderr, "could not write memory profile: %v\n", err)
					}
				}()
			}

			cfg := LoadConfig()
			applyRunConfig(c, cfg, &maxTokens)

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
				return cli.Exit("error: crucible run only supports .gguf files", 1)
			}

			switch reasoningMode {
			case "raw", "separate", "strip":
			default:
				return cli.Exit(fmt.Sprintf("error: unknown reasoning mode %q (known: raw, separate, strip)", reasoningMode), 1)
			}

			loadStart := time.Now()
			fmt.Printf("Loading model: %s\n", path)

			b, err := openBackend(path, 1, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open model: %v", err), 1)
			}
			defer func() { _ = b.Close() }()

			fmt.Printf("Model loaded in %s\n", time.Since(loadStart))

			// The model description usually names the family; the file name
			// is the fallback for descriptions that only carry architecture.
			prof := family.Detect(b.ModelDesc())
			if prof == family.Plain {
				prof = family.Detect(filepath.Base(path))
			}
			if familyName != "" {
				p := family.Get(familyName)
				if p == nil {
					return cli.Exit(fmt.Sprintf("error: unknown family %q (known: %s)", familyName, strings.Join(family.Names(), ", ")), 1)
				}
				prof = p
			}
			if noTemplate {
				prof = family.Plain
			}

			if showConfig {
				fmt.Fprintf(os.Stderr, "model: %s\n", b.ModelDesc())
				fmt.Fprintf(os.Stderr, "size=%s params=%s ctx=%d family=%s\n",
					formatModelSize(b.ModelSize()), formatParamCount(b.ModelParams()), b.ContextWindow(), prof.Name)
				fmt.Fprintf(os.Stderr, "sampling: temp=%.3g top_k=%d top_p=%.3g min_p=%.3g seed=%d\n",
					temperature, topK, topP, minP, seed)
			}

			sess, err := session.New(b, session.Options{StopStrings: prof.Stops, Logger: log})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open session: %v", err), 1)
			}

			turns := make([]family.Turn, 0, 10)
			interactive := prompt == ""
			if interactive {
				fmt.Fprintln(os.Stderr, "Interactive mode. Type /exit to quit.")
			} else {
				turns = append(turns, family.Turn{Role: family.RoleUser, Content: prompt})
			}

			editor := newLineEditor(os.Stdin, os.Stdout)

			for {
				// If we need input
				if interactive && (len(turns) == 0 || turns[len(turns)-1].Role != family.RoleUser) {
					input, err := editor.ReadLine("> ")
					if err != nil {
						break
					}
					if strings.TrimSpace(input) == "/exit" {
						break
					}
					if strings.TrimSpace(input) == "" {
						continue
					}
					turns = append(turns, family.Turn{Role: family.RoleUser, Content: input})
				}

				renderedSystem := prof.RenderSystem(system)
				rendered := prof.RenderConversation(turns)

				if echoPrompt && !interactive {
					fmt.Printf("%s%s", renderedSystem, rendered)
				}

				sess.Clear()
				if err := sess.Start(session.Prompt{System: renderedSystem, User: rendered, MaxNewTokens: int(maxTokens)}); err != nil {
					fmt.Fprintln(os.Stderr, "error: start generation:", err)
					break
				}

				// Thinking goes to stderr so the visible answer on stdout
				// stays pipeable.
				emit := func(content, thinking string) {
					if content != "" {
						fmt.Print(content)
					}
					if thinking != "" {
						fmt.Fprint(os.Stderr, thinking)
					}
				}

				var (
					split   reasoning.Splitter
					stepErr error
				)
				for {
					if err := ctx.Err(); err != nil {
						stepErr = err
						break
					}
					piece, done, err := sess.Step()
					if err != nil {
						stepErr = err
						break
					}
					switch reasoningMode {
					case "raw":
						fmt.Print(piece)
					case "separate":
						emit(split.Push(piece))
					case "strip":
						content, _ := split.Push(piece)
						fmt.Print(content)
					}
					if done {
						break
					}
				}
				switch reasoningMode {
				case "separate":
					emit(split.Flush())
				case "strip":
					content, _ := split.Flush()
					fmt.Print(content)
				}

				fmt.Println() // Newline after generation
				if stepErr != nil {
					fmt.Fprintln(os.Stderr, "error: generation:", stepErr)
					break
				}
				if showStats {
					snap := sess.Metrics()
					fmt.Fprintf(os.Stderr, "Stats: ttft %s | prompt %d tok %.2f tps | gen %d tok %.2f tps | stop %s\n",
						snap.TimeToFirstToken.Round(time.Millisecond),
						snap.PrefillTokens, snap.PromptTPS(),
						snap.DecodeTokens, snap.GenerationTPS(),
						sess.Reason())
				}

				// Append assistant response to history
				turns = append(turns, family.Turn{Role: family.RoleAssistant, Content: sess.OutputText()})

				if !interactive {
					break
				}
			}
			return nil
		},
	}
}
