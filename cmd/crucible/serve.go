package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/crucible/internal/api"
	"github.com/samcharles93/crucible/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
	}
	flags = append(flags, commonModelFlags()...)
	flags = append(flags, samplingFlags()...)
	flags = append(flags, loggingFlags()...)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the REST API (completions)",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			applyServeConfig(c, cfg, &addr)

			log := newLogger()
			ctx = logger.WithContext(ctx, log)

			path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve model: %v", err), 1)
			}

			b, err := openBackend(path, 1, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open model: %v", err), 1)
			}
			defer func() { _ = b.Close() }()

			modelID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			catalogDir := modelsPath
			if catalogDir == "" {
				catalogDir = os.Getenv(envCrucibleModelsDir)
			}
			if catalogDir == "" {
				catalogDir = filepath.Dir(path)
			}

			provider := api.NewLockedBackendProvider(b, flagParams(1))
			service := api.NewCompletionService(provider, modelID, log)
			server := api.NewServer(service, api.NewDirCatalog(catalogDir, log))

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr, "model", modelID)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
