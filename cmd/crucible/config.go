package main

import (
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// Config represents the crucible configuration file
// (~/.config/crucible/config.yaml). Sampling fields are pointers so an
// explicit zero in the file is distinguishable from "not set".
type Config struct {
	ModelsDir string `yaml:"models_dir"`

	// Sampling defaults
	Temperature *float64 `yaml:"temperature"`
	TopK        *int64   `yaml:"top_k"`
	TopP        *float64 `yaml:"top_p"`
	MinP        *float64 `yaml:"min_p"`
	Seed        *int64   `yaml:"seed"`

	// Context
	MaxContext *int64 `yaml:"max_context"`
	MaxTokens  *int64 `yaml:"max_tokens"`
	Threads    *int64 `yaml:"threads"`
	GPULayers  *int64 `yaml:"gpu_layers"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "crucible", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file
// doesn't exist or fails to parse.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}

// applyCommonConfig applies config file defaults to the shared model and
// sampling flag variables when the corresponding CLI flag was not
// explicitly set.
func applyCommonConfig(c *cli.Command, cfg Config) {
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		modelsPath = cfg.ModelsDir
	}
	if cfg.MaxContext != nil && !c.IsSet("max-context") {
		maxContext = *cfg.MaxContext
	}
	if cfg.Threads != nil && !c.IsSet("threads") {
		threads = *cfg.Threads
	}
	if cfg.GPULayers != nil && !c.IsSet("gpu-layers") {
		gpuLayers = *cfg.GPULayers
	}
	if cfg.Temperature != nil && !c.IsSet("temp") && !c.IsSet("temperature") && !c.IsSet("t") {
		temperature = *cfg.Temperature
	}
	if cfg.TopK != nil && !c.IsSet("top-k") && !c.IsSet("top_k") && !c.IsSet("topk") {
		topK = *cfg.TopK
	}
	if cfg.TopP != nil && !c.IsSet("top-p") && !c.IsSet("top_p") && !c.IsSet("topp") {
		topP = *cfg.TopP
	}
	if cfg.MinP != nil && !c.IsSet("min-p") && !c.IsSet("min_p") && !c.IsSet("minp") {
		minP = *cfg.MinP
	}
	if cfg.Seed != nil && !c.IsSet("seed") {
		seed = *cfg.Seed
	}
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}

// applyRunConfig applies config file defaults to run command variables.
func applyRunConfig(c *cli.Command, cfg Config, maxTokens *int64) {
	applyCommonConfig(c, cfg)
	if cfg.MaxTokens != nil && !c.IsSet("max-tokens") && !c.IsSet("steps") && !c.IsSet("n") {
		*maxTokens = *cfg.MaxTokens
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	applyCommonConfig(c, cfg)
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

// applyBenchConfig applies config file defaults to bench command variables.
func applyBenchConfig(c *cli.Command, cfg Config) {
	applyCommonConfig(c, cfg)
}
