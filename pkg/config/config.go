// Package config loads application settings from an optional YAML file
// with environment-variable overrides, and translates them into the
// optimizer's run configuration.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	errs "github.com/XiaoConstantine/promptimal/pkg/errors"
	"github.com/XiaoConstantine/promptimal/pkg/optimizer"
)

// Config is the application-level configuration. YAML keys map to the
// file format; env tags name the overriding environment variables.
type Config struct {
	Provider string `yaml:"provider" env:"PROMPTIMAL_PROVIDER" validate:"required"`
	Model    string `yaml:"model" env:"PROMPTIMAL_MODEL" validate:"required"`
	APIKey   string `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
	BaseURL  string `yaml:"base_url" env:"PROMPTIMAL_BASE_URL"`

	NumIters   int     `yaml:"num_iters" env:"PROMPTIMAL_NUM_ITERS" validate:"gte=1"`
	NumSamples int     `yaml:"num_samples" env:"PROMPTIMAL_NUM_SAMPLES" validate:"gte=1"`
	NumElites  int     `yaml:"num_elites" env:"PROMPTIMAL_NUM_ELITES" validate:"gte=1"`
	Threshold  float64 `yaml:"threshold" env:"PROMPTIMAL_THRESHOLD" validate:"gte=0,lte=1"`

	Evaluator     string `yaml:"evaluator" env:"PROMPTIMAL_EVALUATOR" validate:"oneof=judge external"`
	EvaluatorPath string `yaml:"evaluator_path" env:"PROMPTIMAL_EVALUATOR_PATH"`
	JudgeSamples  int    `yaml:"judge_samples" env:"PROMPTIMAL_JUDGE_SAMPLES" validate:"gte=1"`
	JudgeQuorum   int    `yaml:"judge_quorum" env:"PROMPTIMAL_JUDGE_QUORUM" validate:"gte=1"`

	Concurrency    int     `yaml:"concurrency" env:"PROMPTIMAL_CONCURRENCY" validate:"gte=0"`
	RequestsPerSec float64 `yaml:"requests_per_sec" env:"PROMPTIMAL_RPS" validate:"gte=0"`
	Temperature    float64 `yaml:"temperature" env:"PROMPTIMAL_TEMPERATURE" validate:"gte=0,lte=2"`
	MaxTokens      int     `yaml:"max_tokens" env:"PROMPTIMAL_MAX_TOKENS" validate:"gte=1"`

	LogLevel string `yaml:"log_level" env:"PROMPTIMAL_LOG_LEVEL"`
}

// Default returns the baseline configuration before file and env overlays.
func Default() *Config {
	run := optimizer.DefaultConfig()
	return &Config{
		Provider:     "anthropic",
		Model:        "claude-3-haiku-20240307",
		NumIters:     run.NumIters,
		NumSamples:   run.NumSamples,
		NumElites:    run.NumElites,
		Threshold:    run.Threshold,
		Evaluator:    string(run.EvaluatorKind),
		JudgeSamples: run.JudgeSamples,
		JudgeQuorum:  run.JudgeQuorum,
		Temperature:  run.Temperature,
		MaxTokens:    run.MaxTokens,
		LogLevel:     "INFO",
	}
}

// Load builds the config in order: defaults, then the YAML file at path
// (when path is non-empty), then environment variables, then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.Wrap(err, errs.InvalidInput, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errs.Wrap(err, errs.InvalidInput, "failed to parse config file")
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, errs.Wrap(err, errs.InvalidInput, "failed to parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errs.Wrap(err, errs.ValidationFailed, "invalid configuration")
	}
	return nil
}

// RunConfig translates the application config into the engine's run
// configuration.
func (c *Config) RunConfig() *optimizer.Config {
	run := optimizer.DefaultConfig()
	run.NumIters = c.NumIters
	run.NumSamples = c.NumSamples
	run.NumElites = c.NumElites
	run.Threshold = c.Threshold
	run.EvaluatorKind = optimizer.EvaluatorKind(c.Evaluator)
	run.EvaluatorPath = c.EvaluatorPath
	run.JudgeSamples = c.JudgeSamples
	run.JudgeQuorum = c.JudgeQuorum
	run.Concurrency = c.Concurrency
	run.Temperature = c.Temperature
	run.MaxTokens = c.MaxTokens
	run.BackoffBase = 500 * time.Millisecond
	return run
}
