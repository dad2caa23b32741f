package optimizer

import (
	"time"

	"github.com/go-playground/validator/v10"

	errs "github.com/XiaoConstantine/promptimal/pkg/errors"
)

// EvaluatorKind selects the scoring strategy for a run.
type EvaluatorKind string

const (
	// EvaluatorJudge scores candidates with self-consistent LLM judging.
	EvaluatorJudge EvaluatorKind = "judge"
	// EvaluatorExternal delegates scoring to a caller-supplied program.
	EvaluatorExternal EvaluatorKind = "external"
)

// Config contains configuration options for an optimization run. Validated
// once at the start of the run; immutable afterwards.
type Config struct {
	// Search parameters
	NumIters   int     `json:"num_iters" validate:"gte=1"`
	NumSamples int     `json:"num_samples" validate:"gte=1"`
	Threshold  float64 `json:"threshold" validate:"gte=0,lte=1"`
	NumElites  int     `json:"num_elites" validate:"gte=1"`

	// Evaluation parameters
	EvaluatorKind EvaluatorKind `json:"evaluator_kind" validate:"oneof=judge external"`
	EvaluatorPath string        `json:"evaluator_path,omitempty"`
	JudgeSamples  int           `json:"judge_samples" validate:"gte=1"`
	JudgeQuorum   int           `json:"judge_quorum" validate:"gte=1"`

	// Concurrency cap for candidate evaluation. Zero means derived from
	// NumSamples, clamped to avoid provider rate-limit storms.
	Concurrency int `json:"concurrency" validate:"gte=0"`

	// Gateway retry policy
	MaxRetries  int           `json:"max_retries" validate:"gte=1"`
	BackoffBase time.Duration `json:"backoff_base"`

	// Generation parameters
	Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `json:"max_tokens" validate:"gte=1"`
}

// DefaultConfig returns the default configuration for a run.
func DefaultConfig() *Config {
	return &Config{
		NumIters:      5,
		NumSamples:    5,
		Threshold:     1.0,
		NumElites:     2,
		EvaluatorKind: EvaluatorJudge,
		JudgeSamples:  5,
		JudgeQuorum:   3,
		MaxRetries:    3,
		BackoffBase:   500 * time.Millisecond,
		Temperature:   1.0,
		MaxTokens:     2048,
	}
}

// Validate checks structural constraints plus the cross-field rules the
// struct tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errs.Wrap(err, errs.ValidationFailed, "invalid run configuration")
	}
	if c.JudgeQuorum > c.JudgeSamples {
		return errs.WithFields(
			errs.New(errs.ValidationFailed, "judge quorum cannot exceed judge samples"),
			errs.Fields{"quorum": c.JudgeQuorum, "samples": c.JudgeSamples})
	}
	if c.NumElites > c.NumSamples {
		return errs.WithFields(
			errs.New(errs.ValidationFailed, "elite count cannot exceed population size"),
			errs.Fields{"elites": c.NumElites, "samples": c.NumSamples})
	}
	if c.EvaluatorKind == EvaluatorExternal && c.EvaluatorPath == "" {
		return errs.New(errs.ValidationFailed, "external evaluator requires a program path")
	}
	if c.BackoffBase <= 0 {
		return errs.New(errs.ValidationFailed, "backoff base must be positive")
	}
	return nil
}

// evalConcurrency returns the effective parallelism cap for the
// evaluating phase.
func (c *Config) evalConcurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	n := c.NumSamples
	if n > 8 {
		n = 8
	}
	return n
}
