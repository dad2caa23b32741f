package optimizer

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/promptimal/pkg/core"
	errs "github.com/XiaoConstantine/promptimal/pkg/errors"
	"github.com/XiaoConstantine/promptimal/pkg/logging"
	"github.com/XiaoConstantine/promptimal/pkg/utils"
)

// Evaluator scores one prompt candidate against the task, returning a
// value in [0,1]. A failed evaluation never aborts the run: the controller
// downgrades it to score zero and flags the candidate.
type Evaluator interface {
	Score(ctx context.Context, candidateText string, task TaskContext) (float64, error)
	Name() string
}

// JudgeEvaluator scores candidates with self-consistent LLM judging: m
// independent judge calls run concurrently, each rating the candidate on a
// fixed rubric; the final score is the mean of successfully parsed
// responses. Fewer than quorum parsed responses fails the evaluation.
type JudgeEvaluator struct {
	llm   core.LLM
	cfg   *Config
	usage *tokenTracker
}

func NewJudgeEvaluator(llm core.LLM, cfg *Config, usage *tokenTracker) *JudgeEvaluator {
	return &JudgeEvaluator{llm: llm, cfg: cfg, usage: usage}
}

func (j *JudgeEvaluator) Name() string { return "judge" }

func (j *JudgeEvaluator) Score(ctx context.Context, candidateText string, task TaskContext) (float64, error) {
	logger := logging.GetLogger()
	prompt := buildJudgePrompt(task, candidateText)

	sampleCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		scores   []float64
		fatalErr error
	)

	p := pool.New().WithMaxGoroutines(j.cfg.JudgeSamples)
	for i := 0; i < j.cfg.JudgeSamples; i++ {
		p.Go(func() {
			resp, err := generateWithRetry(sampleCtx, j.llm, prompt, j.cfg,
				core.WithTemperature(1.0),
				core.WithMaxTokens(j.cfg.MaxTokens))
			if err != nil {
				if errs.IsFatal(err) {
					mu.Lock()
					if fatalErr == nil {
						fatalErr = err
					}
					mu.Unlock()
					cancel()
					return
				}
				logger.Debug(ctx, "judge sample failed: %v", err)
				return
			}
			j.usage.add(resp.Usage)

			score, err := parseJudgeScore(resp.Content)
			if err != nil {
				logger.Debug(ctx, "judge sample unparseable: %v", err)
				return
			}

			mu.Lock()
			scores = append(scores, score)
			mu.Unlock()
		})
	}
	p.Wait()

	if fatalErr != nil {
		return 0, fatalErr
	}
	if err := errs.CheckContext(ctx, "judge evaluation"); err != nil {
		return 0, err
	}

	return aggregateJudgeScores(scores, j.cfg.JudgeQuorum)
}

// aggregateJudgeScores folds independent judge samples into one score
// behind a quorum gate. Order-independent: permuting the samples does not
// change the result.
func aggregateJudgeScores(scores []float64, quorum int) (float64, error) {
	if len(scores) < quorum {
		return 0, errs.WithFields(
			errs.New(errs.EvaluationFailed, "judge quorum not met"),
			errs.Fields{"parsed": len(scores), "quorum": quorum})
	}

	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores)), nil
}

// parseJudgeScore extracts the 1-10 rubric score from one judge response
// and maps it into [0,1].
func parseJudgeScore(content string) (float64, error) {
	parsed, err := utils.ParseJSONResponse(utils.CleanJSONResponse(content))
	if err != nil {
		return 0, errs.Wrap(err, errs.InvalidResponse, "judge response is not valid JSON")
	}

	raw, ok := parsed["score"].(float64)
	if !ok {
		return 0, errs.New(errs.InvalidResponse, "judge response has no numeric score")
	}
	if raw < 1 || raw > 10 {
		return 0, errs.WithFields(
			errs.New(errs.InvalidResponse, "judge score outside the 1-10 rubric"),
			errs.Fields{"score": raw})
	}
	return raw / 10, nil
}

// ExternalEvaluator delegates scoring to a caller-supplied program. The
// program receives the candidate text as its argument and must print a
// single float in [0,1] to stdout and exit zero. The external program owns
// determinism; there is no self-consistency step.
type ExternalEvaluator struct {
	path string
}

// NewExternalEvaluator validates that the scoring program exists up front;
// a missing binary is a shared-infrastructure failure, not a per-candidate
// one.
func NewExternalEvaluator(path string) (*ExternalEvaluator, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errs.WithFields(
			errs.Wrap(err, errs.Fatal, "external evaluator program not found"),
			errs.Fields{"path": path})
	}
	return &ExternalEvaluator{path: path}, nil
}

func (e *ExternalEvaluator) Name() string { return "external" }

func (e *ExternalEvaluator) Score(ctx context.Context, candidateText string, task TaskContext) (float64, error) {
	cmd := exec.CommandContext(ctx, e.path, candidateText)
	out, err := cmd.Output()
	if err != nil {
		if ctxErr := errs.CheckContext(ctx, "external evaluation"); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, errs.WithFields(
			errs.Wrap(err, errs.EvaluationFailed, "scoring program failed"),
			errs.Fields{"path": e.path})
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, errs.Wrap(err, errs.EvaluationFailed, "scoring program output is not a number")
	}
	if value < 0 || value > 1 {
		return 0, errs.WithFields(
			errs.New(errs.EvaluationFailed, "scoring program output outside [0,1]"),
			errs.Fields{"value": value})
	}
	return value, nil
}

// newEvaluator builds the evaluator selected by the config.
func newEvaluator(cfg *Config, llm core.LLM, usage *tokenTracker) (Evaluator, error) {
	switch cfg.EvaluatorKind {
	case EvaluatorJudge:
		return NewJudgeEvaluator(llm, cfg, usage), nil
	case EvaluatorExternal:
		return NewExternalEvaluator(cfg.EvaluatorPath)
	default:
		return nil, errs.WithFields(
			errs.New(errs.InvalidInput, "unknown evaluator kind"),
			errs.Fields{"kind": cfg.EvaluatorKind})
	}
}
