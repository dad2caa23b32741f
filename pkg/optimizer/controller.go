package optimizer

import (
	"context"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/promptimal/pkg/core"
	errs "github.com/XiaoConstantine/promptimal/pkg/errors"
	"github.com/XiaoConstantine/promptimal/pkg/logging"
)

// Controller drives the optimization loop: Seeding -> Generating ->
// Evaluating -> Ranking, repeated until the threshold is met or the
// iteration budget is exhausted. A single goroutine owns the state
// machine; only the evaluating phase fans out.
type Controller struct {
	cfg       *Config
	llm       core.LLM
	mutator   *Mutator
	evaluator Evaluator
	pop       *Population
	observer  ProgressObserver
	usage     *tokenTracker
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithObserver attaches a read-only progress observer.
func WithObserver(o ProgressObserver) ControllerOption {
	return func(c *Controller) {
		c.observer = o
	}
}

// WithEvaluator overrides the evaluator selected by the config. Useful for
// embedding applications with their own scoring strategy.
func WithEvaluator(e Evaluator) ControllerOption {
	return func(c *Controller) {
		c.evaluator = e
	}
}

// NewController validates the configuration and wires the engine together.
func NewController(cfg *Config, llm core.LLM, opts ...ControllerOption) (*Controller, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	usage := &tokenTracker{}
	c := &Controller{
		cfg:      cfg,
		llm:      llm,
		pop:      NewPopulation(),
		observer: noopObserver{},
		usage:    usage,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.evaluator == nil {
		evaluator, err := newEvaluator(cfg, llm, usage)
		if err != nil {
			return nil, err
		}
		c.evaluator = evaluator
	}
	c.mutator = NewMutator(llm, cfg, usage)

	return c, nil
}

// Run optimizes the initial prompt and returns the best candidate found.
// When the context is canceled mid-run, Run returns the best-so-far result
// alongside the cancellation error; no partially evaluated generation is
// merged into the ranking. A gateway Fatal error aborts with no result.
func (c *Controller) Run(ctx context.Context, initialPrompt, taskDescription string) (*Result, error) {
	logger := logging.GetLogger()

	if strings.TrimSpace(initialPrompt) == "" {
		return nil, errs.New(errs.InvalidInput, "initial prompt must not be empty")
	}
	ctx = logging.WithModelID(ctx, c.llm.ModelID())

	task := TaskContext{OriginalPrompt: initialPrompt, TaskDescription: taskDescription}
	if strings.TrimSpace(task.TaskDescription) == "" {
		inferred, err := c.inferTask(ctx, initialPrompt)
		switch {
		case err == nil:
			logger.Info(ctx, "inferred task description: %s", inferred)
			task.TaskDescription = inferred
		case errs.IsFatal(err) || errs.Code(err) == errs.Canceled:
			return nil, err
		default:
			logger.Warn(ctx, "task inference failed, using the prompt itself: %v", err)
			task.TaskDescription = initialPrompt
		}
	}

	// Seeding: the caller's prompt becomes the generation-0 candidate and
	// establishes best-so-far.
	seed := NewCandidate(initialPrompt, 0)
	seedResults, err := c.evaluateAll(ctx, []*Candidate{seed}, task)
	if err != nil {
		return nil, err
	}
	c.pop.Ingest(seedResults)
	c.emit(0)

	generationsRun := 0
	var runErr error

	for gen := 1; gen <= c.cfg.NumIters; gen++ {
		if c.thresholdMet() {
			break
		}
		genCtx := logging.WithGeneration(ctx, gen)
		logger.Info(genCtx, "starting generation %d/%d", gen, c.cfg.NumIters)

		// Generating
		elites := c.pop.TopK(c.cfg.NumElites)
		candidates, err := c.propose(genCtx, task, elites, gen)
		if err != nil {
			runErr = err
			break
		}

		// Evaluating
		results, err := c.evaluateAll(genCtx, candidates, task)
		if err != nil {
			if errs.IsFatal(err) {
				return nil, err
			}
			runErr = err
			break
		}

		// Ranking
		c.pop.Retain(elites)
		c.pop.Ingest(results)
		generationsRun = gen
		c.emit(gen)
	}

	best := c.pop.BestSoFar()
	if best == nil {
		if runErr == nil {
			runErr = errs.New(errs.EvaluationFailed, "run produced no candidates")
		}
		return nil, runErr
	}
	if best.FailedEval {
		logger.Error(ctx, "no candidate could be scored; returning the seed prompt with score 0")
	}

	result := &Result{
		BestPrompt:     best.Text,
		BestScore:      best.Score,
		GenerationsRun: generationsRun,
		Usage:          c.usage.snapshot(),
	}
	logger.Info(ctx, "optimization finished: best_score=%.3f, generations=%d, tokens=%d",
		result.BestScore, result.GenerationsRun, result.Usage.TotalTokens)
	return result, runErr
}

func (c *Controller) thresholdMet() bool {
	best := c.pop.BestSoFar()
	return best != nil && best.Scored && !best.FailedEval && best.Score >= c.cfg.Threshold
}

// propose asks the mutator for the next generation, retrying an
// under-producing generation request once before degrading to a smaller
// population for this generation only.
func (c *Controller) propose(ctx context.Context, task TaskContext, elites []*Candidate, gen int) ([]*Candidate, error) {
	logger := logging.GetLogger()

	candidates, err := c.mutator.Propose(ctx, task, elites, c.cfg.NumSamples, gen)
	if err == nil {
		return candidates, nil
	}
	if errs.Code(err) != errs.InsufficientCandidates {
		return nil, err
	}

	logger.Warn(ctx, "mutator under-produced, retrying generation request once")
	retried, retryErr := c.mutator.Propose(ctx, task, elites, c.cfg.NumSamples, gen)
	if retryErr == nil {
		return retried, nil
	}
	if errs.Code(retryErr) != errs.InsufficientCandidates {
		return nil, retryErr
	}

	if len(retried) > len(candidates) {
		candidates = retried
	}
	if len(candidates) == 0 {
		return nil, errs.Wrap(retryErr, errs.InsufficientCandidates, "mutator produced no usable candidates")
	}
	logger.Warn(ctx, "degrading generation %d population to %d candidates", gen, len(candidates))
	return candidates, nil
}

// evaluateAll dispatches candidate evaluations concurrently under the
// parallelism cap and collects every result before returning. Individual
// failures stay attached to their candidate; a Fatal gateway error cancels
// the remaining evaluations and aborts.
func (c *Controller) evaluateAll(ctx context.Context, candidates []*Candidate, task TaskContext) ([]EvaluationResult, error) {
	evalCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		fatalOnce sync.Once
		fatalErr  error
	)
	results := make([]EvaluationResult, len(candidates))

	p := pool.New().WithMaxGoroutines(c.cfg.evalConcurrency())
	for i, candidate := range candidates {
		i, candidate := i, candidate
		p.Go(func() {
			score, err := c.evaluator.Score(evalCtx, candidate.Text, task)
			if err != nil && errs.IsFatal(err) {
				fatalOnce.Do(func() {
					fatalErr = err
					cancel()
				})
			}
			results[i] = EvaluationResult{Candidate: candidate, Score: score, Err: err}
		})
	}
	p.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}
	if err := errs.CheckContext(ctx, "evaluation phase"); err != nil {
		return nil, err
	}
	return results, nil
}

// inferTask derives a task description from the prompt itself when the
// caller did not provide one.
func (c *Controller) inferTask(ctx context.Context, originalPrompt string) (string, error) {
	resp, err := generateWithRetry(ctx, c.llm, buildInferTaskPrompt(originalPrompt), c.cfg,
		core.WithTemperature(0.5),
		core.WithMaxTokens(c.cfg.MaxTokens))
	if err != nil {
		return "", err
	}
	c.usage.add(resp.Usage)

	parsed, err := parseInferredTask(resp.Content)
	if err != nil {
		return "", err
	}
	return parsed, nil
}

func (c *Controller) emit(generation int) {
	ranked := c.pop.Candidates()
	snapshots := make([]CandidateSnapshot, 0, len(ranked))
	for _, cand := range ranked {
		snapshots = append(snapshots, snapshotCandidate(cand))
	}

	snapshot := GenerationSnapshot{
		Generation: generation,
		Candidates: snapshots,
		Usage:      c.usage.snapshot(),
	}
	if best := c.pop.BestSoFar(); best != nil {
		snapshot.BestPrompt = best.Text
		snapshot.BestScore = best.Score
	}
	c.observer.OnGeneration(snapshot)
}
