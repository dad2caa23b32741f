package optimizer

import (
	"sync"

	"github.com/google/uuid"

	"github.com/XiaoConstantine/promptimal/pkg/core"
)

// Candidate is a single prompt candidate in the population. Created by the
// mutator (or as the generation-0 seed), scored once by an evaluator, and
// owned by the population manager afterwards.
type Candidate struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Generation int    `json:"generation"`

	// Score is valid only when Scored is true. FailedEval distinguishes
	// "scored low" from "could not be scored"; a failed evaluation ranks
	// as zero.
	Score      float64 `json:"score"`
	Scored     bool    `json:"scored"`
	FailedEval bool    `json:"failed_eval"`
}

// NewCandidate creates an unscored candidate for the given generation.
func NewCandidate(text string, generation int) *Candidate {
	return &Candidate{
		ID:         uuid.NewString(),
		Text:       text,
		Generation: generation,
	}
}

// TaskContext is the immutable task framing shared by the mutator and the
// judge evaluator across all generations.
type TaskContext struct {
	OriginalPrompt  string
	TaskDescription string
}

// EvaluationResult is the transient record produced by one evaluation call
// and consumed by the population manager during ranking.
type EvaluationResult struct {
	Candidate *Candidate
	Score     float64
	Err       error
}

// Result is the output of a completed run.
type Result struct {
	BestPrompt     string
	BestScore      float64
	GenerationsRun int
	Usage          core.TokenInfo
}

// tokenTracker accumulates gateway token usage across concurrent calls.
type tokenTracker struct {
	mu    sync.Mutex
	total core.TokenInfo
}

func (t *tokenTracker) add(usage *core.TokenInfo) {
	if usage == nil {
		return
	}
	t.mu.Lock()
	t.total.Add(usage)
	t.mu.Unlock()
}

func (t *tokenTracker) snapshot() core.TokenInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}
