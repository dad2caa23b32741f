package optimizer

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/promptimal/internal/testutil"
	"github.com/XiaoConstantine/promptimal/pkg/core"
	errs "github.com/XiaoConstantine/promptimal/pkg/errors"
)

func judgeConfig() *Config {
	cfg := DefaultConfig()
	cfg.JudgeSamples = 5
	cfg.JudgeQuorum = 3
	cfg.BackoffBase = time.Millisecond
	return cfg
}

var testTask = TaskContext{
	OriginalPrompt:  "Summarize the code.",
	TaskDescription: "Summarize source code for reviewers.",
}

func TestJudgeScoreAggregatesMean(t *testing.T) {
	mockLLM := new(testutil.MockLLM)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&core.LLMResponse{
			Content: `{"evaluation": "clear and specific", "score": 8}`,
			Usage:   &core.TokenInfo{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		}, nil)

	usage := &tokenTracker{}
	judge := NewJudgeEvaluator(mockLLM, judgeConfig(), usage)

	score, err := judge.Score(context.Background(), "candidate prompt", testTask)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, score, 1e-9)

	// All five self-consistency samples contribute usage.
	assert.Equal(t, 75, usage.snapshot().TotalTokens)
	mockLLM.AssertNumberOfCalls(t, "Generate", 5)
}

func TestJudgeQuorumNotMet(t *testing.T) {
	mockLLM := new(testutil.MockLLM)
	// Every sample comes back unparseable, so the quorum of 3 fails.
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&core.LLMResponse{Content: "I would rate this quite highly."}, nil)

	judge := NewJudgeEvaluator(mockLLM, judgeConfig(), &tokenTracker{})
	_, err := judge.Score(context.Background(), "candidate prompt", testTask)
	require.Error(t, err)
	assert.Equal(t, errs.EvaluationFailed, errs.Code(err))
}

func TestJudgeRejectsOutOfRubricScores(t *testing.T) {
	mockLLM := new(testutil.MockLLM)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&core.LLMResponse{Content: `{"evaluation": "x", "score": 42}`}, nil)

	judge := NewJudgeEvaluator(mockLLM, judgeConfig(), &tokenTracker{})
	_, err := judge.Score(context.Background(), "candidate prompt", testTask)
	require.Error(t, err)
	assert.Equal(t, errs.EvaluationFailed, errs.Code(err))
}

func TestJudgePropagatesFatal(t *testing.T) {
	mockLLM := new(testutil.MockLLM)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errs.New(errs.Fatal, "invalid api key"))

	judge := NewJudgeEvaluator(mockLLM, judgeConfig(), &tokenTracker{})
	_, err := judge.Score(context.Background(), "candidate prompt", testTask)
	require.Error(t, err)
	assert.Equal(t, errs.Fatal, errs.Code(err))
}

func TestAggregateJudgeScoresOrderIndependent(t *testing.T) {
	scores := []float64{0.4, 0.9, 0.6, 0.7, 0.5}
	want, err := aggregateJudgeScores(scores, 3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := append([]float64(nil), scores...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got, err := aggregateJudgeScores(shuffled, 3)
		require.NoError(t, err)
		assert.InDelta(t, want, got, 1e-12)
	}
}

func TestAggregateJudgeScoresQuorumGate(t *testing.T) {
	_, err := aggregateJudgeScores([]float64{0.9, 0.8}, 3)
	require.Error(t, err)
	assert.Equal(t, errs.EvaluationFailed, errs.Code(err))

	got, err := aggregateJudgeScores([]float64{0.9, 0.8, 0.7}, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got, 1e-9)
}

func TestParseJudgeScore(t *testing.T) {
	score, err := parseJudgeScore(`{"evaluation": "solid", "score": 7.5}`)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, score, 1e-9)

	score, err = parseJudgeScore("```json\n{\"evaluation\": \"fenced\", \"score\": 10}\n```")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	_, err = parseJudgeScore(`{"evaluation": "missing score"}`)
	assert.Error(t, err)

	_, err = parseJudgeScore(`{"score": 0.5}`)
	assert.Error(t, err, "rubric scores below 1 are judge mistakes, not valid output")
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "score.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func TestExternalEvaluatorSuccess(t *testing.T) {
	path := writeScript(t, `echo "0.85"`)
	ev, err := NewExternalEvaluator(path)
	require.NoError(t, err)

	score, err := ev.Score(context.Background(), "candidate prompt", testTask)
	require.NoError(t, err)
	assert.InDelta(t, 0.85, score, 1e-9)
}

func TestExternalEvaluatorNonZeroExit(t *testing.T) {
	path := writeScript(t, "exit 1")
	ev, err := NewExternalEvaluator(path)
	require.NoError(t, err)

	_, err = ev.Score(context.Background(), "candidate prompt", testTask)
	require.Error(t, err)
	assert.Equal(t, errs.EvaluationFailed, errs.Code(err))
}

func TestExternalEvaluatorUnparseableOutput(t *testing.T) {
	path := writeScript(t, `echo "pretty good"`)
	ev, err := NewExternalEvaluator(path)
	require.NoError(t, err)

	_, err = ev.Score(context.Background(), "candidate prompt", testTask)
	require.Error(t, err)
	assert.Equal(t, errs.EvaluationFailed, errs.Code(err))
}

func TestExternalEvaluatorOutOfRange(t *testing.T) {
	path := writeScript(t, `echo "1.5"`)
	ev, err := NewExternalEvaluator(path)
	require.NoError(t, err)

	_, err = ev.Score(context.Background(), "candidate prompt", testTask)
	require.Error(t, err)
	assert.Equal(t, errs.EvaluationFailed, errs.Code(err))
}

func TestExternalEvaluatorMissingBinaryIsFatal(t *testing.T) {
	_, err := NewExternalEvaluator("/nonexistent/score.sh")
	require.Error(t, err)
	assert.Equal(t, errs.Fatal, errs.Code(err))
}

func TestNewEvaluatorSelection(t *testing.T) {
	cfg := DefaultConfig()
	ev, err := newEvaluator(cfg, new(testutil.MockLLM), &tokenTracker{})
	require.NoError(t, err)
	assert.Equal(t, "judge", ev.Name())

	cfg.EvaluatorKind = EvaluatorExternal
	cfg.EvaluatorPath = writeScript(t, `echo "0.5"`)
	ev, err = newEvaluator(cfg, new(testutil.MockLLM), &tokenTracker{})
	require.NoError(t, err)
	assert.Equal(t, "external", ev.Name())
}
