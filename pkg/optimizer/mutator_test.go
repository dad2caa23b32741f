package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/promptimal/internal/testutil"
	"github.com/XiaoConstantine/promptimal/pkg/core"
	errs "github.com/XiaoConstantine/promptimal/pkg/errors"
)

func mutatorConfig() *Config {
	cfg := DefaultConfig()
	cfg.NumSamples = 4
	cfg.BackoffBase = time.Millisecond
	return cfg
}

func TestProposeReturnsRequestedCount(t *testing.T) {
	mockLLM := new(testutil.MockLLM)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&core.LLMResponse{
			Content: `{"prompts": ["variant one", "variant two", "variant three", "variant four"]}`,
			Usage:   &core.TokenInfo{TotalTokens: 20},
		}, nil)

	usage := &tokenTracker{}
	m := NewMutator(mockLLM, mutatorConfig(), usage)

	candidates, err := m.Propose(context.Background(), testTask, nil, 4, 1)
	require.NoError(t, err)
	require.Len(t, candidates, 4)

	for _, c := range candidates {
		assert.Equal(t, 1, c.Generation)
		assert.False(t, c.Scored)
		assert.NotEmpty(t, c.ID)
	}
	assert.Equal(t, 20, usage.snapshot().TotalTokens)
}

func TestProposeIncludesEliteGuidance(t *testing.T) {
	mockLLM := new(testutil.MockLLM)
	var capturedPrompt string
	mockLLM.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		capturedPrompt = p
		return true
	}), mock.Anything).
		Return(&core.LLMResponse{Content: `{"prompts": ["a", "b"]}`}, nil)

	elite := NewCandidate("explain step by step", 1)
	elite.Score = 0.75
	elite.Scored = true

	m := NewMutator(mockLLM, mutatorConfig(), &tokenTracker{})
	_, _ = m.Propose(context.Background(), testTask, []*Candidate{elite}, 2, 2)

	assert.Contains(t, capturedPrompt, "explain step by step")
	assert.Contains(t, capturedPrompt, "0.75")
	assert.Contains(t, capturedPrompt, testTask.TaskDescription)
	assert.Contains(t, capturedPrompt, testTask.OriginalPrompt)
}

func TestProposeInsufficientCandidates(t *testing.T) {
	mockLLM := new(testutil.MockLLM)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&core.LLMResponse{Content: `{"prompts": ["only one"]}`}, nil)

	m := NewMutator(mockLLM, mutatorConfig(), &tokenTracker{})
	candidates, err := m.Propose(context.Background(), testTask, nil, 4, 1)

	require.Error(t, err)
	assert.Equal(t, errs.InsufficientCandidates, errs.Code(err))
	// The distinct candidates it did get come back with the error so the
	// controller can degrade instead of discarding them.
	assert.Len(t, candidates, 1)
}

func TestProposeDeduplicates(t *testing.T) {
	mockLLM := new(testutil.MockLLM)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&core.LLMResponse{
			Content: `{"prompts": ["same text", "Same   Text", "elite copy", "fresh"]}`,
		}, nil)

	elite := NewCandidate("elite copy", 1)
	elite.Scored = true

	m := NewMutator(mockLLM, mutatorConfig(), &tokenTracker{})
	candidates, err := m.Propose(context.Background(), testTask, []*Candidate{elite}, 4, 2)

	require.Error(t, err)
	assert.Equal(t, errs.InsufficientCandidates, errs.Code(err))
	require.Len(t, candidates, 2)
	assert.Equal(t, "same text", candidates[0].Text)
	assert.Equal(t, "fresh", candidates[1].Text)
}

func TestProposeInvalidJSON(t *testing.T) {
	mockLLM := new(testutil.MockLLM)
	mockLLM.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return(&core.LLMResponse{Content: "here are some ideas..."}, nil)

	m := NewMutator(mockLLM, mutatorConfig(), &tokenTracker{})
	_, err := m.Propose(context.Background(), testTask, nil, 4, 1)

	require.Error(t, err)
	assert.Equal(t, errs.InvalidResponse, errs.Code(err))
}

func TestParseInferredTask(t *testing.T) {
	task, err := parseInferredTask(`{"analysis": "...", "task": "Summarize code changes."}`)
	require.NoError(t, err)
	assert.Equal(t, "Summarize code changes.", task)

	_, err = parseInferredTask(`{"analysis": "no task key"}`)
	assert.Error(t, err)

	_, err = parseInferredTask("not json")
	assert.Error(t, err)
}
