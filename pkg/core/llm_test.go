package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenInfoAdd(t *testing.T) {
	total := &TokenInfo{}
	total.Add(&TokenInfo{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	total.Add(&TokenInfo{PromptTokens: 2, CompletionTokens: 3, TotalTokens: 5})
	total.Add(nil)

	assert.Equal(t, 12, total.PromptTokens)
	assert.Equal(t, 8, total.CompletionTokens)
	assert.Equal(t, 20, total.TotalTokens)
}

func TestGenerateOptions(t *testing.T) {
	opts := NewGenerateOptions()
	for _, opt := range []GenerateOption{
		WithMaxTokens(512),
		WithTemperature(1.0),
		WithTopP(0.9),
	} {
		opt(opts)
	}

	assert.Equal(t, 512, opts.MaxTokens)
	assert.Equal(t, 1.0, opts.Temperature)
	assert.Equal(t, 0.9, opts.TopP)
}

func TestBaseLLM(t *testing.T) {
	base := NewBaseLLM("anthropic", ModelID("claude-3-haiku"), &EndpointConfig{TimeoutSec: 5})
	assert.Equal(t, "anthropic", base.ProviderName())
	assert.Equal(t, "claude-3-haiku", base.ModelID())
	assert.Equal(t, 5*time.Second, base.HTTPClient().Timeout)

	noEndpoint := NewBaseLLM("anthropic", ModelID("m"), nil)
	assert.Equal(t, 30*time.Second, noEndpoint.HTTPClient().Timeout)
}

type countingLLM struct {
	*BaseLLM
	calls int
}

func (c *countingLLM) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*LLMResponse, error) {
	c.calls++
	return &LLMResponse{Content: "ok"}, nil
}

func (c *countingLLM) GenerateWithJSON(ctx context.Context, prompt string, options ...GenerateOption) (map[string]interface{}, error) {
	c.calls++
	return map[string]interface{}{}, nil
}

func TestRateLimitedLLMPassesThrough(t *testing.T) {
	base := &countingLLM{BaseLLM: NewBaseLLM("test", "m", nil)}
	limited := NewRateLimitedLLM(base, 100, 10)

	resp, err := limited.Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, base.calls)
	assert.Equal(t, "test", limited.ProviderName())
}

func TestRateLimitedLLMCancellation(t *testing.T) {
	base := &countingLLM{BaseLLM: NewBaseLLM("test", "m", nil)}
	// One token per minute: the second call must wait, and the canceled
	// context should surface instead of blocking.
	limited := NewRateLimitedLLM(base, 1.0/60.0, 1)

	_, err := limited.Generate(context.Background(), "first")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.Generate(ctx, "second")
	require.Error(t, err)
	assert.Equal(t, 1, base.calls)
}

func TestChain(t *testing.T) {
	base := &countingLLM{BaseLLM: NewBaseLLM("test", "m", nil)}
	wrapped := Chain(base, func(l LLM) LLM {
		return NewRateLimitedLLM(l, 100, 10)
	})

	_, err := wrapped.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, base.calls)
}
