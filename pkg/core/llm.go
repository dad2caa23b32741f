package core

import (
	"net/http"
	"time"

	"context"
)

// TokenInfo tracks token usage for a single generation call.
type TokenInfo struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add accumulates usage from another call into t.
func (t *TokenInfo) Add(other *TokenInfo) {
	if other == nil {
		return
	}
	t.PromptTokens += other.PromptTokens
	t.CompletionTokens += other.CompletionTokens
	t.TotalTokens += other.TotalTokens
}

// LLMResponse is a completed generation.
type LLMResponse struct {
	Content string
	Usage   *TokenInfo
}

// ModelID is a provider-specific model identifier.
type ModelID string

// LLM is the model gateway capability: generate completions for a prompt,
// subject to provider rate limits and transient failures. Implementations
// classify failures with pkg/errors codes (RateLimited, Timeout,
// InvalidResponse, Fatal); callers own retry and concurrency bounding.
type LLM interface {
	// Generate produces a text completion for the given prompt.
	Generate(ctx context.Context, prompt string, options ...GenerateOption) (*LLMResponse, error)

	// GenerateWithJSON produces a completion and parses it as a JSON object.
	GenerateWithJSON(ctx context.Context, prompt string, options ...GenerateOption) (map[string]interface{}, error)

	ProviderName() string
	ModelID() string
}

// GenerateOption represents an option for text generation.
type GenerateOption func(*GenerateOptions)

// GenerateOptions holds configuration for text generation.
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// NewGenerateOptions creates a new GenerateOptions with default values.
func NewGenerateOptions() *GenerateOptions {
	return &GenerateOptions{
		MaxTokens:   2048,
		Temperature: 0.5,
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(n int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = n
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.Temperature = t
	}
}

// WithTopP sets the nucleus sampling probability.
func WithTopP(p float64) GenerateOption {
	return func(o *GenerateOptions) {
		o.TopP = p
	}
}

// EndpointConfig describes a provider endpoint.
type EndpointConfig struct {
	BaseURL    string            // Base API URL
	Headers    map[string]string // Common headers
	TimeoutSec int               // Request timeout in seconds
}

// BaseLLM provides a base implementation of the LLM interface.
type BaseLLM struct {
	providerName string
	modelID      ModelID

	endpoint *EndpointConfig // Optional endpoint configuration
	client   *http.Client    // Common HTTP client
}

// ProviderName implements LLM interface.
func (b *BaseLLM) ProviderName() string {
	return b.providerName
}

// ModelID implements LLM interface.
func (b *BaseLLM) ModelID() string {
	return string(b.modelID)
}

// Endpoint returns the configured endpoint, if any.
func (b *BaseLLM) Endpoint() *EndpointConfig {
	return b.endpoint
}

// HTTPClient returns the shared HTTP client.
func (b *BaseLLM) HTTPClient() *http.Client {
	return b.client
}

func NewBaseLLM(providerName string, modelID ModelID, endpoint *EndpointConfig) *BaseLLM {
	timeout := 30 * time.Second
	if endpoint != nil && endpoint.TimeoutSec > 0 {
		timeout = time.Duration(endpoint.TimeoutSec) * time.Second
	}

	return &BaseLLM{
		providerName: providerName,
		modelID:      modelID,
		endpoint:     endpoint,
		client:       &http.Client{Timeout: timeout},
	}
}
