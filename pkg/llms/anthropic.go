package llms

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/XiaoConstantine/promptimal/pkg/core"
	errs "github.com/XiaoConstantine/promptimal/pkg/errors"
	"github.com/XiaoConstantine/promptimal/pkg/logging"
	"github.com/XiaoConstantine/promptimal/pkg/utils"
)

// AnthropicLLM implements the core.LLM interface for Anthropic's models.
type AnthropicLLM struct {
	client *anthropic.Client
	*core.BaseLLM
}

// NewAnthropicLLM creates a new AnthropicLLM instance. The API key falls
// back to ANTHROPIC_API_KEY when empty.
func NewAnthropicLLM(apiKey string, model core.ModelID, endpoint *core.EndpointConfig) (*AnthropicLLM, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errs.New(errs.Fatal, "Anthropic API key is required")
	}
	if !isValidAnthropicModel(string(model)) {
		return nil, errs.WithFields(
			errs.New(errs.InvalidInput, "unsupported Anthropic model"),
			errs.Fields{"model": model})
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if endpoint != nil && endpoint.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(endpoint.BaseURL))
	}

	client := anthropic.NewClient(clientOpts...)

	return &AnthropicLLM{
		client:  &client,
		BaseLLM: core.NewBaseLLM("anthropic", model, endpoint),
	}, nil
}

// isValidAnthropicModel checks if the model is a valid Anthropic model.
func isValidAnthropicModel(model string) bool {
	validPrefixes := []string{
		"claude-3",
		"claude-4",
		"claude-haiku",
		"claude-sonnet",
		"claude-opus",
	}
	for _, prefix := range validPrefixes {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

// Generate implements the core.LLM interface.
func (a *AnthropicLLM) Generate(ctx context.Context, prompt string, options ...core.GenerateOption) (*core.LLMResponse, error) {
	logger := logging.GetLogger()
	opts := core.NewGenerateOptions()
	for _, opt := range options {
		opt(opts)
	}

	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model: anthropic.Model(a.ModelID()),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
		MaxTokens:   int64(opts.MaxTokens),
		Temperature: anthropic.Float(opts.Temperature),
	})

	if err != nil {
		return nil, classifyAnthropicError(ctx, err, a.ModelID())
	}

	if message == nil || len(message.Content) == 0 {
		return nil, errs.New(errs.InvalidResponse, "received empty completion from Anthropic API")
	}

	var responseText string
	if block := message.Content[0]; block.Type == "text" {
		responseText = block.Text
	}
	if responseText == "" {
		return nil, errs.New(errs.InvalidResponse, "received non-text completion from Anthropic API")
	}

	usage := &core.TokenInfo{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}

	logger.Debug(ctx, "Anthropic response: %d prompt tokens, %d completion tokens",
		message.Usage.InputTokens, message.Usage.OutputTokens)

	return &core.LLMResponse{Content: responseText, Usage: usage}, nil
}

// GenerateWithJSON implements the core.LLM interface.
func (a *AnthropicLLM) GenerateWithJSON(ctx context.Context, prompt string, options ...core.GenerateOption) (map[string]interface{}, error) {
	response, err := a.Generate(ctx, prompt, options...)
	if err != nil {
		return nil, err
	}

	parsed, err := utils.ParseJSONResponse(utils.CleanJSONResponse(response.Content))
	if err != nil {
		return nil, errs.Wrap(err, errs.InvalidResponse, "completion is not valid JSON")
	}
	return parsed, nil
}

// classifyAnthropicError maps SDK failures onto the gateway error taxonomy.
func classifyAnthropicError(ctx context.Context, err error, model string) error {
	logger := logging.GetLogger()

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		logger.Error(ctx, "Anthropic API error: status code %d", apiErr.StatusCode)

		fields := errs.Fields{"model": model, "status": apiErr.StatusCode}
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return errs.WithFields(errs.Wrap(err, errs.RateLimited, "rate limited by provider"), fields)
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return errs.WithFields(errs.Wrap(err, errs.Fatal, "authentication with provider failed"), fields)
		case apiErr.StatusCode >= 500:
			return errs.WithFields(errs.Wrap(err, errs.Timeout, "provider backend error"), fields)
		default:
			return errs.WithFields(errs.Wrap(err, errs.Fatal, "provider rejected the request"), fields)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(err, errs.Timeout, "generation timed out")
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(err, errs.Canceled, "generation canceled")
	}

	// Network-level failures without a status code are treated as transient.
	return errs.WithFields(
		errs.Wrap(err, errs.Timeout, "generation request failed"),
		errs.Fields{"model": model})
}
