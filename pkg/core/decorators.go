package core

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/XiaoConstantine/promptimal/pkg/errors"
)

// BaseDecorator provides common functionality for all LLM decorators.
type BaseDecorator struct {
	LLM
}

func (d *BaseDecorator) Unwrap() LLM {
	return d.LLM
}

// RateLimitedLLM throttles gateway calls with a token bucket. Concurrent
// evaluations share one limiter, so a burst of judge requests cannot
// exceed the provider's rate limit.
type RateLimitedLLM struct {
	BaseDecorator
	limiter *rate.Limiter
}

// NewRateLimitedLLM wraps base so that calls proceed at most rps requests
// per second with the given burst allowance.
func NewRateLimitedLLM(base LLM, rps float64, burst int) *RateLimitedLLM {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedLLM{
		BaseDecorator: BaseDecorator{LLM: base},
		limiter:       rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (d *RateLimitedLLM) Generate(ctx context.Context, prompt string, options ...GenerateOption) (*LLMResponse, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, errors.Canceled, "canceled while waiting for rate limiter")
	}
	return d.LLM.Generate(ctx, prompt, options...)
}

func (d *RateLimitedLLM) GenerateWithJSON(ctx context.Context, prompt string, options ...GenerateOption) (map[string]interface{}, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, errors.Canceled, "canceled while waiting for rate limiter")
	}
	return d.LLM.GenerateWithJSON(ctx, prompt, options...)
}

// Chain composes multiple decorators around a base LLM.
func Chain(base LLM, decorators ...func(LLM) LLM) LLM {
	result := base
	for _, d := range decorators {
		result = d(result)
	}
	return result
}
