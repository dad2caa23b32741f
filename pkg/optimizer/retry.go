package optimizer

import (
	"context"
	"math"
	"time"

	"github.com/XiaoConstantine/promptimal/pkg/core"
	errs "github.com/XiaoConstantine/promptimal/pkg/errors"
	"github.com/XiaoConstantine/promptimal/pkg/logging"
)

// generateWithRetry issues one gateway call under the run's retry policy:
// RateLimited and Timeout back off exponentially up to maxRetries attempts,
// InvalidResponse gets a single immediate retry, and Fatal (or any other
// code) surfaces to the caller at once.
func generateWithRetry(ctx context.Context, llm core.LLM, prompt string, cfg *Config, opts ...core.GenerateOption) (*core.LLMResponse, error) {
	logger := logging.GetLogger()

	var lastErr error
	invalidRetried := false

	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		if err := errs.CheckContext(ctx, "generation"); err != nil {
			return nil, err
		}

		resp, err := llm.Generate(ctx, prompt, opts...)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		switch {
		case errs.IsRetryable(err):
			backoff := time.Duration(float64(cfg.BackoffBase) * math.Pow(2, float64(attempt)))
			logger.Warn(ctx, "transient gateway failure (%s), retrying in %v: %v",
				errs.Code(err), backoff, err)
			select {
			case <-ctx.Done():
				return nil, errs.Wrap(ctx.Err(), errs.Canceled, "canceled during retry backoff")
			case <-time.After(backoff):
			}
		case errs.Code(err) == errs.InvalidResponse && !invalidRetried:
			// Malformed completions get exactly one immediate retry.
			invalidRetried = true
			logger.Warn(ctx, "malformed completion, retrying once: %v", err)
			attempt--
		default:
			return nil, err
		}
	}

	return nil, lastErr
}
