// Package promptimal is an evolutionary prompt optimizer: it refines a seed
// prompt over a fixed number of generations by proposing candidate variants
// with a language model, scoring them, and carrying the best performers
// forward until a score threshold is met or the iteration budget runs out.
//
// Key Components:
//
//   - Optimizer: The generation/selection loop. Each generation proposes a
//     batch of candidate prompts from the current elites, evaluates them
//     concurrently, ranks the population, and checks termination. The best
//     candidate seen so far only ever improves, and ties between equal
//     scores go to the earlier generation.
//
//   - Evaluators: Pluggable scoring strategies:
//     * Judge: Self-consistency judging. Several independent model calls
//     score a candidate on a 1-10 rubric; a quorum of parseable scores
//     must agree before the mean is accepted.
//     * External: A user-supplied executable that receives the candidate
//     text as its argument and prints a single score in [0, 1].
//
//   - Core: LLM abstractions shared by the proposer and the judge,
//     including generation options, token accounting, and a rate-limiting
//     decorator.
//
//   - LLMs: Provider integrations (Anthropic Claude) behind a factory so
//     additional providers can be registered.
//
// Simple Example:
//
//	import (
//	    "context"
//	    "fmt"
//	    "log"
//
//	    "github.com/XiaoConstantine/promptimal/pkg/llms"
//	    "github.com/XiaoConstantine/promptimal/pkg/optimizer"
//	)
//
//	func main() {
//	    llm, err := llms.NewLLM("anthropic", "your-api-key", "claude-3-haiku-20240307", nil)
//	    if err != nil {
//	        log.Fatalf("Failed to create LLM: %v", err)
//	    }
//
//	    cfg := optimizer.DefaultConfig()
//	    ctrl, err := optimizer.NewController(cfg, llm)
//	    if err != nil {
//	        log.Fatalf("Failed to create optimizer: %v", err)
//	    }
//
//	    result, err := ctrl.Run(context.Background(),
//	        "Summarize the following article in one paragraph.", "")
//	    if err != nil {
//	        log.Fatalf("Optimization failed: %v", err)
//	    }
//
//	    fmt.Printf("Best prompt (%.2f): %s\n", result.BestScore, result.BestPrompt)
//	}
//
// Advanced Features:
//
//   - Retry Logic: Rate limits and timeouts retry with exponential backoff;
//     malformed model output gets a single immediate retry.
//
//   - Task Inference: When no task description is supplied, the optimizer
//     asks the model to infer one from the seed prompt before judging.
//
//   - Progress Observation: A ProgressObserver receives a snapshot of every
//     generation as it completes, which the CLI uses for live reporting.
//
//   - Configuration: YAML files, environment variables, and CLI flags
//     layered over validated defaults.
//
// Promptimal is released under the MIT License.
package promptimal
