package optimizer

import (
	"context"
	"strings"

	"github.com/XiaoConstantine/promptimal/pkg/core"
	errs "github.com/XiaoConstantine/promptimal/pkg/errors"
	"github.com/XiaoConstantine/promptimal/pkg/logging"
	"github.com/XiaoConstantine/promptimal/pkg/utils"
)

// Mutator asks the model gateway for the next generation of candidate
// prompts, seeded from the current elites. Stochastic diversity across
// samples is the point: determinism is not required.
type Mutator struct {
	llm   core.LLM
	cfg   *Config
	usage *tokenTracker
}

func NewMutator(llm core.LLM, cfg *Config, usage *tokenTracker) *Mutator {
	return &Mutator{llm: llm, cfg: cfg, usage: usage}
}

// Propose returns count unscored candidates for the given generation. If
// the model under-produces or duplicates, it fails with
// InsufficientCandidates carrying whatever distinct candidates it got; the
// controller decides whether to retry or degrade.
func (m *Mutator) Propose(ctx context.Context, task TaskContext, elites []*Candidate, count, generation int) ([]*Candidate, error) {
	logger := logging.GetLogger()

	prompt := buildProposePrompt(task, elites, count)
	resp, err := generateWithRetry(ctx, m.llm, prompt, m.cfg,
		core.WithTemperature(m.cfg.Temperature),
		core.WithMaxTokens(m.cfg.MaxTokens))
	if err != nil {
		return nil, err
	}
	m.usage.add(resp.Usage)

	texts, err := parseProposedPrompts(resp.Content)
	if err != nil {
		return nil, err
	}

	candidates := dedupeCandidates(texts, elites, generation)
	logger.Debug(ctx, "mutator proposed %d distinct candidates (%d requested)", len(candidates), count)

	if len(candidates) < count {
		return candidates, errs.WithFields(
			errs.New(errs.InsufficientCandidates, "mutator under-produced candidates"),
			errs.Fields{"requested": count, "received": len(candidates)})
	}
	return candidates[:count], nil
}

// parseProposedPrompts extracts the "prompts" array from a generation
// response.
func parseProposedPrompts(content string) ([]string, error) {
	parsed, err := utils.ParseJSONResponse(utils.CleanJSONResponse(content))
	if err != nil {
		return nil, errs.Wrap(err, errs.InvalidResponse, "generation response is not valid JSON")
	}

	raw, ok := parsed["prompts"].([]interface{})
	if !ok {
		return nil, errs.New(errs.InvalidResponse, "generation response has no prompts array")
	}

	texts := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			texts = append(texts, strings.TrimSpace(s))
		}
	}
	return texts, nil
}

// dedupeCandidates drops repeats within the batch and against the elite
// set, then wraps the survivors as unscored candidates.
func dedupeCandidates(texts []string, elites []*Candidate, generation int) []*Candidate {
	seen := make(map[string]struct{}, len(texts)+len(elites))
	for _, e := range elites {
		seen[normalizePrompt(e.Text)] = struct{}{}
	}

	candidates := make([]*Candidate, 0, len(texts))
	for _, text := range texts {
		key := normalizePrompt(text)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		candidates = append(candidates, NewCandidate(text, generation))
	}
	return candidates
}

func normalizePrompt(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// parseInferredTask extracts the task description from a task-inference
// response.
func parseInferredTask(content string) (string, error) {
	parsed, err := utils.ParseJSONResponse(utils.CleanJSONResponse(content))
	if err != nil {
		return "", errs.Wrap(err, errs.InvalidResponse, "task inference response is not valid JSON")
	}
	task, ok := parsed["task"].(string)
	if !ok || strings.TrimSpace(task) == "" {
		return "", errs.New(errs.InvalidResponse, "task inference response has no task description")
	}
	return strings.TrimSpace(task), nil
}
