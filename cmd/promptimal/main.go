package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/XiaoConstantine/promptimal/pkg/config"
	"github.com/XiaoConstantine/promptimal/pkg/core"
	"github.com/XiaoConstantine/promptimal/pkg/llms"
	"github.com/XiaoConstantine/promptimal/pkg/logging"
	"github.com/XiaoConstantine/promptimal/pkg/optimizer"
)

var (
	flagConfig        string
	flagPrompt        string
	flagTask          string
	flagNumIters      int
	flagNumSamples    int
	flagThreshold     float64
	flagEvaluator     string
	flagEvaluatorPath string
	flagModel         string
	flagVerbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "promptimal",
	Short: "Optimize prompts with an evolutionary, LLM-judged search",
	Long: `Promptimal iteratively improves a prompt for a stated task without a
labeled dataset. Each generation the model proposes candidate prompts seeded
from the best performers so far; candidates are scored either by
self-consistent LLM judging or by a scoring program you supply.`,
	Version: "0.1.0",
	RunE:    runOptimize,
}

func init() {
	rootCmd.Flags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	rootCmd.Flags().StringVar(&flagPrompt, "prompt", "", "Initial prompt to optimize (required)")
	rootCmd.Flags().StringVar(&flagTask, "task-description", "", "Description of the task the prompt is used for; inferred when omitted")
	rootCmd.Flags().IntVar(&flagNumIters, "num-iters", 0, "Number of optimization generations")
	rootCmd.Flags().IntVar(&flagNumSamples, "num-samples", 0, "Candidates to generate per generation")
	rootCmd.Flags().Float64Var(&flagThreshold, "threshold", -1, "Score threshold that stops the run early")
	rootCmd.Flags().StringVar(&flagEvaluator, "evaluator", "", "Evaluator kind: judge or external")
	rootCmd.Flags().StringVar(&flagEvaluatorPath, "evaluator-path", "", "Path to an external scoring program")
	rootCmd.Flags().StringVar(&flagModel, "model", "", "Model to use for generation and judging")
	rootCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	_ = rootCmd.MarkFlagRequired("prompt")
}

func runOptimize(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	severity := logging.ParseSeverity(cfg.LogLevel)
	if flagVerbose {
		severity = logging.DEBUG
	}
	logging.SetLogger(logging.NewLogger(logging.Config{
		Severity: severity,
		Outputs:  []logging.Output{logging.NewConsoleOutput(true)},
	}))

	llm, err := buildLLM(cfg)
	if err != nil {
		return err
	}

	controller, err := optimizer.NewController(cfg.RunConfig(), llm,
		optimizer.WithObserver(optimizer.ObserverFunc(printProgress)))
	if err != nil {
		return err
	}

	result, err := controller.Run(cmd.Context(), flagPrompt, flagTask)
	if err != nil {
		return err
	}

	fmt.Printf("\nOptimized prompt (score %.2f after %d generations, %d tokens):\n\n%s\n",
		result.BestScore, result.GenerationsRun, result.Usage.TotalTokens, result.BestPrompt)
	return nil
}

// applyFlags overlays explicitly set CLI flags on top of the loaded config.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("num-iters") {
		cfg.NumIters = flagNumIters
	}
	if cmd.Flags().Changed("num-samples") {
		cfg.NumSamples = flagNumSamples
	}
	if cmd.Flags().Changed("threshold") {
		cfg.Threshold = flagThreshold
	}
	if cmd.Flags().Changed("evaluator") {
		cfg.Evaluator = flagEvaluator
	}
	if cmd.Flags().Changed("evaluator-path") {
		cfg.EvaluatorPath = flagEvaluatorPath
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = flagModel
	}
}

func buildLLM(cfg *config.Config) (core.LLM, error) {
	var endpoint *core.EndpointConfig
	if cfg.BaseURL != "" {
		endpoint = &core.EndpointConfig{BaseURL: cfg.BaseURL}
	}

	llm, err := llms.NewLLM(cfg.Provider, cfg.APIKey, core.ModelID(cfg.Model), endpoint)
	if err != nil {
		return nil, err
	}
	if cfg.RequestsPerSec > 0 {
		return core.NewRateLimitedLLM(llm, cfg.RequestsPerSec, cfg.NumSamples), nil
	}
	return llm, nil
}

func printProgress(s optimizer.GenerationSnapshot) {
	failed := 0
	for _, c := range s.Candidates {
		if c.Failed {
			failed++
		}
	}
	fmt.Printf("generation %d: %d candidates (%d unscorable), best %.2f\n",
		s.Generation, len(s.Candidates), failed, s.BestScore)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
