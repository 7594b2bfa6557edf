package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mikeboe/deep-leads/pkg/clients"
	"github.com/mikeboe/deep-leads/pkg/embeddings"
	"github.com/mikeboe/deep-leads/pkg/eval"
	"github.com/mikeboe/deep-leads/pkg/leads"
	"github.com/mikeboe/deep-leads/pkg/research"
)

type evalOptions struct {
	samples     string
	threshold   float64
	limit       int
	judge       bool
	checkpoints string
	mode        string
	batchSize   int
	out         string
}

func newEvalCmd() *cobra.Command {
	var opts evalOptions

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Benchmark the agent against verified samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("threshold") {
				opts.threshold = cfg.MatchThreshold
			}
			return runEval(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.samples, "samples", "s", "", "JSON file with the evaluation samples (default: built-in human-verified set)")
	cmd.Flags().Float64Var(&opts.threshold, "threshold", eval.DefaultThreshold, "Cosine similarity needed for a name match")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Evaluate only the first n samples")
	cmd.Flags().BoolVar(&opts.judge, "judge", false, "Also score each sample with the LLM correctness judge")
	cmd.Flags().StringVar(&opts.checkpoints, "checkpoints", "", "Directory for batch checkpoints; finished batches are reused")
	cmd.Flags().StringVar(&opts.mode, "mode", string(research.ModeSingle), "Agent mode: single or multi")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", eval.DefaultBatchSize, "Samples per checkpoint batch")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "Write all results as JSON to this file")
	return cmd
}

func loadEvalSamples(path string) ([]leads.Sample, error) {
	if path == "" {
		logger.Info("Using built-in human-verified samples")
		return eval.HumanVerifiedSamples(logger)
	}
	logger.Info("Loading samples", "path", path)
	return eval.LoadSamples(path, logger)
}

func runEval(cmd *cobra.Command, opts evalOptions) error {
	ctx := cmd.Context()

	mode, err := research.ParseMode(opts.mode)
	if err != nil {
		return err
	}
	samples, err := loadEvalSamples(opts.samples)
	if err != nil {
		return err
	}
	if opts.limit > 0 && opts.limit < len(samples) {
		samples = samples[:opts.limit]
	}

	engine, err := research.NewEngineFromConfig(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("error initializing engine: %w", err)
	}
	embedder, err := embeddings.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("error initializing embedder: %w", err)
	}

	runner := &eval.Runner{
		Researcher: engine,
		Scorer:     eval.NewScorer(embedder, opts.threshold),
		Mode:       mode,
		BatchSize:  opts.batchSize,
		Logger:     logger,
	}
	if opts.judge {
		model, err := clients.NewLLM(ctx, cfg, cfg.LLMProvider, clients.ModelType(cfg.JudgeModel))
		if err != nil {
			return fmt.Errorf("error initializing judge model: %w", err)
		}
		runner.Judge = eval.NewJudge(model)
		runner.Judge.Logger = logger
	}
	if opts.checkpoints != "" {
		cp, err := eval.NewCheckpointer(opts.checkpoints)
		if err != nil {
			return err
		}
		runner.Checkpoints = cp
	}

	w := cmd.OutOrStdout()
	var n int
	runner.OnResult = func(r eval.SampleResult) {
		fmt.Fprintln(w, eval.RenderSample(n, r))
		n++
	}

	results, summary, err := runner.Run(ctx, samples)
	fmt.Fprintln(w, eval.RenderSummary(summary))
	if err != nil {
		return fmt.Errorf("evaluation stopped: %w", err)
	}

	if opts.out == "" {
		return nil
	}
	data, err := json.MarshalIndent(map[string]any{"summary": summary, "results": results}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	logger.Info("Results written", "path", opts.out)
	return nil
}
