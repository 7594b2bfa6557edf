package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikeboe/deep-leads/pkg/agent"
	"github.com/mikeboe/deep-leads/pkg/leads"
	"github.com/mikeboe/deep-leads/pkg/research"
)

const DefaultBatchSize = 5

// Researcher runs a lead search. *research.ResearchEngine implements it.
type Researcher interface {
	Run(ctx context.Context, params leads.ResearchParams, mode research.Mode) (*research.Outcome, error)
}

// SampleResult is the evaluation of one sample.
type SampleResult struct {
	Sample     leads.Sample      `json:"sample"`
	Query      string            `json:"query"`
	Predicted  leads.LeadResults `json:"predicted"`
	StopReason agent.StopReason  `json:"stop_reason,omitempty"`
	Score      Score             `json:"score"`
	Comparison Comparison        `json:"comparison"`
	Verdict    *Verdict          `json:"verdict,omitempty"`
	Duration   time.Duration     `json:"duration"`
	Error      string            `json:"error,omitempty"`
}

// Failed reports whether the sample could not be evaluated.
func (r SampleResult) Failed() bool { return r.Error != "" }

// Summary aggregates the results of a run. Means are taken over the samples
// that did not fail.
type Summary struct {
	Samples       int     `json:"samples"`
	Failed        int     `json:"failed"`
	MeanPrecision float64 `json:"mean_precision"`
	MeanRecall    float64 `json:"mean_recall"`
	MeanF1        float64 `json:"mean_f1"`
	Judged        int     `json:"judged"`
	MeanJudge     float64 `json:"mean_judge"`
	JudgePassRate float64 `json:"judge_pass_rate"`
}

// Summarize computes the aggregate metrics of results.
func Summarize(results []SampleResult) Summary {
	s := Summary{Samples: len(results)}
	var passed int
	for _, r := range results {
		if r.Failed() {
			s.Failed++
			continue
		}
		s.MeanPrecision += r.Score.Precision
		s.MeanRecall += r.Score.Recall
		s.MeanF1 += r.Score.F1
		if r.Verdict != nil {
			s.Judged++
			s.MeanJudge += r.Verdict.Score
			if r.Verdict.Passed {
				passed++
			}
		}
	}
	if ok := s.Samples - s.Failed; ok > 0 {
		s.MeanPrecision /= float64(ok)
		s.MeanRecall /= float64(ok)
		s.MeanF1 /= float64(ok)
	}
	if s.Judged > 0 {
		s.MeanJudge /= float64(s.Judged)
		s.JudgePassRate = 100 * float64(passed) / float64(s.Judged)
	}
	return s
}

// Runner evaluates a researcher over a set of samples, batch by batch.
type Runner struct {
	Researcher Researcher
	Scorer     *Scorer
	// Judge is optional.
	Judge *Judge
	Mode  research.Mode
	// BatchSize is the number of samples per checkpoint.
	BatchSize int
	// Checkpoints is optional. Saved batches are reused instead of re-run.
	Checkpoints *Checkpointer
	Logger      *slog.Logger
	// OnResult is called after every evaluated sample.
	OnResult func(SampleResult)
}

// Run evaluates samples in order. Per-sample failures are recorded in the
// result; only context cancellation and checkpoint I/O errors stop the run.
func (r *Runner) Run(ctx context.Context, samples []leads.Sample) ([]SampleResult, Summary, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := r.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	var (
		results     []SampleResult
		completed   []int
		fingerprint string
	)
	if r.Checkpoints != nil {
		fp, err := Fingerprint(samples)
		if err != nil {
			return nil, Summary{}, err
		}
		fingerprint = fp
	}
	for batch, start := 0, 0; start < len(samples); batch, start = batch+1, start+size {
		end := min(start+size, len(samples))

		if r.Checkpoints != nil {
			saved, err := r.Checkpoints.Load(batch, fingerprint)
			if errors.Is(err, ErrStaleCheckpoint) {
				logger.Warn("Ignoring checkpoint from other samples", "batch", batch)
				saved = nil
			} else if err != nil {
				return results, Summarize(results), err
			}
			if len(saved) == end-start {
				logger.Info("Reusing checkpoint", "batch", batch, "results", len(saved))
				results = append(results, saved...)
				completed = append(completed, batch)
				continue
			}
		}

		logger.Info("Starting batch", "batch", batch, "from", start, "to", end, "total", len(samples))
		batchResults := make([]SampleResult, 0, end-start)
		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return append(results, batchResults...), Summarize(append(results, batchResults...)), err
			}
			res := r.evaluate(ctx, samples[i], logger.With("sample", i))
			batchResults = append(batchResults, res)
			if r.OnResult != nil {
				r.OnResult(res)
			}
		}
		results = append(results, batchResults...)
		completed = append(completed, batch)

		if r.Checkpoints != nil {
			if err := r.Checkpoints.Save(batch, fingerprint, batchResults); err != nil {
				return results, Summarize(results), fmt.Errorf("failed to save checkpoint: %w", err)
			}
			if err := r.Checkpoints.SaveProgress(fingerprint, completed, len(results)); err != nil {
				return results, Summarize(results), fmt.Errorf("failed to save progress: %w", err)
			}
		}
	}

	summary := Summarize(results)
	logger.Info("Evaluation finished", "samples", summary.Samples, "failed", summary.Failed,
		"precision", summary.MeanPrecision, "recall", summary.MeanRecall, "f1", summary.MeanF1)
	return results, summary, nil
}

func (r *Runner) evaluate(ctx context.Context, sample leads.Sample, logger *slog.Logger) SampleResult {
	started := time.Now()
	res := SampleResult{Sample: sample, Query: sample.QueryParams.Query()}
	fail := func(stage string, err error) SampleResult {
		logger.Error("Sample evaluation failed", "stage", stage, "error", err)
		res.Error = fmt.Sprintf("%s: %v", stage, err)
		res.Duration = time.Since(started)
		return res
	}

	out, err := r.Researcher.Run(ctx, sample.QueryParams, r.Mode)
	if err != nil {
		return fail("research", err)
	}
	res.Predicted = out.Leads
	res.StopReason = out.StopReason
	res.Comparison = MatchLeads(out.Leads.Leads, sample.ExpectedResults.Leads)

	score, err := r.Scorer.ScoreSample(ctx, sample.ExpectedResults.Names(), out.Leads.Names())
	if err != nil {
		return fail("score", err)
	}
	res.Score = score

	if r.Judge != nil {
		v, err := r.Judge.Correctness(ctx, res.Query, out.Leads.String(), sample.ExpectedResults.String())
		if err != nil {
			return fail("judge", err)
		}
		res.Verdict = &v
	}

	res.Duration = time.Since(started)
	logger.Info("Sample evaluated", "precision", score.Precision, "recall", score.Recall, "f1", score.F1,
		"leads", len(out.Leads.Leads), "expected", len(sample.ExpectedResults.Leads))
	return res
}
