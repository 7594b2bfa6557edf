package eval

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/mikeboe/deep-leads/pkg/embeddings"
)

const DefaultThreshold = 0.7

// Match is one assigned (truth, prediction) pair.
type Match struct {
	Truth      string  `json:"truth"`
	Predicted  string  `json:"predicted"`
	Similarity float64 `json:"similarity"`
}

// Score holds precision, recall and F1 in percent (0-100).
type Score struct {
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	FalseNegatives int     `json:"false_negatives"`
	Matches        []Match `json:"matches,omitempty"`
}

// Scorer compares predicted lead names to ground truth by embedding
// similarity and optimal one-to-one matching.
type Scorer struct {
	Embedder  embeddings.Embedder
	Threshold float64
}

// NewScorer returns a scorer matching at threshold. A negative or NaN
// threshold selects DefaultThreshold; 0 accepts every assigned pair.
func NewScorer(embedder embeddings.Embedder, threshold float64) *Scorer {
	return &Scorer{Embedder: embedder, Threshold: effectiveThreshold(threshold)}
}

func effectiveThreshold(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return DefaultThreshold
	}
	return t
}

// ScoreSample scores pred against truth. Duplicate names are kept as
// independent entries.
func (s *Scorer) ScoreSample(ctx context.Context, truth, pred []string) (Score, error) {
	if len(truth) == 0 || len(pred) == 0 {
		return newScore(0, len(truth), len(pred), nil), nil
	}
	if s.Embedder == nil {
		return Score{}, errors.New("eval: scorer has no embedder")
	}

	truthVecs, err := s.Embedder.EmbedTexts(ctx, truth)
	if err != nil {
		return Score{}, fmt.Errorf("failed to embed ground truth: %w", err)
	}
	predVecs, err := s.Embedder.EmbedTexts(ctx, pred)
	if err != nil {
		return Score{}, fmt.Errorf("failed to embed predictions: %w", err)
	}
	if len(truthVecs) != len(truth) || len(predVecs) != len(pred) {
		return Score{}, fmt.Errorf("embedder returned %d+%d vectors for %d+%d names",
			len(truthVecs), len(predVecs), len(truth), len(pred))
	}

	return s.scoreSimilarities(truth, pred, CosineMatrix(truthVecs, predVecs)), nil
}

func (s *Scorer) scoreSimilarities(truth, pred []string, sim [][]float64) Score {
	threshold := effectiveThreshold(s.Threshold)

	cost := make([][]float64, len(sim))
	for i, row := range sim {
		cost[i] = make([]float64, len(row))
		for j, v := range row {
			cost[i][j] = -v
		}
	}

	var matches []Match
	for i, j := range Hungarian(cost) {
		if j < 0 || sim[i][j] < threshold {
			continue
		}
		matches = append(matches, Match{Truth: truth[i], Predicted: pred[j], Similarity: sim[i][j]})
	}
	return newScore(len(matches), len(truth), len(pred), matches)
}

func newScore(tp, nTruth, nPred int, matches []Match) Score {
	sc := Score{
		TruePositives:  tp,
		FalsePositives: nPred - tp,
		FalseNegatives: nTruth - tp,
		Matches:        matches,
	}
	if nPred > 0 {
		sc.Precision = 100 * float64(tp) / float64(nPred)
	}
	if nTruth > 0 {
		sc.Recall = 100 * float64(tp) / float64(nTruth)
	}
	if sc.Precision+sc.Recall > 0 {
		sc.F1 = 2 * sc.Precision * sc.Recall / (sc.Precision + sc.Recall)
	}
	return sc
}
