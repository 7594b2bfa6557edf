package eval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder returns fixed vectors per name.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	err     error
	calls   int
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, fmt.Errorf("no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func namesEmbedder() *fakeEmbedder {
	return &fakeEmbedder{vectors: map[string][]float32{
		"Alice Smith":   {1, 0, 0},
		"Alice M Smith": {0.95, 0.3, 0},
		"Bob Jones":     {0, 1, 0},
		"Carol White":   {0, 0, 1},
		"Carla Whyte":   {0.1, 0.5, 0.85},
	}}
}

func TestCosineMatrix(t *testing.T) {
	a := [][]float32{{1, 0}, {0, 2}, {0, 0}}
	b := [][]float32{{3, 0}, {1, 1}}
	got := CosineMatrix(a, b)

	want := [][]float64{
		{1, 1 / math.Sqrt2},
		{0, 1 / math.Sqrt2},
		{0, 0},
	}
	require.Len(t, got, 3)
	for i := range want {
		require.Len(t, got[i], 2)
		for j := range want[i] {
			assert.InDelta(t, want[i][j], got[i][j], 1e-9, "cell %d,%d", i, j)
		}
	}
}

func TestCosineMatrixEmptySides(t *testing.T) {
	a := [][]float32{{1, 2}, {3, 4}}

	got := CosineMatrix(a, nil)
	require.Len(t, got, 2)
	for _, row := range got {
		assert.Empty(t, row)
	}

	assert.Empty(t, CosineMatrix(nil, a))
	assert.Empty(t, CosineMatrix(nil, nil))
}

func TestCosineMatrixMismatchedLength(t *testing.T) {
	got := CosineMatrix([][]float32{{1, 0, 0}}, [][]float32{{1, 0}})
	assert.Equal(t, [][]float64{{0}}, got)
}

func assignmentCost(cost [][]float64, assign []int) float64 {
	var total float64
	for i, j := range assign {
		if j >= 0 {
			total += cost[i][j]
		}
	}
	return total
}

// bruteForce returns the minimal cost over all injective assignments of the
// smaller side.
func bruteForce(cost [][]float64) float64 {
	rows, cols := len(cost), len(cost[0])
	best := math.Inf(1)
	used := make([]bool, cols)
	var rec func(i int, acc float64, assigned int)
	rec = func(i int, acc float64, assigned int) {
		if i == rows {
			if assigned == min(rows, cols) && acc < best {
				best = acc
			}
			return
		}
		// rows may stay unassigned only when there are more rows than columns
		if rows > cols {
			rec(i+1, acc, assigned)
		}
		for j := 0; j < cols; j++ {
			if used[j] {
				continue
			}
			used[j] = true
			rec(i+1, acc+cost[i][j], assigned+1)
			used[j] = false
		}
	}
	rec(0, 0, 0)
	return best
}

func TestHungarian(t *testing.T) {
	tests := []struct {
		name string
		cost [][]float64
		want []int
	}{
		{"empty", nil, []int{}},
		{"no columns", [][]float64{{}, {}}, []int{-1, -1}},
		{"single", [][]float64{{5}}, []int{0}},
		{"square", [][]float64{{4, 1, 3}, {2, 0, 5}, {3, 2, 2}}, []int{1, 0, 2}},
		{"wide", [][]float64{{1, 9, 9}, {9, 9, 1}}, []int{0, 2}},
		{"tall", [][]float64{{9, 1}, {1, 9}, {5, 5}}, []int{1, 0, -1}},
		{"negative", [][]float64{{-1, -0.8}, {-0.9, -0.1}}, []int{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Hungarian(tt.cost)
			if len(tt.cost) > 0 && len(tt.cost[0]) > 0 {
				assert.InDelta(t, assignmentCost(tt.cost, tt.want), assignmentCost(tt.cost, got), 1e-9)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHungarianMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		rows, cols := 1+rng.Intn(5), 1+rng.Intn(5)
		cost := make([][]float64, rows)
		for i := range cost {
			cost[i] = make([]float64, cols)
			for j := range cost[i] {
				cost[i][j] = rng.Float64()*2 - 1
			}
		}
		got := Hungarian(cost)

		require.Len(t, got, rows)
		seen := map[int]bool{}
		assigned := 0
		for _, j := range got {
			if j < 0 {
				continue
			}
			require.False(t, seen[j], "column %d assigned twice", j)
			seen[j] = true
			assigned++
		}
		require.Equal(t, min(rows, cols), assigned)
		require.InDelta(t, bruteForce(cost), assignmentCost(cost, got), 1e-9, "trial %d: %v", trial, cost)
	}
}

func TestScoreSampleEmpty(t *testing.T) {
	emb := namesEmbedder()
	s := NewScorer(emb, 0)

	tests := []struct {
		name        string
		truth, pred []string
		fp, fn      int
	}{
		{"both empty", nil, nil, 0, 0},
		{"no predictions", []string{"Alice Smith"}, nil, 0, 1},
		{"no truth", nil, []string{"Alice Smith"}, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ScoreSample(context.Background(), tt.truth, tt.pred)
			require.NoError(t, err)
			assert.Zero(t, got.Precision)
			assert.Zero(t, got.Recall)
			assert.Zero(t, got.F1)
			assert.Equal(t, tt.fp, got.FalsePositives)
			assert.Equal(t, tt.fn, got.FalseNegatives)
		})
	}
	assert.Zero(t, emb.calls)
}

func TestScoreSample(t *testing.T) {
	s := NewScorer(namesEmbedder(), DefaultThreshold)
	ctx := context.Background()

	got, err := s.ScoreSample(ctx, []string{"Alice Smith"}, []string{"Alice Smith"})
	require.NoError(t, err)
	assert.InDelta(t, 100, got.Precision, 1e-9)
	assert.InDelta(t, 100, got.Recall, 1e-9)
	assert.InDelta(t, 100, got.F1, 1e-9)

	got, err = s.ScoreSample(ctx, []string{"Alice Smith"}, []string{"Bob Jones"})
	require.NoError(t, err)
	assert.Zero(t, got.Precision)
	assert.Zero(t, got.Recall)
	assert.Zero(t, got.F1)
	assert.Equal(t, 1, got.FalsePositives)
	assert.Equal(t, 1, got.FalseNegatives)

	// Spelling variants above the threshold still match.
	got, err = s.ScoreSample(ctx,
		[]string{"Alice Smith", "Carol White"},
		[]string{"Carla Whyte", "Alice M Smith", "Bob Jones"})
	require.NoError(t, err)
	assert.Equal(t, 2, got.TruePositives)
	assert.Equal(t, 1, got.FalsePositives)
	assert.Equal(t, 0, got.FalseNegatives)
	assert.InDelta(t, 100*2.0/3, got.Precision, 1e-9)
	assert.InDelta(t, 100, got.Recall, 1e-9)
	assert.InDelta(t, 80, got.F1, 1e-9)
}

func TestScoreSampleDuplicatesAreIndependent(t *testing.T) {
	s := NewScorer(namesEmbedder(), DefaultThreshold)
	got, err := s.ScoreSample(context.Background(), []string{"Alice Smith", "Alice Smith"}, []string{"Alice Smith"})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TruePositives)
	assert.Equal(t, 1, got.FalseNegatives)
	assert.InDelta(t, 100, got.Precision, 1e-9)
	assert.InDelta(t, 50, got.Recall, 1e-9)
}

func TestScoreSampleMonotoneInThreshold(t *testing.T) {
	truth := []string{"Alice Smith", "Carol White", "Bob Jones"}
	pred := []string{"Alice M Smith", "Carla Whyte", "Alice Smith", "Carol White"}

	prevP, prevR := math.Inf(1), math.Inf(1)
	for _, th := range []float64{0, 0.05, 0.3, 0.5, 0.7, 0.8, 0.9, 0.95, 0.99, 1} {
		s := NewScorer(namesEmbedder(), th)
		got, err := s.ScoreSample(context.Background(), truth, pred)
		require.NoError(t, err)
		if got.Precision > prevP || got.Recall > prevR {
			t.Errorf("threshold %v: precision %v recall %v increased from %v %v", th, got.Precision, got.Recall, prevP, prevR)
		}
		prevP, prevR = got.Precision, got.Recall
	}
}

func TestNewScorerThreshold(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{0.4, 0.4},
		{1, 1},
		{-1, DefaultThreshold},
		{math.NaN(), DefaultThreshold},
	}
	for _, tt := range tests {
		if got := NewScorer(nil, tt.in).Threshold; got != tt.want {
			t.Errorf("NewScorer(%v).Threshold = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScoreSampleZeroThresholdKeepsAssignedPairs(t *testing.T) {
	ctx := context.Background()
	truth, pred := []string{"Bob Jones"}, []string{"Carla Whyte"}

	zero, err := NewScorer(namesEmbedder(), 0).ScoreSample(ctx, truth, pred)
	require.NoError(t, err)
	half, err := NewScorer(namesEmbedder(), 0.5).ScoreSample(ctx, truth, pred)
	require.NoError(t, err)

	assert.InDelta(t, 100, zero.Recall, 1e-9)
	assert.GreaterOrEqual(t, zero.Recall, half.Recall)
	assert.GreaterOrEqual(t, zero.Precision, half.Precision)
}

func TestScoreSampleEmbedError(t *testing.T) {
	s := NewScorer(&fakeEmbedder{err: errors.New("quota")}, DefaultThreshold)
	_, err := s.ScoreSample(context.Background(), []string{"a"}, []string{"b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")

	_, err = (&Scorer{}).ScoreSample(context.Background(), []string{"a"}, []string{"b"})
	assert.Error(t, err)
}
