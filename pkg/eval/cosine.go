package eval

import "math"

// CosineMatrix returns the len(a) x len(b) matrix of cosine similarities.
// Zero vectors and mismatched lengths give 0; an empty side gives rows of
// the right shape instead of an error.
func CosineMatrix(a, b [][]float32) [][]float64 {
	bNorms := make([]float64, len(b))
	for j, v := range b {
		bNorms[j] = norm(v)
	}
	out := make([][]float64, len(a))
	for i, u := range a {
		out[i] = make([]float64, len(b))
		un := norm(u)
		if un == 0 {
			continue
		}
		for j, v := range b {
			if bNorms[j] == 0 || len(u) != len(v) {
				continue
			}
			out[i][j] = dot(u, v) / (un * bNorms[j])
		}
	}
	return out
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func norm(v []float32) float64 {
	return math.Sqrt(dot(v, v))
}
