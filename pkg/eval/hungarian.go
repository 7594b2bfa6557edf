package eval

import "math"

// Hungarian solves the rectangular assignment problem for cost, minimising
// the total cost. It returns, for every row, the assigned column or -1.
// Exactly min(rows, cols) rows are assigned.
func Hungarian(cost [][]float64) []int {
	rows := len(cost)
	if rows == 0 {
		return []int{}
	}
	cols := len(cost[0])
	if cols == 0 {
		return fill(rows, -1)
	}
	if rows <= cols {
		return solve(cost, rows, cols)
	}

	t := make([][]float64, cols)
	for j := range t {
		t[j] = make([]float64, rows)
		for i := range cost {
			t[j][i] = cost[i][j]
		}
	}
	byCol := solve(t, cols, rows)
	out := fill(rows, -1)
	for j, i := range byCol {
		if i >= 0 {
			out[i] = j
		}
	}
	return out
}

// solve is the O(n^2 m) potentials method for n <= m. Indices are 1-based
// internally, column 0 is the virtual start column.
func solve(cost [][]float64, n, m int) []int {
	u := make([]float64, n+1)
	v := make([]float64, m+1)
	p := make([]int, m+1)
	way := make([]int, m+1)

	for i := 1; i <= n; i++ {
		p[0] = i
		j0 := 0
		minv := make([]float64, m+1)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		used := make([]bool, m+1)
		for {
			used[j0] = true
			i0 := p[j0]
			delta := math.Inf(1)
			j1 := 0
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}

	out := fill(n, -1)
	for j := 1; j <= m; j++ {
		if p[j] != 0 {
			out[p[j]-1] = j - 1
		}
	}
	return out
}

func fill(n, v int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = v
	}
	return out
}
