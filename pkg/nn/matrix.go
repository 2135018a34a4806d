package nn

import "gonum.org/v1/gonum/mat"

// FromRows copies a row-major slice of samples into a dense matrix.
func FromRows(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}

// Row returns a 1 x n matrix holding a copy of sample.
func Row(sample []float64) *mat.Dense {
	return mat.NewDense(1, len(sample), append([]float64(nil), sample...))
}

// ToRows copies a matrix into row-major slices.
func ToRows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}
