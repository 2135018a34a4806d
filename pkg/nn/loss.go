package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const bceEpsilon = 1e-7

// BinaryCrossEntropy returns the mean BCE of pred against a constant target
// and its gradient with respect to pred. Predictions are clipped to
// [1e-7, 1-1e-7]; the gradient is evaluated at the clipped value.
func BinaryCrossEntropy(target float64, pred *mat.Dense) (float64, *mat.Dense) {
	r, c := pred.Dims()
	n := float64(r * c)
	grad := mat.NewDense(r, c, nil)

	var loss float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			p := math.Min(math.Max(pred.At(i, j), bceEpsilon), 1-bceEpsilon)
			loss -= target*math.Log(p) + (1-target)*math.Log(1-p)
			grad.Set(i, j, (p-target)/(p*(1-p))/n)
		}
	}
	return loss / n, grad
}

// MeanAbsoluteError returns mean(|pred - target|) over all elements and its
// gradient with respect to pred.
func MeanAbsoluteError(target, pred *mat.Dense) (float64, *mat.Dense) {
	r, c := pred.Dims()
	n := float64(r * c)
	grad := mat.NewDense(r, c, nil)

	var loss float64
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			d := pred.At(i, j) - target.At(i, j)
			loss += math.Abs(d)
			switch {
			case d > 0:
				grad.Set(i, j, 1/n)
			case d < 0:
				grad.Set(i, j, -1/n)
			}
		}
	}
	return loss / n, grad
}
