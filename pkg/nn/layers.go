package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Backward propagates grad (dL/d output) to dL/d input and records parameter
// gradients into acc. acc may be nil when only the input gradient is needed.
// A Backward closure never mutates its captured forward state, so it can be
// called once per loss that flows through the same forward pass.
type Backward func(grad *mat.Dense, acc *Gradients) *mat.Dense

func identityBackward(grad *mat.Dense, _ *Gradients) *mat.Dense { return grad }

// Dense is a fully connected layer y = xW + b.
type Dense struct {
	W *Param // in x out
	B *Param // 1 x out
}

// NewDense builds a dense layer with Glorot-uniform weights and zero bias.
func NewDense(name string, in, out int, rng *rand.Rand) (*Dense, error) {
	if in < 1 || out < 1 {
		return nil, fmt.Errorf("dense %q %dx%d: %w", name, in, out, ErrShape)
	}
	return &Dense{
		W: &Param{Name: name + "/kernel", Value: GlorotUniform(in, out, rng)},
		B: &Param{Name: name + "/bias", Value: mat.NewDense(1, out, nil)},
	}, nil
}

// In returns the input width.
func (d *Dense) In() int {
	r, _ := d.W.Value.Dims()
	return r
}

// Out returns the output width.
func (d *Dense) Out() int {
	_, c := d.W.Value.Dims()
	return c
}

// Params returns the kernel and bias.
func (d *Dense) Params() []*Param { return []*Param{d.W, d.B} }

// Forward computes xW + b for a batch x of shape n x In().
func (d *Dense) Forward(x *mat.Dense) (*mat.Dense, Backward) {
	n, _ := x.Dims()
	y := mat.NewDense(n, d.Out(), nil)
	y.Mul(x, d.W.Value)
	b := d.B.Value.RawRowView(0)
	y.Apply(func(_, j int, v float64) float64 { return v + b[j] }, y)

	back := func(grad *mat.Dense, acc *Gradients) *mat.Dense {
		if acc.Tracks(d.W) {
			dw := mat.NewDense(d.In(), d.Out(), nil)
			dw.Mul(x.T(), grad)
			acc.Add(d.W, dw)
		}
		if acc.Tracks(d.B) {
			db := mat.NewDense(1, d.Out(), nil)
			for j := 0; j < d.Out(); j++ {
				db.Set(0, j, mat.Sum(grad.ColView(j)))
			}
			acc.Add(d.B, db)
		}
		dx := mat.NewDense(n, d.In(), nil)
		dx.Mul(grad, d.W.Value.T())
		return dx
	}
	return y, back
}

// Dropout zeroes each unit with probability Rate during training and
// rescales the survivors by 1/(1-Rate). It is the identity at inference.
type Dropout struct {
	Rate float64
	rng  *rand.Rand
}

// NewDropout returns a dropout stage drawing masks from rng.
func NewDropout(rate float64, rng *rand.Rand) *Dropout {
	return &Dropout{Rate: rate, rng: rng}
}

// Forward applies dropout when training is set.
func (d *Dropout) Forward(x *mat.Dense, training bool) (*mat.Dense, Backward) {
	if !training || d.Rate == 0 {
		return x, identityBackward
	}

	r, c := x.Dims()
	keep := 1 / (1 - d.Rate)
	mask := mat.NewDense(r, c, nil)
	mask.Apply(func(_, _ int, _ float64) float64 {
		if d.rng.Float64() < d.Rate {
			return 0
		}
		return keep
	}, mask)

	y := mat.NewDense(r, c, nil)
	y.MulElem(x, mask)

	back := func(grad *mat.Dense, _ *Gradients) *mat.Dense {
		dx := mat.NewDense(r, c, nil)
		dx.MulElem(grad, mask)
		return dx
	}
	return y, back
}

// GlorotUniform samples a rows x cols matrix from U(-l, l) with l = sqrt(6/(rows+cols)).
func GlorotUniform(rows, cols int, rng *rand.Rand) *mat.Dense {
	limit := math.Sqrt(6 / float64(rows+cols))
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = (2*rng.Float64() - 1) * limit
	}
	return mat.NewDense(rows, cols, data)
}
