package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// weightedSum is a linear probe loss sum(out .* w) whose gradient is w.
func weightedSum(out, w *mat.Dense) float64 {
	var e mat.Dense
	e.MulElem(out, w)
	return mat.Sum(&e)
}

func randomMatrix(r, c int, rng *rand.Rand) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

func TestBlockGradientsMatchFiniteDifferences(t *testing.T) {
	for _, act := range []Activation{Tanh, Sigmoid, Linear, ELU, Softplus, SELU} {
		t.Run(act.Name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			block, err := NewBlock("b", 3, []int{4, 2}, act, 0, rng)
			require.NoError(t, err)

			x := randomMatrix(5, 3, rng)
			probe := randomMatrix(5, 2, rng)
			tap := randomMatrix(5, 4, rng)

			loss := func() float64 {
				tr := block.Forward(x, false)
				return weightedSum(tr.Outputs[1], probe) + weightedSum(tr.Outputs[0], tap)
			}

			set := NewParamSet("b", block.Params()...)
			acc, err := NewGradients(set)
			require.NoError(t, err)
			dx := block.Forward(x, false).Backward([]*mat.Dense{tap, probe}, acc)
			require.NotNil(t, dx)

			const h = 1e-6
			for _, p := range set.Params() {
				g := acc.Get(p)
				require.NotNil(t, g, p.Name)
				r, c := p.Value.Dims()
				for i := 0; i < r; i++ {
					for j := 0; j < c; j++ {
						orig := p.Value.At(i, j)
						p.Value.Set(i, j, orig+h)
						up := loss()
						p.Value.Set(i, j, orig-h)
						down := loss()
						p.Value.Set(i, j, orig)
						assert.InDelta(t, (up-down)/(2*h), g.At(i, j), 1e-5, "%s[%d,%d]", p.Name, i, j)
					}
				}
			}

			r, c := x.Dims()
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					orig := x.At(i, j)
					x.Set(i, j, orig+h)
					up := loss()
					x.Set(i, j, orig-h)
					down := loss()
					x.Set(i, j, orig)
					assert.InDelta(t, (up-down)/(2*h), dx.At(i, j), 1e-5)
				}
			}
		})
	}
}

func TestGradientsScopedToOneSet(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	a, err := NewDense("a", 2, 2, rng)
	require.NoError(t, err)
	b, err := NewDense("b", 2, 1, rng)
	require.NoError(t, err)

	setA := NewParamSet("a", a.Params()...)
	setB := NewParamSet("b", b.Params()...)

	x := randomMatrix(3, 2, rng)
	h, backA := a.Forward(x)
	y, backB := b.Forward(h)

	accA, err := NewGradients(setA)
	require.NoError(t, err)
	ones := mat.NewDense(3, 1, []float64{1, 1, 1})
	backA(backB(ones, accA), accA)
	_ = y

	assert.Equal(t, 2, accA.Len())
	assert.Nil(t, accA.Get(b.W))
	assert.NotNil(t, accA.Get(a.W))
	assert.False(t, accA.Tracks(b.B))

	setB.Freeze()
	_, err = NewGradients(setB)
	assert.ErrorIs(t, err, ErrFrozen)
	assert.Equal(t, "frozen", setB.Mode().String())
}

func TestAdam(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	d, err := NewDense("d", 1, 1, rng)
	require.NoError(t, err)
	set := NewParamSet("d", d.Params()...)
	opt := NewAdam(set, DefaultAdamConfig(0.05))

	// minimize (w*1 + b - 3)^2
	x := mat.NewDense(1, 1, []float64{1})
	for i := 0; i < 1000; i++ {
		y, back := d.Forward(x)
		g := mat.NewDense(1, 1, []float64{2 * (y.At(0, 0) - 3)})
		acc, err := NewGradients(set)
		require.NoError(t, err)
		back(g, acc)
		require.NoError(t, opt.Step(acc))
	}
	y, _ := d.Forward(x)
	assert.InDelta(t, 3, y.At(0, 0), 5e-2)
	assert.Equal(t, 1000, opt.Iterations())

	t.Run("foreign gradients", func(t *testing.T) {
		other := NewParamSet("other", d.Params()...)
		acc, err := NewGradients(other)
		require.NoError(t, err)
		assert.ErrorIs(t, opt.Step(acc), ErrForeignGradients)
	})

	t.Run("frozen set", func(t *testing.T) {
		acc, err := NewGradients(set)
		require.NoError(t, err)
		before := set.Snapshot()
		set.Freeze()
		defer set.Unfreeze()
		assert.ErrorIs(t, opt.Step(acc), ErrFrozen)
		for i, p := range set.Params() {
			assert.True(t, mat.Equal(before[i], p.Value))
		}
	})
}

func TestDropout(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	d := NewDropout(0.5, rng)
	x := randomMatrix(20, 20, rng)

	y, _ := d.Forward(x, false)
	assert.True(t, mat.Equal(x, y), "inference dropout is identity")

	y, back := d.Forward(x, true)
	zeros := 0
	r, c := y.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			switch y.At(i, j) {
			case 0:
				zeros++
			default:
				assert.InDelta(t, 2*x.At(i, j), y.At(i, j), 1e-12)
			}
		}
	}
	assert.InDelta(t, 200, zeros, 60)

	g := back(mat.NewDense(r, c, nil), nil)
	assert.Equal(t, 0.0, mat.Sum(g))
}

func TestNewBlockErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := NewBlock("b", 3, nil, Tanh, 0.1, rng)
	assert.ErrorIs(t, err, ErrEmptyLayers)

	_, err = NewBlock("b", 3, []int{4, 0}, Tanh, 0.1, rng)
	assert.ErrorIs(t, err, ErrShape)

	b, err := NewBlock("b", 3, []int{4, 6}, Tanh, 0.1, rng)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Depth())
	assert.Equal(t, 6, b.OutDim())
	assert.Len(t, b.Params(), 4)
}

func TestActivationByName(t *testing.T) {
	for _, name := range []string{"", "linear", "tanh", "relu", "sigmoid", "elu", "selu", "softplus"} {
		_, err := ActivationByName(name)
		assert.NoError(t, err, name)
	}
	_, err := ActivationByName("swishy")
	assert.Error(t, err)

	y, _ := Sigmoid.Forward(mat.NewDense(1, 3, []float64{-1000, 0, 1000}))
	assert.InDeltaSlice(t, []float64{0, 0.5, 1}, y.RawRowView(0), 1e-12)
}

func TestLosses(t *testing.T) {
	pred := mat.NewDense(2, 1, []float64{0.9, 0.1})

	loss, grad := BinaryCrossEntropy(1, pred)
	assert.InDelta(t, -(math.Log(0.9)+math.Log(0.1))/2, loss, 1e-12)
	assert.Less(t, grad.At(0, 0), 0.0)

	loss, _ = BinaryCrossEntropy(0, mat.NewDense(1, 1, []float64{0}))
	assert.False(t, math.IsInf(loss, 0))

	target := mat.NewDense(1, 4, []float64{1, 2, 3, 4})
	got := mat.NewDense(1, 4, []float64{2, 2, 1, 4})
	loss, grad = MeanAbsoluteError(target, got)
	assert.InDelta(t, 0.75, loss, 1e-12)
	assert.Equal(t, []float64{0.25, 0, -0.25, 0}, grad.RawRowView(0))
}

func TestRowsRoundTrip(t *testing.T) {
	rows := [][]float64{{1, 2}, {3, 4}, {5, 6}}
	m := FromRows(rows)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, rows, ToRows(m))
	assert.Nil(t, FromRows(nil))
	assert.Equal(t, []float64{7, 8}, Row([]float64{7, 8}).RawRowView(0))
}
