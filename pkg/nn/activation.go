package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	seluAlpha = 1.6732632423543772
	seluScale = 1.0507009873554805
)

// Activation is an element-wise nonlinearity with its derivative expressed
// in terms of the pre-activation x and the output y.
type Activation struct {
	Name string
	f    func(x float64) float64
	df   func(x, y float64) float64
}

// Built-in activations, looked up by name with ActivationByName.
var (
	Linear = Activation{
		Name: "linear",
		f:    func(x float64) float64 { return x },
		df:   func(_, _ float64) float64 { return 1 },
	}
	Tanh = Activation{
		Name: "tanh",
		f:    math.Tanh,
		df:   func(_, y float64) float64 { return 1 - y*y },
	}
	ReLU = Activation{
		Name: "relu",
		f:    func(x float64) float64 { return math.Max(x, 0) },
		df: func(x, _ float64) float64 {
			if x > 0 {
				return 1
			}
			return 0
		},
	}
	Sigmoid = Activation{
		Name: "sigmoid",
		f:    sigmoid,
		df:   func(_, y float64) float64 { return y * (1 - y) },
	}
	ELU = Activation{
		Name: "elu",
		f: func(x float64) float64 {
			if x > 0 {
				return x
			}
			return math.Expm1(x)
		},
		df: func(x, y float64) float64 {
			if x > 0 {
				return 1
			}
			return y + 1
		},
	}
	SELU = Activation{
		Name: "selu",
		f: func(x float64) float64 {
			if x > 0 {
				return seluScale * x
			}
			return seluScale * seluAlpha * math.Expm1(x)
		},
		df: func(x, _ float64) float64 {
			if x > 0 {
				return seluScale
			}
			return seluScale * seluAlpha * math.Exp(x)
		},
	}
	Softplus = Activation{
		Name: "softplus",
		f: func(x float64) float64 {
			return math.Log1p(math.Exp(-math.Abs(x))) + math.Max(x, 0)
		},
		df: func(x, _ float64) float64 { return sigmoid(x) },
	}
)

var activations = map[string]Activation{
	"":         Linear,
	"linear":   Linear,
	"tanh":     Tanh,
	"relu":     ReLU,
	"sigmoid":  Sigmoid,
	"elu":      ELU,
	"selu":     SELU,
	"softplus": Softplus,
}

// ActivationByName looks up an activation. The empty name means linear.
func ActivationByName(name string) (Activation, error) {
	a, ok := activations[name]
	if !ok {
		return Activation{}, fmt.Errorf("nn: unknown activation %q", name)
	}
	return a, nil
}

// Forward applies the activation and returns its backward closure.
func (a Activation) Forward(x *mat.Dense) (*mat.Dense, Backward) {
	r, c := x.Dims()
	y := mat.NewDense(r, c, nil)
	y.Apply(func(_, _ int, v float64) float64 { return a.f(v) }, x)

	back := func(grad *mat.Dense, _ *Gradients) *mat.Dense {
		dx := mat.NewDense(r, c, nil)
		dx.Apply(func(i, j int, g float64) float64 {
			return g * a.df(x.At(i, j), y.At(i, j))
		}, grad)
		return dx
	}
	return y, back
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
