package nn

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// AdamConfig holds Adam hyperparameters.
type AdamConfig struct {
	LR      float64
	Beta1   float64
	Beta2   float64
	Epsilon float64
}

// DefaultAdamConfig returns the usual Adam defaults with the given learning rate.
func DefaultAdamConfig(lr float64) AdamConfig {
	return AdamConfig{
		LR:      lr,
		Beta1:   0.9,
		Beta2:   0.999,
		Epsilon: 1e-7,
	}
}

// Adam is an adaptive moment optimizer bound to a single parameter set.
// Its moment estimates are never shared with another set.
type Adam struct {
	cfg AdamConfig
	set *ParamSet
	m   map[*Param]*mat.Dense
	v   map[*Param]*mat.Dense
	t   int
}

// NewAdam creates optimizer state for set.
func NewAdam(set *ParamSet, cfg AdamConfig) *Adam {
	return &Adam{
		cfg: cfg,
		set: set,
		m:   make(map[*Param]*mat.Dense),
		v:   make(map[*Param]*mat.Dense),
	}
}

// Iterations returns the number of applied steps.
func (a *Adam) Iterations() int { return a.t }

// Step applies one update from grads. Parameters without a gradient are left untouched.
func (a *Adam) Step(grads *Gradients) error {
	if a.set.Mode() == Frozen {
		return fmt.Errorf("adam step on %q: %w", a.set.Name(), ErrFrozen)
	}
	if grads.Set() != a.set {
		return fmt.Errorf("adam on %q got gradients for %q: %w", a.set.Name(), grads.Set().Name(), ErrForeignGradients)
	}

	a.t++
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	alpha := a.cfg.LR * math.Sqrt(1-math.Pow(b2, float64(a.t))) / (1 - math.Pow(b1, float64(a.t)))

	for _, p := range a.set.Params() {
		g := grads.Get(p)
		if g == nil {
			continue
		}
		r, c := p.Value.Dims()
		m, ok := a.m[p]
		if !ok {
			m = mat.NewDense(r, c, nil)
			a.m[p] = m
			a.v[p] = mat.NewDense(r, c, nil)
		}
		v := a.v[p]

		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				gij := g.At(i, j)
				mij := b1*m.At(i, j) + (1-b1)*gij
				vij := b2*v.At(i, j) + (1-b2)*gij*gij
				m.Set(i, j, mij)
				v.Set(i, j, vij)
				p.Value.Set(i, j, p.Value.At(i, j)-alpha*mij/(math.Sqrt(vij)+a.cfg.Epsilon))
			}
		}
	}
	return nil
}
