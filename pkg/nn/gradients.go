package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Gradients accumulates dL/dp for the parameters of exactly one trainable
// set. Contributions for parameters outside the set are dropped, so a loss
// graph that passes through another network never leaks into it.
type Gradients struct {
	set   *ParamSet
	grads map[*Param]*mat.Dense
}

// NewGradients starts an empty accumulator for set.
func NewGradients(set *ParamSet) (*Gradients, error) {
	if set.Mode() == Frozen {
		return nil, fmt.Errorf("gradients for %q: %w", set.Name(), ErrFrozen)
	}
	return &Gradients{
		set:   set,
		grads: make(map[*Param]*mat.Dense, len(set.params)),
	}, nil
}

// Set returns the parameter set the gradients belong to.
func (g *Gradients) Set() *ParamSet { return g.set }

// Tracks reports whether gradients for p are recorded. A nil accumulator tracks nothing.
func (g *Gradients) Tracks(p *Param) bool {
	return g != nil && g.set.Contains(p)
}

// Add accumulates d into the gradient of p.
func (g *Gradients) Add(p *Param, d mat.Matrix) {
	if !g.Tracks(p) {
		return
	}
	if cur, ok := g.grads[p]; ok {
		cur.Add(cur, d)
		return
	}
	g.grads[p] = mat.DenseCopyOf(d)
}

// Get returns the accumulated gradient for p, or nil if none reached it.
func (g *Gradients) Get(p *Param) *mat.Dense {
	return g.grads[p]
}

// Len returns how many parameters received a gradient.
func (g *Gradients) Len() int { return len(g.grads) }
