package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Block is a dense feed-forward trunk: dropout on the input, then for each
// configured width a dense layer, the hidden activation and dropout.
type Block struct {
	input  *Dropout
	stages []stage
}

type stage struct {
	dense *Dense
	act   Activation
	drop  *Dropout
}

// NewBlock builds a block mapping in features through the given widths.
func NewBlock(name string, in int, widths []int, act Activation, dropout float64, rng *rand.Rand) (*Block, error) {
	if len(widths) == 0 {
		return nil, fmt.Errorf("block %q: %w", name, ErrEmptyLayers)
	}

	b := &Block{input: NewDropout(dropout, rng)}
	prev := in
	for i, w := range widths {
		dense, err := NewDense(fmt.Sprintf("%s/hl_%d", name, i), prev, w, rng)
		if err != nil {
			return nil, err
		}
		b.stages = append(b.stages, stage{
			dense: dense,
			act:   act,
			drop:  NewDropout(dropout, rng),
		})
		prev = w
	}
	return b, nil
}

// Params returns every dense parameter in stage order.
func (b *Block) Params() []*Param {
	var params []*Param
	for _, s := range b.stages {
		params = append(params, s.dense.Params()...)
	}
	return params
}

// Depth returns the number of hidden stages.
func (b *Block) Depth() int { return len(b.stages) }

// Width returns the output width of stage i.
func (b *Block) Width(i int) int { return b.stages[i].dense.Out() }

// OutDim returns the width of the last stage.
func (b *Block) OutDim() int { return b.Width(len(b.stages) - 1) }

// Trace records one forward pass through a Block.
type Trace struct {
	// Outputs holds the post-dropout output of every stage.
	Outputs []*mat.Dense

	inputBack Backward
	backs     []Backward
}

// Forward runs x through every stage. Dropout is only active in training mode.
func (b *Block) Forward(x *mat.Dense, training bool) *Trace {
	h, inBack := b.input.Forward(x, training)
	t := &Trace{
		Outputs:   make([]*mat.Dense, len(b.stages)),
		inputBack: inBack,
		backs:     make([]Backward, len(b.stages)),
	}

	for i, s := range b.stages {
		z, denseBack := s.dense.Forward(h)
		a, actBack := s.act.Forward(z)
		out, dropBack := s.drop.Forward(a, training)

		t.backs[i] = chain(dropBack, actBack, denseBack)
		t.Outputs[i] = out
		h = out
	}
	return t
}

// Output returns the output of the last stage.
func (t *Trace) Output() *mat.Dense { return t.Outputs[len(t.Outputs)-1] }

// Backward takes the loss gradient at each stage output (nil or missing
// entries contribute nothing) and returns dL/d input, or nil if no gradient
// reached the input.
func (t *Trace) Backward(grads []*mat.Dense, acc *Gradients) *mat.Dense {
	var g *mat.Dense
	for i := len(t.backs) - 1; i >= 0; i-- {
		if i < len(grads) && grads[i] != nil {
			g = addOrTake(g, grads[i])
		}
		if g == nil {
			continue
		}
		g = t.backs[i](g, acc)
	}
	if g == nil {
		return nil
	}
	return t.inputBack(g, acc)
}

// chain composes backward closures, applying them in the given order.
func chain(backs ...Backward) Backward {
	return func(grad *mat.Dense, acc *Gradients) *mat.Dense {
		for _, b := range backs {
			grad = b(grad, acc)
		}
		return grad
	}
}

func addOrTake(acc, g *mat.Dense) *mat.Dense {
	if acc == nil {
		return g
	}
	r, c := acc.Dims()
	sum := mat.NewDense(r, c, nil)
	sum.Add(acc, g)
	return sum
}
