package anogan

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/goguardgan/pkg/nn"
)

// Discrimination is the dual-headed output of one discriminator pass.
type Discrimination struct {
	// Prob is the n x 1 probability that each sample is real.
	Prob *mat.Dense
	// Embedding holds the activations of the reconstruction layer.
	Embedding *mat.Dense
}

// DiscriminatorBackward propagates gradients arriving at either head back to
// the discriminator input. Either gradient may be nil.
type DiscriminatorBackward func(gradProb, gradEmbedding *mat.Dense, acc *nn.Gradients) *mat.Dense

// Discriminator maps feature vectors to a real/fake probability and an
// intermediate embedding, both from one pass through a shared trunk.
type Discriminator struct {
	trunk      *nn.Block
	head       *nn.Dense
	reconLayer int
	params     *nn.ParamSet
}

// NewDiscriminator builds a discriminator over nFeatures inputs.
func NewDiscriminator(cfg Config, nFeatures int, rng *rand.Rand) (*Discriminator, error) {
	hidden, err := nn.ActivationByName(cfg.ActivationHidden)
	if err != nil {
		return nil, err
	}

	trunk, err := nn.NewBlock("discriminator", nFeatures, cfg.DLayers, hidden, cfg.DropoutRate, rng)
	if err != nil {
		return nil, err
	}
	if cfg.IndexDLayerForReconError < 0 || cfg.IndexDLayerForReconError >= trunk.Depth() {
		return nil, fmt.Errorf("reconstruction layer %d of %d: %w", cfg.IndexDLayerForReconError, trunk.Depth(), nn.ErrShape)
	}
	head, err := nn.NewDense("discriminator/out", trunk.OutDim(), 1, rng)
	if err != nil {
		return nil, err
	}

	params := append(trunk.Params(), head.Params()...)
	return &Discriminator{
		trunk:      trunk,
		head:       head,
		reconLayer: cfg.IndexDLayerForReconError,
		params:     nn.NewParamSet("discriminator", params...),
	}, nil
}

// Discriminate runs one forward pass and returns both heads.
func (d *Discriminator) Discriminate(x *mat.Dense, training bool) (Discrimination, DiscriminatorBackward) {
	trace := d.trunk.Forward(x, training)
	logits, headBack := d.head.Forward(trace.Output())
	prob, sigBack := nn.Sigmoid.Forward(logits)

	back := func(gradProb, gradEmbedding *mat.Dense, acc *nn.Gradients) *mat.Dense {
		grads := make([]*mat.Dense, d.trunk.Depth())
		if gradProb != nil {
			grads[len(grads)-1] = headBack(sigBack(gradProb, acc), acc)
		}
		if gradEmbedding != nil {
			if cur := grads[d.reconLayer]; cur != nil {
				sum := mat.DenseCopyOf(cur)
				sum.Add(sum, gradEmbedding)
				grads[d.reconLayer] = sum
			} else {
				grads[d.reconLayer] = gradEmbedding
			}
		}
		return trace.Backward(grads, acc)
	}

	return Discrimination{
		Prob:      prob,
		Embedding: trace.Outputs[d.reconLayer],
	}, back
}

// Params returns the discriminator parameter set.
func (d *Discriminator) Params() *nn.ParamSet { return d.params }

// EmbeddingDim returns the width of the reconstruction layer.
func (d *Discriminator) EmbeddingDim() int { return d.trunk.Width(d.reconLayer) }
