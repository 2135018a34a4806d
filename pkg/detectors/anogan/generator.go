// Package anogan implements AnoGAN, an anomaly detector that trains a
// generator/discriminator pair on unlabeled data and scores each sample by
// how well the frozen generator can reconstruct it from its latent space.
package anogan

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/goguardgan/pkg/nn"
)

// Generator maps latent vectors to feature vectors.
type Generator struct {
	trunk     *nn.Block
	out       *nn.Dense
	outAct    nn.Activation
	latentDim int
	params    *nn.ParamSet
}

// NewGenerator builds a generator from latent_dim_G to nFeatures.
func NewGenerator(cfg Config, nFeatures int, rng *rand.Rand) (*Generator, error) {
	hidden, err := nn.ActivationByName(cfg.ActivationHidden)
	if err != nil {
		return nil, err
	}
	outAct, err := nn.ActivationByName(cfg.OutputActivation)
	if err != nil {
		return nil, err
	}

	trunk, err := nn.NewBlock("generator", cfg.LatentDimG, cfg.GLayers, hidden, cfg.DropoutRate, rng)
	if err != nil {
		return nil, err
	}
	out, err := nn.NewDense("generator/out", trunk.OutDim(), nFeatures, rng)
	if err != nil {
		return nil, err
	}

	params := append(trunk.Params(), out.Params()...)
	return &Generator{
		trunk:     trunk,
		out:       out,
		outAct:    outAct,
		latentDim: cfg.LatentDimG,
		params:    nn.NewParamSet("generator", params...),
	}, nil
}

// Generate maps a batch of latent vectors to reconstructed samples.
// training only switches dropout on.
func (g *Generator) Generate(z *mat.Dense, training bool) (*mat.Dense, nn.Backward) {
	trace := g.trunk.Forward(z, training)
	pre, outBack := g.out.Forward(trace.Output())
	x, actBack := g.outAct.Forward(pre)

	back := func(grad *mat.Dense, acc *nn.Gradients) *mat.Dense {
		last := outBack(actBack(grad, acc), acc)
		grads := make([]*mat.Dense, g.trunk.Depth())
		grads[len(grads)-1] = last
		return trace.Backward(grads, acc)
	}
	return x, back
}

// Params returns the generator parameter set.
func (g *Generator) Params() *nn.ParamSet { return g.params }

// LatentDim returns the input width.
func (g *Generator) LatentDim() int { return g.latentDim }

// OutDim returns the number of generated features.
func (g *Generator) OutDim() int { return g.out.Out() }
