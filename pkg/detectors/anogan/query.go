package anogan

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/goguardgan/pkg/detectors"
	"github.com/hed1ad/goguardgan/pkg/nn"
)

// ErrNotFrozen is returned when a latent query runs against trainable networks.
var ErrNotFrozen = errors.New("anogan: generator and discriminator must be frozen for a latent query")

// QueryOptimizer searches the latent space of a frozen generator for the
// code that best reconstructs one sample. Queries share no mutable state,
// so one optimizer can serve concurrent callers.
type QueryOptimizer struct {
	gen    *Generator
	disc   *Discriminator
	epochs int
	lr     float64
	seed   int64

	logger  *logrus.Logger
	verbose int
}

// NewQueryOptimizer binds a query optimizer to a frozen network pair.
func NewQueryOptimizer(gen *Generator, disc *Discriminator, epochs int, lr float64, seed int64) *QueryOptimizer {
	return &QueryOptimizer{
		gen:    gen,
		disc:   disc,
		epochs: epochs,
		lr:     lr,
		seed:   seed,
	}
}

// WithLogging enables per-iteration debug logging at verbose >= 2.
func (q *QueryOptimizer) WithLogging(logger *logrus.Logger, verbose int) *QueryOptimizer {
	q.logger = logger
	q.verbose = verbose
	return q
}

// Query returns the anomaly score of sample: the combined reconstruction
// loss of the final iteration. A trainable affine map z = W*0 + b is fitted
// with a query-local Adam; it and its optimizer state are dropped on return.
func (q *QueryOptimizer) Query(sample []float64) (float64, error) {
	if q.gen.Params().Mode() != nn.Frozen || q.disc.Params().Mode() != nn.Frozen {
		return 0, ErrNotFrozen
	}
	if err := detectors.CheckSample(sample, q.gen.OutDim()); err != nil {
		return 0, err
	}

	latent := q.gen.LatentDim()
	affine, err := nn.NewDense("query/affine", latent, latent, rand.New(rand.NewSource(q.seed)))
	if err != nil {
		return 0, err
	}
	params := nn.NewParamSet("query", affine.Params()...)
	opt := nn.NewAdam(params, nn.DefaultAdamConfig(q.lr))

	pseudo := mat.NewDense(1, latent, nil)
	x := nn.Row(sample)

	var total float64
	for i := 0; i < q.epochs; i++ {
		if q.verbose >= 2 && q.logger != nil && i%25 == 0 {
			q.logger.WithField("iter", i).Debug("latent query")
		}

		z, affineBack := affine.Forward(pseudo)
		recon, genBack := q.gen.Generate(z, false)
		reconOut, discBack := q.disc.Discriminate(recon, false)
		queryOut, _ := q.disc.Discriminate(x, false)

		lossGen, gradRecon := nn.MeanAbsoluteError(x, recon)
		lossDisc, gradEmbedding := nn.MeanAbsoluteError(queryOut.Embedding, reconOut.Embedding)
		total = lossGen + lossDisc

		grads, err := nn.NewGradients(params)
		if err != nil {
			return 0, err
		}
		gradRecon.Add(gradRecon, discBack(nil, gradEmbedding, grads))
		affineBack(genBack(gradRecon, grads), grads)

		if err := opt.Step(grads); err != nil {
			return 0, fmt.Errorf("query iteration %d: %w", i, err)
		}
	}
	return total, nil
}
