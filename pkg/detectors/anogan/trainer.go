package anogan

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/goguardgan/pkg/nn"
)

// realLabel is the smoothed target for real samples in the discriminator loss.
const realLabel = 0.9

// History holds one generator and one discriminator loss per training step.
type History struct {
	Generator     []float64
	Discriminator []float64
}

// StepLoss is the pair of losses produced by one training step.
type StepLoss struct {
	Generator     float64
	Discriminator float64
}

// Trainer runs adversarial updates on a generator/discriminator pair. Each
// network owns its own Adam state.
type Trainer struct {
	gen     *Generator
	disc    *Discriminator
	genOpt  *nn.Adam
	discOpt *nn.Adam
	history History
}

// NewTrainer creates a trainer with independent optimizers at learning rate lr.
func NewTrainer(gen *Generator, disc *Discriminator, lr float64) *Trainer {
	return &Trainer{
		gen:     gen,
		disc:    disc,
		genOpt:  nn.NewAdam(gen.Params(), nn.DefaultAdamConfig(lr)),
		discOpt: nn.NewAdam(disc.Params(), nn.DefaultAdamConfig(lr)),
	}
}

// Step performs one adversarial update from a batch of real samples and an
// equally sized batch of latent noise. Both gradients are computed before
// either network is updated.
func (t *Trainer) Step(samples, noise *mat.Dense) (StepLoss, error) {
	nReal, _ := samples.Dims()
	nNoise, _ := noise.Dims()
	if nReal != nNoise {
		return StepLoss{}, fmt.Errorf("batch has %d samples but %d noise vectors: %w", nReal, nNoise, nn.ErrShape)
	}

	fake, genBack := t.gen.Generate(noise, true)
	realOut, realBack := t.disc.Discriminate(samples, true)
	fakeOut, fakeBack := t.disc.Discriminate(fake, true)

	genLoss, genGradProb := nn.BinaryCrossEntropy(1, fakeOut.Prob)
	realLoss, realGradProb := nn.BinaryCrossEntropy(realLabel, realOut.Prob)
	fakeLoss, fakeGradProb := nn.BinaryCrossEntropy(0, fakeOut.Prob)
	discLoss := realLoss + fakeLoss

	genGrads, err := nn.NewGradients(t.gen.Params())
	if err != nil {
		return StepLoss{}, err
	}
	genBack(fakeBack(genGradProb, nil, genGrads), genGrads)

	discGrads, err := nn.NewGradients(t.disc.Params())
	if err != nil {
		return StepLoss{}, err
	}
	realBack(realGradProb, nil, discGrads)
	fakeBack(fakeGradProb, nil, discGrads)

	if err := t.genOpt.Step(genGrads); err != nil {
		return StepLoss{}, err
	}
	if err := t.discOpt.Step(discGrads); err != nil {
		return StepLoss{}, err
	}

	t.history.Generator = append(t.history.Generator, genLoss)
	t.history.Discriminator = append(t.history.Discriminator, discLoss)

	return StepLoss{Generator: genLoss, Discriminator: discLoss}, nil
}

// RunOptions controls the epoch driver.
type RunOptions struct {
	Epochs    int
	BatchSize int
	Rand      *rand.Rand
	Logger    *logrus.Logger
	Verbose   int
}

// Run performs exactly opts.Epochs steps. Every epoch draws a freshly
// shuffled copy of data and trains on its first min(BatchSize, len(data))
// rows; data itself is never reordered.
func (t *Trainer) Run(data [][]float64, opts RunOptions) error {
	n := len(data)
	if n == 0 {
		return fmt.Errorf("no training samples: %w", nn.ErrShape)
	}
	batch := min(opts.BatchSize, n)
	latent := t.gen.LatentDim()

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		if epoch%100 == 0 && epoch != 0 && opts.Verbose >= 1 && opts.Logger != nil {
			opts.Logger.WithFields(logrus.Fields{
				"epoch":              epoch,
				"loss_generator":     t.history.Generator[len(t.history.Generator)-1],
				"loss_discriminator": t.history.Discriminator[len(t.history.Discriminator)-1],
			}).Info("Train iter")
		}

		shuffled := shuffledCopy(data, opts.Rand)
		samples := nn.FromRows(shuffled[:batch])
		noise := mat.NewDense(batch, latent, nil)
		noise.Apply(func(_, _ int, _ float64) float64 { return opts.Rand.NormFloat64() }, noise)

		if _, err := t.Step(samples, noise); err != nil {
			return fmt.Errorf("epoch %d: %w", epoch, err)
		}
	}
	return nil
}

// History returns a copy of the recorded losses.
func (t *Trainer) History() History {
	return History{
		Generator:     append([]float64(nil), t.history.Generator...),
		Discriminator: append([]float64(nil), t.history.Discriminator...),
	}
}

func shuffledCopy(data [][]float64, rng *rand.Rand) [][]float64 {
	out := append([][]float64(nil), data...)
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
