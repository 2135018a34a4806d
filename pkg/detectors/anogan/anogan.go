package anogan

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hed1ad/goguardgan/pkg/detectors"
	"github.com/hed1ad/goguardgan/pkg/preprocessing"
)

var _ detectors.StreamDetector = (*AnoGAN)(nil)

// AnoGAN is an unsupervised anomaly detector. Fit trains a GAN on the data
// and scores every training sample with a latent query; DecisionFunction
// repeats the query against the frozen networks.
type AnoGAN struct {
	mu sync.RWMutex

	cfg    Config
	logger *logrus.Logger
	base   detectors.Base

	// Trained model
	nFeatures     int
	scaler        *preprocessing.StandardScaler
	generator     *Generator
	discriminator *Discriminator
	history       History
	trained       bool
}

// New creates an AnoGAN detector. Hyperparameters are validated here.
func New(opts ...Option) (*AnoGAN, error) {
	a := &AnoGAN{
		cfg:    DefaultConfig(),
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(a)
	}

	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := detectors.NewBase(a.cfg.Contamination)
	if err != nil {
		return nil, err
	}
	a.base = base

	return a, nil
}

// Fit trains the generator and discriminator on data and scores every
// training sample.
func (a *AnoGAN) Fit(data [][]float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	nSamples, nFeatures, err := detectors.CheckMatrix(data)
	if err != nil {
		return err
	}

	var scaler *preprocessing.StandardScaler
	if a.cfg.Preprocessing {
		scaler = preprocessing.NewStandardScaler()
		if err := scaler.Fit(data); err != nil {
			return fmt.Errorf("fit scaler: %w", err)
		}
	}
	train, err := applyScaler(scaler, data)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(a.cfg.Seed))
	gen, err := NewGenerator(a.cfg, nFeatures, rng)
	if err != nil {
		return fmt.Errorf("build generator: %w", err)
	}
	disc, err := NewDiscriminator(a.cfg, nFeatures, rng)
	if err != nil {
		return fmt.Errorf("build discriminator: %w", err)
	}

	trainer := NewTrainer(gen, disc, a.cfg.LearningRate)
	err = trainer.Run(train, RunOptions{
		Epochs:    a.cfg.Epochs,
		BatchSize: a.cfg.BatchSize,
		Rand:      rng,
		Logger:    a.logger,
		Verbose:   a.cfg.Verbose,
	})
	if err != nil {
		return fmt.Errorf("adversarial training: %w", err)
	}

	gen.Params().Freeze()
	disc.Params().Freeze()

	scoring, err := rederiveTrainingSet(scaler, data)
	if err != nil {
		return err
	}
	scores, err := a.scoreAll(a.newQueryOptimizer(gen, disc), scoring)
	if err != nil {
		return err
	}

	a.nFeatures = nFeatures
	a.scaler = scaler
	a.generator = gen
	a.discriminator = disc
	a.history = trainer.History()
	a.trained = true
	a.base.Process(scores)

	a.logger.WithFields(logrus.Fields{
		"samples":   nSamples,
		"features":  nFeatures,
		"threshold": a.base.Threshold(),
	}).Debug("anogan fitted")

	return nil
}

// rederiveTrainingSet rebuilds the scoring matrix from the caller's data in
// its original order, independent of the copies consumed by training.
func rederiveTrainingSet(scaler *preprocessing.StandardScaler, data [][]float64) ([][]float64, error) {
	return applyScaler(scaler, data)
}

// DecisionFunction returns the anomaly score of every sample in input order.
func (a *AnoGAN) DecisionFunction(data [][]float64) ([]float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.trained {
		return nil, detectors.ErrNotFitted
	}

	samples, err := a.prepare(data)
	if err != nil {
		return nil, err
	}
	return a.scoreAll(a.newQueryOptimizer(a.generator, a.discriminator), samples)
}

// ScoreOne returns the anomaly score for a single sample.
func (a *AnoGAN) ScoreOne(sample []float64) (float64, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.trained {
		return 0, detectors.ErrNotFitted
	}

	return a.scoreOne(sample)
}

func (a *AnoGAN) scoreOne(sample []float64) (float64, error) {
	if err := detectors.CheckSample(sample, a.nFeatures); err != nil {
		return 0, err
	}
	rows, err := applyScaler(a.scaler, [][]float64{sample})
	if err != nil {
		return 0, err
	}
	return a.newQueryOptimizer(a.generator, a.discriminator).Query(rows[0])
}

// Predict returns 1 for samples scoring above the fitted threshold, else 0.
func (a *AnoGAN) Predict(data [][]float64) ([]int, error) {
	scores, err := a.DecisionFunction(data)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.base.Label(scores), nil
}

// PredictStream processes samples from a channel.
func (a *AnoGAN) PredictStream(ctx context.Context, input <-chan []float64, output chan<- detectors.Score) error {
	a.mu.RLock()
	if !a.trained {
		a.mu.RUnlock()
		return detectors.ErrNotFitted
	}
	threshold := a.base.Threshold()
	a.mu.RUnlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample, ok := <-input:
			if !ok {
				return nil
			}

			score, err := a.ScoreOne(sample)
			if err != nil {
				a.logger.WithError(err).Warn("skipping sample")
				continue
			}

			select {
			case output <- detectors.Score{
				Value:     score,
				IsAnomaly: score > threshold,
				Features:  sample,
			}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (a *AnoGAN) prepare(data [][]float64) ([][]float64, error) {
	_, nFeatures, err := detectors.CheckMatrix(data)
	if err != nil {
		return nil, err
	}
	if nFeatures != a.nFeatures {
		return nil, fmt.Errorf("got %d features, want %d: %w", nFeatures, a.nFeatures, detectors.ErrFeatureMismatch)
	}
	return applyScaler(a.scaler, data)
}

func (a *AnoGAN) newQueryOptimizer(gen *Generator, disc *Discriminator) *QueryOptimizer {
	return NewQueryOptimizer(gen, disc, a.cfg.EpochsQuery, a.cfg.LearningRateQuery, a.cfg.Seed).
		WithLogging(a.logger, a.cfg.Verbose)
}

// scoreAll runs one latent query per sample on up to cfg.Workers goroutines.
// The networks are frozen, so workers only read them.
func (a *AnoGAN) scoreAll(q *QueryOptimizer, samples [][]float64) ([]float64, error) {
	scores := make([]float64, len(samples))

	var g errgroup.Group
	g.SetLimit(a.cfg.Workers)
	for i, sample := range samples {
		i, sample := i, sample
		g.Go(func() error {
			if a.cfg.Verbose >= 1 {
				a.logger.Infof("query sample %d / %d", i+1, len(samples))
			}
			score, err := q.Query(sample)
			if err != nil {
				return fmt.Errorf("query sample %d: %w", i, err)
			}
			scores[i] = score
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

func applyScaler(scaler *preprocessing.StandardScaler, data [][]float64) ([][]float64, error) {
	if scaler == nil {
		out := make([][]float64, len(data))
		for i, row := range data {
			out[i] = append([]float64(nil), row...)
		}
		return out, nil
	}
	out, err := scaler.Transform(data)
	if err != nil {
		return nil, fmt.Errorf("scale: %w", err)
	}
	return out, nil
}

// DecisionScores returns the training scores.
func (a *AnoGAN) DecisionScores() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.base.DecisionScores()
}

// Labels returns the binary training labels.
func (a *AnoGAN) Labels() []int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.base.Labels()
}

// Threshold returns the current anomaly threshold.
func (a *AnoGAN) Threshold() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.base.Threshold()
}

// History returns the per-step training losses of the last Fit.
func (a *AnoGAN) History() History {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return History{
		Generator:     append([]float64(nil), a.history.Generator...),
		Discriminator: append([]float64(nil), a.history.Discriminator...),
	}
}

// Config returns a copy of the hyperparameters.
func (a *AnoGAN) Config() Config {
	return a.cfg.clone()
}

// Generator returns the trained generator, or nil before Fit.
func (a *AnoGAN) Generator() *Generator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generator
}

// Discriminator returns the trained discriminator, or nil before Fit.
func (a *AnoGAN) Discriminator() *Discriminator {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.discriminator
}
