package anogan

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/hed1ad/goguardgan/pkg/detectors"
	"github.com/hed1ad/goguardgan/pkg/nn"
)

// Config is the hyperparameter record of an AnoGAN detector.
type Config struct {
	// ActivationHidden is the nonlinearity of every hidden layer.
	ActivationHidden string `yaml:"activation_hidden" json:"activation_hidden"`
	// DropoutRate is applied to the input and after every hidden layer. Must be in [0, 1).
	DropoutRate float64 `yaml:"dropout_rate" json:"dropout_rate"`
	// LatentDimG is the size of the generator input and of the query latent space.
	LatentDimG int `yaml:"latent_dim_g" json:"latent_dim_g"`
	// GLayers and DLayers are the hidden widths of generator and discriminator.
	GLayers []int `yaml:"g_layers" json:"g_layers"`
	DLayers []int `yaml:"d_layers" json:"d_layers"`
	// IndexDLayerForReconError selects the discriminator hidden layer whose
	// activations form the feature-space reconstruction term.
	IndexDLayerForReconError int `yaml:"index_d_layer_for_recon_error" json:"index_d_layer_for_recon_error"`

	Epochs       int     `yaml:"epochs" json:"epochs"`
	BatchSize    int     `yaml:"batch_size" json:"batch_size"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`

	EpochsQuery       int     `yaml:"epochs_query" json:"epochs_query"`
	LearningRateQuery float64 `yaml:"learning_rate_query" json:"learning_rate_query"`

	// OutputActivation of the generator; empty means linear.
	OutputActivation string `yaml:"output_activation" json:"output_activation"`
	// Preprocessing standardizes features before training and scoring.
	Preprocessing bool `yaml:"preprocessing" json:"preprocessing"`
	// Verbose: 0 silent, 1 progress, 2 query iterations.
	Verbose       int     `yaml:"verbose" json:"verbose"`
	Contamination float64 `yaml:"contamination" json:"contamination"`

	// Seed drives weight init, dropout, minibatch selection and noise.
	Seed int64 `yaml:"seed" json:"seed"`
	// Workers bounds how many latent queries run in parallel.
	Workers int `yaml:"workers" json:"workers"`
}

// DefaultConfig returns the default hyperparameters.
func DefaultConfig() Config {
	return Config{
		ActivationHidden:         "tanh",
		DropoutRate:              0.2,
		LatentDimG:               2,
		GLayers:                  []int{20, 10, 3, 10, 20},
		DLayers:                  []int{20, 10, 5},
		IndexDLayerForReconError: 1,
		Epochs:                   500,
		BatchSize:                32,
		LearningRate:             0.001,
		EpochsQuery:              20,
		LearningRateQuery:        0.01,
		OutputActivation:         "linear",
		Preprocessing:            false,
		Verbose:                  0,
		Contamination:            detectors.DefaultContamination,
		Seed:                     42,
		Workers:                  1,
	}
}

// Validate checks every field and reports the first violation.
func (c Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), detectors.ErrInvalidConfig)
	}

	if !(c.DropoutRate >= 0 && c.DropoutRate < 1) {
		return invalid("dropout_rate must be in [0, 1), got %g", c.DropoutRate)
	}
	if err := detectors.ValidateContamination(c.Contamination); err != nil {
		return err
	}
	if c.LatentDimG < 1 {
		return invalid("latent_dim_g must be positive, got %d", c.LatentDimG)
	}
	if err := validateWidths("g_layers", c.GLayers); err != nil {
		return err
	}
	if err := validateWidths("d_layers", c.DLayers); err != nil {
		return err
	}
	if c.IndexDLayerForReconError < 0 || c.IndexDLayerForReconError >= len(c.DLayers) {
		return invalid("index_d_layer_for_recon_error %d out of range [0, %d)", c.IndexDLayerForReconError, len(c.DLayers))
	}
	if c.Epochs < 1 || c.EpochsQuery < 1 || c.BatchSize < 1 {
		return invalid("epochs, epochs_query and batch_size must be positive")
	}
	if !(c.LearningRate > 0) || !(c.LearningRateQuery > 0) {
		return invalid("learning rates must be positive")
	}
	if _, err := nn.ActivationByName(c.ActivationHidden); err != nil {
		return invalid("activation_hidden: %v", err)
	}
	if _, err := nn.ActivationByName(c.OutputActivation); err != nil {
		return invalid("output_activation: %v", err)
	}
	if c.Workers < 1 {
		return invalid("workers must be positive, got %d", c.Workers)
	}
	return nil
}

func validateWidths(name string, widths []int) error {
	if len(widths) == 0 {
		return fmt.Errorf("%s: %w: %w", name, nn.ErrEmptyLayers, detectors.ErrInvalidConfig)
	}
	for i, w := range widths {
		if w < 1 {
			return fmt.Errorf("%s[%d] = %d: %w", name, i, w, detectors.ErrInvalidConfig)
		}
	}
	return nil
}

func (c Config) clone() Config {
	c.GLayers = append([]int(nil), c.GLayers...)
	c.DLayers = append([]int(nil), c.DLayers...)
	return c
}

// Option configures an AnoGAN detector.
type Option func(*AnoGAN)

// WithConfig replaces the whole hyperparameter record.
func WithConfig(cfg Config) Option {
	return func(a *AnoGAN) {
		a.cfg = cfg.clone()
	}
}

// WithActivation sets the hidden-layer activation.
func WithActivation(name string) Option {
	return func(a *AnoGAN) {
		a.cfg.ActivationHidden = name
	}
}

// WithDropout sets the dropout rate.
func WithDropout(rate float64) Option {
	return func(a *AnoGAN) {
		a.cfg.DropoutRate = rate
	}
}

// WithLatentDim sets the generator latent dimensionality.
func WithLatentDim(n int) Option {
	return func(a *AnoGAN) {
		a.cfg.LatentDimG = n
	}
}

// WithGeneratorLayers sets the generator hidden widths.
func WithGeneratorLayers(widths ...int) Option {
	return func(a *AnoGAN) {
		a.cfg.GLayers = append([]int(nil), widths...)
	}
}

// WithDiscriminatorLayers sets the discriminator hidden widths.
func WithDiscriminatorLayers(widths ...int) Option {
	return func(a *AnoGAN) {
		a.cfg.DLayers = append([]int(nil), widths...)
	}
}

// WithReconLayer selects the discriminator layer used for the feature reconstruction term.
func WithReconLayer(index int) Option {
	return func(a *AnoGAN) {
		a.cfg.IndexDLayerForReconError = index
	}
}

// WithEpochs sets the number of adversarial training steps.
func WithEpochs(n int) Option {
	return func(a *AnoGAN) {
		a.cfg.Epochs = n
	}
}

// WithBatchSize sets the minibatch size.
func WithBatchSize(n int) Option {
	return func(a *AnoGAN) {
		a.cfg.BatchSize = n
	}
}

// WithLearningRate sets the adversarial learning rate.
func WithLearningRate(lr float64) Option {
	return func(a *AnoGAN) {
		a.cfg.LearningRate = lr
	}
}

// WithQueryEpochs sets the number of latent query iterations per sample.
func WithQueryEpochs(n int) Option {
	return func(a *AnoGAN) {
		a.cfg.EpochsQuery = n
	}
}

// WithQueryLearningRate sets the latent query learning rate.
func WithQueryLearningRate(lr float64) Option {
	return func(a *AnoGAN) {
		a.cfg.LearningRateQuery = lr
	}
}

// WithOutputActivation sets the generator output activation.
func WithOutputActivation(name string) Option {
	return func(a *AnoGAN) {
		a.cfg.OutputActivation = name
	}
}

// WithPreprocessing toggles feature standardization.
func WithPreprocessing(on bool) Option {
	return func(a *AnoGAN) {
		a.cfg.Preprocessing = on
	}
}

// WithVerbose sets the verbosity level.
func WithVerbose(level int) Option {
	return func(a *AnoGAN) {
		a.cfg.Verbose = level
	}
}

// WithContamination sets the expected proportion of anomalies.
func WithContamination(c float64) Option {
	return func(a *AnoGAN) {
		a.cfg.Contamination = c
	}
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) Option {
	return func(a *AnoGAN) {
		a.cfg.Seed = seed
	}
}

// WithWorkers sets how many samples are scored concurrently.
func WithWorkers(n int) Option {
	return func(a *AnoGAN) {
		a.cfg.Workers = n
	}
}

// WithLogger sets the progress logger.
func WithLogger(l *logrus.Logger) Option {
	return func(a *AnoGAN) {
		a.logger = l
	}
}
