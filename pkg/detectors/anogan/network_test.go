package anogan

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hed1ad/goguardgan/pkg/nn"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.GLayers = []int{8}
	cfg.DLayers = []int{8, 4}
	cfg.DropoutRate = 0
	return cfg
}

func gaussian(r, c int, rng *rand.Rand) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	m.Apply(func(_, _ int, _ float64) float64 { return rng.NormFloat64() }, m)
	return m
}

func TestGeneratorOutputShape(t *testing.T) {
	tests := []struct {
		name      string
		latent    int
		layers    []int
		nFeatures int
	}{
		{name: "single layer", latent: 2, layers: []int{5}, nFeatures: 4},
		{name: "default layers", latent: 2, layers: []int{20, 10, 3, 10, 20}, nFeatures: 4},
		{name: "wide latent", latent: 7, layers: []int{3, 3}, nFeatures: 11},
		{name: "scalar latent", latent: 1, layers: []int{1}, nFeatures: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(1))
			cfg := DefaultConfig()
			cfg.LatentDimG = tt.latent
			cfg.GLayers = tt.layers

			g, err := NewGenerator(cfg, tt.nFeatures, rng)
			require.NoError(t, err)
			assert.Equal(t, tt.nFeatures, g.OutDim())
			assert.Equal(t, tt.latent, g.LatentDim())

			for _, training := range []bool{true, false} {
				x, _ := g.Generate(gaussian(3, tt.latent, rng), training)
				r, c := x.Dims()
				assert.Equal(t, 3, r)
				assert.Equal(t, tt.nFeatures, c)
			}
		})
	}
}

func TestNewGeneratorErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cfg := DefaultConfig()
	cfg.GLayers = nil
	_, err := NewGenerator(cfg, 3, rng)
	assert.ErrorIs(t, err, nn.ErrEmptyLayers)

	cfg = DefaultConfig()
	cfg.OutputActivation = "bogus"
	_, err = NewGenerator(cfg, 3, rng)
	assert.Error(t, err)
}

func TestDiscriminatorProbabilityRange(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	cfg := DefaultConfig()
	d, err := NewDiscriminator(cfg, 3, rng)
	require.NoError(t, err)
	assert.Equal(t, cfg.DLayers[cfg.IndexDLayerForReconError], d.EmbeddingDim())

	inputs := mat.NewDense(5, 3, []float64{
		0, 0, 0,
		1e6, 1e6, 1e6,
		-1e6, -1e6, -1e6,
		1e-300, -3, 42,
		math.MaxFloat64 / 1e10, 0, -1,
	})

	for _, training := range []bool{true, false} {
		out, _ := d.Discriminate(inputs, training)
		r, c := out.Prob.Dims()
		require.Equal(t, 5, r)
		require.Equal(t, 1, c)
		for i := 0; i < r; i++ {
			p := out.Prob.At(i, 0)
			assert.GreaterOrEqual(t, p, 0.0)
			assert.LessOrEqual(t, p, 1.0)
		}
		_, ec := out.Embedding.Dims()
		assert.Equal(t, d.EmbeddingDim(), ec)
	}
}

func TestDiscriminatorReconLayerBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	cfg := DefaultConfig()
	cfg.IndexDLayerForReconError = len(cfg.DLayers)
	_, err := NewDiscriminator(cfg, 3, rng)
	assert.ErrorIs(t, err, nn.ErrShape)
}

func TestDiscriminatorEmbeddingIsTrunkLayer(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	cfg := smallConfig()
	cfg.IndexDLayerForReconError = 1

	d, err := NewDiscriminator(cfg, 3, rng)
	require.NoError(t, err)

	x := gaussian(2, 3, rng)
	out, _ := d.Discriminate(x, false)
	trace := d.trunk.Forward(x, false)
	assert.True(t, mat.EqualApprox(trace.Outputs[1], out.Embedding, 1e-12))
}

func newPair(t *testing.T, cfg Config, nFeatures int, seed int64) (*Generator, *Discriminator) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	g, err := NewGenerator(cfg, nFeatures, rng)
	require.NoError(t, err)
	d, err := NewDiscriminator(cfg, nFeatures, rng)
	require.NoError(t, err)
	return g, d
}

func TestTrainerStep(t *testing.T) {
	cfg := smallConfig()
	g, d := newPair(t, cfg, 3, 5)
	trainer := NewTrainer(g, d, 0.01)

	rng := rand.New(rand.NewSource(6))
	samples := gaussian(4, 3, rng)
	noise := gaussian(4, cfg.LatentDimG, rng)

	// without dropout the step losses are reproducible from plain forward passes
	fake, _ := g.Generate(noise, false)
	fakeOut, _ := d.Discriminate(fake, false)
	realOut, _ := d.Discriminate(samples, false)
	wantGen, _ := nn.BinaryCrossEntropy(1, fakeOut.Prob)
	realLoss, _ := nn.BinaryCrossEntropy(0.9, realOut.Prob)
	fakeLoss, _ := nn.BinaryCrossEntropy(0, fakeOut.Prob)

	genBefore := g.Params().Snapshot()
	discBefore := d.Params().Snapshot()

	loss, err := trainer.Step(samples, noise)
	require.NoError(t, err)
	assert.InDelta(t, wantGen, loss.Generator, 1e-12)
	assert.InDelta(t, realLoss+fakeLoss, loss.Discriminator, 1e-12)

	for i, p := range g.Params().Params() {
		assert.False(t, mat.Equal(genBefore[i], p.Value), "generator %s not updated", p.Name)
	}
	for i, p := range d.Params().Params() {
		assert.False(t, mat.Equal(discBefore[i], p.Value), "discriminator %s not updated", p.Name)
	}

	h := trainer.History()
	assert.Equal(t, []float64{loss.Generator}, h.Generator)
	assert.Equal(t, []float64{loss.Discriminator}, h.Discriminator)
	assert.Equal(t, 1, trainer.genOpt.Iterations())
	assert.Equal(t, 1, trainer.discOpt.Iterations())
}

func TestTrainerStepErrors(t *testing.T) {
	cfg := smallConfig()
	g, d := newPair(t, cfg, 3, 5)
	trainer := NewTrainer(g, d, 0.01)
	rng := rand.New(rand.NewSource(6))

	_, err := trainer.Step(gaussian(4, 3, rng), gaussian(3, cfg.LatentDimG, rng))
	assert.ErrorIs(t, err, nn.ErrShape)

	g.Params().Freeze()
	_, err = trainer.Step(gaussian(4, 3, rng), gaussian(4, cfg.LatentDimG, rng))
	assert.ErrorIs(t, err, nn.ErrFrozen)
	assert.Empty(t, trainer.History().Generator)
}

func TestTrainerRunStepCount(t *testing.T) {
	cfg := DefaultConfig()
	g, d := newPair(t, cfg, 2, 9)
	trainer := NewTrainer(g, d, cfg.LearningRate)

	data := make([][]float64, 50)
	for i := range data {
		data[i] = []float64{float64(i), -float64(i)}
	}
	orig := make([][]float64, len(data))
	for i := range data {
		orig[i] = append([]float64(nil), data[i]...)
	}

	const epochs = 7
	err := trainer.Run(data, RunOptions{Epochs: epochs, BatchSize: 16, Rand: rand.New(rand.NewSource(1))})
	require.NoError(t, err)

	h := trainer.History()
	assert.Len(t, h.Generator, epochs)
	assert.Len(t, h.Discriminator, epochs)
	assert.Equal(t, orig, data, "training must not reorder the caller's data")

	assert.Error(t, trainer.Run(nil, RunOptions{Epochs: 1, BatchSize: 1, Rand: rand.New(rand.NewSource(1))}))
}

func TestShuffledCopy(t *testing.T) {
	data := [][]float64{{1}, {2}, {3}, {4}, {5}, {6}, {7}, {8}}
	out := shuffledCopy(data, rand.New(rand.NewSource(3)))
	assert.ElementsMatch(t, data, out)
	assert.Equal(t, []float64{1}, data[0])
}

func TestQueryRequiresFrozenNetworks(t *testing.T) {
	cfg := smallConfig()
	g, d := newPair(t, cfg, 3, 5)
	q := NewQueryOptimizer(g, d, 5, 0.01, 1)

	_, err := q.Query([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrNotFrozen)

	g.Params().Freeze()
	_, err = q.Query([]float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrNotFrozen)
}

func TestQueryLeavesNetworksUntouched(t *testing.T) {
	cfg := smallConfig()
	g, d := newPair(t, cfg, 3, 5)
	g.Params().Freeze()
	d.Params().Freeze()

	genBefore := g.Params().Snapshot()
	discBefore := d.Params().Snapshot()

	q := NewQueryOptimizer(g, d, 10, 0.01, 1)
	first, err := q.Query([]float64{0.5, -1, 2})
	require.NoError(t, err)
	second, err := q.Query([]float64{0.5, -1, 2})
	require.NoError(t, err)

	assert.False(t, math.IsNaN(first) || math.IsInf(first, 0))
	assert.GreaterOrEqual(t, first, 0.0)
	assert.Equal(t, first, second, "queries share no state")

	for i, p := range g.Params().Params() {
		assert.True(t, mat.Equal(genBefore[i], p.Value))
	}
	for i, p := range d.Params().Params() {
		assert.True(t, mat.Equal(discBefore[i], p.Value))
	}

	_, err = q.Query([]float64{1, 2})
	assert.Error(t, err)
}

func TestQueryReducesLoss(t *testing.T) {
	cfg := smallConfig()
	g, d := newPair(t, cfg, 3, 8)
	g.Params().Freeze()
	d.Params().Freeze()

	sample := []float64{0.3, -0.2, 0.1}
	one, err := NewQueryOptimizer(g, d, 1, 0.05, 1).Query(sample)
	require.NoError(t, err)
	many, err := NewQueryOptimizer(g, d, 200, 0.05, 1).Query(sample)
	require.NoError(t, err)

	assert.LessOrEqual(t, many, one)
}
