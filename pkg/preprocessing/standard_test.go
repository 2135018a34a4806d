package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardScaler(t *testing.T) {
	data := [][]float64{
		{1, 10, 5},
		{2, 20, 5},
		{3, 30, 5},
		{4, 40, 5},
	}

	s := NewStandardScaler()
	out, err := s.FitTransform(data)
	require.NoError(t, err)
	require.Len(t, out, len(data))

	assert.InDeltaSlice(t, []float64{2.5, 25, 5}, s.Mean(), 1e-12)
	// constant column keeps unit scale
	assert.Equal(t, 1.0, s.Scale()[2])

	for j := 0; j < 3; j++ {
		var sum, sq float64
		for i := range out {
			sum += out[i][j]
			sq += out[i][j] * out[i][j]
		}
		assert.InDelta(t, 0, sum/4, 1e-12)
		if j < 2 {
			assert.InDelta(t, 1, sq/4, 1e-12)
		}
	}

	// source is not modified
	assert.Equal(t, 1.0, data[0][0])
}

func TestStandardScalerErrors(t *testing.T) {
	s := NewStandardScaler()

	_, err := s.Transform([][]float64{{1}})
	assert.Error(t, err, "transform before fit")

	assert.Error(t, s.Fit(nil))
	assert.Error(t, s.Fit([][]float64{{1, 2}, {3}}))

	require.NoError(t, s.Fit([][]float64{{1, 2}, {3, 4}}))
	_, err = s.Transform([][]float64{{1, 2, 3}})
	assert.Error(t, err)
}
