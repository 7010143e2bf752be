package vecmath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-3, 0}), 1e-9)
	assert.Equal(t, 0.0, Cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, Cosine([]float32{0, 0}, []float32{1, 2}))
}

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2, 5}
	assert.Equal(t, 1.0, Percentile(values, 0))
	assert.Equal(t, 5.0, Percentile(values, 100))
	assert.Equal(t, 3.0, Percentile(values, 50))
	assert.InDelta(t, 4.8, Percentile(values, 95), 1e-9)
	assert.Equal(t, 0.0, Percentile(nil, 50))
	assert.Equal(t, []float64{4, 1, 3, 2, 5}, values, "input must not be reordered")
}

func TestBytesRoundTrip(t *testing.T) {
	v := []float32{0.5, -1.25, 3}
	got, err := FromBytesLE(ToBytesLE(v))
	require.NoError(t, err)
	assert.Equal(t, v, got)

	_, err = FromBytesLE([]byte{1, 2, 3})
	assert.Error(t, err)
}
