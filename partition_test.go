package zones

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dichotomy builds n values split between two noisy levels, the low
// half first.
func dichotomy(n int, low, high, noise float64, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, 0, n)
	for i := 0; i < n/2; i++ {
		out = append(out, low+rng.NormFloat64()*noise)
	}
	for i := n / 2; i < n; i++ {
		out = append(out, high+rng.NormFloat64()*noise)
	}
	return out
}

func TestPartitionFixedK(t *testing.T) {
	values := dichotomy(150, 50, 90, 1.5, 7)

	zp := NewZonePartitioner(2, DefaultMinZones, DefaultMaxZones, DefaultSeed)
	labels, err := zp.FitPredict(values, nil)
	require.NoError(t, err)
	require.Len(t, labels, len(values))
	assert.Equal(t, 2, zp.SelectedZones())

	// the low half lands on label 0, the high half on label 1, with at
	// most 5% strays
	correct := 0
	for i, l := range labels {
		if (i < 75 && l == 0) || (i >= 75 && l == 1) {
			correct++
		}
	}
	assert.GreaterOrEqual(t, correct, 143)
}

func TestPartitionLabelOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	values := make([]float64, 300)
	for i := range values {
		values[i] = rng.Float64() * 100
	}

	for _, k := range []int{2, 3, 4, 5} {
		zp := NewZonePartitioner(k, DefaultMinZones, DefaultMaxZones, DefaultSeed)
		labels, err := zp.FitPredict(values, nil)
		require.NoError(t, err)

		sums := make([]float64, k)
		counts := make([]int, k)
		for i, l := range labels {
			require.GreaterOrEqual(t, l, 0)
			require.Less(t, l, k)
			sums[l] += values[i]
			counts[l]++
		}
		prev := math.Inf(-1)
		for l := 0; l < k; l++ {
			if counts[l] == 0 {
				continue
			}
			mean := sums[l] / float64(counts[l])
			assert.GreaterOrEqual(t, mean, prev, "zone %d mean dropped below zone %d", l, l-1)
			prev = mean
		}
	}
}

func TestPartitionAutoSelectsDichotomy(t *testing.T) {
	values := dichotomy(150, 50, 90, 1.5, 7)

	zp := NewZonePartitioner(0, 2, 5, DefaultSeed)
	labels, err := zp.FitPredict(values, nil)
	require.NoError(t, err)
	require.Len(t, labels, len(values))

	assert.Equal(t, 2, zp.SelectedZones())
	assert.Len(t, zp.Scores(), 4)
}

func TestPartitionDeterminism(t *testing.T) {
	values := dichotomy(200, 45, 80, 4, 11)

	a := NewZonePartitioner(0, 2, 5, DefaultSeed)
	b := NewZonePartitioner(0, 2, 5, DefaultSeed)
	la, err := a.FitPredict(values, nil)
	require.NoError(t, err)
	lb, err := b.FitPredict(values, nil)
	require.NoError(t, err)

	assert.Equal(t, a.SelectedZones(), b.SelectedZones())
	assert.Equal(t, la, lb)
}

func TestPartitionDegenerateSearchRange(t *testing.T) {
	values := dichotomy(100, 50, 90, 1, 5)

	zp := NewZonePartitioner(0, 2, 2, DefaultSeed)
	_, err := zp.FitPredict(values, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, zp.SelectedZones())
}

func TestPartitionInsufficientDistinctValues(t *testing.T) {
	values := []float64{1, 1, 2, 2, 3, 3}

	zp := NewZonePartitioner(0, 2, 7, DefaultSeed)
	_, err := zp.FitPredict(values, nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	fixed := NewZonePartitioner(5, 2, 7, DefaultSeed)
	_, err = fixed.FitPredict(values, nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestPartitionEmptyInput(t *testing.T) {
	zp := NewZonePartitioner(2, 2, 7, DefaultSeed)
	_, err := zp.FitPredict(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPartitionExtraFeatureRowMismatch(t *testing.T) {
	values := dichotomy(10, 1, 2, 0.1, 1)
	extra := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	zp := NewZonePartitioner(2, 2, 7, DefaultSeed)
	_, err := zp.FitPredict(values, extra)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
