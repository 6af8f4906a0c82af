package zones

import (
	"testing"

	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellFilterAveragesPerCell(t *testing.T) {
	samples := []vec3d.T{
		{1, 1, 10},
		{2, 2, 20},
		{50, 50, 30},
	}

	out, err := newCellFilter(vec2d.T{5, 5}).Filter(samples)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.InDelta(t, 1.5, out[0][0], 1e-9)
	assert.InDelta(t, 1.5, out[0][1], 1e-9)
	assert.InDelta(t, 15.0, out[0][2], 1e-9)
	assert.Equal(t, vec3d.T{50, 50, 30}, out[1])
}

func TestCellFilterErrors(t *testing.T) {
	_, err := newCellFilter(vec2d.T{5, 5}).Filter(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = newCellFilter(vec2d.T{0, 5}).Filter([]vec3d.T{{0, 0, 1}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCellFilterKeepsValueRange(t *testing.T) {
	samples := make([]vec3d.T, 0, 100)
	for i := 0; i < 100; i++ {
		samples = append(samples, vec3d.T{float64(i % 10), float64(i / 10), float64(i)})
	}

	out, err := newCellFilter(vec2d.T{2, 2}).Filter(samples)
	require.NoError(t, err)
	assert.Less(t, len(out), len(samples))
	for _, s := range out {
		assert.GreaterOrEqual(t, s[2], 0.0)
		assert.LessOrEqual(t, s[2], 99.0)
	}
}
