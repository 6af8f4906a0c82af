package zones

import (
	"math/rand"
	"testing"

	"github.com/flywave/go-geom/general"
	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fieldSamples spreads 150 points over a 400x200 field with a clear
// yield dichotomy: the western block sits near 50 t/ha, the eastern
// near 90 t/ha, with a gap around the transition.
func fieldSamples(seed int64) []vec3d.T {
	rng := rand.New(rand.NewSource(seed))
	samples := make([]vec3d.T, 0, 150)
	for i := 0; i < 75; i++ {
		x := rng.Float64() * 180
		y := rng.Float64() * 200
		samples = append(samples, vec3d.T{x, y, 50 + rng.NormFloat64()*1.5})
	}
	for i := 0; i < 75; i++ {
		x := 220 + rng.Float64()*180
		y := rng.Float64() * 200
		samples = append(samples, vec3d.T{x, y, 90 + rng.NormFloat64()*1.5})
	}
	return samples
}

func TestDelineatorPlanarPipeline(t *testing.T) {
	samples := fieldSamples(21)
	n := 2
	d := NewZoneDelineator(Options{Samples: samples, NZones: &n, ReturnGrid: true})

	res, err := d.Process()
	require.NoError(t, err)
	require.Equal(t, 2, res.NumZones)
	require.Len(t, res.Zones, 2)

	// labels ascend with mean yield
	assert.Less(t, res.Zones[0].YieldMean, res.Zones[1].YieldMean)
	assert.InDelta(t, 50, res.Zones[0].YieldMean, 3)
	assert.InDelta(t, 90, res.Zones[1].YieldMean, 3)

	// the two blocks separate with at most 5% strays
	assert.InDelta(t, 75, res.Zones[0].NumPoints, 4)

	// every point sits in exactly one zone
	total := 0
	for _, z := range res.Zones {
		total += z.NumPoints
		assert.NotNil(t, z.Geometry)
		assert.Greater(t, z.AreaHa, 0.0)
		assert.GreaterOrEqual(t, z.YieldStd, 0.0)
	}
	assert.Equal(t, len(samples), total)

	require.NotNil(t, res.Grid)
	assert.Len(t, res.Grid.Labels, res.Grid.Count())
	for _, l := range res.Grid.Labels {
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 2)
	}
}

func TestDelineatorDeterminism(t *testing.T) {
	samples := fieldSamples(21)
	run := func() *Result {
		d := NewZoneDelineator(Options{Samples: samples, ReturnGrid: true})
		res, err := d.Process()
		require.NoError(t, err)
		return res
	}

	a := run()
	b := run()

	assert.Equal(t, a.NumZones, b.NumZones)
	assert.Equal(t, a.Grid.Labels, b.Grid.Labels)
	require.Len(t, b.Zones, len(a.Zones))
	for i := range a.Zones {
		assert.Equal(t, a.Zones[i].NumPoints, b.Zones[i].NumPoints)
		assert.Equal(t, a.Zones[i].YieldMean, b.Zones[i].YieldMean)
	}
}

func TestDelineatorGeographicInput(t *testing.T) {
	// small field near Campinas, Brazil; the dichotomy runs east-west
	rng := rand.New(rand.NewSource(9))
	samples := make([]vec3d.T, 0, 150)
	for i := 0; i < 75; i++ {
		lon := -47.002 + rng.Float64()*0.0016
		lat := -22.901 + rng.Float64()*0.002
		samples = append(samples, vec3d.T{lon, lat, 50 + rng.NormFloat64()})
	}
	for i := 0; i < 75; i++ {
		lon := -46.9996 + rng.Float64()*0.0016
		lat := -22.901 + rng.Float64()*0.002
		samples = append(samples, vec3d.T{lon, lat, 90 + rng.NormFloat64()})
	}

	srs := "EPSG:4326"
	n := 2
	d := NewZoneDelineator(Options{Samples: samples, InputSrs: &srs, NZones: &n})

	res, err := d.Process()
	require.NoError(t, err)
	require.Len(t, res.Zones, 2)
	assert.Less(t, res.Zones[0].YieldMean, res.Zones[1].YieldMean)

	// polygons come back in the caller's geographic frame
	for _, z := range res.Zones {
		require.NotNil(t, z.Geometry)
		for _, ring := range z.Geometry.Sublines() {
			for _, pos := range ring.Subpoints() {
				assert.InDelta(t, -47.0, pos.X(), 0.05)
				assert.InDelta(t, -22.9, pos.Y(), 0.05)
			}
		}
	}
}

func TestDelineatorKrigingModel(t *testing.T) {
	samples := fieldSamples(21)
	model := Spherical
	n := 2
	d := NewZoneDelineator(Options{Samples: samples, Model: &model, NZones: &n})

	res, err := d.Process()
	require.NoError(t, err)
	require.Len(t, res.Zones, 2)
	assert.Less(t, res.Zones[0].YieldMean, res.Zones[1].YieldMean)

	total := 0
	for _, z := range res.Zones {
		total += z.NumPoints
	}
	assert.Equal(t, len(samples), total)
}

func TestDelineatorFilterSize(t *testing.T) {
	samples := fieldSamples(21)
	// duplicate every sample, decimation collapses the pairs again
	dense := append(append([]vec3d.T(nil), samples...), samples...)

	n := 2
	filter := vec2d.T{5, 5}
	d := NewZoneDelineator(Options{Samples: dense, NZones: &n, FilterSize: &filter})

	res, err := d.Process()
	require.NoError(t, err)
	require.Len(t, res.Zones, 2)
	total := 0
	for _, z := range res.Zones {
		total += z.NumPoints
	}
	assert.Less(t, total, len(dense))
}

func TestDelineatorNoInput(t *testing.T) {
	_, err := NewZoneDelineator(Options{}).Process()
	assert.ErrorIs(t, err, ErrInvalidInput)
}

const harvestGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","geometry":{"type":"Point","coordinates":[0,0,42.5]},"properties":{}},
 {"type":"Feature","geometry":{"type":"Point","coordinates":[30,0]},"properties":{"yield":55.5}},
 {"type":"Feature","geometry":{"type":"MultiPoint","coordinates":[[0,30,61.2],[30,30,48.8]]},"properties":{}}]}`

func TestExtractSamplesFromFeatures(t *testing.T) {
	fcs, err := general.UnmarshalFeatureCollection([]byte(harvestGeoJSON))
	require.NoError(t, err)

	d := NewZoneDelineator(Options{Input: fcs})
	samples, err := d.extractSamples()
	require.NoError(t, err)
	require.Len(t, samples, 4)

	assert.Equal(t, 42.5, samples[0][2])
	assert.Equal(t, 55.5, samples[1][2])
	assert.Equal(t, 61.2, samples[2][2])
	assert.Equal(t, vec3d.T{30, 30, 48.8}, samples[3])
}

func TestResultFeatureCollection(t *testing.T) {
	samples := fieldSamples(21)
	n := 2
	res, err := NewZoneDelineator(Options{Samples: samples, NZones: &n}).Process()
	require.NoError(t, err)

	fc := res.FeatureCollection()
	require.Len(t, fc.Features, 2)
	assert.Equal(t, 0, fc.Features[0].Properties["zone_id"])
	assert.NotNil(t, fc.Features[0].Geometry)
}
