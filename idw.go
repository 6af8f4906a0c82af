package zones

import (
	"fmt"
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/flywave/go-geo"
	vec2d "github.com/flywave/go3d/float64/vec2"
)

// distEpsilon floors the distance in the inverse-distance weights so a
// query coinciding with a sample never divides by zero.
const distEpsilon = 1e-10

const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
)

// sample wraps one fitted observation for the rtreego index.
type sample struct {
	pos  vec2d.T
	val  float64
	rect *rtreego.Rect
}

func (s *sample) Bounds() *rtreego.Rect { return s.rect }

// IDWInterpolator estimates a yield surface by inverse distance
// weighting: a query value is the weighted mean of the nearest fitted
// samples with weight 1/d^power. A higher power favors the closest
// samples, maxNeighbors bounds the work per query and keeps distant
// samples from flattening local structure.
type IDWInterpolator struct {
	power        float64
	maxNeighbors int

	tree    *rtreego.Rtree
	samples []*sample
}

// NewIDWInterpolator builds an unfitted interpolator. Non-positive
// arguments fall back to the defaults.
func NewIDWInterpolator(power float64, maxNeighbors int) *IDWInterpolator {
	if power <= 0 {
		power = DefaultPower
	}
	if maxNeighbors <= 0 {
		maxNeighbors = DefaultMaxNeighbors
	}
	return &IDWInterpolator{power: power, maxNeighbors: maxNeighbors}
}

// Fit indexes the sample positions and their parallel values. A second
// call replaces the previous fit.
func (p *IDWInterpolator) Fit(points []vec2d.T, values []float64) error {
	if len(points) == 0 {
		return fmt.Errorf("%w: no samples", ErrInvalidInput)
	}
	if len(points) != len(values) {
		return fmt.Errorf("%w: %d points but %d values", ErrInvalidInput, len(points), len(values))
	}
	samples := make([]*sample, len(points))
	spatials := make([]rtreego.Spatial, len(points))
	for i := range points {
		pt := rtreego.Point{points[i][0], points[i][1]}
		samples[i] = &sample{pos: points[i], val: values[i], rect: pt.ToRect(distEpsilon)}
		spatials[i] = samples[i]
	}
	p.samples = samples
	p.tree = rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren, spatials...)
	return nil
}

// Predict evaluates the surface at every query position. Results stay
// inside [min(values), max(values)] of the fitted set and converge to
// the fitted value as a query approaches an isolated sample.
func (p *IDWInterpolator) Predict(query []vec2d.T) ([]float64, error) {
	if p.tree == nil {
		return nil, ErrNotFitted
	}
	k := p.maxNeighbors
	if len(p.samples) < k {
		k = len(p.samples)
	}
	out := make([]float64, len(query))
	weights := make([]float64, 0, k)
	vals := make([]float64, 0, k)
	for qi := range query {
		neighbors := p.tree.NearestNeighbors(k, rtreego.Point{query[qi][0], query[qi][1]})
		weights = weights[:0]
		vals = vals[:0]
		var wsum float64
		for _, nb := range neighbors {
			if nb == nil {
				continue
			}
			s := nb.(*sample)
			delta := vec2d.Sub(&s.pos, &query[qi])
			w := 1.0 / math.Pow(math.Max(delta.Length(), distEpsilon), p.power)
			weights = append(weights, w)
			vals = append(vals, s.val)
			wsum += w
		}
		var v float64
		for i := range weights {
			v += weights[i] / wsum * vals[i]
		}
		out[qi] = v
	}
	return out, nil
}

// InterpolateGrid evaluates the surface on every cell center of a
// regular grid over the referenced bounds.
func (p *IDWInterpolator) InterpolateGrid(georef *geo.GeoReference, resolution float64) (*SurfaceGrid, error) {
	grid := CalculateSurfaceGrid(georef, resolution)
	values, err := p.Predict(grid.Cells)
	if err != nil {
		return nil, err
	}
	grid.Values = values
	return grid, nil
}
