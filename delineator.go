package zones

import (
	"fmt"
	"image"
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/flywave/go-cog"
	"github.com/flywave/go-geo"
	"github.com/flywave/go-geom"
	"github.com/flywave/go-geom/general"
	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

var epsg4326 geo.Proj

func init() {
	epsg4326 = geo.NewProj(4326)
}

// Options configures a ZoneDelineator. Nil fields fall back to the
// documented defaults.
type Options struct {
	// Samples are planar-or-geographic (x, y, yield) triples from a
	// caller that already holds validated point data. Takes precedence
	// over Input.
	Samples []vec3d.T
	// Input holds the harvest points as features; the yield is the
	// third coordinate of each point, or the "yield" property when the
	// geometry is two dimensional.
	Input *geom.FeatureCollection
	// InputSrs names the input reference frame. EPSG:4326 input is
	// reprojected into the UTM zone containing the point centroid
	// before any distance computation; any other frame is trusted to
	// be planar in meters already. Nil means planar without a named
	// frame.
	InputSrs *string
	// Power is the IDW exponent (default 2).
	Power *float64
	// MaxNeighbors bounds the samples per IDW query (default 12).
	MaxNeighbors *int
	// Resolution is the grid cell size in planar units (default 10).
	Resolution *float64
	// NZones fixes the zone count; nil or 0 selects it by silhouette
	// analysis over [MinZones, MaxZones] (defaults 2 and 7).
	NZones   *int
	MinZones *int
	MaxZones *int
	// Seed drives the clustering randomness (default 42). Equal seeds
	// give equal partitions.
	Seed *int64
	// Model selects the surface estimator, IDW unless a variogram
	// model is named.
	Model *SurfaceModel
	// FilterSize decimates the input to one averaged sample per cell
	// of the given planar size before fitting.
	FilterSize *vec2d.T
	// ReturnGrid attaches the full SurfaceGrid to the Result.
	ReturnGrid bool
	// Output, when set, writes the interpolated surface as a LZW
	// GeoTIFF. Requires InputSrs.
	Output string
	Logger *zap.Logger
}

// ZoneDelineator orchestrates the full pipeline: planar reprojection,
// surface interpolation, zone partitioning, label back-assignment to
// the points and per-zone statistics. One delineator serves one run;
// it holds no state shared across calls, so independent delineators
// may run in parallel.
type ZoneDelineator struct {
	samplesIn    []vec3d.T
	input        *geom.FeatureCollection
	inputProj    geo.Proj
	power        float64
	maxNeighbors int
	resolution   float64
	nZones       int
	minZones     int
	maxZones     int
	seed         int64
	model        SurfaceModel
	filterSize   *vec2d.T
	returnGrid   bool
	output       string
	logger       *zap.Logger

	planarProj   geo.Proj
	planar       []vec3d.T
	interpolator *IDWInterpolator
	partitioner  *ZonePartitioner
	grid         *SurfaceGrid
}

func NewZoneDelineator(opts Options) *ZoneDelineator {
	d := &ZoneDelineator{
		samplesIn:    opts.Samples,
		input:        opts.Input,
		power:        DefaultPower,
		maxNeighbors: DefaultMaxNeighbors,
		resolution:   DefaultResolution,
		minZones:     DefaultMinZones,
		maxZones:     DefaultMaxZones,
		seed:         DefaultSeed,
		model:        IDW,
		filterSize:   opts.FilterSize,
		returnGrid:   opts.ReturnGrid,
		output:       opts.Output,
		logger:       zap.NewNop(),
	}
	if opts.InputSrs != nil {
		d.inputProj = geo.NewProj(*opts.InputSrs)
	}
	if opts.Power != nil {
		d.power = *opts.Power
	}
	if opts.MaxNeighbors != nil {
		d.maxNeighbors = *opts.MaxNeighbors
	}
	if opts.Resolution != nil {
		d.resolution = *opts.Resolution
	}
	if opts.NZones != nil {
		d.nZones = *opts.NZones
	}
	if opts.MinZones != nil {
		d.minZones = *opts.MinZones
	}
	if opts.MaxZones != nil {
		d.maxZones = *opts.MaxZones
	}
	if opts.Seed != nil {
		d.seed = *opts.Seed
	}
	if opts.Model != nil {
		d.model = *opts.Model
	}
	if opts.Logger != nil {
		d.logger = opts.Logger
	}
	return d
}

// Process runs the pipeline and returns the zones ordered by ascending
// mean yield. Either a complete Result comes back or none at all;
// component failures propagate unchanged.
func (d *ZoneDelineator) Process() (*Result, error) {
	samples, err := d.extractSamples()
	if err != nil {
		return nil, err
	}
	if d.filterSize != nil {
		if samples, err = newCellFilter(*d.filterSize).Filter(samples); err != nil {
			return nil, err
		}
	}
	planar, err := d.toPlanar(samples)
	if err != nil {
		return nil, err
	}
	d.planar = planar

	d.logger.Info("delineating management zones",
		zap.Int("points", len(planar)),
		zap.Float64("resolution", d.resolution),
		zap.String("model", string(d.model)))

	grid, err := d.buildSurface(planar)
	if err != nil {
		return nil, err
	}
	d.grid = grid

	d.partitioner = NewZonePartitioner(d.nZones, d.minZones, d.maxZones, d.seed)
	d.partitioner.SetLogger(d.logger)
	labels, err := d.partitioner.FitPredict(grid.Values, nil)
	if err != nil {
		return nil, err
	}
	grid.Labels = labels

	pointLabels := d.assignPoints(planar, grid)

	zns, err := d.buildZones(planar, pointLabels, d.partitioner.SelectedZones(), grid.CellArea())
	if err != nil {
		return nil, err
	}

	if d.output != "" {
		if err := d.writeSurface(grid); err != nil {
			return nil, err
		}
	}

	res := &Result{Zones: zns, NumZones: d.partitioner.SelectedZones()}
	if d.returnGrid {
		res.Grid = grid
	}
	return res, nil
}

func (d *ZoneDelineator) extractSamples() ([]vec3d.T, error) {
	if len(d.samplesIn) > 0 {
		return d.samplesIn, nil
	}
	if d.input == nil {
		return nil, fmt.Errorf("%w: no samples or feature collection", ErrInvalidInput)
	}
	ret := make([]vec3d.T, 0, len(d.input.Features))
	for _, fea := range d.input.Features {
		switch g := fea.Geometry.(type) {
		case *general.Point:
			val, ok := sampleValue(g.Data(), fea.Properties)
			if !ok {
				return nil, fmt.Errorf("%w: point feature without yield", ErrInvalidInput)
			}
			ret = append(ret, vec3d.T{g.X(), g.Y(), val})
		case *general.MultiPoint:
			for _, pos := range g.Points() {
				val, ok := sampleValue(pos.Data(), fea.Properties)
				if !ok {
					return nil, fmt.Errorf("%w: point feature without yield", ErrInvalidInput)
				}
				ret = append(ret, vec3d.T{pos.X(), pos.Y(), val})
			}
		}
	}
	if len(ret) == 0 {
		return nil, fmt.Errorf("%w: no point features", ErrInvalidInput)
	}
	return ret, nil
}

func sampleValue(data []float64, props map[string]interface{}) (float64, bool) {
	if len(data) > 2 {
		return data[2], true
	}
	switch v := props["yield"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// toPlanar moves geographic input into the UTM zone containing the
// point centroid so distances are measured in meters. Planar input
// passes through untouched.
func (d *ZoneDelineator) toPlanar(samples []vec3d.T) ([]vec3d.T, error) {
	if d.inputProj == nil || !d.inputProj.Eq(epsg4326) {
		d.planarProj = d.inputProj
		return samples, nil
	}

	var centroid vec2d.T
	for i := range samples {
		centroid[0] += samples[i][0]
		centroid[1] += samples[i][1]
	}
	centroid[0] /= float64(len(samples))
	centroid[1] /= float64(len(samples))

	d.planarProj = utmProjFor(centroid)
	d.logger.Debug("reprojecting to UTM",
		zap.Float64("lon", centroid[0]), zap.Float64("lat", centroid[1]))

	pos2 := make([]vec2d.T, len(samples))
	for i := range samples {
		pos2[i] = vec2d.T{samples[i][0], samples[i][1]}
	}
	pos2 = d.inputProj.TransformTo(d.planarProj, pos2)

	out := make([]vec3d.T, len(samples))
	for i := range samples {
		out[i] = vec3d.T{pos2[i][0], pos2[i][1], samples[i][2]}
	}
	return out, nil
}

// utmProjFor picks the UTM zone containing the geographic position,
// northern or southern series by hemisphere.
func utmProjFor(lonlat vec2d.T) geo.Proj {
	zone := int((lonlat[0]+180)/6) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	epsg := 32600 + zone
	if lonlat[1] < 0 {
		epsg = 32700 + zone
	}
	return geo.NewProj(epsg)
}

func (d *ZoneDelineator) buildSurface(samples []vec3d.T) (*SurfaceGrid, error) {
	bounds := NewConvex(samples).Rect()
	georef := geo.NewGeoReference(bounds, d.planarProj)

	if d.model == IDW || d.model == "" {
		points := make([]vec2d.T, len(samples))
		values := make([]float64, len(samples))
		for i := range samples {
			points[i] = vec2d.T{samples[i][0], samples[i][1]}
			values[i] = samples[i][2]
		}
		d.interpolator = NewIDWInterpolator(d.power, d.maxNeighbors)
		if err := d.interpolator.Fit(points, values); err != nil {
			return nil, err
		}
		return d.interpolator.InterpolateGrid(georef, d.resolution)
	}

	vario := NewVariogram(samples)
	if err := vario.Fit(d.model, 0, 100); err != nil {
		return nil, err
	}
	grid := CalculateSurfaceGrid(georef, d.resolution)
	values := make([]float64, len(grid.Cells))
	for i := range grid.Cells {
		values[i] = vario.Predict(grid.Cells[i][0], grid.Cells[i][1])
	}
	grid.Values = values
	return grid, nil
}

type cellRef struct {
	index int
	rect  *rtreego.Rect
}

func (c *cellRef) Bounds() *rtreego.Rect { return c.rect }

// assignPoints inherits each point's zone label from its nearest grid
// cell center. With a grid coarse relative to local yield gradients a
// point near a zone boundary can land in the neighboring class; this
// is documented approximate behavior.
func (d *ZoneDelineator) assignPoints(samples []vec3d.T, grid *SurfaceGrid) []int {
	spatials := make([]rtreego.Spatial, len(grid.Cells))
	for i := range grid.Cells {
		pt := rtreego.Point{grid.Cells[i][0], grid.Cells[i][1]}
		spatials[i] = &cellRef{index: i, rect: pt.ToRect(distEpsilon)}
	}
	tree := rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren, spatials...)

	labels := make([]int, len(samples))
	for i := range samples {
		nearest := tree.NearestNeighbors(1, rtreego.Point{samples[i][0], samples[i][1]})
		if len(nearest) == 0 || nearest[0] == nil {
			labels[i] = grid.Labels[0]
			continue
		}
		labels[i] = grid.Labels[nearest[0].(*cellRef).index]
	}
	return labels
}

func (d *ZoneDelineator) buildZones(samples []vec3d.T, labels []int, k int, cellArea float64) ([]*Zone, error) {
	zns := make([]*Zone, 0, k)
	for zoneID := 0; zoneID < k; zoneID++ {
		var members []vec3d.T
		var yields []float64
		for i := range samples {
			if labels[i] == zoneID {
				members = append(members, samples[i])
				yields = append(yields, samples[i][2])
			}
		}
		if len(members) == 0 {
			// non-fatal, the class just goes unreported
			d.logger.Warn("zone without assigned points", zap.Int("zone", zoneID))
			continue
		}
		mean, std := stat.MeanStdDev(yields, nil)
		if math.IsNaN(std) {
			std = 0
		}
		z := &Zone{
			ID:        zoneID,
			Name:      fmt.Sprintf("Zone %d", zoneID+1),
			NumPoints: len(members),
			YieldMean: mean,
			YieldStd:  std,
			AreaHa:    float64(len(members)) * cellArea / 10000,
			Geometry:  d.zonePolygon(members),
		}
		d.logger.Info("zone",
			zap.Int("zone_id", z.ID),
			zap.Int("points", z.NumPoints),
			zap.Float64("yield_mean", z.YieldMean),
			zap.Float64("area_ha", z.AreaHa))
		zns = append(zns, z)
	}
	if len(zns) == 0 {
		return nil, ErrEmptyZones
	}
	return zns, nil
}

// zonePolygon is the convex hull of the zone's points, returned in the
// caller's reference frame.
func (d *ZoneDelineator) zonePolygon(members []vec3d.T) geom.Polygon {
	hull := NewConvex(members).Hull()
	if d.planarProj != nil && d.inputProj != nil && !d.planarProj.Eq(d.inputProj) {
		hull = d.planarProj.TransformTo(d.inputProj, hull)
	}
	ring := make([][]float64, 0, len(hull)+1)
	for _, p := range hull {
		ring = append(ring, []float64{p[0], p[1]})
	}
	for len(ring) < 3 {
		ring = append(ring, ring[len(ring)-1])
	}
	ring = append(ring, ring[0])
	return general.NewPolygon([][][]float64{ring})
}

// writeSurface encodes the interpolated surface as a north-up LZW
// GeoTIFF for map rendering.
func (d *ZoneDelineator) writeSurface(grid *SurfaceGrid) error {
	if grid.Srs() == nil {
		return fmt.Errorf("%w: surface export needs a named input srs", ErrInvalidInput)
	}
	tiledata, si, bbox, srs := grid.GetTileData()
	rect := image.Rect(0, 0, int(si[0]), int(si[1]))
	src := cog.NewSource(tiledata, &rect, cog.CTLZW)
	return cog.WriteTile(d.output, src, bbox, srs, si, nil)
}
