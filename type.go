package zones

import (
	"errors"

	"github.com/flywave/go-geom"
)

// SurfaceModel selects how the yield surface is estimated from the
// harvest samples. IDW is the default; the variogram models run
// ordinary kriging instead.
type SurfaceModel string

const (
	IDW         SurfaceModel = "idw"
	Gaussian    SurfaceModel = "gaussian"
	Exponential SurfaceModel = "exponential"
	Spherical   SurfaceModel = "spherical"
)

// Failure conditions raised by the pipeline. Wrapped errors keep the
// sentinel, match with errors.Is.
var (
	ErrInvalidInput     = errors.New("zones: invalid input")
	ErrNotFitted        = errors.New("zones: interpolator not fitted")
	ErrInsufficientData = errors.New("zones: insufficient distinct values")
	ErrEmptyZones       = errors.New("zones: all zones empty")
)

// Defaults applied when the matching Options field is nil.
const (
	DefaultPower        = 2.0
	DefaultMaxNeighbors = 12
	DefaultResolution   = 10.0
	DefaultMinZones     = 2
	DefaultMaxZones     = 7
	DefaultSeed         = 42
)

// Zone is one management class of a field. Identifiers ascend with the
// class mean yield, so ID 0 is always the lowest-yield class. Zones
// carry no identity across runs.
type Zone struct {
	ID        int     `json:"zone_id"`
	Name      string  `json:"zone_name"`
	NumPoints int     `json:"n_points"`
	YieldMean float64 `json:"yield_mean"`
	YieldStd  float64 `json:"yield_std"`
	// AreaHa approximates the zone area in hectares as point count
	// times grid cell area.
	AreaHa   float64      `json:"area_ha"`
	Geometry geom.Polygon `json:"-"`
}

// Result is the bundle of one delineation run. It is complete or not
// returned at all; callers own it exclusively.
type Result struct {
	Zones    []*Zone
	NumZones int
	// Grid is only populated when Options.ReturnGrid is set.
	Grid *SurfaceGrid
}

// FeatureCollection renders the zones as polygon features, one per
// zone with its statistics as properties.
func (r *Result) FeatureCollection() *geom.FeatureCollection {
	fc := &geom.FeatureCollection{}
	for _, z := range r.Zones {
		fc.Features = append(fc.Features, &geom.Feature{
			Geometry: z.Geometry,
			Properties: map[string]interface{}{
				"zone_id":    z.ID,
				"zone_name":  z.Name,
				"n_points":   z.NumPoints,
				"yield_mean": z.YieldMean,
				"yield_std":  z.YieldStd,
				"area_ha":    z.AreaHa,
			},
		})
	}
	return fc
}
