package zones

import (
	"math"

	"github.com/flywave/go-geo"
	vec2d "github.com/flywave/go3d/float64/vec2"
)

// SurfaceGrid is a regular grid of cell centers over a planar bounding
// rectangle. Cells run row major from the south-west corner. The grid
// covers [min, max) per axis, so the last row and column fall short of
// the true extent when it is not an exact multiple of the resolution.
type SurfaceGrid struct {
	Width      int
	Height     int
	Resolution float64
	Cells      []vec2d.T
	// Values holds the interpolated surface, parallel to Cells.
	Values []float64
	// Labels holds one zone label per cell once partitioned.
	Labels []int

	bounds vec2d.Rect
	srs    geo.Proj
}

// CalculateSurfaceGrid builds the empty grid for the referenced
// bounds. Degenerate (near zero area) bounds still produce a single
// cell, the pipeline never sees an empty surface.
func CalculateSurfaceGrid(georef *geo.GeoReference, resolution float64) *SurfaceGrid {
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	bbox := georef.GetBBox()
	width := int(math.Ceil((bbox.Max[0] - bbox.Min[0]) / resolution))
	height := int(math.Ceil((bbox.Max[1] - bbox.Min[1]) / resolution))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	grid := &SurfaceGrid{
		Width:      width,
		Height:     height,
		Resolution: resolution,
		bounds:     bbox,
		srs:        georef.GetSrs(),
	}

	cells := make([]vec2d.T, 0, width*height)
	origin := georef.GetOrigin()
	for y := 0; y < height; y++ {
		northing := origin[1] + resolution*float64(y)
		for x := 0; x < width; x++ {
			easting := origin[0] + resolution*float64(x)
			cells = append(cells, vec2d.T{easting, northing})
		}
	}
	grid.Cells = cells
	return grid
}

func (g *SurfaceGrid) Count() int { return g.Width * g.Height }

func (g *SurfaceGrid) Bounds() vec2d.Rect { return g.bounds }

func (g *SurfaceGrid) Srs() geo.Proj { return g.srs }

// CellArea returns the area of one cell in squared planar units.
func (g *SurfaceGrid) CellArea() float64 { return g.Resolution * g.Resolution }

// Value returns the surface value at the given row (southernmost
// first) and column.
func (g *SurfaceGrid) Value(row, column int) float64 {
	return g.Values[row*g.Width+column]
}

// Label returns the zone label at the given row and column.
func (g *SurfaceGrid) Label(row, column int) int {
	return g.Labels[row*g.Width+column]
}

// GetTileData flips the surface into north-up raster order for GeoTIFF
// encoding.
func (g *SurfaceGrid) GetTileData() ([]float64, [2]uint32, vec2d.Rect, geo.Proj) {
	tiledata := make([]float64, g.Width*g.Height)
	for y := 0; y < g.Height; y++ {
		src := (g.Height - 1 - y) * g.Width
		copy(tiledata[y*g.Width:(y+1)*g.Width], g.Values[src:src+g.Width])
	}
	return tiledata, [2]uint32{uint32(g.Width), uint32(g.Height)}, g.bounds, g.srs
}
