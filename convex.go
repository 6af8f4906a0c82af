package zones

import (
	"math"

	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"
)

// Convex computes the convex hull of a sample set by quickhull; the
// hull is the representative polygon reported per zone.
type Convex struct {
	vertices []vec3d.T
	hull     []vec2d.T
}

func NewConvex(vertices []vec3d.T) *Convex {
	return &Convex{vertices: vertices}
}

// Hull returns the hull vertices, computed lazily. Farthest-point ties
// resolve to the earliest sample, the order is stable across runs.
func (c *Convex) Hull() []vec2d.T {
	if c.hull == nil {
		minX, maxX := c.extremePoints()
		c.hull = append(c.quickHull(c.vertices, maxX, minX), c.quickHull(c.vertices, minX, maxX)...)
	}
	return c.hull
}

// Rect returns the hull's bounding rectangle.
func (c *Convex) Rect() vec2d.Rect {
	r := vec2d.Rect{Min: vec2d.MaxVal, Max: vec2d.MinVal}
	hull := c.Hull()
	for i := range hull {
		r.Extend(&hull[i])
	}
	return r
}

// Contains reports whether the planar point lies inside the hull,
// boundary included. Degenerate hulls contain nothing.
func (c *Convex) Contains(point vec2d.T) bool {
	hull := c.Hull()
	if len(hull) < 3 {
		return false
	}
	sign := 0
	for i := range hull {
		start := hull[i]
		end := hull[(i+1)%len(hull)]
		edge := vec2d.Sub(&end, &start)
		rel := vec2d.Sub(&point, &start)
		cr := edge[0]*rel[1] - edge[1]*rel[0]
		switch {
		case cr > 0:
			if sign < 0 {
				return false
			}
			sign = 1
		case cr < 0:
			if sign > 0 {
				return false
			}
			sign = -1
		}
	}
	return true
}

func (c *Convex) quickHull(points []vec3d.T, start, end vec2d.T) []vec2d.T {
	var (
		outside  []vec3d.T
		farthest vec2d.T
		maxDist  float64
	)
	for _, p := range points {
		if d := crossFromLine(p, start, end); d > 0 {
			outside = append(outside, p)
			if d > maxDist {
				maxDist = d
				farthest = vec2d.T{p[0], p[1]}
			}
		}
	}
	if len(outside) == 0 {
		return []vec2d.T{end}
	}
	return append(c.quickHull(outside, farthest, end), c.quickHull(outside, start, farthest)...)
}

// crossFromLine is positive when the point lies left of start-to-end,
// scaled by its distance from the line.
func crossFromLine(point vec3d.T, start, end vec2d.T) float64 {
	line := vec2d.Sub(&end, &start)
	rel := vec2d.T{point[0] - start[0], point[1] - start[1]}
	return line[0]*rel[1] - line[1]*rel[0]
}

func (c *Convex) extremePoints() (minX, maxX vec2d.T) {
	minX = vec2d.T{math.MaxFloat64, 0}
	maxX = vec2d.T{-math.MaxFloat64, 0}
	for _, p := range c.vertices {
		if p[0] < minX[0] {
			minX = vec2d.T{p[0], p[1]}
		}
		if maxX[0] < p[0] {
			maxX = vec2d.T{p[0], p[1]}
		}
	}
	return minX, maxX
}
