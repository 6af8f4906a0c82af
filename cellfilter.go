package zones

import (
	"fmt"

	vec2d "github.com/flywave/go3d/float64/vec2"
	vec3d "github.com/flywave/go3d/float64/vec3"
)

// cellFilter thins dense harvest streams by averaging every sample
// that falls into the same planar cell. Yield monitors log several
// samples per meter on headlands; decimation keeps the interpolation
// index small without shifting the local mean.
type cellFilter struct {
	LeafSize vec2d.T
}

func newCellFilter(leafSize vec2d.T) *cellFilter {
	return &cellFilter{LeafSize: leafSize}
}

// Filter returns one averaged sample per occupied cell, ordered south
// to north, then west to east.
func (f *cellFilter) Filter(samples []vec3d.T) ([]vec3d.T, error) {
	if f.LeafSize[0] <= 0 || f.LeafSize[1] <= 0 {
		return nil, fmt.Errorf("%w: non-positive filter cell size", ErrInvalidInput)
	}
	min, max, err := minMaxVec3(samples)
	if err != nil {
		return nil, err
	}

	xs := int((max[0]-min[0])/f.LeafSize[0]) + 1
	ys := int((max[1]-min[1])/f.LeafSize[1]) + 1

	type cell struct {
		sum vec3d.T
		num int
	}
	cells := make(map[int]*cell, len(samples))
	for i := range samples {
		x := int((samples[i][0] - min[0]) / f.LeafSize[0])
		y := int((samples[i][1] - min[1]) / f.LeafSize[1])
		key := y*xs + x
		cl := cells[key]
		if cl == nil {
			cl = &cell{}
			cells[key] = cl
		}
		cl.num++
		cl.sum.Add(&samples[i])
	}

	out := make([]vec3d.T, 0, len(cells))
	for y := 0; y < ys; y++ {
		for x := 0; x < xs; x++ {
			cl := cells[y*xs+x]
			if cl == nil {
				continue
			}
			v := cl.sum
			mulVec3(&v, 1/float64(cl.num))
			out = append(out, v)
		}
	}
	return out, nil
}
