package zones

import (
	"fmt"

	vec3d "github.com/flywave/go3d/float64/vec3"
)

func pow2(x float64) float64 {
	return x * x
}

func pow3(x float64) float64 {
	return x * x * x
}

func minMaxVec3(ra []vec3d.T) (vec3d.T, vec3d.T, error) {
	if len(ra) == 0 {
		return vec3d.T{}, vec3d.T{}, fmt.Errorf("%w: no samples", ErrInvalidInput)
	}
	min, max := ra[0], ra[0]
	for i := 1; i < len(ra); i++ {
		v := ra[i]
		for j := range v {
			if v[j] < min[j] {
				min[j] = v[j]
			}
			if v[j] > max[j] {
				max[j] = v[j]
			}
		}
	}
	return min, max, nil
}

func mulVec3(vec *vec3d.T, v float64) *vec3d.T {
	vec[0] *= v
	vec[1] *= v
	vec[2] *= v
	return vec
}
