package zones

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// silhouetteScore returns the mean silhouette coefficient of a labeled
// sample: per row (b-a)/max(a,b), with a the mean distance to its own
// cluster and b the mean distance to the nearest other cluster.
// Singleton clusters contribute zero.
func silhouetteScore(x *mat.Dense, labels []int, k int) float64 {
	rows, _ := x.Dims()
	if rows == 0 {
		return 0
	}
	members := make([][]int, k)
	for i, l := range labels {
		members[l] = append(members[l], i)
	}

	var total float64
	for i := 0; i < rows; i++ {
		own := labels[i]
		if len(members[own]) < 2 {
			continue
		}
		row := x.RawRowView(i)
		var a float64
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if len(members[c]) == 0 {
				continue
			}
			var sum float64
			for _, j := range members[c] {
				if j == i {
					continue
				}
				sum += math.Sqrt(sqDist(row, x.RawRowView(j)))
			}
			if c == own {
				a = sum / float64(len(members[c])-1)
			} else if m := sum / float64(len(members[c])); m < b {
				b = m
			}
		}
		if m := math.Max(a, b); m > 0 && !math.IsInf(b, 1) {
			total += (b - a) / m
		}
	}
	return total / float64(rows)
}
