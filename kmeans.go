package zones

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	kmeansMaxIter  = 300
	kmeansRestarts = 10
)

// standardScaler centers every column to zero mean and unit variance
// so mixed-scale features weigh equally in the distance metric.
type standardScaler struct {
	mean []float64
	std  []float64
}

func (s *standardScaler) fitTransform(x *mat.Dense) *mat.Dense {
	rows, cols := x.Dims()
	s.mean = make([]float64, cols)
	s.std = make([]float64, cols)
	out := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, x)
		mu, sigma := stat.MeanStdDev(col, nil)
		if sigma == 0 || math.IsNaN(sigma) {
			sigma = 1
		}
		s.mean[j] = mu
		s.std[j] = sigma
		for i := range col {
			out.Set(i, j, (col[i]-mu)/sigma)
		}
	}
	return out
}

type kmeansRun struct {
	labels    []int
	centroids [][]float64
	inertia   float64
}

// kMeans clusters the rows of x into k groups by Lloyd iteration with
// k-means++ seeding. The lowest-inertia run over kmeansRestarts
// restarts wins; all randomness comes from rng, so an equally seeded
// source reproduces the partition exactly.
func kMeans(x *mat.Dense, k int, rng *rand.Rand) kmeansRun {
	best := kmeansRun{inertia: math.Inf(1)}
	for r := 0; r < kmeansRestarts; r++ {
		run := lloyd(x, k, rng)
		if run.inertia < best.inertia {
			best = run
		}
	}
	return best
}

func lloyd(x *mat.Dense, k int, rng *rand.Rand) kmeansRun {
	rows, _ := x.Dims()
	centroids := seedCentroids(x, k, rng)
	labels := make([]int, rows)
	for i := range labels {
		labels[i] = -1
	}

	var inertia float64
	for iter := 0; iter < kmeansMaxIter; iter++ {
		inertia = 0
		changed := false
		for i := 0; i < rows; i++ {
			row := x.RawRowView(i)
			bestC := 0
			bestD := math.Inf(1)
			for c := range centroids {
				if d := sqDist(row, centroids[c]); d < bestD {
					bestC, bestD = c, d
				}
			}
			if labels[i] != bestC {
				labels[i] = bestC
				changed = true
			}
			inertia += bestD
		}
		if !changed {
			break
		}
		recomputeCentroids(x, labels, centroids, rng)
	}
	return kmeansRun{labels: labels, centroids: centroids, inertia: inertia}
}

// recomputeCentroids replaces each centroid with the mean of its
// members. A cluster that lost every member is reseeded on a random
// sample, which keeps k clusters alive.
func recomputeCentroids(x *mat.Dense, labels []int, centroids [][]float64, rng *rand.Rand) {
	rows, cols := x.Dims()
	counts := make([]int, len(centroids))
	for c := range centroids {
		for j := range centroids[c] {
			centroids[c][j] = 0
		}
	}
	for i := 0; i < rows; i++ {
		c := labels[i]
		counts[c]++
		row := x.RawRowView(i)
		for j := 0; j < cols; j++ {
			centroids[c][j] += row[j]
		}
	}
	for c := range centroids {
		if counts[c] == 0 {
			copy(centroids[c], x.RawRowView(rng.Intn(rows)))
			continue
		}
		for j := 0; j < cols; j++ {
			centroids[c][j] /= float64(counts[c])
		}
	}
}

// seedCentroids runs k-means++ initialization: the first centroid is a
// random sample, every following one is drawn with probability
// proportional to its squared distance from the nearest chosen
// centroid.
func seedCentroids(x *mat.Dense, k int, rng *rand.Rand) [][]float64 {
	rows, cols := x.Dims()
	centroids := make([][]float64, 0, k)
	first := make([]float64, cols)
	copy(first, x.RawRowView(rng.Intn(rows)))
	centroids = append(centroids, first)

	d2 := make([]float64, rows)
	for len(centroids) < k {
		last := centroids[len(centroids)-1]
		var sum float64
		for i := 0; i < rows; i++ {
			d := sqDist(x.RawRowView(i), last)
			if len(centroids) == 1 || d < d2[i] {
				d2[i] = d
			}
			sum += d2[i]
		}
		next := rows - 1
		if sum > 0 {
			target := rng.Float64() * sum
			var acc float64
			for i := 0; i < rows; i++ {
				acc += d2[i]
				if acc >= target {
					next = i
					break
				}
			}
		} else {
			next = rng.Intn(rows)
		}
		c := make([]float64, cols)
		copy(c, x.RawRowView(next))
		centroids = append(centroids, c)
	}
	return centroids
}

func sqDist(a, b []float64) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}
