package zones

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// ZonePartitioner groups scalar surface values into management classes
// whose labels ascend with the class mean: label 0 is always the
// lowest-yield class. Downstream consumers key zone severity and
// rendering off this ordering, it is part of the contract.
type ZonePartitioner struct {
	nZones   int
	minZones int
	maxZones int
	seed     int64

	scaler   standardScaler
	selected int
	scores   map[int]float64
	logger   *zap.Logger
}

// NewZonePartitioner builds a partitioner. nZones fixes the class
// count; pass 0 to select it by silhouette analysis over
// [minZones, maxZones]. The seed is the partitioner's only source of
// randomness, two partitioners with equal seeds behave identically.
func NewZonePartitioner(nZones, minZones, maxZones int, seed int64) *ZonePartitioner {
	if minZones < 2 {
		minZones = DefaultMinZones
	}
	if maxZones < minZones {
		maxZones = minZones
	}
	return &ZonePartitioner{
		nZones:   nZones,
		minZones: minZones,
		maxZones: maxZones,
		seed:     seed,
		logger:   zap.NewNop(),
	}
}

// SetLogger routes progress reporting; the default is a nop logger.
func (zp *ZonePartitioner) SetLogger(l *zap.Logger) {
	if l != nil {
		zp.logger = l
	}
}

// SelectedZones reports the class count used by the last FitPredict.
func (zp *ZonePartitioner) SelectedZones() int { return zp.selected }

// Scores reports the silhouette score per candidate count from the
// last auto-selection, nil when the count was fixed.
func (zp *ZonePartitioner) Scores() map[int]float64 { return zp.scores }

// FitPredict standardizes the feature matrix built from values,
// optionally joined column-wise with extra, clusters it and returns
// one label per value remapped into ascending mean order.
func (zp *ZonePartitioner) FitPredict(values []float64, extra *mat.Dense) ([]int, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no values", ErrInvalidInput)
	}
	x, err := zp.featureMatrix(values, extra)
	if err != nil {
		return nil, err
	}
	scaled := zp.scaler.fitTransform(x)
	distinct := countDistinct(values)
	zp.scores = nil

	rng := rand.New(rand.NewSource(zp.seed))
	k := zp.nZones
	var run kmeansRun
	if k <= 0 {
		if zp.maxZones > distinct {
			return nil, fmt.Errorf("%w: %d distinct values for up to %d zones",
				ErrInsufficientData, distinct, zp.maxZones)
		}
		k, run = zp.selectZones(scaled, rng)
	} else {
		if k > distinct {
			return nil, fmt.Errorf("%w: %d distinct values for %d zones",
				ErrInsufficientData, distinct, k)
		}
		run = kMeans(scaled, k, rng)
	}
	zp.selected = k

	return remapByMean(run.labels, values, k), nil
}

// selectZones scores every candidate class count and keeps the highest
// mean silhouette; ties break toward the smaller count.
func (zp *ZonePartitioner) selectZones(x *mat.Dense, rng *rand.Rand) (int, kmeansRun) {
	bestK := zp.minZones
	bestScore := math.Inf(-1)
	var bestRun kmeansRun
	scores := make(map[int]float64, zp.maxZones-zp.minZones+1)
	for n := zp.minZones; n <= zp.maxZones; n++ {
		run := kMeans(x, n, rng)
		score := silhouetteScore(x, run.labels, n)
		scores[n] = score
		zp.logger.Debug("silhouette score",
			zap.Int("zones", n), zap.Float64("score", score))
		if score > bestScore {
			bestScore = score
			bestK = n
			bestRun = run
		}
	}
	zp.scores = scores
	zp.logger.Info("selected zone count",
		zap.Int("zones", bestK), zap.Float64("score", bestScore))
	return bestK, bestRun
}

func (zp *ZonePartitioner) featureMatrix(values []float64, extra *mat.Dense) (*mat.Dense, error) {
	if extra == nil {
		return mat.NewDense(len(values), 1, append([]float64(nil), values...)), nil
	}
	rows, cols := extra.Dims()
	if rows != len(values) {
		return nil, fmt.Errorf("%w: %d values but %d extra feature rows",
			ErrInvalidInput, len(values), rows)
	}
	x := mat.NewDense(len(values), cols+1, nil)
	for i := range values {
		x.Set(i, 0, values[i])
		for j := 0; j < cols; j++ {
			x.Set(i, j+1, extra.At(i, j))
		}
	}
	return x, nil
}

// remapByMean renames cluster labels so the class means of the
// original values ascend with the label. Empty clusters sort last.
func remapByMean(labels []int, values []float64, k int) []int {
	sums := make([]float64, k)
	counts := make([]int, k)
	for i, l := range labels {
		sums[l] += values[i]
		counts[l]++
	}
	mean := func(l int) float64 {
		if counts[l] == 0 {
			return math.Inf(1)
		}
		return sums[l] / float64(counts[l])
	}
	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return mean(order[a]) < mean(order[b])
	})
	remap := make([]int, k)
	for newLabel, oldLabel := range order {
		remap[oldLabel] = newLabel
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		out[i] = remap[l]
	}
	return out
}

func countDistinct(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
