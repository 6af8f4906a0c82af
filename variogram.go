package zones

import (
	"fmt"
	"math"
	"sort"

	vec3d "github.com/flywave/go3d/float64/vec3"
	"gonum.org/v1/gonum/mat"
)

// variogramFn evaluates a fitted variogram model at lag distance h.
type variogramFn func(h, nugget, vrange, sill, a float64) float64

func gaussianVariogram(h, nugget, vrange, sill, a float64) float64 {
	return nugget + ((sill-nugget)/vrange)*(1.0-math.Exp(-(1.0/a)*pow2(h/vrange)))
}

func exponentialVariogram(h, nugget, vrange, sill, a float64) float64 {
	return nugget + ((sill-nugget)/vrange)*(1.0-math.Exp(-(1.0/a)*(h/vrange)))
}

func sphericalVariogram(h, nugget, vrange, sill, a float64) float64 {
	if h > vrange {
		return nugget + (sill-nugget)/vrange
	}
	return nugget + ((sill-nugget)/vrange)*(1.5*(h/vrange)-0.5*pow3(h/vrange))
}

// Variogram runs ordinary kriging as the alternative surface model for
// callers that want a smoother field than IDW produces, at the cost of
// a dense solve over all samples.
type Variogram struct {
	samples []vec3d.T
	model   variogramFn

	nugget  float64
	vrange  float64
	sill    float64
	a       float64
	weights []float64
}

func NewVariogram(samples []vec3d.T) *Variogram {
	return &Variogram{samples: samples}
}

// Fit estimates the empirical semivariogram, fits the named model to
// it by ridge-regularized least squares, and solves the kriging system
// for the prediction weights. sigma2 is the observation variance added
// to the diagonal, alpha the ridge prior; pass 0 and 100 for the
// customary defaults.
func (v *Variogram) Fit(model SurfaceModel, sigma2, alpha float64) error {
	n := len(v.samples)
	if n < 3 {
		return fmt.Errorf("%w: %d samples for variogram fit", ErrInvalidInput, n)
	}
	switch model {
	case Gaussian:
		v.model = gaussianVariogram
	case Exponential:
		v.model = exponentialVariogram
	case Spherical:
		v.model = sphericalVariogram
	default:
		return fmt.Errorf("%w: %q is not a variogram model", ErrInvalidInput, model)
	}
	if alpha <= 0 {
		alpha = 100
	}
	v.a = 1.0 / 3.0

	npairs := (n*n - n) / 2
	dist := make([][2]float64, 0, npairs)
	for i := 0; i < n; i++ {
		for j := 0; j < i; j++ {
			d := math.Hypot(v.samples[i][0]-v.samples[j][0], v.samples[i][1]-v.samples[j][1])
			dist = append(dist, [2]float64{d, math.Abs(v.samples[i][2] - v.samples[j][2])})
		}
	}
	sort.Slice(dist, func(a, b int) bool { return dist[a][0] < dist[b][0] })
	v.vrange = dist[npairs-1][0]

	lag, semi, err := binLags(dist, v.vrange)
	if err != nil {
		return err
	}

	m := len(lag)
	v.vrange = lag[m-1] - lag[0]
	if v.vrange <= 0 {
		return fmt.Errorf("%w: coincident sample spacing", ErrInsufficientData)
	}

	// fit nugget and sill on the model basis
	basis := mat.NewDense(m, 2, nil)
	semiVec := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		h := lag[i] / v.vrange
		basis.Set(i, 0, 1)
		switch model {
		case Gaussian:
			basis.Set(i, 1, 1.0-math.Exp(-(1.0/v.a)*pow2(h)))
		case Exponential:
			basis.Set(i, 1, 1.0-math.Exp(-(1.0/v.a)*h))
		case Spherical:
			basis.Set(i, 1, 1.5*h-0.5*pow3(h))
		}
		semiVec.SetVec(i, semi[i])
	}

	var btb mat.Dense
	btb.Mul(basis.T(), basis)
	btb.Set(0, 0, btb.At(0, 0)+1.0/alpha)
	btb.Set(1, 1, btb.At(1, 1)+1.0/alpha)

	var bty mat.VecDense
	bty.MulVec(basis.T(), semiVec)

	var w mat.VecDense
	if err := w.SolveVec(&btb, &bty); err != nil {
		return fmt.Errorf("variogram regression: %w", err)
	}
	v.nugget = w.AtVec(0)
	v.sill = w.AtVec(1)*v.vrange + v.nugget

	// kriging system over all sample pairs
	sys := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			h := math.Hypot(v.samples[i][0]-v.samples[j][0], v.samples[i][1]-v.samples[j][1])
			val := v.model(h, v.nugget, v.vrange, v.sill, v.a)
			if i == j {
				val += sigma2
			}
			sys.SetSym(j, i, val)
		}
	}
	target := mat.NewVecDense(n, nil)
	for i := range v.samples {
		target.SetVec(i, v.samples[i][2])
	}

	var weights mat.VecDense
	var chol mat.Cholesky
	if chol.Factorize(sys) {
		if err := chol.SolveVecTo(&weights, target); err != nil {
			return fmt.Errorf("kriging solve: %w", err)
		}
	} else {
		if err := weights.SolveVec(sys, target); err != nil {
			return fmt.Errorf("kriging solve: %w", err)
		}
	}
	v.weights = make([]float64, n)
	for i := 0; i < n; i++ {
		v.weights[i] = weights.AtVec(i)
	}
	return nil
}

// binLags averages the sorted pair distances and semivariances into at
// most 30 lag bins, matching the classic variogram estimator.
func binLags(dist [][2]float64, vrange float64) ([]float64, []float64, error) {
	npairs := len(dist)
	lags := 30
	if npairs < lags {
		lag := make([]float64, 0, npairs)
		semi := make([]float64, 0, npairs)
		for _, d := range dist {
			lag = append(lag, d[0])
			semi = append(semi, d[1])
		}
		return lag, semi, nil
	}

	tolerance := vrange / float64(lags)
	lag := make([]float64, 0, lags)
	semi := make([]float64, 0, lags)
	j := 0
	for i := 0; i < lags && j < npairs; i++ {
		var sumLag, sumSemi float64
		k := 0
		for j < npairs && dist[j][0] <= float64(i+1)*tolerance {
			sumLag += dist[j][0]
			sumSemi += dist[j][1]
			j++
			k++
		}
		if k > 0 {
			lag = append(lag, sumLag/float64(k))
			semi = append(semi, sumSemi/float64(k))
		}
	}
	if len(lag) < 2 {
		return nil, nil, fmt.Errorf("%w: degenerate lag binning", ErrInsufficientData)
	}
	return lag, semi, nil
}

// Predict evaluates the kriging surface at a planar position. Fit must
// have succeeded first.
func (v *Variogram) Predict(x, y float64) float64 {
	var out float64
	for i := range v.samples {
		h := math.Hypot(x-v.samples[i][0], y-v.samples[i][1])
		out += v.model(h, v.nugget, v.vrange, v.sill, v.a) * v.weights[i]
	}
	return out
}
