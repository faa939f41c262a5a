// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package drs certifies global optimality of a rotation estimate for the
// outlier-robust point-set registration problem. Given paired 3D
// correspondences, an inlier labeling and a candidate rotation, it runs a
// Douglas–Rachford splitting on the dual of the registration relaxation,
// alternating a closed-form projection onto the dual affine manifold with
// a projection onto the positive-semidefinite cone, and reports either a
// certificate of (near-)optimality or the residual sub-optimality gap.
package drs

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/curioloop/certifier/quatmat"
)

// LogLevel controls the frequency and type of logger output
type LogLevel int

const (
	// LogNoop no output is generated (level < 0)
	LogNoop LogLevel = -1
	// LogLast print only one line with the final certificate state
	LogLast LogLevel = 0
	// LogIter print the sub-optimality gap every `level` iterations for any level > 0
	LogIter LogLevel = 1
)

// Logger handles logging output for the certifier.
// Note the writer must be thread-safe.
type Logger struct {
	Level LogLevel
	Msg   io.Writer
}

func (l *Logger) enable(level LogLevel) bool {
	return l.Level >= level
}

func (l *Logger) log(format string, a ...any) {
	_, _ = fmt.Fprintf(l.Msg, format, a...)
}

// Termination specifies the stopping criteria for the outer iteration.
type Termination struct {
	// The iteration stop when the number of iteration exceeds limit.
	MaxIterations int
	// The iteration stop when the sub-optimality gap falls below tolerance.
	GapTolerance float64
}

// Problem specifies the configuration of a certifier. The zero value of
// every field selects its default.
type Problem struct {
	// The squared truncation threshold c̄² of the robust cost.
	Cbar2 float64
	// The relaxation step γ of the splitting update, 0 < γ < 2.
	Relax float64
	// Stop condition
	Stop Termination
}

// CertificationResult reports the outcome of one certification call.
type CertificationResult struct {
	// Certified reports whether the gap fell below tolerance within budget.
	Certified bool
	// PrimalCost is the candidate cost μ = xᵀQx of the rank-one lift,
	// equal to the dual target under strong duality.
	PrimalCost float64
	// Gap is the sub-optimality gap of the last iteration.
	Gap float64
	// Trajectory holds the gap of every outer iteration.
	Trajectory []float64
	// NumIter is the number of outer iterations performed.
	NumIter int
}

// Certifier runs dual certification calls with one immutable
// configuration. It holds no per-call state and is safe for
// concurrent use.
type Certifier struct {
	cbar2  float64
	relax  float64
	stop   Termination
	logger *Logger
}

const (
	defaultCbar2   = 1.0
	defaultRelax   = 1.0
	defaultMaxIter = 200
	defaultGapTol  = 1e-6
)

// New creates a new certifier for the given problem.
func (p *Problem) New(logger *Logger) (certifier *Certifier, err error) {

	if logger == nil {
		logger = new(Logger)
		logger.Level = LogNoop
	}
	if logger.Msg == nil {
		logger.Msg = os.Stdout
	}

	cbar2, relax, stop := p.Cbar2, p.Relax, p.Stop
	if cbar2 == 0 {
		cbar2 = defaultCbar2
	}
	if relax == 0 {
		relax = defaultRelax
	}
	if stop.MaxIterations == 0 {
		stop.MaxIterations = defaultMaxIter
	}
	if stop.GapTolerance == 0 {
		stop.GapTolerance = defaultGapTol
	}

	switch {
	case math.IsNaN(cbar2) || math.IsInf(cbar2, 0) || cbar2 <= 0:
		err = errors.New("truncation threshold must be a positive finite scalar")
	case math.IsNaN(relax) || relax <= 0 || relax >= 2:
		err = errors.New("relaxation step must lie in (0,2)")
	case stop.MaxIterations < 1:
		err = errors.New("max iteration must greater than 0")
	case stop.GapTolerance < 0:
		err = errors.New("gap tolerance must not less than 0")
	}
	if err != nil {
		return nil, err
	}

	return &Certifier{cbar2: cbar2, relax: relax, stop: stop, logger: logger}, nil
}

var (
	// ErrDimension reports mismatched or empty input sequences.
	ErrDimension = errors.New("source, destination and labeling must share a length n ≥ 1")
	// ErrNotFinite reports NaN or Inf in the rotation or the points.
	ErrNotFinite = errors.New("rotation and correspondences must be finite")
)

// Certify checks whether the candidate rotation attains the global optimum
// of the robust registration objective over the given correspondences and
// inlier labeling. The rotation is expected orthonormal; it is normalized
// to a unit quaternion but not re-orthonormalized. Non-convergence within
// the iteration budget is not an error: the result carries Certified=false
// and the last gap, since the candidate may still be near-optimal.
func (c *Certifier) Certify(rot *mat.Dense, src, dst []r3.Vec, inliers []bool) (CertificationResult, error) {

	n := len(src)
	if n < 1 || len(dst) != n || len(inliers) != n {
		return CertificationResult{}, ErrDimension
	}
	if r, cc := rot.Dims(); r != 3 || cc != 3 {
		return CertificationResult{}, fmt.Errorf("rotation must be 3×3: %w", ErrDimension)
	}
	if !finiteMat(rot) || !finiteVecs(src) || !finiteVecs(dst) {
		return CertificationResult{}, ErrNotFinite
	}

	// prepend the global block indicator to the labeling
	theta := make([]float64, n+1)
	theta[0] = 1
	for i, in := range inliers {
		if in {
			theta[i+1] = 1
		} else {
			theta[i+1] = -1
		}
	}

	npm := 4 + 4*n
	inv := linearProjection(theta)
	cost := qCost(src, dst, c.cbar2)

	// the rank-one lift x = θ ⊗ q would decompose the relaxation's primal
	// solution if the candidate were globally optimal
	q := quatmat.FromRotation(rot)
	x := mat.NewVecDense(npm, nil)
	for i := 0; i <= n; i++ {
		x.SetVec(4*i+0, theta[i]*q.Imag)
		x.SetVec(4*i+1, theta[i]*q.Jmag)
		x.SetVec(4*i+2, theta[i]*q.Kmag)
		x.SetVec(4*i+3, theta[i]*q.Real)
	}

	// rotate the cost and the lift into the candidate frame
	d := quatmat.BlockDiagOmega(npm, q)
	var qbar, tmp mat.Dense
	tmp.Mul(cost, d)
	qbar.Mul(d.T(), &tmp)
	var xbar, qx mat.VecDense
	xbar.MulVec(d.T(), x)
	qx.MulVec(&qbar, &xbar)

	// primal cost, equal to the dual target under strong duality
	mu := mat.Dot(&xbar, &qx)

	// anchor of the iterate manifold: the shifted cost Q̄ − μJ̄ with J̄ the
	// leading 4×4 identity. The iterate must stay in the affine set
	// {Q̄ − μJ̄ − Λ : Λ dual-feasible}; a certificate exists only when that
	// set meets the PSD cone, which ties the iteration to the candidate.
	anchor := mat.NewDense(npm, npm, nil)
	anchor.Copy(&qbar)
	for i := 0; i < 4; i++ {
		anchor.Set(i, i, anchor.At(i, i)-mu)
	}

	// the dual projection is linear, so projecting onto the anchored set
	// is the free projection plus this constant remainder
	offset := mat.NewDense(npm, npm, nil)
	offset.Sub(anchor, dualProjection(anchor, theta, inv))

	// starting iterate M₀ = Q̄ − μJ̄ − Λ̄₀
	guess := lambdaGuess(rot, theta, src, dst, c.cbar2)
	m := mat.NewDense(npm, npm, nil)
	m.Sub(anchor, guess)

	traj := make([]float64, 0, c.stop.MaxIterations)
	gap := math.Inf(1)
	certified := false
	iters := 0
	for k := 0; k < c.stop.MaxIterations; k++ {
		iters = k + 1

		// split step: project onto the PSD cone, reflect, project the
		// reflection onto the anchored dual manifold
		psd := nearestPSD(m)
		refl := mat.NewDense(npm, npm, nil)
		refl.Scale(2, psd)
		refl.Sub(refl, m)
		affine := dualProjection(refl, theta, inv)
		affine.Add(affine, offset)

		gap = subOptimalityGap(affine, mu, n)
		traj = append(traj, gap)
		if lv := c.logger.Level; lv >= LogIter && k%int(lv) == 0 {
			c.logger.log("iter %4d  gap %.6e\n", k, gap)
		}
		if gap < c.stop.GapTolerance {
			certified = true
			break
		}

		// relaxed update Mₖ₊₁ = Mₖ + γ(Π_affine(2Π_psd(Mₖ)−Mₖ) − Π_psd(Mₖ))
		var step mat.Dense
		step.Sub(affine, psd)
		step.Scale(c.relax, &step)
		m.Add(m, &step)
	}

	if c.logger.enable(LogLast) {
		c.logger.log("certified=%v  iters=%d  cost=%.6e  gap=%.6e\n", certified, iters, mu, gap)
	}

	return CertificationResult{
		Certified:  certified,
		PrimalCost: mu,
		Gap:        gap,
		Trajectory: traj,
		NumIter:    iters,
	}, nil
}

// subOptimalityGap measures how far the affine-feasible iterate sits from
// the PSD cone, relative to the primal cost:
//
//	gap = (N+1)·max(0, −λ_min(M)) / max(1, |μ|)
//
// The max(1,·) guard keeps the measure finite when the candidate cost is
// (near) zero, as for noise-free all-inlier instances.
func subOptimalityGap(m *mat.Dense, mu float64, n int) float64 {
	lmin := minEigenvalue(m)
	if lmin >= 0 {
		return 0
	}
	return float64(n+1) * -lmin / math.Max(1, math.Abs(mu))
}

func finiteMat(m *mat.Dense) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

func finiteVecs(vs []r3.Vec) bool {
	for _, v := range vs {
		for _, f := range [3]float64{v.X, v.Y, v.Z} {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
		}
	}
	return true
}
