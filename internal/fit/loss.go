package fit

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

// Objective maps a parameter vector to a scalar loss. Objectives passed to a
// concurrent Gradient must be safe for concurrent use.
type Objective func(params []float64) float64

// Penalty replaces non-finite losses so the optimizer can step back from
// parameters that make the ODE blow up.
const Penalty = 1e12

// Guard wraps obj so that NaN and infinite losses become Penalty.
func Guard(obj Objective) Objective {
	return func(params []float64) float64 {
		l := obj(params)
		if math.IsNaN(l) || math.IsInf(l, 0) || l > Penalty {
			return Penalty
		}
		return l
	}
}

// ChiSquare returns Σ (resid[i]/sigma[i])². A non-positive sigma counts the
// residual unweighted.
func ChiSquare(resid, sigma []float64) float64 {
	sum := 0.0
	for i, r := range resid {
		s := sigma[i]
		if s > 0 {
			r /= s
		}
		sum += r * r
	}
	return sum
}

// L2 returns the squared Euclidean norm of w, used as weight decay on the
// network block of a parameter vector.
func L2(w []float64) float64 {
	return floats.Dot(w, w)
}

// GradientSettings configures finite-difference gradients.
type GradientSettings struct {
	// Step is the finite-difference step. Zero selects 1e-6.
	Step float64
	// Concurrent evaluates the objective for different coordinates in parallel.
	Concurrent bool
}

// Gradient stores the central-difference gradient of obj at x in dst and
// returns it. dst may be nil.
func Gradient(dst []float64, obj Objective, x []float64, s GradientSettings) []float64 {
	step := s.Step
	if step == 0 {
		step = 1e-6
	}
	if dst == nil {
		dst = make([]float64, len(x))
	}
	return fd.Gradient(dst, obj, x, &fd.Settings{
		Formula:    fd.Central,
		Step:       step,
		Concurrent: s.Concurrent,
	})
}
