// Package ode integrates the small initial-value problems the fitting
// programs embed their learned terms in.
//
// Two integrators are provided. RK4 takes a fixed number of classic
// Runge–Kutta sub-steps between consecutive output times; its cost is fixed,
// which keeps finite-difference gradients smooth. DormandPrince is the adaptive
// 5(4) embedded pair for stiffer orbits (close pericentre passages).
//
// Output times may be increasing or decreasing; the first entry is the time of
// the initial state.
package ode

import (
	"errors"
	"fmt"
	"math"
)

// Func writes the time derivative of y at t into dy. Implementations must not
// retain y or dy.
type Func func(t float64, y, dy []float64)

var (
	// ErrUnstable indicates the state became NaN or infinite.
	ErrUnstable = errors.New("ode: solution unstable (non-finite state)")

	// ErrStepTooSmall indicates the adaptive step fell below the minimum.
	ErrStepTooSmall = errors.New("ode: adaptive step below minimum")

	// ErrMaxSteps indicates the adaptive integrator exhausted its step budget.
	ErrMaxSteps = errors.New("ode: step budget exhausted")

	// ErrBadTimes indicates an empty or non-monotone output time sequence.
	ErrBadTimes = errors.New("ode: output times must be non-empty and monotone")
)

// SolveError wraps a failure with the integration context it happened in.
type SolveError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SolveError) Error() string {
	return fmt.Sprintf("step %d (t=%.6g): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SolveError) Unwrap() error {
	return e.Wrapped
}

// finite reports whether every component of y is a finite number.
func finite(y []float64) bool {
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// checkTimes validates the output grid and returns its direction (+1 or -1).
func checkTimes(times []float64) (float64, error) {
	if len(times) == 0 {
		return 0, ErrBadTimes
	}
	dir := 1.0
	if len(times) > 1 && times[len(times)-1] < times[0] {
		dir = -1.0
	}
	for i := 1; i < len(times); i++ {
		if (times[i]-times[i-1])*dir < 0 {
			return 0, ErrBadTimes
		}
	}
	return dir, nil
}

// Trajectory is a solution sampled at the requested output times.
type Trajectory struct {
	Times  []float64
	States [][]float64
}

// Component returns component k of every sampled state.
func (tr Trajectory) Component(k int) []float64 {
	out := make([]float64, len(tr.States))
	for i, s := range tr.States {
		out[i] = s[k]
	}
	return out
}

func newTrajectory(times, y0 []float64) Trajectory {
	tr := Trajectory{
		Times:  append([]float64(nil), times...),
		States: make([][]float64, len(times)),
	}
	tr.States[0] = append([]float64(nil), y0...)
	return tr
}
