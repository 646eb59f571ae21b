// Package oscillator fits a damped nonlinear oscillator whose restoring force
// is only partly known:
//
//	ẍ = −k·x − γ·ẋ + g_θ(x)
//
// g_θ is a small network standing in for the unknown part of the force. The
// data are generated from a damped Duffing oscillator, whose cubic stiffness
// the network has to discover.
package oscillator

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/integrate"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/fit"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/nn"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/ode"
)

// Parameter layout: physical block first, network weights after.
const (
	IdxX0 = iota
	IdxV0
	IdxK
	IdxGamma
	NumPhysical
)

// ParamNames labels the physical block.
var ParamNames = []string{"x0", "v0", "k", "gamma"}

// quadraturePoints is the number of samples used to integrate the learned
// force into a potential.
const quadraturePoints = 101

// Truth is the damped Duffing oscillator used to generate synthetic data.
type Truth struct {
	Omega2 float64 // linear stiffness ω²
	Gamma  float64 // damping
	Beta   float64 // cubic stiffness
	X0, V0 float64
}

// DefaultTruth returns the reference oscillator.
func DefaultTruth() Truth {
	return Truth{Omega2: 1.0, Gamma: 0.1, Beta: 0.8, X0: 1.5, V0: 0}
}

// Accel returns ẍ at (x, v).
func (tr Truth) Accel(x, v float64) float64 {
	return -tr.Omega2*x - tr.Gamma*v - tr.Beta*x*x*x
}

// Correction returns the part of the true force a model with k = ω² and
// the same damping is missing.
func (tr Truth) Correction(x float64) float64 {
	return -tr.Beta * x * x * x
}

// Potential returns the conservative potential V(x) with V(0) = 0.
func (tr Truth) Potential(x float64) float64 {
	return 0.5*tr.Omega2*x*x + 0.25*tr.Beta*x*x*x*x
}

// Simulate integrates the true oscillator and returns x at times.
func (tr Truth) Simulate(times []float64, substeps int) ([]float64, error) {
	f := func(_ float64, y, dy []float64) {
		dy[0] = y[1]
		dy[1] = tr.Accel(y[0], y[1])
	}
	sol, err := ode.RK4(f, []float64{tr.X0, tr.V0}, times, substeps)
	if err != nil {
		return nil, err
	}
	return sol.Component(0), nil
}

// Model is the neural-corrected oscillator.
type Model struct {
	Net      nn.MLP
	Substeps int
}

// NewModel returns a model whose correction network has the given hidden widths.
func NewModel(hidden []int, substeps int) Model {
	return Model{Net: nn.New(1, hidden, 1), Substeps: substeps}
}

// NumParams returns the length of the full parameter vector.
func (m Model) NumParams() int {
	return NumPhysical + m.Net.NumParams()
}

func (m Model) weights(params []float64) []float64 {
	return params[NumPhysical:]
}

// Correction returns the learned force g_θ(x).
func (m Model) Correction(params []float64, x float64) float64 {
	return m.Net.Scalar(m.weights(params), x)
}

// Func returns the right-hand side for params.
func (m Model) Func(params []float64) ode.Func {
	k, gamma := params[IdxK], params[IdxGamma]
	w := m.weights(params)
	return func(_ float64, y, dy []float64) {
		dy[0] = y[1]
		dy[1] = -k*y[0] - gamma*y[1] + m.Net.Scalar(w, y[0])
	}
}

// Solve returns x(t) at times; times[0] is the time of the initial state.
func (m Model) Solve(params, times []float64) ([]float64, error) {
	sol, err := ode.RK4(m.Func(params), []float64{params[IdxX0], params[IdxV0]}, times, m.Substeps)
	if err != nil {
		return nil, err
	}
	return sol.Component(0), nil
}

// Loss returns the reduced χ² of the model against obs plus weight decay on
// the network block. The objective is safe for concurrent use.
func (m Model) Loss(obs Observations, weightDecay float64) fit.Objective {
	times := obs.solveTimes()
	return func(params []float64) float64 {
		x, err := m.Solve(params, times)
		if err != nil {
			return math.Inf(1)
		}
		resid := make([]float64, len(obs.T))
		for i := range obs.T {
			resid[i] = x[i+1] - obs.X[i]
		}
		chi2 := fit.ChiSquare(resid, obs.Sigma) / float64(len(obs.T))
		return chi2 + weightDecay*fit.L2(m.weights(params))
	}
}

// Init writes a starting guess into params: initial conditions from the
// earliest observations, unit stiffness, light damping and a fresh network.
func (m Model) Init(params []float64, obs Observations, rng *rand.Rand) {
	params[IdxX0] = obs.X[0]
	params[IdxV0] = 0
	for i := 1; i < len(obs.T); i++ {
		if dt := obs.T[i] - obs.T[0]; dt > 0 {
			params[IdxV0] = (obs.X[i] - obs.X[0]) / dt
			break
		}
	}
	params[IdxK] = 1 + 0.1*rng.NormFloat64()
	params[IdxGamma] = 0.05
	m.Net.Init(m.weights(params), rng)
}

// Potential returns V(x) = ½·k·x² − ∫₀ˣ g_θ(s) ds on grid.
func (m Model) Potential(params, grid []float64) []float64 {
	out := make([]float64, len(grid))
	s := make([]float64, quadraturePoints)
	g := make([]float64, quadraturePoints)
	for i, x := range grid {
		lo, hi, sign := 0.0, x, 1.0
		if x < 0 {
			lo, hi, sign = x, 0, -1
		}
		integral := 0.0
		if hi > lo {
			for j := range s {
				s[j] = lo + (hi-lo)*float64(j)/float64(quadraturePoints-1)
				g[j] = m.Correction(params, s[j])
			}
			integral = sign * integrate.Trapezoidal(s, g)
		}
		out[i] = 0.5*params[IdxK]*x*x - integral
	}
	return out
}
