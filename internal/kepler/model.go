// Package kepler fits a bound orbit observed in the plane of the sky. The
// radial motion follows Newtonian gravity plus a learned force g_θ(r):
//
//	r̈ = L²/r³ − GM/r² + g_θ(r),   φ̇ = L/r²
//
// and the orbital plane is rotated into the sky by the three orientation
// angles. Synthetic data carry a relativistic-like r⁻⁴ term that makes the
// periapsis precess; the network has to absorb it.
package kepler

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/integrate"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/fit"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/geometry"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/nn"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/ode"
)

// GM is the gravitational parameter in the natural units used throughout.
const GM = 1.0

// Parameter layout.
const (
	IdxR0 = iota
	IdxRDot0
	IdxPhi0
	IdxL
	IdxNode
	IdxIncl
	IdxPeri
	NumPhysical
)

// ParamNames labels the physical block.
var ParamNames = []string{"r0", "rdot0", "phi0", "L", "node", "incl", "peri"}

const quadraturePoints = 101

// minRadius keeps trial orbits away from the singularity at r = 0.
const minRadius = 1e-3

// Physical is the non-network part of a parameter vector.
type Physical struct {
	R0, RDot0, Phi0 float64
	L               float64
	Angles          geometry.Angles
}

// Put writes p into the physical block of params.
func (p Physical) Put(params []float64) {
	params[IdxR0] = p.R0
	params[IdxRDot0] = p.RDot0
	params[IdxPhi0] = p.Phi0
	params[IdxL] = p.L
	params[IdxNode] = p.Angles.Node
	params[IdxIncl] = p.Angles.Inclination
	params[IdxPeri] = p.Angles.Periapsis
}

// PhysicalOf reads the physical block of params.
func PhysicalOf(params []float64) Physical {
	return Physical{
		R0:    params[IdxR0],
		RDot0: params[IdxRDot0],
		Phi0:  params[IdxPhi0],
		L:     params[IdxL],
		Angles: geometry.Angles{
			Node:        params[IdxNode],
			Inclination: params[IdxIncl],
			Periapsis:   params[IdxPeri],
		},
	}
}

// Truth generates synthetic orbits.
type Truth struct {
	Physical
	// C is the speed of light in model units. It sets the strength of the
	// precession term; zero switches it off.
	C float64
}

// DefaultTruth returns an eccentric inclined orbit starting at periapsis
// with semi-major axis 1.2 and eccentricity 0.5.
func DefaultTruth() Truth {
	a, e := 1.2, 0.5
	return Truth{
		Physical: Physical{
			R0:     a * (1 - e),
			L:      math.Sqrt(GM * a * (1 - e*e)),
			Angles: geometry.Angles{Node: 0.6, Inclination: 0.9, Periapsis: 1.1},
		},
		C: 8,
	}
}

// Correction returns the true extra radial force −3·GM·L²/(c²r⁴).
func (tr Truth) Correction(r float64) float64 {
	if tr.C == 0 {
		return 0
	}
	return -3 * GM * tr.L * tr.L / (tr.C * tr.C * r * r * r * r)
}

// Potential returns −GM/r + ∫_r^rmax of the true correction.
func (tr Truth) Potential(r, rmax float64) float64 {
	v := -GM / r
	if tr.C == 0 {
		return v
	}
	k := GM * tr.L * tr.L / (tr.C * tr.C)
	return v + k*(1/(rmax*rmax*rmax)-1/(r*r*r))
}

// Simulate integrates the true orbit adaptively and returns the polar state
// at times; times[0] is the epoch of the initial state.
func (tr Truth) Simulate(times []float64) (ode.Trajectory, error) {
	f := radial(tr.L, tr.Correction)
	return ode.DormandPrince(f, []float64{tr.R0, tr.RDot0, tr.Phi0}, times, ode.Options{AbsTol: 1e-10, RelTol: 1e-10})
}

func radial(L float64, g func(r float64) float64) ode.Func {
	return func(_ float64, y, dy []float64) {
		r := math.Max(y[0], minRadius)
		dy[0] = y[1]
		dy[1] = L*L/(r*r*r) - GM/(r*r) + g(r)
		dy[2] = L / (r * r)
	}
}

// Model is the neural-corrected orbit.
type Model struct {
	Net      nn.MLP
	Substeps int
}

// NewModel returns a model whose radial correction has the given hidden widths.
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

// Correction returns g_θ(r).
func (m Model) Correction(params []float64, r float64) float64 {
	return m.Net.Scalar(m.weights(params), r)
}

// Func returns the right-hand side for params.
func (m Model) Func(params []float64) ode.Func {
	w := m.weights(params)
	return radial(params[IdxL], func(r float64) float64 { return m.Net.Scalar(w, r) })
}

// Solve integrates the orbit with fixed steps and returns the polar state at
// times. Fixed steps keep the loss smooth in the parameters, which the
// finite-difference gradients rely on.
func (m Model) Solve(params, times []float64) (ode.Trajectory, error) {
	y0 := []float64{params[IdxR0], params[IdxRDot0], params[IdxPhi0]}
	return ode.RK4(m.Func(params), y0, times, m.Substeps)
}

// Sky projects a polar trajectory with the orientation stored in params.
func Sky(params []float64, sol ode.Trajectory) (x, y []float64) {
	st := geometry.NewSkyTransform(PhysicalOf(params).Angles)
	x = make([]float64, len(sol.States))
	y = make([]float64, len(sol.States))
	for i, s := range sol.States {
		x[i], y[i] = st.Apply(s[0], s[2])
	}
	return x, y
}

// ChiSquare returns the reduced χ² of params against obs.
func (m Model) ChiSquare(params []float64, obs Observations) float64 {
	sol, err := m.Solve(params, obs.solveTimes())
	if err != nil {
		return math.Inf(1)
	}
	x, y := Sky(params, sol)
	n := len(obs.T)
	rx := make([]float64, n)
	ry := make([]float64, n)
	for i := range obs.T {
		rx[i] = x[i+1] - obs.X[i]
		ry[i] = y[i+1] - obs.Y[i]
	}
	return (fit.ChiSquare(rx, obs.SigmaX) + fit.ChiSquare(ry, obs.SigmaY)) / float64(2*n)
}

// Loss returns the reduced χ² plus weight decay on the network block. The
// objective is safe for concurrent use.
func (m Model) Loss(obs Observations, weightDecay float64) fit.Objective {
	return func(params []float64) float64 {
		if params[IdxR0] <= minRadius || params[IdxL] <= 0 {
			return math.Inf(1)
		}
		return m.ChiSquare(params, obs) + weightDecay*fit.L2(m.weights(params))
	}
}

// Init writes guess, jittered by a relative jitter, and a fresh network into
// params.
func (m Model) Init(params []float64, guess Physical, jitter float64, rng *rand.Rand) {
	guess.Put(params)
	for i := 0; i < NumPhysical; i++ {
		switch i {
		case IdxR0, IdxL:
			params[i] *= 1 + jitter*rng.NormFloat64()
		default:
			params[i] += jitter * rng.NormFloat64()
		}
	}
	m.Net.Init(m.weights(params), rng)
}

// Potential returns Φ(r) = −GM/r + ∫_r^rmax g_θ(s) ds on grid, with rmax the
// last grid point.
func (m Model) Potential(params, grid []float64) []float64 {
	out := make([]float64, len(grid))
	if len(grid) == 0 {
		return out
	}
	rmax := grid[len(grid)-1]
	s := make([]float64, quadraturePoints)
	g := make([]float64, quadraturePoints)
	for i, r := range grid {
		integral := 0.0
		if r < rmax {
			for j := range s {
				s[j] = r + (rmax-r)*float64(j)/float64(quadraturePoints-1)
				g[j] = m.Correction(params, s[j])
			}
			integral = integrate.Trapezoidal(s, g)
		}
		out[i] = -GM/r + integral
	}
	return out
}
