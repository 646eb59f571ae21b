// Package cosmology fits the expansion history of a flat universe to
// supernova distance moduli. Matter is known; the dark-energy density is
// learned:
//
//	E²(z) = Ωm(1+z)³ + (1−Ωm)·f_θ(z),   f_θ(z) = exp(g_θ(z) − g_θ(0))
//
// Comoving distance χ and lookback time t (in units of c/H0 and 1/H0) are
// integrated in redshift:
//
//	dχ/dz = 1/E,   dt/dz = 1/((1+z)E)
package cosmology

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/diff/fd"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/fit"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/nn"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/ode"
)

// Parameter layout. Ωm is stored through a logistic map so every real value
// is a valid matter density.
const (
	IdxOmegaRaw = iota
	IdxM
	NumPhysical
)

// ParamNames labels the physical block as reported, with Ωm already mapped.
var ParamNames = []string{"omega_m", "M"}

// OmegaM maps the stored parameter into (0, 1).
func OmegaM(raw float64) float64 {
	return 1 / (1 + math.Exp(-raw))
}

// OmegaRaw is the inverse of OmegaM.
func OmegaRaw(omega float64) float64 {
	return math.Log(omega / (1 - omega))
}

// Physical returns the reported physical block of params.
func Physical(params []float64) []float64 {
	return []float64{OmegaM(params[IdxOmegaRaw]), params[IdxM]}
}

// Truth is a CPL dark-energy cosmology, w(z) = w0 + wa·z/(1+z).
type Truth struct {
	OmegaM float64
	W0, WA float64
	M      float64
}

// DefaultTruth returns a mildly evolving dark energy close to ΛCDM. M
// corresponds to H0 ≈ 70 km/s/Mpc.
func DefaultTruth() Truth {
	return Truth{OmegaM: 0.3, W0: -0.9, WA: 0.2, M: 43.16}
}

// F returns the dark-energy density relative to today.
func (tr Truth) F(z float64) float64 {
	return math.Pow(1+z, 3*(1+tr.W0+tr.WA)) * math.Exp(-3*tr.WA*z/(1+z))
}

// E returns H(z)/H0.
func (tr Truth) E(z float64) float64 {
	a := 1 + z
	return math.Sqrt(tr.OmegaM*a*a*a + (1-tr.OmegaM)*tr.F(z))
}

// W returns the equation of state.
func (tr Truth) W(z float64) float64 {
	return tr.W0 + tr.WA*z/(1+z)
}

// Solve integrates χ and t adaptively at the redshifts zs, which start at 0.
func (tr Truth) Solve(zs []float64) (ode.Trajectory, error) {
	return ode.DormandPrince(distances(tr.E), []float64{0, 0}, zs, ode.Options{AbsTol: 1e-12, RelTol: 1e-10})
}

func distances(e func(z float64) float64) ode.Func {
	return func(z float64, _, dy []float64) {
		ez := e(z)
		dy[0] = 1 / ez
		dy[1] = 1 / ((1 + z) * ez)
	}
}

// Modulus returns μ = 5·log10((1+z)·χ) + M. It is NaN where χ is not
// positive, in particular at z = 0.
func Modulus(z, chi, m float64) float64 {
	dl := (1 + z) * chi
	if !(dl > 0) {
		return math.NaN()
	}
	return 5*math.Log10(dl) + m
}

// Model is the neural dark-energy cosmology.
type Model struct {
	Net      nn.MLP
	Substeps int
}

// NewModel returns a model whose log-density network has the given hidden widths.
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

// Density returns f_θ as a function of z. f_θ(0) is exactly 1.
func (m Model) Density(params []float64) func(z float64) float64 {
	w := m.weights(params)
	g0 := m.Net.Scalar(w, 0)
	return func(z float64) float64 {
		return math.Exp(m.Net.Scalar(w, z) - g0)
	}
}

// Hubble returns E(z) for params. E is NaN where E² is negative.
func (m Model) Hubble(params []float64) func(z float64) float64 {
	om := OmegaM(params[IdxOmegaRaw])
	f := m.Density(params)
	return func(z float64) float64 {
		a := 1 + z
		return math.Sqrt(om*a*a*a + (1-om)*f(z))
	}
}

// EquationOfState returns w(z) = −1 + (1+z)·f'(z)/(3f(z)) = −1 + (1+z)·g'(z)/3.
func (m Model) EquationOfState(params []float64, z float64) float64 {
	w := m.weights(params)
	g := func(z float64) float64 { return m.Net.Scalar(w, z) }
	dg := fd.Derivative(g, z, &fd.Settings{Formula: fd.Central, Step: 1e-5})
	return -1 + (1+z)*dg/3
}

// Solve integrates χ and t with fixed steps at the redshifts zs, which start
// at 0.
func (m Model) Solve(params, zs []float64) (ode.Trajectory, error) {
	return ode.RK4(distances(m.Hubble(params)), []float64{0, 0}, zs, m.Substeps)
}

// Loss returns the reduced χ² of the distance moduli plus weight decay. The
// objective is safe for concurrent use.
func (m Model) Loss(obs Observations, weightDecay float64) fit.Objective {
	zs := obs.solveTimes()
	return func(params []float64) float64 {
		sol, err := m.Solve(params, zs)
		if err != nil {
			return math.Inf(1)
		}
		resid := make([]float64, len(obs.Z))
		for i, z := range obs.Z {
			resid[i] = Modulus(z, sol.States[i+1][0], params[IdxM]) - obs.Mu[i]
		}
		chi2 := fit.ChiSquare(resid, obs.Sigma) / float64(len(obs.Z))
		return chi2 + weightDecay*fit.L2(m.weights(params))
	}
}

// Init writes a starting point into params: Ωm near 0.3, M from the
// low-redshift Hubble law and a fresh network.
func (m Model) Init(params []float64, obs Observations, rng *rand.Rand) {
	params[IdxOmegaRaw] = OmegaRaw(0.3) + 0.3*rng.NormFloat64()
	params[IdxM] = obs.offsetGuess() + 0.05*rng.NormFloat64()
	m.Net.Init(m.weights(params), rng)
}
