package kepler

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/bootstrap"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/dataset"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/geometry"
)

// Columns of an astrometry CSV.
var Columns = []string{"t", "x", "y", "sigma_x", "sigma_y"}

// Observations are sky-plane positions with per-axis errors. T0 is the
// epoch of the fitted initial state.
type Observations struct {
	T0             float64
	T, X, Y        []float64
	SigmaX, SigmaY []float64
}

func (o Observations) solveTimes() []float64 {
	times := make([]float64, 0, len(o.T)+1)
	times = append(times, o.T0)
	return append(times, o.T...)
}

// Synthesize samples n epochs of the true orbit, evenly spread over span,
// and adds Gaussian noise of standard deviation sigma to both axes.
func Synthesize(tr Truth, n int, span, sigma float64, rng *rand.Rand) (Observations, error) {
	if n < 2 {
		return Observations{}, fmt.Errorf("synthesize: need at least 2 epochs, got %d", n)
	}
	times := make([]float64, n)
	for i := range times {
		times[i] = span * float64(i) / float64(n-1)
	}
	sol, err := tr.Simulate(times)
	if err != nil {
		return Observations{}, fmt.Errorf("simulate truth: %w", err)
	}
	st := geometry.NewSkyTransform(tr.Angles)
	x := make([]float64, n)
	y := make([]float64, n)
	sig := make([]float64, n)
	for i, s := range sol.States {
		x[i], y[i] = st.Apply(s[0], s[2])
		sig[i] = sigma
	}
	return Observations{
		T:      times,
		X:      bootstrap.Perturb(x, sig, 1, rng),
		Y:      bootstrap.Perturb(y, sig, 1, rng),
		SigmaX: sig,
		SigmaY: append([]float64(nil), sig...),
	}, nil
}

// Load reads an astrometry CSV. Rows must be sorted by time; T0 is the first
// time.
func Load(path string) (Observations, error) {
	tab, err := dataset.ReadCSV(path, Columns)
	if err != nil {
		return Observations{}, err
	}
	obs := Observations{
		T:      tab.Column("t"),
		X:      tab.Column("x"),
		Y:      tab.Column("y"),
		SigmaX: tab.Column("sigma_x"),
		SigmaY: tab.Column("sigma_y"),
	}
	for i := 1; i < len(obs.T); i++ {
		if obs.T[i] < obs.T[i-1] {
			return Observations{}, fmt.Errorf("%s: row %d: times must be sorted", path, i+2)
		}
	}
	obs.T0 = obs.T[0]
	return obs, nil
}

// Save writes observations in the format Load reads.
func (o Observations) Save(path string) error {
	return dataset.WriteCSV(path, Columns, [][]float64{o.T, o.X, o.Y, o.SigmaX, o.SigmaY})
}

// Perturbed returns a parametric bootstrap replica of o.
func (o Observations) Perturbed(scale float64, rng *rand.Rand) Observations {
	p := o
	p.X = bootstrap.Perturb(o.X, o.SigmaX, scale, rng)
	p.Y = bootstrap.Perturb(o.Y, o.SigmaY, scale, rng)
	return p
}

// Guess derives a crude starting point from the data: the first observed
// separation as radius, a circular-orbit angular momentum and a moderately
// inclined plane.
func Guess(o Observations) Physical {
	r0 := math.Hypot(o.X[0], o.Y[0])
	return Physical{
		R0:     r0,
		Phi0:   0,
		L:      math.Sqrt(GM * r0),
		Angles: geometry.Angles{Node: math.Atan2(o.Y[0], o.X[0]), Inclination: 0.5},
	}
}
