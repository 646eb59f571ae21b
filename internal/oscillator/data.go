package oscillator

import (
	"fmt"
	"math/rand/v2"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/bootstrap"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/dataset"
)

// Columns of an oscillator CSV.
var Columns = []string{"t", "x", "sigma"}

// Observations are noisy position samples. T0 is the epoch of the initial
// state being fitted and must not be after T[0].
type Observations struct {
	T0    float64
	T, X  []float64
	Sigma []float64
}

func (o Observations) solveTimes() []float64 {
	times := make([]float64, 0, len(o.T)+1)
	times = append(times, o.T0)
	return append(times, o.T...)
}

// Len returns the number of samples.
func (o Observations) Len() int {
	return len(o.T)
}

// Synthesize samples the true oscillator at n evenly spaced times on
// [0, span] and adds Gaussian noise of standard deviation sigma.
func Synthesize(tr Truth, n int, span, sigma float64, substeps int, rng *rand.Rand) (Observations, error) {
	if n < 2 {
		return Observations{}, fmt.Errorf("synthesize: need at least 2 samples, got %d", n)
	}
	times := make([]float64, n)
	for i := range times {
		times[i] = span * float64(i) / float64(n-1)
	}
	x, err := tr.Simulate(times, substeps)
	if err != nil {
		return Observations{}, fmt.Errorf("simulate truth: %w", err)
	}
	sig := make([]float64, n)
	for i := range sig {
		sig[i] = sigma
	}
	return Observations{
		T0:    0,
		T:     times,
		X:     bootstrap.Perturb(x, sig, 1, rng),
		Sigma: sig,
	}, nil
}

// Load reads observations from a CSV with columns t, x, sigma. Rows must be
// sorted by time; T0 is the first time.
func Load(path string) (Observations, error) {
	tab, err := dataset.ReadCSV(path, Columns)
	if err != nil {
		return Observations{}, err
	}
	obs := Observations{T: tab.Column("t"), X: tab.Column("x"), Sigma: tab.Column("sigma")}
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
	return dataset.WriteCSV(path, Columns, [][]float64{o.T, o.X, o.Sigma})
}

// Perturbed returns a parametric bootstrap replica: every sample moved by
// Gaussian noise of scale·sigma.
func (o Observations) Perturbed(scale float64, rng *rand.Rand) Observations {
	return Observations{
		T0:    o.T0,
		T:     o.T,
		X:     bootstrap.Perturb(o.X, o.Sigma, scale, rng),
		Sigma: o.Sigma,
	}
}
