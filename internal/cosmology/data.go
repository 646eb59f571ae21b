package cosmology

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/bootstrap"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/dataset"
)

// Columns of a supernova CSV.
var Columns = []string{"z", "mu", "sigma_mu"}

// lowRedshift bounds the supernovae used to guess the offset M, where
// χ ≈ z holds to a few percent.
const lowRedshift = 0.1

// Observations are distance moduli sorted by redshift.
type Observations struct {
	Z, Mu, Sigma []float64
}

func (o Observations) solveTimes() []float64 {
	zs := make([]float64, 0, len(o.Z)+1)
	zs = append(zs, 0)
	return append(zs, o.Z...)
}

// offsetGuess averages μ − 5·log10((1+z)·z) over the low-redshift sample,
// or over everything when none is that close.
func (o Observations) offsetGuess() float64 {
	sum, n := 0.0, 0
	for pass := 0; pass < 2 && n == 0; pass++ {
		for i, z := range o.Z {
			if pass == 0 && z > lowRedshift {
				continue
			}
			sum += o.Mu[i] - 5*math.Log10((1+z)*z)
			n++
		}
	}
	return sum / float64(n)
}

// Synthesize places n supernovae evenly in (0, zmax] and draws their
// moduli from the truth with error sigma.
func Synthesize(tr Truth, n int, zmax, sigma float64, rng *rand.Rand) (Observations, error) {
	if n < 1 || zmax <= 0 {
		return Observations{}, fmt.Errorf("synthesize: need n ≥ 1 and zmax > 0, got %d and %g", n, zmax)
	}
	zs := make([]float64, n+1)
	for i := range zs {
		zs[i] = zmax * float64(i) / float64(n)
	}
	sol, err := tr.Solve(zs)
	if err != nil {
		return Observations{}, fmt.Errorf("integrate truth: %w", err)
	}
	mu := make([]float64, n)
	sig := make([]float64, n)
	for i := range mu {
		mu[i] = Modulus(zs[i+1], sol.States[i+1][0], tr.M)
		sig[i] = sigma
	}
	return Observations{
		Z:     zs[1:],
		Mu:    bootstrap.Perturb(mu, sig, 1, rng),
		Sigma: sig,
	}, nil
}

// Load reads a supernova CSV, sorting rows by redshift. Every redshift must
// be positive.
func Load(path string) (Observations, error) {
	tab, err := dataset.ReadCSV(path, Columns)
	if err != nil {
		return Observations{}, err
	}
	z, mu, sig := tab.Column("z"), tab.Column("mu"), tab.Column("sigma_mu")
	idx := make([]int, tab.Rows)
	for i := range idx {
		if z[i] <= 0 {
			return Observations{}, fmt.Errorf("%s: row %d: redshift must be positive, got %g", path, i+2, z[i])
		}
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return z[idx[a]] < z[idx[b]] })

	obs := Observations{
		Z:     make([]float64, len(idx)),
		Mu:    make([]float64, len(idx)),
		Sigma: make([]float64, len(idx)),
	}
	for k, i := range idx {
		obs.Z[k], obs.Mu[k], obs.Sigma[k] = z[i], mu[i], sig[i]
	}
	return obs, nil
}

// Save writes observations in the format Load reads.
func (o Observations) Save(path string) error {
	return dataset.WriteCSV(path, Columns, [][]float64{o.Z, o.Mu, o.Sigma})
}

// Perturbed returns a parametric bootstrap replica of o.
func (o Observations) Perturbed(scale float64, rng *rand.Rand) Observations {
	return Observations{
		Z:     o.Z,
		Mu:    bootstrap.Perturb(o.Mu, o.Sigma, scale, rng),
		Sigma: o.Sigma,
	}
}
