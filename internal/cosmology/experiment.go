package cosmology

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/fit"
)

// Outcome is what one bootstrap repetition keeps. Curves are sampled on the
// experiment's redshift grid.
type Outcome struct {
	Params  []float64
	Loss    float64
	History []float64

	E, F, W  []float64
	Mu       []float64
	Lookback []float64
}

// Experiment bundles the shared, read-only inputs of every repetition.
type Experiment struct {
	Model       Model
	Obs         Observations
	Trainer     *fit.Trainer
	WeightDecay float64
	NoiseScale  float64
	// ZGrid must start at 0.
	ZGrid []float64
}

// RedshiftGrid returns n redshifts from 0 to the deepest supernova.
func RedshiftGrid(obs Observations, n int) []float64 {
	return floats.Span(make([]float64, n), 0, obs.Z[len(obs.Z)-1])
}

// Fit trains a fresh model on obs.
func (e *Experiment) Fit(ctx context.Context, obs Observations, rng *rand.Rand) (fit.Result, error) {
	x0 := make([]float64, e.Model.NumParams())
	e.Model.Init(x0, obs, rng)
	return e.Trainer.Train(ctx, e.Model.Loss(obs, e.WeightDecay), x0)
}

// Repetition perturbs the moduli, fits them and reconstructs the expansion
// history.
func (e *Experiment) Repetition(ctx context.Context, rep int, rng *rand.Rand) (Outcome, bool, error) {
	obs := e.Obs.Perturbed(e.NoiseScale, rng)
	res, err := e.Fit(ctx, obs, rng)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("repetition %d: %w", rep, err)
	}
	if !res.Converged {
		return Outcome{}, false, nil
	}
	out, err := e.Reconstruct(res.Params)
	if err != nil {
		return Outcome{}, false, nil
	}
	out.Loss = res.Loss
	out.History = res.History
	return out, true, nil
}

// Reconstruct evaluates every curve of params on the redshift grid.
func (e *Experiment) Reconstruct(params []float64) (Outcome, error) {
	sol, err := e.Model.Solve(params, e.ZGrid)
	if err != nil {
		return Outcome{}, err
	}
	hub := e.Model.Hubble(params)
	dens := e.Model.Density(params)
	n := len(e.ZGrid)
	out := Outcome{
		Params:   params,
		E:        make([]float64, n),
		F:        make([]float64, n),
		W:        make([]float64, n),
		Mu:       make([]float64, n),
		Lookback: sol.Component(1),
	}
	for i, z := range e.ZGrid {
		out.E[i] = hub(z)
		out.F[i] = dens(z)
		out.W[i] = e.Model.EquationOfState(params, z)
		out.Mu[i] = Modulus(z, sol.States[i][0], params[IdxM])
	}
	return out, nil
}
