package oscillator

import (
	"context"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/fit"
)

// Outcome is what one bootstrap repetition keeps.
type Outcome struct {
	Params  []float64
	Loss    float64
	History []float64
	// X is the fitted trajectory on the experiment's time grid.
	X []float64
	// Potential and Correction are sampled on the position grid.
	Potential  []float64
	Correction []float64
}

// Experiment bundles everything a repetition needs. It is read-only once
// built and shared by all workers.
type Experiment struct {
	Model       Model
	Obs         Observations
	Trainer     *fit.Trainer
	WeightDecay float64
	NoiseScale  float64
	// TGrid must start at Obs.T0.
	TGrid []float64
	XGrid []float64
}

// TimeGrid returns n evenly spaced times from obs.T0 to the last sample.
func TimeGrid(obs Observations, n int) []float64 {
	return floats.Span(make([]float64, n), obs.T0, obs.T[len(obs.T)-1])
}

// PositionGrid returns n positions spanning ±1.1 times the largest
// observed amplitude.
func PositionGrid(obs Observations, n int) []float64 {
	amp := max(floats.Max(obs.X), -floats.Min(obs.X))
	if amp == 0 {
		amp = 1
	}
	return floats.Span(make([]float64, n), -1.1*amp, 1.1*amp)
}

// Fit trains a fresh model on obs and returns the trainer result.
func (e *Experiment) Fit(ctx context.Context, obs Observations, rng *rand.Rand) (fit.Result, error) {
	x0 := make([]float64, e.Model.NumParams())
	e.Model.Init(x0, obs, rng)
	return e.Trainer.Train(ctx, e.Model.Loss(obs, e.WeightDecay), x0)
}

// Repetition perturbs the data, fits it and reconstructs the curves. A fit
// whose best loss misses the trainer threshold is rejected.
func (e *Experiment) Repetition(ctx context.Context, rep int, rng *rand.Rand) (Outcome, bool, error) {
	obs := e.Obs.Perturbed(e.NoiseScale, rng)
	res, err := e.Fit(ctx, obs, rng)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("repetition %d: %w", rep, err)
	}
	if !res.Converged {
		return Outcome{}, false, nil
	}

	x, err := e.Model.Solve(res.Params, e.TGrid)
	if err != nil {
		// Accepted parameters that blow up on the dense grid are unusable.
		return Outcome{}, false, nil
	}
	corr := make([]float64, len(e.XGrid))
	for i, xi := range e.XGrid {
		corr[i] = e.Model.Correction(res.Params, xi)
	}
	return Outcome{
		Params:     res.Params,
		Loss:       res.Loss,
		History:    res.History,
		X:          x,
		Potential:  e.Model.Potential(res.Params, e.XGrid),
		Correction: corr,
	}, true, nil
}
