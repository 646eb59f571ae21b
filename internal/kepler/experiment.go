package kepler

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/fit"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/geometry"
)

// Outcome is what one bootstrap repetition keeps.
type Outcome struct {
	Params  []float64
	Loss    float64
	History []float64
	// X, Y and R are sampled on the experiment's time grid.
	X, Y, R []float64
	// Potential and Correction are sampled on the radial grid.
	Potential  []float64
	Correction []float64
}

// Experiment bundles the shared, read-only inputs of every repetition.
type Experiment struct {
	Model       Model
	Obs         Observations
	Guess       Physical
	Jitter      float64
	Trainer     *fit.Trainer
	WeightDecay float64
	NoiseScale  float64
	// TGrid must start at Obs.T0.
	TGrid []float64
	RGrid []float64
}

// TimeGrid returns n evenly spaced times from obs.T0 to the last epoch.
func TimeGrid(obs Observations, n int) []float64 {
	return floats.Span(make([]float64, n), obs.T0, obs.T[len(obs.T)-1])
}

// RadialGrid returns n radii from 0.8·rmin to 1.2·rmax, where the extremes
// are the sky-projected separations. Projection only shortens distances, so
// the upper end is a lower bound on the true apoapsis.
func RadialGrid(obs Observations, n int) []float64 {
	lo, hi := math.Inf(1), 0.0
	for i := range obs.X {
		d := math.Hypot(obs.X[i], obs.Y[i])
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	lo = math.Max(0.8*lo, 10*minRadius)
	return floats.Span(make([]float64, n), lo, 1.2*hi)
}

// Fit trains a fresh model on obs.
func (e *Experiment) Fit(ctx context.Context, obs Observations, rng *rand.Rand) (fit.Result, error) {
	x0 := make([]float64, e.Model.NumParams())
	e.Model.Init(x0, e.Guess, e.Jitter, rng)
	return e.Trainer.Train(ctx, e.Model.Loss(obs, e.WeightDecay), x0)
}

// Repetition perturbs the data, fits it and reconstructs the curves.
func (e *Experiment) Repetition(ctx context.Context, rep int, rng *rand.Rand) (Outcome, bool, error) {
	obs := e.Obs.Perturbed(e.NoiseScale, rng)
	res, err := e.Fit(ctx, obs, rng)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("repetition %d: %w", rep, err)
	}
	if !res.Converged {
		return Outcome{}, false, nil
	}
	sol, err := e.Model.Solve(res.Params, e.TGrid)
	if err != nil {
		return Outcome{}, false, nil
	}
	x, y := Sky(res.Params, sol)
	corr := make([]float64, len(e.RGrid))
	for i, r := range e.RGrid {
		corr[i] = e.Model.Correction(res.Params, r)
	}
	return Outcome{
		Params:     res.Params,
		Loss:       res.Loss,
		History:    res.History,
		X:          x,
		Y:          y,
		R:          sol.Component(0),
		Potential:  e.Model.Potential(res.Params, e.RGrid),
		Correction: corr,
	}, true, nil
}

// Landscape evaluates log10 of the reduced χ² with the node and inclination
// of params replaced by every pair from nodes × incls. Rows follow incls.
func (m Model) Landscape(ctx context.Context, obs Observations, params, nodes, incls []float64, workers int) ([][]float64, error) {
	out := make([][]float64, len(incls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for j, inc := range incls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := append([]float64(nil), params...)
			p[IdxIncl] = inc
			row := make([]float64, len(nodes))
			for i, node := range nodes {
				p[IdxNode] = node
				chi := math.Min(m.ChiSquare(p, obs), fit.Penalty)
				row[i] = math.Log10(math.Max(chi, 1e-12))
			}
			out[j] = row
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// angleParams are the physical entries that live on a circle.
var angleParams = []int{IdxPhi0, IdxNode, IdxPeri}

// Reported returns the physical block of every parameter vector with the
// angles wrapped to within π of their circular mean, so fits landing on
// either side of ±π summarize as one cluster.
func Reported(params [][]float64) [][]float64 {
	out := make([][]float64, len(params))
	for i, p := range params {
		out[i] = append([]float64(nil), p[:NumPhysical]...)
	}
	for _, k := range angleParams {
		var s, c float64
		for _, p := range out {
			s += math.Sin(p[k])
			c += math.Cos(p[k])
		}
		mean := math.Atan2(s, c)
		for _, p := range out {
			p[k] = mean + geometry.WrapAngle(p[k]-mean)
		}
	}
	return out
}
