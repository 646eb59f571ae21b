package oscillator

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/bootstrap"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/fit"
)

func noiseless(t *testing.T, n int) Observations {
	t.Helper()
	tr := DefaultTruth()
	times := floats.Span(make([]float64, n), 0, 6)
	x, err := tr.Simulate(times, 4)
	require.NoError(t, err)
	sigma := make([]float64, n)
	for i := range sigma {
		sigma[i] = 0.1
	}
	return Observations{T0: 0, T: times, X: x, Sigma: sigma}
}

func TestModelReducesToLinearTruth(t *testing.T) {
	// Zero weights make g vanish, so with β = 0 both systems coincide.
	tr := Truth{Omega2: 1.3, Gamma: 0.2, X0: 1, V0: 0.5}
	times := floats.Span(make([]float64, 30), 0, 5)
	want, err := tr.Simulate(times, 8)
	require.NoError(t, err)

	m := NewModel([]int{3}, 8)
	params := make([]float64, m.NumParams())
	params[IdxX0], params[IdxV0], params[IdxK], params[IdxGamma] = tr.X0, tr.V0, tr.Omega2, tr.Gamma
	got, err := m.Solve(params, times)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("trajectory mismatch (-want +got):\n%s", diff)
	}
}

func TestPotentialZeroNetwork(t *testing.T) {
	m := NewModel([]int{4}, 4)
	params := make([]float64, m.NumParams())
	params[IdxK] = 2
	grid := []float64{-1, -0.5, 0, 0.5, 1}
	got := m.Potential(params, grid)
	want := []float64{1, 0.25, 0, 0.25, 1}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("potential mismatch (-want +got):\n%s", diff)
	}
}

func TestPotentialMatchesDirectQuadrature(t *testing.T) {
	m := NewModel([]int{2}, 4)
	params := make([]float64, m.NumParams())
	m.Net.Init(params[NumPhysical:], bootstrap.NewRand(3, 0))
	params[IdxK] = 1

	x := 0.8
	n := 2000
	integral := 0.0
	h := x / float64(n)
	for j := 0; j < n; j++ {
		a, b := float64(j)*h, float64(j+1)*h
		integral += 0.5 * h * (m.Correction(params, a) + m.Correction(params, b))
	}
	got := m.Potential(params, []float64{x})[0]
	assert.InDelta(t, 0.5*x*x-integral, got, 1e-5)
	assert.Equal(t, 0.0, m.Potential(params, []float64{0})[0])
}

func TestLossZeroAtTruthAndInfiniteOnBlowUp(t *testing.T) {
	tr := Truth{Omega2: 1, Gamma: 0.1, X0: 1}
	times := floats.Span(make([]float64, 20), 0, 4)
	x, err := tr.Simulate(times, 4)
	require.NoError(t, err)
	obs := Observations{T: times, X: x, Sigma: make([]float64, len(x))}

	m := NewModel([]int{2}, 4)
	params := make([]float64, m.NumParams())
	params[IdxX0], params[IdxK], params[IdxGamma] = 1, 1, 0.1
	loss := m.Loss(obs, 0)
	assert.InDelta(t, 0, loss(params), 1e-12)

	params[IdxK] = -1e6
	assert.True(t, math.IsInf(loss(params), 1))
}

func TestTrainingDecreasesLoss(t *testing.T) {
	obs := noiseless(t, 25)
	m := NewModel([]int{4}, 2)
	x0 := make([]float64, m.NumParams())
	m.Init(x0, obs, bootstrap.NewRand(7, 0))

	tr := fit.NewTrainer(fit.TrainerConfig{Iterations: 30, LearningRate: 0.005})
	res, err := tr.Train(context.Background(), m.Loss(obs, 0), x0)
	require.NoError(t, err)
	require.Len(t, res.History, 30)

	best := math.Inf(1)
	for _, l := range res.History {
		best = math.Min(best, l)
	}
	assert.Equal(t, best, res.Loss)
	assert.Less(t, res.Loss, res.History[0])
}

func TestRepetitionAcceptAndReject(t *testing.T) {
	obs := noiseless(t, 15)
	m := NewModel([]int{3}, 2)
	exp := &Experiment{
		Model:      m,
		Obs:        obs,
		Trainer:    fit.NewTrainer(fit.TrainerConfig{Iterations: 3, Threshold: 1e12}),
		NoiseScale: 1,
		TGrid:      TimeGrid(obs, 40),
		XGrid:      PositionGrid(obs, 21),
	}
	out, ok, err := exp.Repetition(context.Background(), 0, bootstrap.NewRand(1, 0))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, out.X, 40)
	assert.Len(t, out.Potential, 21)
	assert.Len(t, out.Correction, 21)
	assert.Len(t, out.Params, m.NumParams())

	exp.Trainer = fit.NewTrainer(fit.TrainerConfig{Iterations: 2, Threshold: 1e-12})
	_, ok, err = exp.Repetition(context.Background(), 1, bootstrap.NewRand(1, 1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrids(t *testing.T) {
	obs := Observations{T0: -1, T: []float64{0, 2, 4}, X: []float64{0.5, -2, 1}}
	tg := TimeGrid(obs, 6)
	assert.Equal(t, -1.0, tg[0])
	assert.Equal(t, 4.0, tg[5])
	xg := PositionGrid(obs, 3)
	assert.InDelta(t, -2.2, xg[0], 1e-12)
	assert.InDelta(t, 0, xg[1], 1e-12)
	assert.InDelta(t, 2.2, xg[2], 1e-12)
}

func TestSaveLoad(t *testing.T) {
	obs, err := Synthesize(DefaultTruth(), 12, 3, 0.05, 4, bootstrap.NewRand(2, 0))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "osc.csv")
	require.NoError(t, obs.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, obs.T0, got.T0)
	if diff := cmp.Diff(obs, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}
}

func TestPerturbedZeroScaleKeepsData(t *testing.T) {
	obs := noiseless(t, 5)
	got := obs.Perturbed(0, bootstrap.NewRand(1, 0))
	assert.Equal(t, obs.X, got.X)
	got.X[0] = 99
	assert.NotEqual(t, 99.0, obs.X[0])
}

func TestDefaultThresholdAcceptsTruthOnReplicas(t *testing.T) {
	cfg := DefaultConfig()
	tr := DefaultTruth()
	obs, err := Synthesize(tr, SyntheticSamples, SyntheticSpan, SyntheticSigma, cfg.Substeps, bootstrap.NewRand(cfg.Seed, 0))
	require.NoError(t, err)
	x, err := tr.Simulate(obs.T, cfg.Substeps)
	require.NoError(t, err)

	resid := make([]float64, len(x))
	for rep := 0; rep < 20; rep++ {
		replica := obs.Perturbed(cfg.NoiseScale, bootstrap.NewRand(cfg.Seed, rep+1))
		for i := range x {
			resid[i] = x[i] - replica.X[i]
		}
		chi2 := fit.ChiSquare(resid, replica.Sigma) / float64(len(x))
		assert.Less(t, chi2, cfg.AcceptanceThreshold(), "replica %d", rep)
	}
}

func TestSynthesizeNeedsTwoSamples(t *testing.T) {
	_, err := Synthesize(DefaultTruth(), 1, 5, 0.1, 4, bootstrap.NewRand(1, 0))
	assert.Error(t, err)
}
