package kepler

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

func newtonian() Truth {
	tr := DefaultTruth()
	tr.C = 0
	return tr
}

// noiseless returns exact sky positions of tr with a nominal error bar.
func noiseless(t *testing.T, tr Truth, n int, span float64) Observations {
	t.Helper()
	times := floats.Span(make([]float64, n), 0, span)
	sol, err := tr.Simulate(times)
	require.NoError(t, err)
	params := make([]float64, NumPhysical)
	tr.Put(params)
	x, y := Sky(params, sol)
	sigma := make([]float64, n)
	for i := range sigma {
		sigma[i] = 0.01
	}
	return Observations{T: times, X: x, Y: y, SigmaX: sigma, SigmaY: sigma}
}

func truthParams(m Model, tr Truth) []float64 {
	params := make([]float64, m.NumParams())
	tr.Put(params)
	return params
}

func TestNewtonianOrbitIsPeriodic(t *testing.T) {
	tr := newtonian()
	a := 1.2
	period := 2 * math.Pi * math.Sqrt(a*a*a/GM)
	sol, err := tr.Simulate([]float64{0, period / 2, period})
	require.NoError(t, err)
	assert.InDelta(t, tr.R0, sol.States[2][0], 1e-6)
	assert.InDelta(t, a*(1+0.5), sol.States[1][0], 1e-6)
	assert.InDelta(t, 2*math.Pi, sol.States[2][2], 1e-6)
}

func TestPrecessionAdvancesPeriapsis(t *testing.T) {
	// The r⁻⁴ attraction makes the orbit precess forward: φ has passed 2π
	// by the second periapsis.
	tr := DefaultTruth()
	times := floats.Span(make([]float64, 2001), 0, 10)
	sol, err := tr.Simulate(times)
	require.NoError(t, err)
	r := sol.Component(0)
	phi := sol.Component(2)
	best := 1
	for i := 2; i < len(r)-1; i++ {
		if r[i] < r[i-1] && r[i] <= r[i+1] && times[i] > 4 {
			best = i
			break
		}
	}
	assert.Greater(t, phi[best], 2*math.Pi)
}

func TestModelMatchesNewtonianTruth(t *testing.T) {
	tr := newtonian()
	obs := noiseless(t, tr, 30, 10)
	m := NewModel([]int{3}, 40)
	params := truthParams(m, tr)

	assert.Less(t, m.ChiSquare(params, obs), 1e-4)

	loss := m.Loss(obs, 0)
	params[IdxR0] = -1
	assert.True(t, math.IsInf(loss(params), 1))
}

func TestPotentialZeroNetwork(t *testing.T) {
	m := NewModel([]int{3}, 4)
	params := make([]float64, m.NumParams())
	grid := []float64{0.5, 1, 2}
	got := m.Potential(params, grid)
	want := []float64{-2, -1, -0.5}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("potential mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, m.Potential(params, nil))
}

func TestTruthPotentialGivesForce(t *testing.T) {
	tr := DefaultTruth()
	rmax := 2.0
	for _, r := range []float64{0.6, 1, 1.5} {
		h := 1e-5
		dPhi := (tr.Potential(r+h, rmax) - tr.Potential(r-h, rmax)) / (2 * h)
		force := -GM/(r*r) + tr.Correction(r)
		assert.InDelta(t, force, -dPhi, 1e-6, "r=%g", r)
	}
	assert.InDelta(t, -GM/rmax, tr.Potential(rmax, rmax), 1e-15)
}

func TestLandscapeMinimumAtTruth(t *testing.T) {
	tr := newtonian()
	obs := noiseless(t, tr, 20, 8)
	m := NewModel([]int{2}, 20)
	params := truthParams(m, tr)

	nodes := []float64{tr.Angles.Node - 0.3, tr.Angles.Node, tr.Angles.Node + 0.3}
	incls := []float64{tr.Angles.Inclination - 0.2, tr.Angles.Inclination, tr.Angles.Inclination + 0.2}
	land, err := m.Landscape(context.Background(), obs, params, nodes, incls, 2)
	require.NoError(t, err)
	require.Len(t, land, 3)

	bi, bj := -1, -1
	best := math.Inf(1)
	for j, row := range land {
		require.Len(t, row, 3)
		for i, v := range row {
			if v < best {
				best, bi, bj = v, i, j
			}
		}
	}
	assert.Equal(t, 1, bi)
	assert.Equal(t, 1, bj)
}

func TestRepetition(t *testing.T) {
	tr := DefaultTruth()
	obs, err := Synthesize(tr, 12, 6, 0.02, bootstrap.NewRand(4, 0))
	require.NoError(t, err)
	exp := &Experiment{
		Model:      NewModel([]int{3}, 10),
		Obs:        obs,
		Guess:      tr.Physical,
		Jitter:     0.01,
		Trainer:    fit.NewTrainer(fit.TrainerConfig{Iterations: 2, Threshold: 1e11}),
		NoiseScale: 1,
		TGrid:      TimeGrid(obs, 50),
		RGrid:      RadialGrid(obs, 25),
	}
	out, ok, err := exp.Repetition(context.Background(), 0, bootstrap.NewRand(4, 1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, out.X, 50)
	assert.Len(t, out.Y, 50)
	assert.Len(t, out.R, 50)
	assert.Len(t, out.Potential, 25)
	assert.Len(t, out.Correction, 25)
}

func TestRadialGrid(t *testing.T) {
	obs := Observations{X: []float64{3, 0, -1}, Y: []float64{4, 1, 0}}
	g := RadialGrid(obs, 5)
	assert.InDelta(t, 0.8, g[0], 1e-12)
	assert.InDelta(t, 6, g[4], 1e-12)
}

func TestSaveLoadAndGuess(t *testing.T) {
	obs, err := Synthesize(DefaultTruth(), 10, 5, 0.01, bootstrap.NewRand(9, 0))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "astrometry.csv")
	require.NoError(t, obs.Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(obs, got, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("observations mismatch (-want +got):\n%s", diff)
	}

	g := Guess(got)
	assert.InDelta(t, math.Hypot(got.X[0], got.Y[0]), g.R0, 1e-12)
	assert.Positive(t, g.L)
}

func TestPhysicalRoundTrip(t *testing.T) {
	p := DefaultTruth().Physical
	params := make([]float64, NumPhysical)
	p.Put(params)
	assert.Equal(t, p, PhysicalOf(params))
}

func TestDefaultThresholdAcceptsTruthOnReplicas(t *testing.T) {
	cfg := DefaultConfig()
	tr := DefaultTruth()
	obs, err := Synthesize(tr, SyntheticEpochs, SyntheticSpan, SyntheticSigma, bootstrap.NewRand(cfg.Seed, 0))
	require.NoError(t, err)
	sol, err := tr.Simulate(obs.T)
	require.NoError(t, err)
	x, y := Sky(truthParams(NewModel(cfg.Hidden, cfg.Substeps), tr), sol)

	n := len(obs.T)
	rx := make([]float64, n)
	ry := make([]float64, n)
	for rep := 0; rep < 20; rep++ {
		replica := obs.Perturbed(cfg.NoiseScale, bootstrap.NewRand(cfg.Seed, rep+1))
		for i := range rx {
			rx[i] = x[i] - replica.X[i]
			ry[i] = y[i] - replica.Y[i]
		}
		chi2 := (fit.ChiSquare(rx, replica.SigmaX) + fit.ChiSquare(ry, replica.SigmaY)) / float64(2*n)
		assert.Less(t, chi2, cfg.AcceptanceThreshold(), "replica %d", rep)
	}
}

func TestSynthesizeNeedsTwoEpochs(t *testing.T) {
	_, err := Synthesize(DefaultTruth(), 1, 5, 0.01, bootstrap.NewRand(1, 0))
	assert.Error(t, err)
}

func TestReportedKeepsAnglesOnOneBranch(t *testing.T) {
	a := make([]float64, NumPhysical+2)
	b := make([]float64, NumPhysical+2)
	// Circular mean near −π+0.05: a moves below −π, b stays.
	a[IdxNode], b[IdxNode] = math.Pi-0.1, -math.Pi+0.2
	a[IdxPeri], b[IdxPeri] = 0.2, 0.4
	a[IdxL], b[IdxL] = 1, 1.1

	got := Reported([][]float64{a, b})
	require.Len(t, got, 2)
	assert.Len(t, got[0], NumPhysical)
	assert.InDelta(t, -math.Pi-0.1, got[0][IdxNode], 1e-12)
	assert.InDelta(t, -math.Pi+0.2, got[1][IdxNode], 1e-12)
	assert.InDelta(t, 0.4, got[1][IdxPeri], 1e-12)
	assert.Equal(t, 1.1, got[1][IdxL])

	sums := bootstrap.Summarize(ParamNames, got, 0.9)
	assert.InDelta(t, -math.Pi+0.05, sums[IdxNode].Mean, 1e-12)
	assert.InDelta(t, 0.3, sums[IdxNode].StdDev*math.Sqrt2, 1e-9)
	assert.Equal(t, math.Pi-0.1, a[IdxNode], "input must not be modified")
}
