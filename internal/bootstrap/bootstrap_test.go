package bootstrap

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func TestRunCollectsAcceptedInOrder(t *testing.T) {
	samples, stats, err := Run(context.Background(), Options{Repetitions: 20, Workers: 4, Seed: 3},
		func(_ context.Context, rep int, _ *rand.Rand) (int, bool, error) {
			return rep * rep, rep%3 != 0, nil
		})
	require.NoError(t, err)

	assert.Equal(t, Stats{Attempted: 20, Accepted: 13, Rejected: 7}, stats)
	require.Len(t, samples, 13)
	for i := 1; i < len(samples); i++ {
		assert.Less(t, samples[i-1].Rep, samples[i].Rep)
	}
	for _, s := range samples {
		assert.Equal(t, s.Rep*s.Rep, s.Value)
	}
	assert.Len(t, Values(samples), 13)
}

func TestRunDeterministicRandomness(t *testing.T) {
	draw := func(workers int) []float64 {
		samples, _, err := Run(context.Background(), Options{Repetitions: 8, Workers: workers, Seed: 11},
			func(_ context.Context, _ int, rng *rand.Rand) (float64, bool, error) {
				return rng.Float64(), true, nil
			})
		require.NoError(t, err)
		return Values(samples)
	}
	assert.Equal(t, draw(1), draw(8))
}

func TestRunPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := Run(context.Background(), Options{Repetitions: 10, Workers: 2},
		func(_ context.Context, rep int, _ *rand.Rand) (int, bool, error) {
			if rep == 4 {
				return 0, false, boom
			}
			return rep, true, nil
		})
	assert.ErrorIs(t, err, boom)
}

func TestAggregateLengthIndependentOfRejections(t *testing.T) {
	grid := []float64{0, 1, 2, 3, 4}
	for _, accepted := range []int{0, 1, 2, 7} {
		curves := make([][]float64, accepted)
		for k := range curves {
			curves[k] = []float64{1, 2, 3, 4, float64(k)}
		}
		b, err := Aggregate(grid, curves, 0.9)
		require.NoError(t, err)
		for _, arr := range [][]float64{b.Grid, b.Mean, b.Median, b.Lower, b.Upper} {
			assert.Len(t, arr, len(grid), "accepted=%d", accepted)
		}
		assert.Len(t, b.Count, len(grid))
		if accepted == 0 {
			assert.True(t, math.IsNaN(b.Mean[0]))
		}
	}
}

func TestAggregateStatistics(t *testing.T) {
	grid := []float64{0, 1}
	curves := [][]float64{
		{1, math.NaN()},
		{2, 10},
		{3, 20},
		{4, 30},
	}
	b, err := Aggregate(grid, curves, 0.5)
	require.NoError(t, err)

	want := Band{
		Grid:   grid,
		Mean:   []float64{2.5, 20},
		Median: []float64{2, 20},
		Lower:  []float64{1, 10},
		Upper:  []float64{3, 30},
		Count:  []int{4, 3},
		Level:  0.5,
	}
	if diff := cmp.Diff(want, b, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("band (-want +got):\n%s", diff)
	}
}

func TestAggregateRejectsMismatchedCurve(t *testing.T) {
	_, err := Aggregate([]float64{0, 1}, [][]float64{{1}}, 0.9)
	assert.ErrorIs(t, err, ErrCurveLength)
}

func TestSummarize(t *testing.T) {
	samples := [][]float64{{1, 10, 99}, {2, 20, 99}, {3, 30, 99}}
	got := Summarize([]string{"a", "b"}, samples, 0.95)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.InDelta(t, 2.0, got[0].Mean, 1e-12)
	assert.InDelta(t, 1.0, got[0].StdDev, 1e-12)
	assert.Equal(t, 1.0, got[0].Lower)
	assert.Equal(t, 3.0, got[0].Upper)
	assert.Equal(t, 3, got[1].N)

	empty := Summarize([]string{"a"}, nil, 0.95)
	assert.True(t, math.IsNaN(empty[0].Mean))

	single := Summarize([]string{"a"}, [][]float64{{5}}, 0.95)
	assert.Equal(t, 5.0, single[0].Mean)
	assert.Zero(t, single[0].StdDev)
}

func TestResampleAndPerturb(t *testing.T) {
	rng := NewRand(1, 0)
	idx := Resample(50, rng)
	require.Len(t, idx, 50)
	for i, v := range idx {
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 50)
		if i > 0 {
			assert.LessOrEqual(t, idx[i-1], v)
		}
	}

	vals := []float64{1, 2, 3}
	assert.Equal(t, vals, Perturb(vals, []float64{1, 1, 1}, 0, rng))

	noisy := Perturb(vals, []float64{0.1, 0.1, 0.1}, 1, rng)
	assert.NotEqual(t, vals, noisy)
	assert.Equal(t, []float64{1, 2, 3}, vals)
	for i := range vals {
		assert.InDelta(t, vals[i], noisy[i], 1.0)
	}
}
