package fit

import (
	"context"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quadratic(center []float64) Objective {
	return func(x []float64) float64 {
		s := 0.0
		for i, v := range x {
			d := v - center[i]
			s += (float64(i) + 1) * d * d
		}
		return s
	}
}

// --- Adam ---

func TestAdamUpdateDirection(t *testing.T) {
	adam := NewAdam(2, 0.04)
	params := []float64{1, 1}
	adam.Update(params, []float64{2, -2})
	assert.Less(t, params[0], 1.0)
	assert.Greater(t, params[1], 1.0)
}

func TestAdamBiasCorrection(t *testing.T) {
	// At step 1 the bias-corrected moments equal the raw gradient, so the
	// step is the full learning rate.
	adam := NewAdam(1, 0.04)
	params := []float64{5}
	adam.Update(params, []float64{1})
	assert.InDelta(t, 0.04, 5-params[0], 1e-9)
}

func TestCosineAnnealing(t *testing.T) {
	ca := NewCosineAnnealing(0.1, 0.01, 10)
	assert.InDelta(t, 0.1, ca.LR(), 1e-12)
	prev := ca.LR()
	for i := 0; i < 10; i++ {
		lr := ca.Step()
		assert.LessOrEqual(t, lr, prev)
		prev = lr
	}
	assert.InDelta(t, 0.01, prev, 1e-12)
	assert.InDelta(t, 0.01, ca.Step(), 1e-12)
}

// --- losses and gradients ---

func TestChiSquare(t *testing.T) {
	assert.InDelta(t, 4+1+9, ChiSquare([]float64{2, 3, 3}, []float64{1, 3, 0}), 1e-12)
	assert.InDelta(t, 14.0, L2([]float64{1, 2, 3}), 1e-12)
}

func TestGuard(t *testing.T) {
	g := Guard(func([]float64) float64 { return math.NaN() })
	assert.Equal(t, Penalty, g(nil))
	g = Guard(func([]float64) float64 { return math.Inf(1) })
	assert.Equal(t, Penalty, g(nil))
	g = Guard(func([]float64) float64 { return 3 })
	assert.Equal(t, 3.0, g(nil))
}

func TestGradientMatchesAnalytic(t *testing.T) {
	obj := quadratic([]float64{1, -2, 0.5})
	x := []float64{0.3, 0.1, -1}
	want := []float64{2 * (0.3 - 1), 4 * (0.1 + 2), 6 * (-1 - 0.5)}

	for _, concurrent := range []bool{false, true} {
		got := Gradient(nil, obj, x, GradientSettings{Concurrent: concurrent})
		if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-5)); diff != "" {
			t.Errorf("gradient mismatch (concurrent=%v) (-want +got):\n%s", concurrent, diff)
		}
	}
	assert.Equal(t, []float64{0.3, 0.1, -1}, x, "x must not be modified")
}

// --- trainer ---

func TestTrainerBestLossNonIncreasing(t *testing.T) {
	center := []float64{1, -2, 0.5, 3}
	tr := NewTrainer(TrainerConfig{Iterations: 300, LearningRate: 0.05, Threshold: 1e-6})

	x0 := []float64{0, 0, 0, 0}
	res, err := tr.Train(context.Background(), quadratic(center), x0)
	require.NoError(t, err)
	require.NotEmpty(t, res.History)

	best := math.Inf(1)
	for i, l := range res.History {
		if l < best {
			best = l
		}
		assert.LessOrEqual(t, best, res.History[0], "step %d", i)
	}
	assert.Less(t, res.Loss, res.History[0])
	assert.Equal(t, []float64{0, 0, 0, 0}, x0)
}

func TestTrainerConvergesWithRefine(t *testing.T) {
	center := []float64{1, -2, 0.5}
	tr := NewTrainer(TrainerConfig{Iterations: 20, LearningRate: 0.05, Threshold: 1e-8, Refine: 50})
	res, err := tr.Train(context.Background(), quadratic(center), []float64{0, 0, 0})
	require.NoError(t, err)

	assert.True(t, res.Converged, "loss=%g", res.Loss)
	if diff := cmp.Diff(center, res.Params, cmpopts.EquateApprox(0, 1e-3)); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
}

func TestTrainerStopsAtThreshold(t *testing.T) {
	tr := NewTrainer(TrainerConfig{Iterations: 1000, LearningRate: 0.1, Threshold: 0.5})
	res, err := tr.Train(context.Background(), quadratic([]float64{1}), []float64{0})
	require.NoError(t, err)
	assert.True(t, res.Converged)
	assert.Less(t, res.Iterations, 1000)
}

func TestTrainerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := NewTrainer(TrainerConfig{Iterations: 10})
	_, err := tr.Train(ctx, quadratic([]float64{1}), []float64{0})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainerSkipsRefineAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	base := quadratic([]float64{1, -1})
	calls := 0
	obj := func(x []float64) float64 {
		calls++
		cancel()
		return base(x)
	}
	tr := NewTrainer(TrainerConfig{Iterations: 1, Refine: 100})
	res, err := tr.Train(ctx, obj, []float64{0, 0})
	assert.ErrorIs(t, err, context.Canceled)
	// One loss evaluation and one central-difference gradient, nothing more.
	assert.Equal(t, 1+2*2, calls)
	assert.Len(t, res.History, 1)
}

func TestTrainerRejectsEmpty(t *testing.T) {
	_, err := NewTrainer(TrainerConfig{}).Train(context.Background(), quadratic(nil), nil)
	assert.ErrorIs(t, err, ErrNoParams)
}

func TestTrainerDefaults(t *testing.T) {
	cfg := NewTrainer(TrainerConfig{}).Config()
	assert.Equal(t, 300, cfg.Iterations)
	assert.Equal(t, 0.01, cfg.LearningRate)
}
