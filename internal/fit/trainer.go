package fit

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// ErrNoParams is returned when Train is called with an empty start vector.
var ErrNoParams = errors.New("fit: empty parameter vector")

// TrainerConfig configures a single fit. Zero values are replaced with defaults.
type TrainerConfig struct {
	Iterations   int     `json:"iterations"`    // default 300
	LearningRate float64 `json:"learning_rate"` // default 0.01
	// MinLearningRate is the floor of the cosine schedule. Zero keeps the
	// rate constant at LearningRate.
	MinLearningRate float64 `json:"min_learning_rate"`
	// Threshold stops the gradient loop once the loss falls below it.
	Threshold float64 `json:"threshold"`
	// Refine is the L-BFGS iteration budget spent after the Adam loop.
	Refine   int              `json:"refine"`
	Gradient GradientSettings `json:"-"`
}

// Result is the outcome of one fit.
type Result struct {
	Params []float64
	Loss   float64
	// History holds the loss evaluated at the start of every Adam step.
	History    []float64
	Iterations int
	// Converged reports whether the best loss is below the threshold.
	Converged bool
}

// Trainer runs Adam with an optional cosine schedule followed by an
// optional quasi-Newton polish.
type Trainer struct {
	cfg TrainerConfig
}

// NewTrainer returns a Trainer for cfg.
func NewTrainer(cfg TrainerConfig) *Trainer {
	if cfg.Iterations <= 0 {
		cfg.Iterations = 300
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.01
	}
	return &Trainer{cfg: cfg}
}

// Config returns the effective configuration.
func (t *Trainer) Config() TrainerConfig {
	return t.cfg
}

// Train minimizes obj starting from x0, which is not modified. The returned
// parameters are the best seen, never a later worse iterate. A cancelled
// context stops the loop and returns the best result so far with ctx.Err().
func (t *Trainer) Train(ctx context.Context, obj Objective, x0 []float64) (Result, error) {
	if len(x0) == 0 {
		return Result{}, ErrNoParams
	}
	obj = Guard(obj)

	x := append([]float64(nil), x0...)
	grad := make([]float64, len(x))
	adam := NewAdam(len(x), t.cfg.LearningRate)
	var sched *CosineAnnealing
	if t.cfg.MinLearningRate > 0 {
		sched = NewCosineAnnealing(t.cfg.LearningRate, t.cfg.MinLearningRate, t.cfg.Iterations)
	}

	res := Result{
		Params:  append([]float64(nil), x...),
		Loss:    math.Inf(1),
		History: make([]float64, 0, t.cfg.Iterations),
	}

	for it := 0; it < t.cfg.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			res.Converged = res.Loss < t.cfg.Threshold
			return res, err
		}
		loss := obj(x)
		res.History = append(res.History, loss)
		res.Iterations = it + 1
		if loss < res.Loss {
			res.Loss = loss
			copy(res.Params, x)
		}
		if t.cfg.Threshold > 0 && loss < t.cfg.Threshold {
			break
		}

		Gradient(grad, obj, x, t.cfg.Gradient)
		adam.Update(x, grad)
		if sched != nil {
			adam.SetLR(sched.Step())
		}
	}

	if err := ctx.Err(); err != nil {
		res.Converged = res.Loss < t.cfg.Threshold
		return res, err
	}
	if res.Loss >= t.cfg.Threshold || t.cfg.Threshold == 0 {
		t.refine(ctx, obj, &res)
	}
	res.Converged = res.Loss < t.cfg.Threshold
	return res, ctx.Err()
}

// refine polishes res with L-BFGS. Line-search failures are common on the
// rough finite-difference landscape and are not fatal. A cancelled context
// stops the polish at the next major iteration.
func (t *Trainer) refine(ctx context.Context, obj Objective, res *Result) {
	if t.cfg.Refine <= 0 {
		return
	}
	problem := optimize.Problem{
		Func: obj,
		Grad: func(grad, x []float64) {
			Gradient(grad, obj, x, t.cfg.Gradient)
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}
	settings := &optimize.Settings{
		MajorIterations: t.cfg.Refine,
	}
	out, _ := optimize.Minimize(problem, res.Params, settings, &optimize.LBFGS{})
	if out == nil {
		return
	}
	if out.F < res.Loss && !math.IsNaN(out.F) {
		res.Loss = out.F
		copy(res.Params, out.X)
	}
}
