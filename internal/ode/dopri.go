package ode

import "math"

// Dormand–Prince 5(4) tableau.
var (
	dpC = [7]float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1, 1}
	dpA = [7][6]float64{
		{},
		{1.0 / 5.0},
		{3.0 / 40.0, 9.0 / 40.0},
		{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0},
		{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0},
		{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0},
		{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0},
	}
	dpB = [7]float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0, 0}
	// dpE is B minus the embedded fourth-order weights.
	dpE = [7]float64{
		35.0/384.0 - 5179.0/57600.0,
		0,
		500.0/1113.0 - 7571.0/16695.0,
		125.0/192.0 - 393.0/640.0,
		-2187.0/6784.0 + 92097.0/339200.0,
		11.0/84.0 - 187.0/2100.0,
		-1.0 / 40.0,
	}
)

// Options configures the adaptive integrator. Zero values select defaults.
type Options struct {
	AbsTol      float64 // default 1e-8
	RelTol      float64 // default 1e-6
	InitialStep float64 // default 1% of the first output interval
	MinStep     float64 // default 1e-12 of the total span
	MaxSteps    int     // default 100000
}

func (o Options) withDefaults(span float64) Options {
	if o.AbsTol <= 0 {
		o.AbsTol = 1e-8
	}
	if o.RelTol <= 0 {
		o.RelTol = 1e-6
	}
	if o.MinStep <= 0 {
		o.MinStep = 1e-12 * math.Max(span, 1)
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = 100000
	}
	return o
}

// DormandPrince integrates f adaptively from y0 at times[0], landing exactly
// on every output time.
func DormandPrince(f Func, y0 []float64, times []float64, opts Options) (Trajectory, error) {
	dir, err := checkTimes(times)
	if err != nil {
		return Trajectory{}, err
	}
	tr := newTrajectory(times, y0)
	if len(times) == 1 {
		return tr, nil
	}

	span := math.Abs(times[len(times)-1] - times[0])
	opts = opts.withDefaults(span)

	n := len(y0)
	y := append([]float64(nil), y0...)
	yNew := make([]float64, n)
	tmp := make([]float64, n)
	var k [7][]float64
	for s := range k {
		k[s] = make([]float64, n)
	}

	h := opts.InitialStep
	if h <= 0 {
		h = 0.01 * math.Abs(times[1]-times[0])
		if h == 0 {
			h = 0.01 * span
		}
	}
	h = math.Abs(h)

	t := times[0]
	steps := 0
	for i := 1; i < len(times); i++ {
		target := times[i]
		for (target-t)*dir > 0 {
			if steps >= opts.MaxSteps {
				return tr, &SolveError{Step: steps, Time: t, Wrapped: ErrMaxSteps}
			}
			last := false
			if h >= math.Abs(target-t) {
				h = math.Abs(target - t)
				last = true
			}
			hs := dir * h

			f(t, y, k[0])
			for s := 1; s < 7; s++ {
				for j := 0; j < n; j++ {
					acc := y[j]
					for m := 0; m < s; m++ {
						acc += hs * dpA[s][m] * k[m][j]
					}
					tmp[j] = acc
				}
				f(t+dpC[s]*hs, tmp, k[s])
			}

			errNorm := 0.0
			for j := 0; j < n; j++ {
				acc := y[j]
				e := 0.0
				for s := 0; s < 7; s++ {
					acc += hs * dpB[s] * k[s][j]
					e += hs * dpE[s] * k[s][j]
				}
				yNew[j] = acc
				sc := opts.AbsTol + opts.RelTol*math.Max(math.Abs(y[j]), math.Abs(acc))
				errNorm += (e / sc) * (e / sc)
			}
			errNorm = math.Sqrt(errNorm / float64(n))
			steps++

			if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
				if h <= opts.MinStep {
					return tr, &SolveError{Step: steps, Time: t, Wrapped: ErrUnstable}
				}
				h *= 0.25
				continue
			}

			if errNorm <= 1 {
				if last {
					t = target
				} else {
					t += hs
				}
				copy(y, yNew)
				if !finite(y) {
					return tr, &SolveError{Step: steps, Time: t, Wrapped: ErrUnstable}
				}
			}

			factor := 5.0
			if errNorm > 0 {
				factor = math.Min(5.0, math.Max(0.2, 0.9*math.Pow(errNorm, -0.2)))
			}
			h *= factor
			if h < opts.MinStep && (target-t)*dir > opts.MinStep {
				return tr, &SolveError{Step: steps, Time: t, Wrapped: ErrStepTooSmall}
			}
		}
		tr.States[i] = append([]float64(nil), y...)
	}
	return tr, nil
}
