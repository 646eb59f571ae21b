package ode

// rk4 holds the stage buffers of one classic Runge–Kutta integration.
type rk4 struct {
	f              Func
	k1, k2, k3, k4 []float64
	tmp            []float64
}

func newRK4(f Func, n int) *rk4 {
	return &rk4{
		f:   f,
		k1:  make([]float64, n),
		k2:  make([]float64, n),
		k3:  make([]float64, n),
		k4:  make([]float64, n),
		tmp: make([]float64, n),
	}
}

// step advances y in place by one RK4 step of size h.
func (r *rk4) step(t float64, y []float64, h float64) {
	addScaled := func(k []float64, s float64) []float64 {
		for i := range y {
			r.tmp[i] = y[i] + s*k[i]
		}
		return r.tmp
	}

	r.f(t, y, r.k1)
	r.f(t+0.5*h, addScaled(r.k1, 0.5*h), r.k2)
	r.f(t+0.5*h, addScaled(r.k2, 0.5*h), r.k3)
	r.f(t+h, addScaled(r.k3, h), r.k4)

	for i := range y {
		y[i] += (h / 6.0) * (r.k1[i] + 2.0*r.k2[i] + 2.0*r.k3[i] + r.k4[i])
	}
}

// RK4 integrates f from y0 at times[0] through every later output time,
// taking substeps equal steps between consecutive outputs.
func RK4(f Func, y0 []float64, times []float64, substeps int) (Trajectory, error) {
	if _, err := checkTimes(times); err != nil {
		return Trajectory{}, err
	}
	if substeps < 1 {
		substeps = 1
	}

	tr := newTrajectory(times, y0)
	y := append([]float64(nil), y0...)
	r := newRK4(f, len(y))

	step := 0
	for i := 1; i < len(times); i++ {
		t := times[i-1]
		h := (times[i] - times[i-1]) / float64(substeps)
		for k := 0; k < substeps; k++ {
			r.step(t, y, h)
			t += h
			step++
		}
		if !finite(y) {
			return tr, &SolveError{Step: step, Time: times[i], Wrapped: ErrUnstable}
		}
		tr.States[i] = append([]float64(nil), y...)
	}
	return tr, nil
}
