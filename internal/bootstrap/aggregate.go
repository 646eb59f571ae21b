package bootstrap

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrCurveLength is returned when a curve is not sampled on the band grid.
var ErrCurveLength = errors.New("bootstrap: curve length does not match grid")

// Band is the pointwise summary of many curves sampled on a common grid.
// Every slice has the length of Grid; points where no finite value was
// available hold NaN.
type Band struct {
	Grid   []float64
	Mean   []float64
	Median []float64
	Lower  []float64
	Upper  []float64
	// Count is the number of finite values that entered each point.
	Count []int
	Level float64
}

// Aggregate summarizes curves pointwise over grid. Lower and Upper are the
// empirical (1-level)/2 and (1+level)/2 quantiles. Non-finite values are
// skipped, so a curve that diverged at a few points still contributes
// elsewhere.
func Aggregate(grid []float64, curves [][]float64, level float64) (Band, error) {
	n := len(grid)
	b := Band{
		Grid:   append([]float64(nil), grid...),
		Mean:   make([]float64, n),
		Median: make([]float64, n),
		Lower:  make([]float64, n),
		Upper:  make([]float64, n),
		Count:  make([]int, n),
		Level:  level,
	}
	for i, c := range curves {
		if len(c) != n {
			return b, fmt.Errorf("%w: curve %d has %d points, grid has %d", ErrCurveLength, i, len(c), n)
		}
	}

	lo, hi := (1-level)/2, (1+level)/2
	column := make([]float64, 0, len(curves))
	for j := 0; j < n; j++ {
		column = column[:0]
		for _, c := range curves {
			if v := c[j]; !math.IsNaN(v) && !math.IsInf(v, 0) {
				column = append(column, v)
			}
		}
		b.Count[j] = len(column)
		if len(column) == 0 {
			b.Mean[j], b.Median[j], b.Lower[j], b.Upper[j] = math.NaN(), math.NaN(), math.NaN(), math.NaN()
			continue
		}
		sort.Float64s(column)
		b.Mean[j] = stat.Mean(column, nil)
		b.Median[j] = stat.Quantile(0.5, stat.Empirical, column, nil)
		b.Lower[j] = stat.Quantile(lo, stat.Empirical, column, nil)
		b.Upper[j] = stat.Quantile(hi, stat.Empirical, column, nil)
	}
	return b, nil
}

// ParamSummary describes the bootstrap distribution of one parameter.
type ParamSummary struct {
	Name   string
	Mean   float64
	StdDev float64
	Lower  float64
	Upper  float64
	N      int
}

// Summarize computes per-parameter statistics. samples[k] is the parameter
// vector of repetition k; only the first len(names) entries are summarized.
func Summarize(names []string, samples [][]float64, level float64) []ParamSummary {
	out := make([]ParamSummary, len(names))
	lo, hi := (1-level)/2, (1+level)/2
	column := make([]float64, 0, len(samples))
	for j, name := range names {
		column = column[:0]
		for _, s := range samples {
			if j < len(s) {
				column = append(column, s[j])
			}
		}
		ps := ParamSummary{Name: name, N: len(column)}
		switch len(column) {
		case 0:
			ps.Mean, ps.StdDev, ps.Lower, ps.Upper = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		case 1:
			ps.Mean, ps.Lower, ps.Upper = column[0], column[0], column[0]
		default:
			sort.Float64s(column)
			ps.Mean, ps.StdDev = stat.MeanStdDev(column, nil)
			ps.Lower = stat.Quantile(lo, stat.Empirical, column, nil)
			ps.Upper = stat.Quantile(hi, stat.Empirical, column, nil)
		}
		out[j] = ps
	}
	return out
}

// Resample returns n indices drawn uniformly with replacement from [0, n).
func Resample(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.IntN(n)
	}
	sort.Ints(idx)
	return idx
}

// Perturb returns values with independent Gaussian noise of standard
// deviation scale·sigma[i] added to each entry.
func Perturb(values, sigma []float64, scale float64, rng *rand.Rand) []float64 {
	out := append([]float64(nil), values...)
	if scale == 0 {
		return out
	}
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: rng}
	for i := range out {
		out[i] += scale * sigma[i] * norm.Rand()
	}
	return out
}
