// Package bootstrap repeats independent fits in parallel and summarizes the
// accepted results as confidence bands.
package bootstrap

import (
	"context"
	"math/rand/v2"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/monitoring"
)

// Options configures Run.
type Options struct {
	Repetitions int
	// Workers bounds concurrent repetitions. Zero means GOMAXPROCS.
	Workers int
	// Seed together with the repetition index seeds every repetition's
	// random source, so a run is reproducible regardless of scheduling.
	Seed uint64
}

// RepFunc performs repetition rep using rng. Returning ok=false rejects the
// repetition (for example a fit that missed its loss threshold); returning
// an error aborts the whole run.
type RepFunc[T any] func(ctx context.Context, rep int, rng *rand.Rand) (result T, ok bool, err error)

// Sample is an accepted repetition.
type Sample[T any] struct {
	Rep   int
	Value T
}

// Stats counts what happened to the repetitions.
type Stats struct {
	Attempted int
	Accepted  int
	Rejected  int
}

// Run executes opts.Repetitions calls of fn on a bounded pool. Accepted
// results are collected under a single lock and returned ordered by
// repetition index.
func Run[T any](ctx context.Context, opts Options, fn RepFunc[T]) ([]Sample[T], Stats, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		mu      sync.Mutex
		samples []Sample[T]
		stats   Stats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for rep := 0; rep < opts.Repetitions; rep++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			rng := NewRand(opts.Seed, rep)
			v, ok, err := fn(gctx, rep, rng)

			mu.Lock()
			defer mu.Unlock()
			stats.Attempted++
			if err != nil {
				return err
			}
			if !ok {
				stats.Rejected++
				monitoring.Logf("bootstrap: repetition %d rejected", rep)
				return nil
			}
			stats.Accepted++
			samples = append(samples, Sample[T]{Rep: rep, Value: v})
			return nil
		})
	}
	err := g.Wait()

	sort.Slice(samples, func(i, j int) bool { return samples[i].Rep < samples[j].Rep })
	return samples, stats, err
}

// NewRand returns the deterministic random source for repetition rep.
func NewRand(seed uint64, rep int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(rep)))
}

// Values strips the repetition indices from samples.
func Values[T any](samples []Sample[T]) []T {
	out := make([]T, len(samples))
	for i, s := range samples {
		out[i] = s.Value
	}
	return out
}
