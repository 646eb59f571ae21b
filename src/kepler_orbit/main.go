// ------------------------------------------------------------
// Kepler orbit with a LEARNED radial force, fitted to astrometry
// ------------------------------------------------------------
// Orbital-plane dynamics, state (r, ṙ, φ), angular momentum L:
//   r̈ = L²/r³ − GM/r² + g_θ(r),   φ̇ = L/r²
// The orbit is rotated onto the sky by (Ω, i, ω) and compared with the
// observed (X, Y) positions. Synthetic data include a −3GM·L²/(c²r⁴)
// precession term that the network has to absorb.
//
// Output folder:
//   output/kepler_orbit/data.csv               (synthetic runs only)
//   output/kepler_orbit/params.csv, summary.csv, landscape.csv
//   output/kepler_orbit/band_*.csv
//   output/kepler_orbit/*.pdf, charts.html (with -html)
// ------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot/plotter"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/bootstrap"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/dataset"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/kepler"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/report"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/runner"
)

const program = "kepler_orbit"

const dataStream = 1 << 62

// Loss landscape resolution and half-widths around the best fit, in radians.
const (
	landscapeNodes = 41
	landscapeIncls = 31
	landscapeNodeW = 0.5
	landscapeInclW = 0.4
)

func main() {
	flags := runner.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := flags.Apply(kepler.DefaultConfig())
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	run, err := runner.Start(program, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// ----------------------------
	// Data
	// ----------------------------
	truth := kepler.DefaultTruth()
	synthetic := flags.Data == ""
	var obs kepler.Observations
	if synthetic {
		rng := rand.New(rand.NewPCG(cfg.Seed, dataStream))
		obs, err = kepler.Synthesize(truth, kepler.SyntheticEpochs, kepler.SyntheticSpan, kepler.SyntheticSigma, rng)
		if err == nil {
			err = obs.Save(run.Path("data.csv"))
		}
	} else {
		obs, err = kepler.Load(flags.Data)
	}
	if err != nil {
		log.Fatalf("data: %v", err)
	}

	// Synthetic runs start near the injected orbit; real data start from a
	// circular guess through the first epoch.
	guess, jitter := kepler.Guess(obs), 0.02
	if synthetic {
		guess, jitter = truth.Physical, 0.05
	}
	log.Printf("%d epochs, start r0=%.3g L=%.3g Ω=%.3g i=%.3g", len(obs.T), guess.R0, guess.L, guess.Angles.Node, guess.Angles.Inclination)

	// ----------------------------
	// Bootstrap
	// ----------------------------
	exp := &kepler.Experiment{
		Model:       kepler.NewModel(cfg.Hidden, cfg.Substeps),
		Obs:         obs,
		Guess:       guess,
		Jitter:      jitter,
		Trainer:     run.Trainer(),
		WeightDecay: cfg.WeightDecay,
		NoiseScale:  cfg.NoiseScale,
		TGrid:       kepler.TimeGrid(obs, 600),
		RGrid:       kepler.RadialGrid(obs, 121),
	}
	samples, stats, err := bootstrap.Run[kepler.Outcome](ctx, run.Bootstrap(), exp.Repetition)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	log.Printf("bootstrap: %d/%d repetitions accepted", stats.Accepted, stats.Attempted)

	outs := bootstrap.Values(samples)
	params := runner.Collect(outs, func(o kepler.Outcome) []float64 { return o.Params })
	losses := make([]float64, len(outs))
	best := 0
	for i, o := range outs {
		losses[i] = o.Loss
		if o.Loss < outs[best].Loss {
			best = i
		}
	}

	reported := kepler.Reported(params)
	sums := bootstrap.Summarize(kepler.ParamNames, reported, cfg.Confidence)
	if err := run.WriteSummary(sums, stats); err != nil {
		log.Fatalf("summary: %v", err)
	}
	if len(outs) == 0 {
		log.Fatalf("no repetition reached loss threshold %g", cfg.AcceptanceThreshold())
	}
	if err := run.WriteParams(kepler.ParamNames, runner.Reps(samples), reported, losses); err != nil {
		log.Fatalf("params: %v", err)
	}
	for _, s := range sums {
		log.Printf("  %-6s mean=%.4g std=%.3g CI=[%.4g, %.4g]", s.Name, s.Mean, s.StdDev, s.Lower, s.Upper)
	}

	// ----------------------------
	// Bands
	// ----------------------------
	bands := map[string]bootstrap.Band{}
	for _, c := range []struct {
		name  string
		grid  []float64
		field func(kepler.Outcome) []float64
	}{
		{"x", exp.TGrid, func(o kepler.Outcome) []float64 { return o.X }},
		{"y", exp.TGrid, func(o kepler.Outcome) []float64 { return o.Y }},
		{"radius", exp.TGrid, func(o kepler.Outcome) []float64 { return o.R }},
		{"potential", exp.RGrid, func(o kepler.Outcome) []float64 { return o.Potential }},
		{"correction", exp.RGrid, func(o kepler.Outcome) []float64 { return o.Correction }},
	} {
		b, err := bootstrap.Aggregate(c.grid, runner.Collect(outs, c.field), cfg.Confidence)
		if err != nil {
			log.Fatalf("aggregate %s: %v", c.name, err)
		}
		if err := run.WriteBand(c.name, b); err != nil {
			log.Fatalf("band %s: %v", c.name, err)
		}
		bands[c.name] = b
	}

	// ----------------------------
	// Figures
	// ----------------------------
	sigma := make([]float64, len(obs.SigmaX))
	for i := range sigma {
		sigma[i] = 0.5 * (obs.SigmaX[i] + obs.SigmaY[i])
	}
	orbit := report.OrbitFigure{
		Title: "Sky-plane orbit",
		Mean:  report.Series{Name: "bootstrap mean", X: bands["x"].Mean, Y: bands["y"].Mean},
		Data:  &report.Points{Name: "astrometry", X: obs.X, Y: obs.Y, XErr: obs.SigmaX, YErr: obs.SigmaY},
	}
	for _, o := range outs {
		orbit.Trajectories = append(orbit.Trajectories, report.Series{X: o.X, Y: o.Y})
	}
	figs := []report.BandFigure{
		{Title: "Orbital radius", XLabel: "t", YLabel: "r(t)", Band: bands["radius"]},
		{Title: "Effective potential", XLabel: "r", YLabel: "Φ(r)", Band: bands["potential"]},
		{Title: "Learned radial force", XLabel: "r", YLabel: "g(r)", Band: bands["correction"]},
		{
			Title: "Sky X", XLabel: "t", YLabel: "X", Band: bands["x"],
			Data: &report.Points{Name: "astrometry", X: obs.T, Y: obs.X, YErr: obs.SigmaX},
		},
	}
	if synthetic {
		sol, err := truth.Simulate(exp.TGrid)
		if err != nil {
			log.Fatalf("truth: %v", err)
		}
		tp := make([]float64, kepler.NumPhysical)
		truth.Put(tp)
		tx, ty := kepler.Sky(tp, sol)
		orbit.Truth = &report.Series{Name: "truth", X: tx, Y: ty}

		rmax := exp.RGrid[len(exp.RGrid)-1]
		phi := make([]float64, len(exp.RGrid))
		g := make([]float64, len(exp.RGrid))
		for i, r := range exp.RGrid {
			phi[i] = truth.Potential(r, rmax)
			g[i] = truth.Correction(r)
		}
		figs[0].Truth = &report.Series{Name: "truth", X: exp.TGrid, Y: sol.Component(0)}
		figs[1].Truth = &report.Series{Name: "truth", X: exp.RGrid, Y: phi}
		figs[2].Truth = &report.Series{Name: "−3GM·L²/(c²r⁴)", X: exp.RGrid, Y: g}
		figs[3].Truth = &report.Series{Name: "truth", X: exp.TGrid, Y: tx}
	}
	if err := report.SaveOrbit(orbit, run.Path("orbit.pdf")); err != nil {
		log.Fatalf("plot orbit: %v", err)
	}
	for i, name := range []string{"radius.pdf", "potential.pdf", "correction.pdf", "sky_x.pdf"} {
		if err := report.SaveBand(figs[i], run.Path(name)); err != nil {
			log.Fatalf("plot %s: %v", name, err)
		}
	}

	histories := runner.Collect(outs, func(o kepler.Outcome) []float64 { return o.History })
	if err := report.SaveLoss("Training loss", histories, cfg.AcceptanceThreshold(), run.Path("loss.pdf")); err != nil {
		log.Fatalf("plot loss: %v", err)
	}
	var truthVals []float64
	if synthetic {
		truthVals = make([]float64, kepler.NumPhysical)
		truth.Put(truthVals)
	}
	for _, k := range []int{kepler.IdxL, kepler.IdxNode, kepler.IdxIncl} {
		var mark *float64
		if truthVals != nil {
			mark = &truthVals[k]
		}
		name := kepler.ParamNames[k]
		if err := report.SaveHistogram(name, name, runner.Column(reported, k), mark, run.Path("hist_"+name+".pdf")); err != nil {
			log.Printf("histogram %s skipped: %v", name, err)
		}
	}

	// ----------------------------
	// Loss landscape over (Ω, i) at the best fit
	// ----------------------------
	bp := outs[best].Params
	nodes := floats.Span(make([]float64, landscapeNodes), bp[kepler.IdxNode]-landscapeNodeW, bp[kepler.IdxNode]+landscapeNodeW)
	incls := floats.Span(make([]float64, landscapeIncls), bp[kepler.IdxIncl]-landscapeInclW, bp[kepler.IdxIncl]+landscapeInclW)
	land, err := exp.Model.Landscape(ctx, obs, bp, nodes, incls, cfg.EffectiveWorkers())
	if err != nil {
		log.Fatalf("landscape: %v", err)
	}
	grid := report.Grid{Xs: nodes, Ys: incls, Values: land}
	mark := &plotter.XY{X: bp[kepler.IdxNode], Y: bp[kepler.IdxIncl]}
	if err := report.SaveHeatmap("log10 χ² over (Ω, i)", "Ω [rad]", "i [rad]", grid, mark, run.Path("landscape.pdf")); err != nil {
		log.Fatalf("plot landscape: %v", err)
	}
	var lx, ly, lz []float64
	for j, inc := range incls {
		for i, node := range nodes {
			lx = append(lx, node)
			ly = append(ly, inc)
			lz = append(lz, land[j][i])
		}
	}
	if err := dataset.WriteCSV(run.Path("landscape.csv"), []string{"node", "incl", "log10_chi2"}, [][]float64{lx, ly, lz}); err != nil {
		log.Fatalf("landscape csv: %v", err)
	}

	if cfg.HTML {
		if err := report.WriteHTML(run.Path("charts.html"), "Kepler orbit fit", figs); err != nil {
			log.Fatalf("html: %v", err)
		}
	}
	log.Printf("Done. Results in %s", run.Dir)
}
