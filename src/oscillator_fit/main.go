// ------------------------------------------------------------
// Damped nonlinear oscillator with a LEARNED restoring force
// ------------------------------------------------------------
// Model fitted to position samples x(t):
//   ẍ = −k·x − γ·ẋ + g_θ(x)
// g_θ is a small tanh network. Synthetic data come from a damped Duffing
// oscillator (cubic stiffness β), which the network has to recover.
//
// Every bootstrap repetition perturbs the samples within their error bars,
// refits from a fresh initialization and is kept only if its reduced χ²
// falls below the loss threshold.
//
// Output folder:
//   output/oscillator_fit/data.csv               (synthetic runs only)
//   output/oscillator_fit/params.csv, summary.csv
//   output/oscillator_fit/band_*.csv
//   output/oscillator_fit/*.pdf, charts.html (with -html)
// ------------------------------------------------------------

package main

import (
	"context"
	"flag"
	"log"
	"math/rand/v2"
	"os"
	"os/signal"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/bootstrap"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/oscillator"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/report"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/runner"
)

const program = "oscillator_fit"

// dataStream is the PCG stream of the synthetic data, apart from every
// repetition stream.
const dataStream = 1 << 62

func main() {
	flags := runner.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := flags.Apply(oscillator.DefaultConfig())
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
	truth := oscillator.DefaultTruth()
	synthetic := flags.Data == ""
	var obs oscillator.Observations
	if synthetic {
		rng := rand.New(rand.NewPCG(cfg.Seed, dataStream))
		obs, err = oscillator.Synthesize(truth, oscillator.SyntheticSamples, oscillator.SyntheticSpan, oscillator.SyntheticSigma, cfg.Substeps, rng)
		if err == nil {
			err = obs.Save(run.Path("data.csv"))
		}
	} else {
		obs, err = oscillator.Load(flags.Data)
	}
	if err != nil {
		log.Fatalf("data: %v", err)
	}
	log.Printf("%d samples on t ∈ [%.3g, %.3g]", obs.Len(), obs.T0, obs.T[obs.Len()-1])

	// ----------------------------
	// Bootstrap
	// ----------------------------
	exp := &oscillator.Experiment{
		Model:       oscillator.NewModel(cfg.Hidden, cfg.Substeps),
		Obs:         obs,
		Trainer:     run.Trainer(),
		WeightDecay: cfg.WeightDecay,
		NoiseScale:  cfg.NoiseScale,
		TGrid:       oscillator.TimeGrid(obs, 400),
		XGrid:       oscillator.PositionGrid(obs, 121),
	}
	log.Printf("model has %d parameters", exp.Model.NumParams())

	samples, stats, err := bootstrap.Run[oscillator.Outcome](ctx, run.Bootstrap(), exp.Repetition)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	log.Printf("bootstrap: %d/%d repetitions accepted", stats.Accepted, stats.Attempted)

	outs := bootstrap.Values(samples)
	params := runner.Collect(outs, func(o oscillator.Outcome) []float64 { return o.Params })
	losses := make([]float64, len(outs))
	for i, o := range outs {
		losses[i] = o.Loss
	}

	sums := bootstrap.Summarize(oscillator.ParamNames, params, cfg.Confidence)
	if err := run.WriteSummary(sums, stats); err != nil {
		log.Fatalf("summary: %v", err)
	}
	if len(outs) == 0 {
		log.Fatalf("no repetition reached loss threshold %g", cfg.AcceptanceThreshold())
	}
	if err := run.WriteParams(oscillator.ParamNames, runner.Reps(samples), params, losses); err != nil {
		log.Fatalf("params: %v", err)
	}
	for _, s := range sums {
		log.Printf("  %-6s mean=%.4g std=%.3g CI=[%.4g, %.4g]", s.Name, s.Mean, s.StdDev, s.Lower, s.Upper)
	}

	// ----------------------------
	// Bands
	// ----------------------------
	traj, err := bootstrap.Aggregate(exp.TGrid, runner.Collect(outs, func(o oscillator.Outcome) []float64 { return o.X }), cfg.Confidence)
	if err != nil {
		log.Fatalf("aggregate trajectory: %v", err)
	}
	pot, err := bootstrap.Aggregate(exp.XGrid, runner.Collect(outs, func(o oscillator.Outcome) []float64 { return o.Potential }), cfg.Confidence)
	if err != nil {
		log.Fatalf("aggregate potential: %v", err)
	}
	corr, err := bootstrap.Aggregate(exp.XGrid, runner.Collect(outs, func(o oscillator.Outcome) []float64 { return o.Correction }), cfg.Confidence)
	if err != nil {
		log.Fatalf("aggregate correction: %v", err)
	}
	for name, b := range map[string]bootstrap.Band{"trajectory": traj, "potential": pot, "correction": corr} {
		if err := run.WriteBand(name, b); err != nil {
			log.Fatalf("band %s: %v", name, err)
		}
	}

	// ----------------------------
	// Figures
	// ----------------------------
	figs := []report.BandFigure{
		{
			Title: "Trajectory", XLabel: "t", YLabel: "x(t)", Band: traj,
			Data: &report.Points{Name: "data", X: obs.T, Y: obs.X, YErr: obs.Sigma},
		},
		{Title: "Potential", XLabel: "x", YLabel: "V(x)", Band: pot},
		{Title: "Learned force", XLabel: "x", YLabel: "g(x)", Band: corr},
	}
	if synthetic {
		xTrue, err := truth.Simulate(exp.TGrid, cfg.Substeps)
		if err != nil {
			log.Fatalf("truth: %v", err)
		}
		vTrue := make([]float64, len(exp.XGrid))
		gTrue := make([]float64, len(exp.XGrid))
		for i, x := range exp.XGrid {
			vTrue[i] = truth.Potential(x)
			gTrue[i] = truth.Correction(x)
		}
		figs[0].Truth = &report.Series{Name: "truth", X: exp.TGrid, Y: xTrue}
		figs[1].Truth = &report.Series{Name: "truth", X: exp.XGrid, Y: vTrue}
		figs[2].Truth = &report.Series{Name: "−βx³", X: exp.XGrid, Y: gTrue}
	}
	for i, name := range []string{"trajectory.pdf", "potential.pdf", "correction.pdf"} {
		if err := report.SaveBand(figs[i], run.Path(name)); err != nil {
			log.Fatalf("plot %s: %v", name, err)
		}
	}

	histories := runner.Collect(outs, func(o oscillator.Outcome) []float64 { return o.History })
	if err := report.SaveLoss("Training loss", histories, cfg.AcceptanceThreshold(), run.Path("loss.pdf")); err != nil {
		log.Fatalf("plot loss: %v", err)
	}
	for _, k := range []int{oscillator.IdxK, oscillator.IdxGamma} {
		var mark *float64
		if synthetic {
			v := truth.Omega2
			if k == oscillator.IdxGamma {
				v = truth.Gamma
			}
			mark = &v
		}
		name := oscillator.ParamNames[k]
		if err := report.SaveHistogram(name, name, runner.Column(params, k), mark, run.Path("hist_"+name+".pdf")); err != nil {
			log.Printf("histogram %s skipped: %v", name, err)
		}
	}

	if cfg.HTML {
		if err := report.WriteHTML(run.Path("charts.html"), "Oscillator fit", figs); err != nil {
			log.Fatalf("html: %v", err)
		}
	}
	log.Printf("Done. Results in %s", run.Dir)
}
