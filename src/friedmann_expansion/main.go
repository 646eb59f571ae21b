// ------------------------------------------------------------
// Friedmann expansion with a LEARNED dark-energy density
// ------------------------------------------------------------
// Flat universe, redshift as the integration variable:
//   E²(z) = Ωm(1+z)³ + (1−Ωm)·exp(g_θ(z) − g_θ(0))
//   dχ/dz = 1/E,   dt/dz = 1/((1+z)E)
//   μ(z)  = 5·log10((1+z)·χ) + M
// Fitted to supernova distance moduli. Synthetic data follow a CPL
// equation of state w(z) = w0 + wa·z/(1+z).
//
// Output folder:
//   output/friedmann_expansion/data.csv               (synthetic runs only)
//   output/friedmann_expansion/params.csv, summary.csv
//   output/friedmann_expansion/band_*.csv
//   output/friedmann_expansion/*.pdf, charts.html (with -html)
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
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/cosmology"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/report"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/runner"
)

const program = "friedmann_expansion"

const dataStream = 1 << 62

func main() {
	flags := runner.RegisterFlags(flag.CommandLine)
	flag.Parse()

	cfg, err := flags.Apply(cosmology.DefaultConfig())
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
	truth := cosmology.DefaultTruth()
	synthetic := flags.Data == ""
	var obs cosmology.Observations
	if synthetic {
		rng := rand.New(rand.NewPCG(cfg.Seed, dataStream))
		obs, err = cosmology.Synthesize(truth, cosmology.SyntheticCount, cosmology.SyntheticZMax, cosmology.SyntheticSigma, rng)
		if err == nil {
			err = obs.Save(run.Path("data.csv"))
		}
	} else {
		obs, err = cosmology.Load(flags.Data)
	}
	if err != nil {
		log.Fatalf("data: %v", err)
	}
	log.Printf("%d supernovae up to z=%.3g", len(obs.Z), obs.Z[len(obs.Z)-1])

	// ----------------------------
	// Bootstrap
	// ----------------------------
	exp := &cosmology.Experiment{
		Model:       cosmology.NewModel(cfg.Hidden, cfg.Substeps),
		Obs:         obs,
		Trainer:     run.Trainer(),
		WeightDecay: cfg.WeightDecay,
		NoiseScale:  cfg.NoiseScale,
		ZGrid:       cosmology.RedshiftGrid(obs, 151),
	}
	samples, stats, err := bootstrap.Run[cosmology.Outcome](ctx, run.Bootstrap(), exp.Repetition)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	log.Printf("bootstrap: %d/%d repetitions accepted", stats.Accepted, stats.Attempted)

	outs := bootstrap.Values(samples)
	physical := runner.Collect(outs, func(o cosmology.Outcome) []float64 { return cosmology.Physical(o.Params) })
	losses := make([]float64, len(outs))
	for i, o := range outs {
		losses[i] = o.Loss
	}

	sums := bootstrap.Summarize(cosmology.ParamNames, physical, cfg.Confidence)
	if err := run.WriteSummary(sums, stats); err != nil {
		log.Fatalf("summary: %v", err)
	}
	if len(outs) == 0 {
		log.Fatalf("no repetition reached loss threshold %g", cfg.AcceptanceThreshold())
	}
	if err := run.WriteParams(cosmology.ParamNames, runner.Reps(samples), physical, losses); err != nil {
		log.Fatalf("params: %v", err)
	}
	for _, s := range sums {
		log.Printf("  %-8s mean=%.4g std=%.3g CI=[%.4g, %.4g]", s.Name, s.Mean, s.StdDev, s.Lower, s.Upper)
	}

	// ----------------------------
	// Bands and figures
	// ----------------------------
	z := exp.ZGrid
	curves := []struct {
		name, title, ylabel string
		field               func(cosmology.Outcome) []float64
		truth               func(z float64) float64
	}{
		{"hubble", "Expansion rate", "E(z) = H/H0", func(o cosmology.Outcome) []float64 { return o.E }, truth.E},
		{"density", "Dark-energy density", "ρ_DE(z)/ρ_DE(0)", func(o cosmology.Outcome) []float64 { return o.F }, truth.F},
		{"eos", "Equation of state", "w(z)", func(o cosmology.Outcome) []float64 { return o.W }, truth.W},
		{"lookback", "Lookback time", "H0·t(z)", func(o cosmology.Outcome) []float64 { return o.Lookback }, nil},
		{"modulus", "Hubble diagram", "μ(z)", func(o cosmology.Outcome) []float64 { return o.Mu }, nil},
	}
	var figs []report.BandFigure
	for _, c := range curves {
		b, err := bootstrap.Aggregate(z, runner.Collect(outs, c.field), cfg.Confidence)
		if err != nil {
			log.Fatalf("aggregate %s: %v", c.name, err)
		}
		if err := run.WriteBand(c.name, b); err != nil {
			log.Fatalf("band %s: %v", c.name, err)
		}
		fig := report.BandFigure{Title: c.title, XLabel: "z", YLabel: c.ylabel, Band: b}
		if synthetic && c.truth != nil {
			y := make([]float64, len(z))
			for i, zi := range z {
				y[i] = c.truth(zi)
			}
			fig.Truth = &report.Series{Name: "CPL truth", X: z, Y: y}
		}
		if c.name == "modulus" {
			fig.Data = &report.Points{Name: "supernovae", X: obs.Z, Y: obs.Mu, YErr: obs.Sigma}
		}
		if err := report.SaveBand(fig, run.Path(c.name+".pdf")); err != nil {
			log.Fatalf("plot %s: %v", c.name, err)
		}
		figs = append(figs, fig)
	}

	histories := runner.Collect(outs, func(o cosmology.Outcome) []float64 { return o.History })
	if err := report.SaveLoss("Training loss", histories, cfg.AcceptanceThreshold(), run.Path("loss.pdf")); err != nil {
		log.Fatalf("plot loss: %v", err)
	}
	var mark *float64
	if synthetic {
		mark = &truth.OmegaM
	}
	if err := report.SaveHistogram("Ωm", "Ωm", runner.Column(physical, 0), mark, run.Path("hist_omega_m.pdf")); err != nil {
		log.Printf("histogram omega_m skipped: %v", err)
	}

	if cfg.HTML {
		if err := report.WriteHTML(run.Path("charts.html"), "Friedmann expansion fit", figs); err != nil {
			log.Fatalf("html: %v", err)
		}
	}
	log.Printf("Done. Results in %s", run.Dir)
}
