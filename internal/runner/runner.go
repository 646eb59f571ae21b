// Package runner holds the command-line and output plumbing shared by the
// fitting programs: flag parsing over a JSON configuration, the run
// directory and the CSV tables every program writes.
package runner

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/bootstrap"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/config"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/dataset"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/fit"
	"github.com/mohammadijoo/NeuralODE_Fits_Go/internal/monitoring"
)

// Flags are the options common to every program.
type Flags struct {
	fs *flag.FlagSet

	Config  string
	Data    string
	Out     string
	Reps    int
	Workers int
	Seed    uint64
	HTML    bool
}

// RegisterFlags defines the common flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{fs: fs}
	fs.StringVar(&f.Config, "config", "", "JSON run configuration")
	fs.StringVar(&f.Data, "data", "", "observations CSV (synthetic data when empty)")
	fs.StringVar(&f.Out, "out", "", "output root directory")
	fs.IntVar(&f.Reps, "reps", 0, "bootstrap repetitions")
	fs.IntVar(&f.Workers, "workers", 0, "concurrent fits (0 = GOMAXPROCS)")
	fs.Uint64Var(&f.Seed, "seed", 0, "random seed")
	fs.BoolVar(&f.HTML, "html", false, "also write interactive HTML charts")
	return f
}

// Apply overlays the configuration file and then every flag given on the
// command line onto base. Flags left at their default do not override.
func (f *Flags) Apply(base config.RunConfig) (config.RunConfig, error) {
	cfg := base
	if f.Config != "" {
		var err error
		if cfg, err = config.Load(f.Config, base); err != nil {
			return base, err
		}
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "out":
			cfg.OutputDir = f.Out
		case "reps":
			cfg.Repetitions = f.Reps
		case "workers":
			cfg.Workers = f.Workers
		case "seed":
			cfg.Seed = f.Seed
		case "html":
			cfg.HTML = f.HTML
		}
	})
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// Run is one invocation of a program.
type Run struct {
	ID      uuid.UUID
	Program string
	Dir     string
	Config  config.RunConfig
}

// Start creates the output directory of program and logs the run.
func Start(program string, cfg config.RunConfig) (*Run, error) {
	r := &Run{
		ID:      uuid.New(),
		Program: program,
		Dir:     filepath.Join(cfg.OutputDir, program),
		Config:  cfg,
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create output dir: %w", err)
	}
	monitoring.Logf("%s: run %s: %d repetitions on %d workers, seed %d, hidden %v",
		program, r.ID, cfg.Repetitions, cfg.EffectiveWorkers(), cfg.Seed, cfg.Hidden)
	return r, nil
}

// Path returns name inside the run directory.
func (r *Run) Path(name string) string {
	return filepath.Join(r.Dir, name)
}

// Trainer returns the trainer configured by the run. Finite-difference
// gradients run concurrently only when the bootstrap itself is serial.
func (r *Run) Trainer() *fit.Trainer {
	c := r.Config
	return fit.NewTrainer(fit.TrainerConfig{
		Iterations:      c.Iterations,
		LearningRate:    c.LearningRate,
		MinLearningRate: c.LearningRate / 20,
		Threshold:       c.AcceptanceThreshold(),
		Refine:          c.RefineIterations,
		Gradient:        fit.GradientSettings{Concurrent: c.EffectiveWorkers() == 1},
	})
}

// Bootstrap returns the repetition options of the run.
func (r *Run) Bootstrap() bootstrap.Options {
	return bootstrap.Options{
		Repetitions: r.Config.Repetitions,
		Workers:     r.Config.Workers,
		Seed:        r.Config.Seed,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}

// WriteParams writes params.csv: one row per accepted repetition with its
// physical parameters and best loss.
func (r *Run) WriteParams(names []string, reps []int, params [][]float64, losses []float64) error {
	header := append([]string{"rep"}, names...)
	header = append(header, "loss")
	rows := make([][]string, len(params))
	for i, p := range params {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(reps[i]))
		for j := range names {
			row = append(row, formatFloat(p[j]))
		}
		rows[i] = append(row, formatFloat(losses[i]))
	}
	return dataset.WriteRecords(r.Path("params.csv"), header, rows)
}

// WriteSummary writes summary.csv with the run id, the repetition counts
// and the bootstrap statistics of every parameter.
func (r *Run) WriteSummary(sums []bootstrap.ParamSummary, stats bootstrap.Stats) error {
	header := []string{"run_id", "param", "mean", "std", "lower", "upper", "n", "attempted", "accepted", "confidence"}
	rows := make([][]string, len(sums))
	for i, s := range sums {
		rows[i] = []string{
			r.ID.String(),
			s.Name,
			formatFloat(s.Mean),
			formatFloat(s.StdDev),
			formatFloat(s.Lower),
			formatFloat(s.Upper),
			strconv.Itoa(s.N),
			strconv.Itoa(stats.Attempted),
			strconv.Itoa(stats.Accepted),
			formatFloat(r.Config.Confidence),
		}
	}
	return dataset.WriteRecords(r.Path("summary.csv"), header, rows)
}

// WriteBand writes a band as band_<name>.csv.
func (r *Run) WriteBand(name string, b bootstrap.Band) error {
	count := make([]float64, len(b.Count))
	for i, c := range b.Count {
		count[i] = float64(c)
	}
	return dataset.WriteCSV(r.Path("band_"+name+".csv"),
		[]string{"x", "mean", "median", "lower", "upper", "count"},
		[][]float64{b.Grid, b.Mean, b.Median, b.Lower, b.Upper, count})
}

// Collect extracts one slice from every value.
func Collect[T any](values []T, field func(T) []float64) [][]float64 {
	out := make([][]float64, len(values))
	for i, v := range values {
		out[i] = field(v)
	}
	return out
}

// Reps returns the repetition index of every sample.
func Reps[T any](samples []bootstrap.Sample[T]) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = s.Rep
	}
	return out
}

// Column returns entry k of every vector.
func Column(vectors [][]float64, k int) []float64 {
	out := make([]float64, len(vectors))
	for i, v := range vectors {
		out[i] = v[k]
	}
	return out
}
