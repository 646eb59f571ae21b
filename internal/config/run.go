package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid run configuration")

// maxFileSize bounds the size of a run configuration file.
const maxFileSize = 1 * 1024 * 1024

// RunConfig holds the knobs shared by the fitting programs. Every program
// starts from its own defaults and overlays an optional JSON file and flags.
type RunConfig struct {
	// Repetitions is the number of bootstrap fits attempted.
	Repetitions int `json:"repetitions"`
	// Workers bounds the number of concurrent fits. Zero means GOMAXPROCS.
	Workers int `json:"workers"`
	Seed    uint64 `json:"seed"`

	Iterations       int     `json:"iterations"`
	LearningRate     float64 `json:"learning_rate"`
	// LossThreshold applies to unperturbed data; see AcceptanceThreshold.
	LossThreshold    float64 `json:"loss_threshold"`
	RefineIterations int     `json:"refine_iterations"`
	WeightDecay      float64 `json:"weight_decay"`

	// Hidden lists the widths of the hidden layers of the correction network.
	Hidden []int `json:"hidden"`

	// NoiseScale multiplies the measurement errors when perturbing data for
	// each bootstrap repetition. Zero refits the same data every time.
	NoiseScale float64 `json:"noise_scale"`
	Confidence float64 `json:"confidence"`

	Substeps int `json:"substeps"`

	OutputDir string `json:"output_dir"`
	HTML      bool   `json:"html"`
}

// Defaults returns the baseline configuration used when a program does not
// override a field.
func Defaults() RunConfig {
	return RunConfig{
		Repetitions:      32,
		Workers:          0,
		Seed:             1,
		Iterations:       400,
		LearningRate:     0.01,
		LossThreshold:    2.0,
		RefineIterations: 50,
		WeightDecay:      1e-4,
		Hidden:           []int{8, 8},
		NoiseScale:       1.0,
		Confidence:       0.95,
		Substeps:         4,
		OutputDir:        "output",
	}
}

// Load reads a JSON run configuration and overlays it onto base. Fields the
// file omits keep the base value, so partial files are fine.
func Load(path string, base RunConfig) (RunConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return base, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return base, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return base, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return base, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := base
	cfg.Hidden = append([]int(nil), base.Hidden...)
	if err := json.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

// Validate reports the first field that cannot drive a run.
func (c RunConfig) Validate() error {
	switch {
	case c.Repetitions <= 0:
		return fmt.Errorf("%w: repetitions must be positive, got %d", ErrInvalid, c.Repetitions)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalid, c.Workers)
	case c.Iterations <= 0:
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalid, c.Iterations)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive, got %g", ErrInvalid, c.LearningRate)
	case c.LossThreshold <= 0:
		return fmt.Errorf("%w: loss_threshold must be positive, got %g", ErrInvalid, c.LossThreshold)
	case c.RefineIterations < 0:
		return fmt.Errorf("%w: refine_iterations must be non-negative, got %d", ErrInvalid, c.RefineIterations)
	case c.WeightDecay < 0:
		return fmt.Errorf("%w: weight_decay must be non-negative, got %g", ErrInvalid, c.WeightDecay)
	case c.NoiseScale < 0:
		return fmt.Errorf("%w: noise_scale must be non-negative, got %g", ErrInvalid, c.NoiseScale)
	case c.Confidence <= 0 || c.Confidence >= 1:
		return fmt.Errorf("%w: confidence must lie in (0, 1), got %g", ErrInvalid, c.Confidence)
	case c.Substeps <= 0:
		return fmt.Errorf("%w: substeps must be positive, got %d", ErrInvalid, c.Substeps)
	case c.OutputDir == "":
		return fmt.Errorf("%w: output_dir must not be empty", ErrInvalid)
	}
	for i, h := range c.Hidden {
		if h <= 0 {
			return fmt.Errorf("%w: hidden[%d] must be positive, got %d", ErrInvalid, i, h)
		}
	}
	return nil
}

// AcceptanceThreshold is the reduced χ² a bootstrap fit must beat. Replicas
// carry the measurement noise of the data plus NoiseScale times as much
// again, so even the true model scores about 1+NoiseScale² and the base
// threshold is scaled by the same factor.
func (c RunConfig) AcceptanceThreshold() float64 {
	return c.LossThreshold * (1 + c.NoiseScale*c.NoiseScale)
}

// EffectiveWorkers resolves a zero worker count to GOMAXPROCS.
func (c RunConfig) EffectiveWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
