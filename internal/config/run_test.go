package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.95, cfg.Confidence)
	assert.Equal(t, []int{8, 8}, cfg.Hidden)
}

func TestLoadOverlaysPartialFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"repetitions": 5, "hidden": [4], "html": true}`), 0o644))

	base := Defaults()
	cfg, err := Load(path, base)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Repetitions)
	assert.Equal(t, []int{4}, cfg.Hidden)
	assert.True(t, cfg.HTML)
	assert.Equal(t, base.Iterations, cfg.Iterations)
	assert.Equal(t, []int{8, 8}, base.Hidden, "base must not be mutated")
}

func TestLoadRejects(t *testing.T) {
	dir := t.TempDir()

	t.Run("extension", func(t *testing.T) {
		path := filepath.Join(dir, "run.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
		_, err := Load(path, Defaults())
		assert.Error(t, err)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "nope.json"), Defaults())
		assert.Error(t, err)
	})

	t.Run("bad json", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"repetitions":`), 0o644))
		_, err := Load(path, Defaults())
		assert.Error(t, err)
	})

	t.Run("invalid value", func(t *testing.T) {
		path := filepath.Join(dir, "invalid.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"confidence": 1.5}`), 0o644))
		_, err := Load(path, Defaults())
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*RunConfig){
		"repetitions":   func(c *RunConfig) { c.Repetitions = 0 },
		"workers":       func(c *RunConfig) { c.Workers = -1 },
		"iterations":    func(c *RunConfig) { c.Iterations = 0 },
		"learning rate": func(c *RunConfig) { c.LearningRate = 0 },
		"threshold":     func(c *RunConfig) { c.LossThreshold = -1 },
		"refine":        func(c *RunConfig) { c.RefineIterations = -2 },
		"decay":         func(c *RunConfig) { c.WeightDecay = -1 },
		"noise":         func(c *RunConfig) { c.NoiseScale = -0.1 },
		"confidence":    func(c *RunConfig) { c.Confidence = 0 },
		"substeps":      func(c *RunConfig) { c.Substeps = 0 },
		"output":        func(c *RunConfig) { c.OutputDir = "" },
		"hidden":        func(c *RunConfig) { c.Hidden = []int{4, 0} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestEffectiveWorkers(t *testing.T) {
	cfg := Defaults()
	cfg.Workers = 3
	assert.Equal(t, 3, cfg.EffectiveWorkers())
	cfg.Workers = 0
	assert.Positive(t, cfg.EffectiveWorkers())
}

func TestAcceptanceThresholdScalesWithNoise(t *testing.T) {
	cfg := Defaults()
	cfg.LossThreshold = 2
	cfg.NoiseScale = 0
	assert.Equal(t, 2.0, cfg.AcceptanceThreshold())
	cfg.NoiseScale = 1
	assert.Equal(t, 4.0, cfg.AcceptanceThreshold())
	cfg.NoiseScale = 0.5
	assert.InDelta(t, 2.5, cfg.AcceptanceThreshold(), 1e-12)
}
