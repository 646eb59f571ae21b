package oscillator

import "github.com/mohammadijoo/NeuralODE_Fits_Go/internal/config"

// Synthetic data set of the oscillator program.
const (
	SyntheticSamples = 60
	SyntheticSpan    = 20.0
	SyntheticSigma   = 0.05
)

// DefaultConfig returns the run configuration of the oscillator program.
func DefaultConfig() config.RunConfig {
	c := config.Defaults()
	c.Hidden = []int{8}
	return c
}
