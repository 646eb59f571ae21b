package cosmology

import "github.com/mohammadijoo/NeuralODE_Fits_Go/internal/config"

// Synthetic supernova sample of the Friedmann program.
const (
	SyntheticCount = 80
	SyntheticZMax  = 1.5
	SyntheticSigma = 0.15
)

// DefaultConfig returns the run configuration of the Friedmann program.
func DefaultConfig() config.RunConfig {
	c := config.Defaults()
	c.Hidden = []int{6}
	c.WeightDecay = 1e-3
	return c
}
