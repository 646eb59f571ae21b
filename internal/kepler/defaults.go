package kepler

import "github.com/mohammadijoo/NeuralODE_Fits_Go/internal/config"

// Synthetic astrometry of the Kepler program: about one and a half orbits.
const (
	SyntheticEpochs = 40
	SyntheticSpan   = 12.0
	SyntheticSigma  = 0.02
)

// DefaultConfig returns the run configuration of the Kepler program. The
// fixed-step solver needs 16 substeps per epoch to resolve periapsis.
func DefaultConfig() config.RunConfig {
	c := config.Defaults()
	c.Hidden = []int{8}
	c.Substeps = 16
	c.Iterations = 250
	return c
}
