package nn

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumParams(t *testing.T) {
	m := New(1, []int{8, 8}, 1)
	assert.Equal(t, []int{1, 8, 8, 1}, m.Sizes)
	// 1*8+8 + 8*8+8 + 8*1+1
	assert.Equal(t, 97, m.NumParams())
	assert.Equal(t, 2, New(1, nil, 1).NumParams())
}

func TestForwardHandComputed(t *testing.T) {
	m := New(2, []int{2}, 1)
	params := []float64{
		// hidden weights (row per output), biases
		1, 0,
		0, 1,
		0.5, -0.5,
		// output weights, bias
		2, 3,
		0.25,
	}
	require.Len(t, params, m.NumParams())

	out := make([]float64, 1)
	m.Forward(params, []float64{0.2, 0.7}, out)
	want := 2*math.Tanh(0.2+0.5) + 3*math.Tanh(0.7-0.5) + 0.25
	assert.InDelta(t, want, out[0], 1e-12)
}

func TestLinearWithoutHidden(t *testing.T) {
	m := New(1, nil, 1)
	assert.InDelta(t, 3*4.0-1, m.Scalar([]float64{3, -1}, 4), 1e-12)
}

func TestForwardPanicsOnWrongLength(t *testing.T) {
	m := New(1, []int{4}, 1)
	assert.Panics(t, func() { m.Scalar(make([]float64, 3), 1) })
}

func TestInitDeterministicAndSmallOutput(t *testing.T) {
	m := New(1, []int{16, 16}, 1)
	a := make([]float64, m.NumParams())
	b := make([]float64, m.NumParams())
	m.Init(a, rand.NewPCG(7, 1))
	m.Init(b, rand.NewPCG(7, 1))
	assert.Equal(t, a, b)

	// Biases start at zero.
	assert.Zero(t, a[16])

	// The output layer is scaled down, so outputs stay modest.
	for _, x := range []float64{-2, -1, 0, 1, 2} {
		assert.Less(t, math.Abs(m.Scalar(a, x)), 2.0)
	}
}
