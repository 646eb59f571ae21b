// Package nn evaluates the small feed-forward networks used as learned
// correction terms. A network holds no weights of its own: every call takes the
// flat parameter vector being optimized, so one MLP value can be shared by
// concurrent fits.
package nn

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// OutputScale shrinks the initial output layer so the learned term starts
// close to zero and the known physics dominates the first iterations.
const OutputScale = 0.1

// stackWidth is the layer width up to which Forward needs no heap buffers.
const stackWidth = 64

// MLP is a fully connected network with tanh hidden layers and a linear
// output layer. Sizes lists the width of every layer, input first.
type MLP struct {
	Sizes []int
}

// New returns an MLP with the given input width, hidden widths and output width.
func New(in int, hidden []int, out int) MLP {
	sizes := make([]int, 0, len(hidden)+2)
	sizes = append(sizes, in)
	sizes = append(sizes, hidden...)
	sizes = append(sizes, out)
	return MLP{Sizes: sizes}
}

// NumParams returns the length of the flat parameter vector: for every layer
// a row-major weight block followed by the biases.
func (m MLP) NumParams() int {
	n := 0
	for l := 1; l < len(m.Sizes); l++ {
		n += m.Sizes[l-1]*m.Sizes[l] + m.Sizes[l]
	}
	return n
}

func (m MLP) maxWidth() int {
	w := 0
	for _, s := range m.Sizes {
		if s > w {
			w = s
		}
	}
	return w
}

// Forward evaluates the network on in and writes the result into out.
func (m MLP) Forward(params, in, out []float64) {
	if len(params) != m.NumParams() {
		panic(fmt.Sprintf("nn: got %d parameters, network needs %d", len(params), m.NumParams()))
	}
	var bufA, bufB [stackWidth]float64
	cur, next := bufA[:], bufB[:]
	if width := m.maxWidth(); width > stackWidth {
		cur = make([]float64, width)
		next = make([]float64, width)
	}
	copy(cur, in)

	off := 0
	last := len(m.Sizes) - 1
	for l := 1; l <= last; l++ {
		nIn, nOut := m.Sizes[l-1], m.Sizes[l]
		w := params[off : off+nIn*nOut]
		b := params[off+nIn*nOut : off+nIn*nOut+nOut]
		off += nIn*nOut + nOut

		for j := 0; j < nOut; j++ {
			acc := b[j]
			row := w[j*nIn : (j+1)*nIn]
			for i, x := range cur[:nIn] {
				acc += row[i] * x
			}
			if l < last {
				acc = math.Tanh(acc)
			}
			next[j] = acc
		}
		cur, next = next, cur
	}
	copy(out, cur[:m.Sizes[last]])
}

// Scalar evaluates a one-input, one-output network at x.
func (m MLP) Scalar(params []float64, x float64) float64 {
	var in, out [1]float64
	in[0] = x
	m.Forward(params, in[:], out[:])
	return out[0]
}

// Init fills params with Glorot-normal weights and zero biases. The output
// layer is scaled by OutputScale.
func (m MLP) Init(params []float64, src rand.Source) {
	off := 0
	last := len(m.Sizes) - 1
	for l := 1; l <= last; l++ {
		nIn, nOut := m.Sizes[l-1], m.Sizes[l]
		sigma := math.Sqrt(2.0 / float64(nIn+nOut))
		if l == last {
			sigma *= OutputScale
		}
		dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: src}
		for i := 0; i < nIn*nOut; i++ {
			params[off+i] = dist.Rand()
		}
		off += nIn * nOut
		for i := 0; i < nOut; i++ {
			params[off+i] = 0
		}
		off += nOut
	}
}
