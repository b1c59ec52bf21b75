package network

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// snapshot is the wire form of a network's parameters. Optimizer state is
// deliberately excluded: a restored network resumes with fresh Adam moments,
// the same way the original parameters-only checkpoints behaved.
type snapshot struct {
	Dims    []int
	LR      float64
	Weights [][]float64 // row-major, out*in per layer
	Biases  [][]float64
}

// MarshalBinary encodes the network parameters as an opaque gob blob.
func (m *MLP) MarshalBinary() ([]byte, error) {
	snap := snapshot{
		Dims: append([]int(nil), m.dims...),
		LR:   m.lr,
	}
	for _, l := range m.layers {
		snap.Weights = append(snap.Weights, append([]float64(nil), l.w.RawMatrix().Data...))
		snap.Biases = append(snap.Biases, append([]float64(nil), l.b.RawVector().Data...))
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("encode network snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary rebuilds the network from a blob produced by
// MarshalBinary, replacing all parameters and resetting optimizer state.
func (m *MLP) UnmarshalBinary(data []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("decode network snapshot: %w", err)
	}
	if len(snap.Dims) < 2 || len(snap.Weights) != len(snap.Dims)-1 || len(snap.Biases) != len(snap.Dims)-1 {
		return fmt.Errorf("%w: malformed snapshot", ErrArchitecture)
	}

	layers := make([]*layer, 0, len(snap.Dims)-1)
	for l := 1; l < len(snap.Dims); l++ {
		in, out := snap.Dims[l-1], snap.Dims[l]
		if len(snap.Weights[l-1]) != out*in || len(snap.Biases[l-1]) != out {
			return fmt.Errorf("%w: snapshot layer %d shape mismatch", ErrArchitecture, l)
		}
		layers = append(layers, &layer{
			w:  mat.NewDense(out, in, append([]float64(nil), snap.Weights[l-1]...)),
			b:  mat.NewVecDense(out, append([]float64(nil), snap.Biases[l-1]...)),
			mW: mat.NewDense(out, in, nil),
			vW: mat.NewDense(out, in, nil),
			mB: mat.NewVecDense(out, nil),
			vB: mat.NewVecDense(out, nil),
		})
	}

	m.dims = snap.Dims
	m.lr = snap.LR
	m.layers = layers
	m.step = 0
	return nil
}
