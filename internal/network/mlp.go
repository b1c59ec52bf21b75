// Package network implements the value-function approximator: a small
// fully-connected network with ReLU hidden layers, trained with Adam on
// mean-squared error over selected action values.
package network

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Network errors.
var (
	// ErrArchitecture is returned for an unusable layer specification.
	ErrArchitecture = errors.New("network needs at least input and output dimensions")

	// ErrDimensionMismatch is returned when an input does not match the
	// network's input dimension or when batch slices disagree in length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// Adam constants. Fixed, matching the common defaults.
const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

type layer struct {
	w *mat.Dense    // out x in
	b *mat.VecDense // out

	// Adam moment estimates, same shapes as w and b.
	mW, vW *mat.Dense
	mB, vB *mat.VecDense
}

// MLP is a multilayer perceptron mapping an observation to one value estimate
// per action. Hidden layers use ReLU, the output layer is linear. The Adam
// optimizer state lives inside the network; TrainBatch performs exactly one
// gradient step.
type MLP struct {
	dims   []int
	layers []*layer
	lr     float64
	step   int // Adam timestep
}

// New builds an MLP with the given layer dimensions, e.g. New(rng, 1e-3, 3,
// 64, 64, 7). Weights use He initialization drawn from the supplied rng so
// construction is reproducible; biases start at zero.
func New(rng *rand.Rand, lr float64, dims ...int) (*MLP, error) {
	if len(dims) < 2 {
		return nil, ErrArchitecture
	}
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("%w: non-positive layer size %d", ErrArchitecture, d)
		}
	}
	if lr <= 0 {
		return nil, fmt.Errorf("%w: non-positive learning rate %v", ErrArchitecture, lr)
	}

	m := &MLP{dims: append([]int(nil), dims...), lr: lr}
	for l := 1; l < len(dims); l++ {
		in, out := dims[l-1], dims[l]
		data := make([]float64, out*in)
		sigma := math.Sqrt(2.0 / float64(in))
		for i := range data {
			data[i] = rng.NormFloat64() * sigma
		}
		m.layers = append(m.layers, &layer{
			w:  mat.NewDense(out, in, data),
			b:  mat.NewVecDense(out, nil),
			mW: mat.NewDense(out, in, nil),
			vW: mat.NewDense(out, in, nil),
			mB: mat.NewVecDense(out, nil),
			vB: mat.NewVecDense(out, nil),
		})
	}
	return m, nil
}

// InputDim returns the expected observation size.
func (m *MLP) InputDim() int { return m.dims[0] }

// OutputDim returns the number of action values produced.
func (m *MLP) OutputDim() int { return m.dims[len(m.dims)-1] }

// Forward evaluates the network for a single observation.
func (m *MLP) Forward(x []float64) ([]float64, error) {
	if len(x) != m.dims[0] {
		return nil, fmt.Errorf("%w: observation has %d values, network expects %d", ErrDimensionMismatch, len(x), m.dims[0])
	}
	a := append([]float64(nil), x...)
	for li, l := range m.layers {
		out := l.w.RawMatrix().Rows
		next := make([]float64, out)
		for i := 0; i < out; i++ {
			sum := l.b.AtVec(i)
			for j, v := range a {
				sum += l.w.At(i, j) * v
			}
			if li < len(m.layers)-1 && sum < 0 {
				sum = 0 // ReLU
			}
			next[i] = sum
		}
		a = next
	}
	return a, nil
}

// Argmax returns the index of the highest action value for the observation.
func (m *MLP) Argmax(x []float64) (int, error) {
	q, err := m.Forward(x)
	if err != nil {
		return 0, err
	}
	best := 0
	for i := 1; i < len(q); i++ {
		if q[i] > q[best] {
			best = i
		}
	}
	return best, nil
}

// forwardBatch runs the batch through all layers, returning the pre-activation
// and post-activation matrices per layer for use in the backward pass.
// acts[0] is the input itself.
func (m *MLP) forwardBatch(x *mat.Dense) (pre, acts []*mat.Dense) {
	acts = append(acts, x)
	cur := x
	for li, l := range m.layers {
		var z mat.Dense
		z.Mul(cur, l.w.T())
		rows, cols := z.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				z.Set(i, j, z.At(i, j)+l.b.AtVec(j))
			}
		}
		pre = append(pre, &z)

		if li < len(m.layers)-1 {
			var a mat.Dense
			a.Apply(func(_, _ int, v float64) float64 {
				if v < 0 {
					return 0
				}
				return v
			}, &z)
			acts = append(acts, &a)
			cur = &a
		} else {
			acts = append(acts, &z)
			cur = &z
		}
	}
	return pre, acts
}

// TrainBatch performs one Adam step on the mean-squared error between
// Q(s_i, a_i) and targets_i and returns the scalar loss. Only the selected
// action's output contributes gradient per sample.
func (m *MLP) TrainBatch(states [][]float64, actions []int, targets []float64) (float64, error) {
	n := len(states)
	if n == 0 || len(actions) != n || len(targets) != n {
		return 0, fmt.Errorf("%w: batch of %d states, %d actions, %d targets", ErrDimensionMismatch, n, len(actions), len(targets))
	}
	for i, s := range states {
		if len(s) != m.dims[0] {
			return 0, fmt.Errorf("%w: state %d has %d values, network expects %d", ErrDimensionMismatch, i, len(s), m.dims[0])
		}
		if actions[i] < 0 || actions[i] >= m.OutputDim() {
			return 0, fmt.Errorf("%w: action %d out of range [0, %d)", ErrDimensionMismatch, actions[i], m.OutputDim())
		}
	}

	x := mat.NewDense(n, m.dims[0], nil)
	for i, s := range states {
		x.SetRow(i, s)
	}
	pre, acts := m.forwardBatch(x)
	q := acts[len(acts)-1]

	// Output gradient: dL/dQ is zero except at the selected action, where it
	// is 2*(Q - y)/n for an MSE averaged over the batch.
	loss := 0.0
	grad := mat.NewDense(n, m.OutputDim(), nil)
	for i := 0; i < n; i++ {
		diff := q.At(i, actions[i]) - targets[i]
		loss += diff * diff
		grad.Set(i, actions[i], 2*diff/float64(n))
	}
	loss /= float64(n)

	m.backward(pre, acts, grad)
	return loss, nil
}

// backward propagates grad (dL/dZ of the output layer) through the layers and
// applies one Adam update per parameter tensor.
func (m *MLP) backward(pre, acts []*mat.Dense, grad *mat.Dense) {
	m.step++
	g := grad
	for li := len(m.layers) - 1; li >= 0; li-- {
		l := m.layers[li]

		var dW mat.Dense
		dW.Mul(g.T(), acts[li])

		rows, _ := g.Dims()
		out := l.b.Len()
		dB := mat.NewVecDense(out, nil)
		for j := 0; j < out; j++ {
			sum := 0.0
			for i := 0; i < rows; i++ {
				sum += g.At(i, j)
			}
			dB.SetVec(j, sum)
		}

		if li > 0 {
			var dA mat.Dense
			dA.Mul(g, l.w)
			// Gate through the previous layer's ReLU.
			var dZ mat.Dense
			dZ.Apply(func(i, j int, v float64) float64 {
				if pre[li-1].At(i, j) <= 0 {
					return 0
				}
				return v
			}, &dA)
			g = &dZ
		}

		m.adamUpdate(l.w.RawMatrix().Data, dW.RawMatrix().Data, l.mW.RawMatrix().Data, l.vW.RawMatrix().Data)
		m.adamUpdate(l.b.RawVector().Data, dB.RawVector().Data, l.mB.RawVector().Data, l.vB.RawVector().Data)
	}
}

func (m *MLP) adamUpdate(param, grad, mom, vel []float64) {
	c1 := 1 - math.Pow(adamBeta1, float64(m.step))
	c2 := 1 - math.Pow(adamBeta2, float64(m.step))
	for i := range param {
		g := grad[i]
		mom[i] = adamBeta1*mom[i] + (1-adamBeta1)*g
		vel[i] = adamBeta2*vel[i] + (1-adamBeta2)*g*g
		mhat := mom[i] / c1
		vhat := vel[i] / c2
		param[i] -= m.lr * mhat / (math.Sqrt(vhat) + adamEps)
	}
}

// CopyFrom replaces this network's parameters with an exact copy of src's.
// Optimizer state is not copied; the target network is never trained.
func (m *MLP) CopyFrom(src *MLP) error {
	if len(m.dims) != len(src.dims) {
		return fmt.Errorf("%w: incompatible architectures", ErrDimensionMismatch)
	}
	for i := range m.dims {
		if m.dims[i] != src.dims[i] {
			return fmt.Errorf("%w: incompatible architectures", ErrDimensionMismatch)
		}
	}
	for li, l := range m.layers {
		l.w.Copy(src.layers[li].w)
		l.b.CopyVec(src.layers[li].b)
	}
	return nil
}
