package nn_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// TestLinearSGDStepChangesAllWeights runs Linear(10→5) on a [1,10] input of
// 0.5, backpropagates ones and takes one SGD(0.01) step.
func TestLinearSGDStepChangesAllWeights(t *testing.T) {
	nn.SetSeed(1)
	layer := nn.NewLinear(10, 5)
	x := tensor.Full(tensor.Shape{1, 10}, 0.5)

	y, err := nn.ForwardAlloc(layer, x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 5}, y.Shape())

	before := layer.Weight().Tensor().Clone()
	_, err = nn.BackwardAlloc(layer, tensor.Ones(y.Shape()), x.Shape())
	require.NoError(t, err)
	for _, g := range layer.Weight().Grad().Data() {
		assert.Equal(t, 0.5, g)
	}

	layer.Update(0.01)
	after := layer.Weight().Tensor().Data()
	require.Len(t, after, 50)
	for i, w := range before.Data() {
		assert.InDelta(t, w-0.005, after[i], 1e-15)
		assert.NotEqual(t, w, after[i], "weight %d unchanged", i)
	}
}

func TestLinearBackwardAccumulates(t *testing.T) {
	layer := nn.NewLinear(3, 2)
	x := fromSlice(t, []float64{1, 2, 3}, 1, 3)
	dy := tensor.Ones(tensor.Shape{1, 2})

	_, err := nn.ForwardAlloc(layer, x)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = nn.BackwardAlloc(layer, dy, x.Shape())
		require.NoError(t, err)
	}
	assert.Equal(t, []float64{2, 4, 6, 2, 4, 6}, layer.Weight().Grad().Data())
	assert.Equal(t, []float64{2, 2}, layer.Bias().Grad().Data())

	nn.ZeroGrad(layer)
	for _, g := range nn.Grads(layer) {
		for _, v := range g.Data() {
			assert.Zero(t, v)
		}
	}
}

func TestLinearShapeErrors(t *testing.T) {
	layer := nn.NewLinear(4, 2)

	err := layer.Forward(tensor.New(2, 3), tensor.New(2, 2))
	assert.True(t, errors.Is(err, tensor.ErrShape))

	err = layer.Forward(tensor.New(2, 4), tensor.New(2, 3))
	assert.True(t, errors.Is(err, tensor.ErrShape))

	err = layer.Backward(tensor.New(2, 2), tensor.New(2, 4))
	assert.True(t, errors.Is(err, tensor.ErrState))
}

func TestMaxPoolRoutesToArgMax(t *testing.T) {
	x := fromSlice(t, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	}, 1, 1, 4, 4)
	pool := nn.NewMaxPool2d(2, 0)

	y, err := nn.ForwardAlloc(pool, x)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 8, 14, 16}, y.Data())
	assert.Equal(t, []int{5, 7, 13, 15}, pool.ArgMax())

	dx, err := nn.BackwardAlloc(pool, fromSlice(t, []float64{1, 2, 3, 4}, 1, 1, 2, 2), x.Shape())
	require.NoError(t, err)
	want := make([]float64, 16)
	want[5], want[7], want[13], want[15] = 1, 2, 3, 4
	assert.Equal(t, want, dx.Data())
}

func TestMaxPoolTiesGoToFirstMax(t *testing.T) {
	x := tensor.Ones(tensor.Shape{1, 2, 2, 2})
	pool := nn.NewMaxPool2d(2, 2)

	_, err := nn.ForwardAlloc(pool, x)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4}, pool.ArgMax())

	dx, err := nn.BackwardAlloc(pool, tensor.Ones(tensor.Shape{1, 2, 1, 1}), x.Shape())
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 0, 0, 0}, dx.Data())
}

func TestConv2dOutputShape(t *testing.T) {
	conv := nn.NewConv2d(3, 8, 3, 2, 1)
	shape, err := conv.OutputShape(tensor.Shape{4, 3, 7, 7})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{4, 8, 4, 4}, shape)

	_, err = conv.OutputShape(tensor.Shape{4, 2, 7, 7})
	assert.True(t, errors.Is(err, tensor.ErrShape))
}

func TestConv2dIdentityKernel(t *testing.T) {
	conv := nn.NewConv2d(1, 1, 1, 1, 0)
	conv.Weight().Tensor().Fill(1)
	conv.Bias().Tensor().Fill(0.5)
	x := fromSlice(t, []float64{1, 2, 3, 4}, 1, 1, 2, 2)

	y, err := nn.ForwardAlloc(conv, x)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5, 3.5, 4.5}, y.Data())
}

func TestRecurrentBackwardNeedsForward(t *testing.T) {
	nn.SetSeed(3)
	layers := map[string]nn.Module{
		"rnn":  mustModule(nn.NewRNN(2, 3, "tanh")),
		"lstm": mustModule(nn.NewLSTM(2, 3)),
		"gru":  mustModule(nn.NewGRU(2, 3)),
	}
	x := randn(4, 3, 1, 2)
	for name, m := range layers {
		t.Run(name, func(t *testing.T) {
			_, err := nn.BackwardAlloc(m, tensor.New(3, 1, 3), x.Shape())
			assert.True(t, errors.Is(err, tensor.ErrState), "before forward: %v", err)
			assert.Contains(t, err.Error(), "called before Forward")

			y, err := nn.ForwardAlloc(m, x)
			require.NoError(t, err)
			assert.Equal(t, tensor.Shape{3, 1, 3}, y.Shape())

			_, err = nn.BackwardAlloc(m, tensor.Ones(y.Shape()), x.Shape())
			require.NoError(t, err)

			// The arena is released by Backward.
			_, err = nn.BackwardAlloc(m, tensor.Ones(y.Shape()), x.Shape())
			assert.True(t, errors.Is(err, tensor.ErrState), "second backward: %v", err)
			assert.Contains(t, err.Error(), "arena already consumed; run Forward again")

			// A fresh Forward makes Backward valid again.
			_, err = nn.ForwardAlloc(m, x)
			require.NoError(t, err)
			_, err = nn.BackwardAlloc(m, tensor.Ones(y.Shape()), x.Shape())
			require.NoError(t, err)
		})
	}
}

func TestRecurrentFactory(t *testing.T) {
	for _, kind := range []string{"rnn", "rnn_relu", "lstm", "gru"} {
		seq, err := nn.NewRecurrent(kind, 4, 6, 3)
		require.NoError(t, err, kind)
		assert.Equal(t, 3, seq.Len())
		shape, err := seq.OutputShape(tensor.Shape{5, 2, 4})
		require.NoError(t, err, kind)
		assert.Equal(t, tensor.Shape{5, 2, 6}, shape)
	}

	_, err := nn.NewRecurrent("transformer", 4, 6, 1)
	assert.Error(t, err)
	_, err = nn.NewRecurrent("lstm", 4, 6, 0)
	assert.Error(t, err)
	_, err = nn.NewRNN(4, 6, "sigmoid")
	assert.Error(t, err)
}

func TestRecurrentHiddenStartsAtZero(t *testing.T) {
	rnn := mustModule(nn.NewRNN(1, 1, "tanh"))
	for _, p := range rnn.Parameters() {
		p.Tensor().Fill(0)
	}
	rnn.Parameters()[0].Tensor().Fill(1) // weight_ih

	x := fromSlice(t, []float64{0.5, 0.5}, 2, 1, 1)
	y, err := nn.ForwardAlloc(rnn, x)
	require.NoError(t, err)
	assert.InDelta(t, 0.46211715726, y.Data()[0], 1e-9)
	assert.InDelta(t, y.Data()[0], y.Data()[1], 1e-15)
}

func TestMultiHeadAttentionCausalFirstRow(t *testing.T) {
	nn.SetSeed(5)
	mha := nn.NewMultiHeadAttention(4, 2)
	mha.SetCausal(true)
	x := randn(6, 3, 1, 4)
	y, err := nn.ForwardAlloc(mha, x)
	require.NoError(t, err)

	// Position 0 only attends to itself, so it ignores later positions.
	x2 := x.Clone()
	for i := 4; i < x2.Size(); i++ {
		x2.Data()[i] += 1
	}
	y2, err := nn.ForwardAlloc(mha, x2)
	require.NoError(t, err)
	assert.InDeltaSlice(t, y.Data()[:4], y2.Data()[:4], 1e-12)
	assert.NotEqual(t, y.Data()[4:], y2.Data()[4:])
}

func TestMultiHeadAttentionRejectsBadHeads(t *testing.T) {
	assert.Panics(t, func() { nn.NewMultiHeadAttention(10, 3) })

	mha := nn.NewMultiHeadAttention(8, 4)
	_, err := mha.OutputShape(tensor.Shape{2, 8})
	assert.True(t, errors.Is(err, tensor.ErrShape))
	assert.Equal(t, 4, mha.NumHeads())
}

func TestPositionalEncoding(t *testing.T) {
	pe := nn.NewPositionalEncoding(4)
	assert.InDeltaSlice(t, []float64{0, 1, 0, 1}, pe.Encoding(0), 1e-15)
	enc := pe.Encoding(1)
	assert.InDelta(t, 0.8414709848, enc[0], 1e-9)
	assert.InDelta(t, 0.9999500004, enc[3], 1e-9)
}

func TestSequential(t *testing.T) {
	nn.SetSeed(7)
	seq := nn.NewSequential(nn.NewLinear(4, 8), nn.NewTanh(), nn.NewLinear(8, 2))
	assert.Equal(t, 3, seq.Len())
	assert.Len(t, seq.Parameters(), 4)
	assert.Equal(t, 4*8+8+8*2+2, nn.NumParameters(seq))

	x := randn(8, 3, 4)
	y, err := nn.ForwardAlloc(seq, x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, y.Shape())

	_, err = seq.OutputShape(tensor.Shape{3, 5})
	assert.True(t, errors.Is(err, tensor.ErrShape))

	fresh := nn.NewSequential(nn.NewLinear(4, 2))
	_, err = nn.BackwardAlloc(fresh, tensor.New(3, 2), x.Shape())
	assert.True(t, errors.Is(err, tensor.ErrState))

	empty := nn.NewSequential()
	out, err := nn.ForwardAlloc(empty, x)
	require.NoError(t, err)
	assert.Equal(t, x.Data(), out.Data())
}

func TestNewActivation(t *testing.T) {
	for _, name := range []string{"relu", "sigmoid", "tanh"} {
		_, err := nn.NewActivation(name)
		assert.NoError(t, err, name)
	}
	_, err := nn.NewActivation("gelu")
	assert.Error(t, err)
}
