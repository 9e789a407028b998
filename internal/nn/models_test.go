package nn_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/tensor"
)

func TestNewMLP(t *testing.T) {
	mlp, err := nn.NewMLP([]int{6, 5, 4, 2}, "sigmoid")
	require.NoError(t, err)
	// Linear, Sigmoid, Linear, Sigmoid, Linear
	require.Equal(t, 5, mlp.Len())
	_, ok := mlp.Modules()[1].(*nn.Sigmoid)
	assert.True(t, ok)
	_, ok = mlp.Modules()[4].(*nn.Linear)
	assert.True(t, ok)

	shape, err := mlp.OutputShape(tensor.Shape{3, 6})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 2}, shape)

	_, err = nn.NewMLP([]int{6}, "relu")
	assert.Error(t, err)
	_, err = nn.NewMLP([]int{6, 0, 2}, "relu")
	assert.Error(t, err)
	_, err = nn.NewMLP([]int{6, 3, 2}, "swish")
	assert.Error(t, err)
}

func TestNewCNN(t *testing.T) {
	nn.SetSeed(11)
	cnn, err := nn.NewCNN(nn.CNNConfig{
		InChannels: 1, Height: 8, Width: 8,
		Channels:   []int{4, 6},
		NumClasses: 3,
	})
	require.NoError(t, err)

	x := randn(12, 2, 1, 8, 8)
	logits, err := nn.ForwardAlloc(cnn, x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, logits.Shape())

	target := fromSlice(t, []float64{0, 2}, 2)
	grad, err := nn.NewCrossEntropy().Backward(logits, target)
	require.NoError(t, err)
	dx, err := nn.BackwardAlloc(cnn, grad, x.Shape())
	require.NoError(t, err)
	assert.True(t, dx.IsFinite())

	_, err = nn.NewCNN(nn.CNNConfig{InChannels: 1, Height: 8, Width: 8, NumClasses: 3})
	assert.Error(t, err)
	_, err = nn.NewCNN(nn.CNNConfig{InChannels: 1, Height: 1, Width: 1, Channels: []int{2}, NumClasses: 3})
	assert.Error(t, err, "pooling a 1x1 map")
}

func TestNewTransformer(t *testing.T) {
	nn.SetSeed(13)
	model, err := nn.NewTransformer(nn.TransformerConfig{DModel: 8, NumHeads: 2, NumLayers: 2, Causal: true})
	require.NoError(t, err)
	assert.Equal(t, 3, model.Len())

	x := randn(14, 5, 2, 8)
	y, err := nn.ForwardAlloc(model, x)
	require.NoError(t, err)
	assert.Equal(t, x.Shape(), y.Shape())

	_, err = nn.NewTransformer(nn.TransformerConfig{DModel: 10, NumHeads: 3, NumLayers: 1})
	assert.Error(t, err)
	_, err = nn.NewTransformer(nn.TransformerConfig{DModel: 8, NumHeads: 2})
	assert.Error(t, err)
}

// countingStepper records optimizer calls made by GAN.TrainStep.
type countingStepper struct {
	module      nn.Module
	lr          float64
	steps, zero int
}

func (s *countingStepper) Step() error {
	s.steps++
	s.module.Update(s.lr)
	return nil
}

func (s *countingStepper) ZeroGrad() {
	s.zero++
	nn.ZeroGrad(s.module)
}

func snapshot(m nn.Module) [][]float64 {
	var out [][]float64
	for _, p := range m.Parameters() {
		out = append(out, append([]float64(nil), p.Tensor().Data()...))
	}
	return out
}

func TestGANTrainStep(t *testing.T) {
	nn.SetSeed(21)
	gan, err := nn.NewGANFromSizes([]int{3, 8, 4}, []int{4, 8, 1})
	require.NoError(t, err)

	realBatch := tensor.Rand(tensor.Shape{5, 4}, 0.2, 0.8, nn.InitSource())
	noise := randn(22, 5, 3)
	genBefore := snapshot(gan.Generator())
	discBefore := snapshot(gan.Discriminator())

	genLoss, discLoss := tensor.New(1), tensor.New(1)
	require.NoError(t, gan.TrainStep(realBatch, noise, 0.05, genLoss, discLoss))

	g, d := genLoss.Data()[0], discLoss.Data()[0]
	assert.Greater(t, g, 0.0)
	assert.Greater(t, d, 0.0)
	assert.False(t, math.IsNaN(g) || math.IsNaN(d))
	assert.NotEqual(t, genBefore, snapshot(gan.Generator()))
	assert.NotEqual(t, discBefore, snapshot(gan.Discriminator()))

	// The discriminator carries no leftover gradient from the generator pass.
	for _, p := range gan.Discriminator().Parameters() {
		for _, v := range p.Grad().Data() {
			assert.Zero(t, v)
		}
	}
}

func TestGANTrainStepUsesOptimizers(t *testing.T) {
	nn.SetSeed(23)
	gan, err := nn.NewGANFromSizes([]int{2, 4}, []int{4, 1})
	require.NoError(t, err)
	genOpt := &countingStepper{module: gan.Generator(), lr: 0.01}
	discOpt := &countingStepper{module: gan.Discriminator(), lr: 0.01}
	gan.SetOptimizers(genOpt, discOpt)

	realBatch := tensor.Full(tensor.Shape{3, 4}, 0.5)
	require.NoError(t, gan.TrainStep(realBatch, randn(24, 3, 2), 0.01, nil, nil))
	assert.Equal(t, 1, genOpt.steps)
	assert.Equal(t, 1, discOpt.steps)
	assert.Equal(t, 1, genOpt.zero)
	assert.Equal(t, 2, discOpt.zero)
}

func TestGANTrainStepErrors(t *testing.T) {
	gan, err := nn.NewGANFromSizes([]int{2, 4}, []int{4, 1})
	require.NoError(t, err)

	err = gan.TrainStep(tensor.New(3, 5), tensor.New(3, 2), 0.01, nil, nil)
	assert.True(t, errors.Is(err, tensor.ErrShape), "real/fake mismatch: %v", err)

	err = gan.TrainStep(tensor.New(3, 4), tensor.New(3, 2), 0.01, tensor.New(2), nil)
	assert.True(t, errors.Is(err, tensor.ErrShape), "loss tensor size: %v", err)

	_, err = nn.NewGANFromSizes([]int{2, 4}, []int{5, 1})
	assert.Error(t, err)
	_, err = nn.NewGANFromSizes([]int{2, 4}, []int{4, 2})
	assert.Error(t, err)
}

func TestGANAsModule(t *testing.T) {
	gan, err := nn.NewGANFromSizes([]int{2, 3, 4}, []int{4, 1})
	require.NoError(t, err)
	assert.Len(t, gan.Parameters(), 6)

	y, err := nn.ForwardAlloc(gan, tensor.New(2, 2))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4}, y.Shape())
	for _, v := range y.Data() {
		assert.True(t, v > 0 && v < 1)
	}
}
