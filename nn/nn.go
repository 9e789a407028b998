// Copyright 2025 NAPCAS Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/tensor"
)

// Module is the forward/backward/update contract shared by all layers.
type Module = nn.Module

// Parameter is a trainable tensor paired with its gradient buffer.
type Parameter = nn.Parameter

// Loss is the interface implemented by loss functions.
type Loss = nn.Loss

// Stepper is the optimizer view used by GAN.TrainStep.
type Stepper = nn.Stepper

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// SetSeed reseeds the source used for weight initialization.
func SetSeed(seed uint64) {
	nn.SetSeed(seed)
}

// NumParameters returns the number of trainable scalars in m.
func NumParameters(m Module) int {
	return nn.NumParameters(m)
}

// ZeroGrad resets the gradient buffers of every parameter of the modules.
func ZeroGrad(modules ...Module) {
	nn.ZeroGrad(modules...)
}

// ForwardAlloc allocates the output of m for input and runs Forward.
func ForwardAlloc(m Module, input *tensor.Tensor) (*tensor.Tensor, error) {
	return nn.ForwardAlloc(m, input)
}

// BackwardAlloc allocates the input gradient and runs Backward.
func BackwardAlloc(m Module, gradOutput *tensor.Tensor, inputShape tensor.Shape) (*tensor.Tensor, error) {
	return nn.BackwardAlloc(m, gradOutput, inputShape)
}

// Layers

// Linear represents a fully connected (dense) layer.
type Linear = nn.Linear

// NewLinear creates a new linear layer with Xavier initialization.
//
// Example:
//
//	layer := nn.NewLinear(784, 128)
func NewLinear(inFeatures, outFeatures int) *Linear {
	return nn.NewLinear(inFeatures, outFeatures)
}

// Conv2d represents a 2D convolutional layer over [batch, C, H, W] inputs.
type Conv2d = nn.Conv2d

// NewConv2d creates a new 2D convolutional layer with a square kernel.
//
// Example:
//
//	conv := nn.NewConv2d(1, 32, 3, 1, 1) // in=1, out=32, kernel=3x3, stride=1, padding=1
func NewConv2d(inChannels, outChannels, kernelSize, stride, padding int) *Conv2d {
	return nn.NewConv2d(inChannels, outChannels, kernelSize, stride, padding)
}

// MaxPool2d represents a 2D max pooling layer.
type MaxPool2d = nn.MaxPool2d

// NewMaxPool2d creates a new 2D max pooling layer. A stride of 0 uses
// the kernel size.
//
// Example:
//
//	pool := nn.NewMaxPool2d(2, 2)
func NewMaxPool2d(kernelSize, stride int) *MaxPool2d {
	return nn.NewMaxPool2d(kernelSize, stride)
}

// Flatten collapses every axis after the batch axis.
type Flatten = nn.Flatten

// NewFlatten creates a new Flatten layer.
func NewFlatten() *Flatten {
	return nn.NewFlatten()
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU = nn.ReLU

// NewReLU creates a new ReLU activation layer.
func NewReLU() *ReLU {
	return nn.NewReLU()
}

// Sigmoid represents the logistic activation function.
type Sigmoid = nn.Sigmoid

// NewSigmoid creates a new Sigmoid activation layer.
func NewSigmoid() *Sigmoid {
	return nn.NewSigmoid()
}

// Tanh represents the hyperbolic tangent activation function.
type Tanh = nn.Tanh

// NewTanh creates a new Tanh activation layer.
func NewTanh() *Tanh {
	return nn.NewTanh()
}

// NewActivation returns the activation named "relu", "sigmoid" or "tanh".
func NewActivation(name string) (Module, error) {
	return nn.NewActivation(name)
}

// Recurrent layers

// RNN is an Elman recurrent layer over time-major [seq, batch, F] input.
type RNN = nn.RNN

// NewRNN creates an RNN layer. activation is "tanh" or "relu".
func NewRNN(inputSize, hiddenSize int, activation string) (*RNN, error) {
	return nn.NewRNN(inputSize, hiddenSize, activation)
}

// LSTM is a long short-term memory layer.
type LSTM = nn.LSTM

// NewLSTM creates an LSTM layer.
func NewLSTM(inputSize, hiddenSize int) (*LSTM, error) {
	return nn.NewLSTM(inputSize, hiddenSize)
}

// GRU is a gated recurrent unit layer.
type GRU = nn.GRU

// NewGRU creates a GRU layer.
func NewGRU(inputSize, hiddenSize int) (*GRU, error) {
	return nn.NewGRU(inputSize, hiddenSize)
}

// NewRecurrent stacks numLayers recurrent layers of the given kind
// ("rnn", "rnn_relu", "lstm" or "gru").
func NewRecurrent(kind string, inputSize, hiddenSize, numLayers int) (*Sequential, error) {
	return nn.NewRecurrent(kind, inputSize, hiddenSize, numLayers)
}

// LastStep selects the final time step of a [seq, batch, F] sequence.
type LastStep = nn.LastStep

// NewLastStep creates a LastStep layer.
func NewLastStep() *LastStep {
	return nn.NewLastStep()
}

// NAPCASim

// NAPCASim is a prunable cell with a persistent connection mask.
type NAPCASim = nn.NAPCASim

// NewNAPCASim creates a NAPCASim cell with the default alpha and threshold.
//
// Example:
//
//	cell := nn.NewNAPCASim(16, 8)
//	pruned := cell.PruneConnections(0.05)
func NewNAPCASim(inFeatures, outFeatures int) *NAPCASim {
	return nn.NewNAPCASim(inFeatures, outFeatures)
}

// NewNAPCASimWith creates a NAPCASim cell with explicit alpha and threshold.
func NewNAPCASimWith(inFeatures, outFeatures int, alpha, threshold float64) *NAPCASim {
	return nn.NewNAPCASimWith(inFeatures, outFeatures, alpha, threshold)
}

// NNCell is a cell with trainable soft connections and gain. Its
// connection strengths stay in [0, 1] after every update.
type NNCell = nn.NNCell

// NewNNCell creates an NNCell with open connections.
//
// Example:
//
//	cell := nn.NewNNCell(10, 5)
//	fired := cell.MemoryPaths() // after Forward
func NewNNCell(inFeatures, outFeatures int) *NNCell {
	return nn.NewNNCell(inFeatures, outFeatures)
}

// PathSimilarity returns the Jaccard similarity of two activation paths.
func PathSimilarity(a, b []int) float64 {
	return nn.PathSimilarity(a, b)
}

// Losses

// MSE is the mean squared error loss.
type MSE = nn.MSE

// NewMSE creates a mean squared error loss.
func NewMSE() *MSE {
	return nn.NewMSE()
}

// CrossEntropy is softmax cross-entropy over logits.
type CrossEntropy = nn.CrossEntropy

// NewCrossEntropy creates a cross-entropy loss. Targets are class indices
// or one-hot rows.
func NewCrossEntropy() *CrossEntropy {
	return nn.NewCrossEntropy()
}

// BCE is binary cross-entropy over probabilities.
type BCE = nn.BCE

// NewBCE creates a binary cross-entropy loss.
func NewBCE() *BCE {
	return nn.NewBCE()
}

// Containers and models

// Sequential chains modules.
type Sequential = nn.Sequential

// NewSequential creates a container running modules in order.
func NewSequential(modules ...Module) *Sequential {
	return nn.NewSequential(modules...)
}

// NewMLP builds Linear layers of the given sizes with activation between them.
//
// Example:
//
//	mlp, err := nn.NewMLP([]int{784, 128, 10}, "relu")
func NewMLP(sizes []int, activation string) (*Sequential, error) {
	return nn.NewMLP(sizes, activation)
}

// CNNConfig describes a convolutional classifier.
type CNNConfig = nn.CNNConfig

// NewCNN builds conv blocks followed by Flatten and a Linear head.
func NewCNN(cfg CNNConfig) (*Sequential, error) {
	return nn.NewCNN(cfg)
}

// GAN pairs a generator with a discriminator.
type GAN = nn.GAN

// NewGAN creates a GAN from its two networks.
func NewGAN(generator, discriminator Module) *GAN {
	return nn.NewGAN(generator, discriminator)
}

// NewGANFromSizes builds MLP generator and discriminator networks.
func NewGANFromSizes(genSizes, discSizes []int) (*GAN, error) {
	return nn.NewGANFromSizes(genSizes, discSizes)
}

// Attention

// MultiHeadAttention is scaled dot-product self-attention over
// [seq, batch, dModel] input.
type MultiHeadAttention = nn.MultiHeadAttention

// NewMultiHeadAttention creates an attention layer. dModel must divide
// evenly by numHeads.
func NewMultiHeadAttention(dModel, numHeads int) *MultiHeadAttention {
	return nn.NewMultiHeadAttention(dModel, numHeads)
}

// PositionalEncoding adds sinusoidal position signals.
type PositionalEncoding = nn.PositionalEncoding

// NewPositionalEncoding creates a positional encoding of width dModel.
func NewPositionalEncoding(dModel int) *PositionalEncoding {
	return nn.NewPositionalEncoding(dModel)
}

// TransformerBlock is a residual attention block followed by a residual
// feed-forward network.
type TransformerBlock = nn.TransformerBlock

// NewTransformerBlock creates a block with attention and a feed-forward layer.
func NewTransformerBlock(dModel, numHeads, dFF int) *TransformerBlock {
	return nn.NewTransformerBlock(dModel, numHeads, dFF)
}

// TransformerConfig describes a stack of transformer blocks.
type TransformerConfig = nn.TransformerConfig

// NewTransformer builds positional encoding followed by the blocks.
func NewTransformer(cfg TransformerConfig) (*Sequential, error) {
	return nn.NewTransformer(cfg)
}
