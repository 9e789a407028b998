// Copyright 2025 NAPCAS Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network layers and building blocks.
//
// # Overview
//
// This package contains:
//   - Layers: Linear, Conv2d, MaxPool2d, Flatten
//   - Activations: ReLU, Sigmoid, Tanh
//   - Recurrent layers: RNN, LSTM, GRU
//   - Attention: MultiHeadAttention, PositionalEncoding, TransformerBlock
//   - NAPCASim: a prunable cell with a persistent connection mask
//   - NNCell: a cell with trainable soft connections and gain
//   - Loss functions: MSE, CrossEntropy, BCE
//   - Containers and models: Sequential, MLP, CNN, GAN, Transformer
//
// # Basic Usage
//
//	import (
//	    "github.com/napcas-ml/napcas/nn"
//	    "github.com/napcas-ml/napcas/tensor"
//	)
//
//	func main() {
//	    model := nn.NewSequential(
//	        nn.NewLinear(784, 128),
//	        nn.NewReLU(),
//	        nn.NewLinear(128, 10),
//	    )
//
//	    x := tensor.Zeros(tensor.Shape{32, 784})
//	    logits, err := nn.ForwardAlloc(model, x)
//	}
//
// # Forward and Backward
//
// Modules write into caller-allocated tensors. Forward caches what the
// matching Backward needs; Backward overwrites the input gradient and adds
// parameter gradients into each Parameter's buffer. Call ZeroGrad (or an
// optimizer's ZeroGrad) before every backward pass.
//
//	out := tensor.New(32, 10)
//	if err := model.Forward(x, out); err != nil {
//	    return err
//	}
//	grad, err := loss.Backward(out, targets)
//	gradIn := tensor.New(32, 784)
//	err = model.Backward(grad, gradIn)
//
// # Sequences
//
// RNN, LSTM, GRU, MultiHeadAttention and PositionalEncoding take
// time-major input of shape [seq_len, batch, features]. LastStep reduces
// such a sequence to its final step for classification heads.
//
// # Pruning
//
// NAPCASim keeps a persistent mask over its weight matrix. Pruned
// connections stay zero through Update and every optimizer step:
//
//	cell := nn.NewNAPCASim(16, 8)
//	removed := cell.PruneConnections(0.05)
//	active := cell.ActiveConnections()
//
// NNCell learns its connection strengths instead. They are clamped to
// [0, 1] by Update and by every optimizer step.
//
// # Errors
//
// Every error wraps one of tensor.ErrShape, tensor.ErrIndex,
// tensor.ErrState or tensor.ErrNumeric; test with errors.Is.
package nn
