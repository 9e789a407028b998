// Copyright 2025 NAPCAS Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimization algorithms for training neural networks.
//
// # Overview
//
// This package contains:
//   - SGD: Stochastic Gradient Descent with momentum
//   - Adam: Adaptive Moment Estimation with bias correction
//   - Optimizer interface for custom optimizers
//   - ClipGradNorm: global gradient-norm clipping
//
// # Basic Usage
//
//	import (
//	    "github.com/napcas-ml/napcas/nn"
//	    "github.com/napcas-ml/napcas/optim"
//	)
//
//	func main() {
//	    model := nn.NewLinear(784, 10)
//
//	    optimizer := optim.NewAdam([]nn.Module{model}, optim.AdamConfig{
//	        LR:    0.001,
//	        Betas: [2]float64{0.9, 0.999},
//	    })
//	}
//
// # Training Loop Pattern
//
//	for epoch := range numEpochs {
//	    for batch := range batches {
//	        // 1. Zero gradients
//	        optimizer.ZeroGrad()
//
//	        // 2. Forward pass
//	        out, _ := nn.ForwardAlloc(model, batch.Input)
//	        loss, _ := criterion.Forward(out, batch.Target)
//
//	        // 3. Backward pass
//	        grad, _ := criterion.Backward(out, batch.Target)
//	        _, _ = nn.BackwardAlloc(model, grad, batch.Input.Shape())
//
//	        // 4. Update parameters
//	        if err := optimizer.Step(); err != nil {
//	            return err
//	        }
//	    }
//	}
//
// Step refuses to apply non-finite gradients: it returns an error wrapping
// tensor.ErrNumeric and leaves every parameter unchanged.
package optim
