// Copyright 2025 NAPCAS Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autograd exposes the gradient buffer lifecycle.
//
// Backward passes add into gradient tensors; ZeroGrad is the only
// operation that resets them:
//
//	autograd.ZeroGrad(nn.Grads(model)...)
package autograd

import (
	"github.com/napcas-ml/napcas/internal/autograd"
	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/tensor"
)

// ZeroGrad sets every element of every gradient tensor to 0.
func ZeroGrad(grads ...*tensor.Tensor) {
	autograd.ZeroGrad(grads...)
}

// ZeroModuleGrad resets the gradients of every parameter of the modules.
func ZeroModuleGrad(modules ...nn.Module) {
	autograd.ZeroGrad(nn.Grads(modules...)...)
}

// Accumulate adds delta into grad. Shapes must match.
func Accumulate(grad, delta *tensor.Tensor) error {
	return autograd.Accumulate(grad, delta)
}

// ClearData zeroes the value buffers of the given tensors.
func ClearData(tensors ...*tensor.Tensor) {
	autograd.ClearData(tensors...)
}
