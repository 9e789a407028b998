// Copyright 2025 NAPCAS Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/napcas-ml/napcas/internal/optim"
	"github.com/napcas-ml/napcas/nn"
)

// Optimizer is the interface implemented by all optimizers.
type Optimizer = optim.Optimizer

// Registry is the ordered, deduplicated parameter set an optimizer updates.
type Registry = optim.Registry

// NewRegistry collects the parameters of the given modules.
func NewRegistry(modules ...nn.Module) *Registry {
	return optim.NewRegistry(modules...)
}

// SGD implements Stochastic Gradient Descent with optional momentum.
type SGD = optim.SGD

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
//
// Example:
//
//	optimizer := optim.NewSGD([]nn.Module{model}, optim.SGDConfig{
//	    LR:       0.01,
//	    Momentum: 0.9,
//	})
func NewSGD(modules []nn.Module, config SGDConfig) *SGD {
	return optim.NewSGD(modules, config)
}

// Adam implements the Adam optimizer.
type Adam = optim.Adam

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer.
//
// Example:
//
//	optimizer := optim.NewAdam([]nn.Module{model}, optim.AdamConfig{
//	    LR:    0.001,
//	    Betas: [2]float64{0.9, 0.999},
//	    Eps:   1e-8,
//	})
func NewAdam(modules []nn.Module, config AdamConfig) *Adam {
	return optim.NewAdam(modules, config)
}

// ClipGradNorm rescales gradients so their global L2 norm is at most
// maxNorm and returns the norm before clipping.
func ClipGradNorm(params []*nn.Parameter, maxNorm float64) (float64, error) {
	return optim.ClipGradNorm(params, maxNorm)
}
