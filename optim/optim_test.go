// Copyright 2025 NAPCAS Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/napcas-ml/napcas/nn"
	"github.com/napcas-ml/napcas/optim"
	"github.com/napcas-ml/napcas/tensor"
)

// TestTrainingLoop fits y = 2x with a single Linear layer.
func TestTrainingLoop(t *testing.T) {
	nn.SetSeed(3)
	model := nn.NewLinear(1, 1)
	optimizer := optim.NewAdam([]nn.Module{model}, optim.AdamConfig{LR: 0.05})
	criterion := nn.NewMSE()

	x, err := tensor.FromSlice([]float64{-1, -0.5, 0, 0.5, 1}, tensor.Shape{5, 1})
	require.NoError(t, err)
	y, err := tensor.FromSlice([]float64{-2, -1, 0, 1, 2}, tensor.Shape{5, 1})
	require.NoError(t, err)

	var first, last float64
	for i := 0; i < 300; i++ {
		optimizer.ZeroGrad()
		out, err := nn.ForwardAlloc(model, x)
		require.NoError(t, err)
		loss, err := criterion.Forward(out, y)
		require.NoError(t, err)
		grad, err := criterion.Backward(out, y)
		require.NoError(t, err)
		_, err = nn.BackwardAlloc(model, grad, x.Shape())
		require.NoError(t, err)
		require.NoError(t, optimizer.Step())
		if i == 0 {
			first = loss
		}
		last = loss
	}
	assert.Less(t, last, first)
	assert.Less(t, last, 1e-2)
}
