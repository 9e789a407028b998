package nn_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/tensor"
)

func TestNNCellForwardShape(t *testing.T) {
	nn.SetSeed(1)
	cell := nn.NewNNCell(10, 5)
	x := tensor.New(2, 10)
	for i := range x.Data() {
		x.Data()[i] = float64(i)
	}
	y, err := nn.ForwardAlloc(cell, x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 5}, y.Shape())

	_, err = nn.ForwardAlloc(cell, tensor.New(2, 9))
	assert.True(t, errors.Is(err, tensor.ErrShape))
}

func TestNNCellForward(t *testing.T) {
	cell := nn.NewNNCell(2, 2)
	require.NoError(t, cell.SetWeights(fromSlice(t, []float64{1, 2, 3, 4}, 2, 2)))
	require.NoError(t, cell.Connections().Tensor().CopyFrom(fromSlice(t, []float64{1, 0.5, 0, 1}, 2, 2)))
	cell.Parameters()[1].Tensor().Fill(0.1)

	// W⊙C = [[1, 1], [0, 4]]; y = 0.6·x·(W⊙C)ᵗ + 0.1.
	y, err := nn.ForwardAlloc(cell, fromSlice(t, []float64{1, 1}, 1, 2))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.6*2 + 0.1, 0.6*4 + 0.1}, y.Data(), 1e-12)
	assert.Equal(t, []bool{true, true}, cell.MemoryPaths())
}

func TestNNCellMemoryPaths(t *testing.T) {
	cell := nn.NewNNCell(2, 3)
	require.NoError(t, cell.SetWeights(fromSlice(t, []float64{
		1, 0,
		0, 1,
		-1, -1,
	}, 3, 2)))

	// Unit 0 fires in row 0 only, unit 1 never, unit 2 never.
	x := fromSlice(t, []float64{1, 0, 0, 0.5}, 2, 2)
	_, err := nn.ForwardAlloc(cell, x)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, cell.MemoryPaths())

	// Paths are recomputed on every Forward.
	_, err = nn.ForwardAlloc(cell, fromSlice(t, []float64{0, 0}, 1, 2))
	require.NoError(t, err)
	assert.Equal(t, []bool{false, false, false}, cell.MemoryPaths())
}

func TestNNCellUpdateClampsConnections(t *testing.T) {
	nn.SetSeed(2)
	cell := nn.NewNNCell(3, 2)
	conn := cell.Connections()
	lo, hi, ok := conn.Bounds()
	require.True(t, ok)
	assert.Equal(t, [2]float64{0, 1}, [2]float64{lo, hi})

	copy(conn.Grad().Data(), []float64{-5, 5, 0.25, -0.1, 10, 0})
	cell.Update(1)
	assert.InDeltaSlice(t, []float64{1, 0, 0.75, 1, 0, 1}, conn.Tensor().Data(), 1e-15)
}

func TestNNCellAlphaIsTrained(t *testing.T) {
	nn.SetSeed(3)
	cell := nn.NewNNCell(4, 2)
	params := cell.Parameters()
	require.Len(t, params, 4)
	assert.Equal(t, []string{"weight", "bias", "connections", "alpha"},
		[]string{params[0].Name(), params[1].Name(), params[2].Name(), params[3].Name()})
	assert.Equal(t, 0.6, cell.Alpha())

	x := randn(4, 3, 4)
	nn.ZeroGrad(cell)
	y, err := nn.ForwardAlloc(cell, x)
	require.NoError(t, err)
	_, err = nn.BackwardAlloc(cell, tensor.Ones(y.Shape()), x.Shape())
	require.NoError(t, err)
	require.NotZero(t, params[3].Grad().Data()[0])

	cell.Update(0.1)
	assert.NotEqual(t, 0.6, cell.Alpha())
}

func TestNNCellThresholdFloor(t *testing.T) {
	cell := nn.NewNNCell(2, 2)
	assert.Equal(t, 0.5, cell.Threshold())
	cell.SetThreshold(0.3)
	assert.Equal(t, 0.3, cell.Threshold())
	cell.SetThreshold(-1)
	assert.Equal(t, nn.MinNNCellThreshold, cell.Threshold())
}

func TestNNCellBackwardNeedsForward(t *testing.T) {
	cell := nn.NewNNCell(2, 2)
	_, err := nn.BackwardAlloc(cell, tensor.New(1, 2), tensor.Shape{1, 2})
	assert.True(t, errors.Is(err, tensor.ErrState))
}

func TestParameterBounds(t *testing.T) {
	p := nn.NewParameter("p", fromSlice(t, []float64{-2, 0.5, 3}, 3))
	_, _, ok := p.Bounds()
	assert.False(t, ok)

	p.SetBounds(-1, 1)
	assert.Equal(t, []float64{-1, 0.5, 1}, p.Tensor().Data())
	assert.Panics(t, func() { p.SetBounds(1, 0) })

	// Masks still win over bounds.
	require.NoError(t, p.SetMask([]bool{true, false, true}))
	p.Grad().Fill(-4)
	p.Update(1)
	assert.Equal(t, []float64{1, 0, 1}, p.Tensor().Data())
}
