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

func newCell(t *testing.T, weights []float64, in, out int) *nn.NAPCASim {
	t.Helper()
	cell := nn.NewNAPCASim(in, out)
	require.NoError(t, cell.SetWeights(fromSlice(t, weights, out, in)))
	return cell
}

func TestNAPCAForward(t *testing.T) {
	cell := newCell(t, []float64{1, 0, 0, 2}, 2, 2)
	cell.Parameters()[1].Tensor().Fill(0.1)

	y, err := nn.ForwardAlloc(cell, fromSlice(t, []float64{1, 1}, 1, 2))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.6*1 + 0.1, 0.6*2 + 0.1}, y.Data(), 1e-12)
}

func TestNAPCAPruneIsPersistent(t *testing.T) {
	cell := newCell(t, []float64{0.05, -0.8, 0.3, -0.01, 0.9, 0.2}, 3, 2)

	pruned := cell.PruneConnections(0.25)
	assert.Equal(t, 3, pruned)
	assert.Equal(t, 3, cell.ActiveConnections())
	assert.Equal(t, []float64{0, -0.8, 0.3, 0, 0.9, 0}, cell.Weights().Data())
	assert.Equal(t, []bool{false, true, true, false, true, false}, cell.WeightParameter().Mask())

	// Pruning again at the same threshold finds nothing new.
	assert.Zero(t, cell.PruneConnections(0.25))

	// Training never revives pruned connections.
	x := fromSlice(t, []float64{1, -2, 3, 0.5, 0.5, 0.5}, 2, 3)
	for step := 0; step < 3; step++ {
		nn.ZeroGrad(cell)
		y, err := nn.ForwardAlloc(cell, x)
		require.NoError(t, err)
		_, err = nn.BackwardAlloc(cell, tensor.Ones(y.Shape()), x.Shape())
		require.NoError(t, err)

		grad := cell.WeightParameter().Grad().Data()
		for _, i := range []int{0, 3, 5} {
			assert.Zero(t, grad[i], "grad of pruned weight %d", i)
		}
		cell.Update(0.1)
	}
	w := cell.Weights().Data()
	for _, i := range []int{0, 3, 5} {
		assert.Zero(t, w[i], "pruned weight %d", i)
	}
	assert.NotEqual(t, -0.8, w[1])

	// Overwriting the weights keeps the mask.
	require.NoError(t, cell.SetWeights(tensor.Ones(tensor.Shape{2, 3})))
	assert.Equal(t, []float64{0, 1, 1, 0, 1, 0}, cell.Weights().Data())
}

func TestNAPCAActivationPaths(t *testing.T) {
	cell := newCell(t, []float64{
		1, 0,
		0, 1,
		1, 1,
	}, 2, 3)

	_, err := cell.ActivationPaths()
	assert.True(t, errors.Is(err, tensor.ErrState))

	// alpha = 0.6: row 0 → [0.6, 0, 0.6], row 1 → [0, 0.6, 0.6], row 2 → [0.3, 0.3, 0.6].
	x := fromSlice(t, []float64{1, 0, 0, 1, 0.5, 0.5}, 3, 2)
	_, err = nn.ForwardAlloc(cell, x)
	require.NoError(t, err)

	paths, err := cell.ActivationPaths()
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 2}, {1, 2}, {2}}, paths)

	assert.InDelta(t, 1.0/3, nn.PathSimilarity(paths[0], paths[1]), 1e-15)
	assert.InDelta(t, 0.5, nn.PathSimilarity(paths[0], paths[2]), 1e-15)
	assert.Equal(t, 1.0, nn.PathSimilarity(paths[0], paths[0]))
	assert.Equal(t, 0.0, nn.PathSimilarity(nil, []int{}))
}

func TestNAPCAUpdateWeightsConditionally(t *testing.T) {
	cell := newCell(t, []float64{
		1, 0.9, 0.3,
		0, 0.4, 0.7,
	}, 3, 2)
	cell.PruneConnections(0.35) // prunes w[0][2] and w[1][0]

	require.NoError(t, cell.UpdateWeightsConditionally([][2]int{{0, 1}}, 0.5))
	w := cell.Weights().Data()
	// Only column 1 is active in both rows: 0.9 → 0.65, then 0.4 → 0.525.
	assert.Equal(t, 1.0, w[0])
	assert.InDelta(t, 0.65, w[1], 1e-15)
	assert.Zero(t, w[2])
	assert.Zero(t, w[3])
	assert.InDelta(t, 0.525, w[4], 1e-15)
	assert.Equal(t, 0.7, w[5])

	err := cell.UpdateWeightsConditionally([][2]int{{0, 2}}, 0.5)
	assert.True(t, errors.Is(err, tensor.ErrIndex))
}

func TestNAPCAUpdateWeightsConditionallyIsAtomic(t *testing.T) {
	cell := newCell(t, []float64{
		1, 0.9, 0.3,
		0, 0.4, 0.7,
	}, 3, 2)
	before := cell.Weights().Clone()

	// The valid first pair must not be applied when a later pair is bad.
	err := cell.UpdateWeightsConditionally([][2]int{{0, 1}, {1, 0}, {1, -1}}, 0.5)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tensor.ErrIndex))
	assert.Contains(t, err.Error(), "pair 2")
	assert.Equal(t, before.Data(), cell.Weights().Data())
}

func TestNAPCASetWeightsShape(t *testing.T) {
	cell := nn.NewNAPCASim(3, 2)
	err := cell.SetWeights(tensor.New(3, 2))
	assert.True(t, errors.Is(err, tensor.ErrShape))
}

func TestNAPCADefaults(t *testing.T) {
	cell := nn.NewNAPCASim(4, 3)
	assert.Equal(t, 12, cell.ActiveConnections())
	assert.Equal(t, tensor.Shape{3, 4}, cell.Weights().Shape())
	for _, v := range cell.Weights().Data() {
		assert.LessOrEqual(t, math.Abs(v), math.Sqrt(6.0/7))
	}
}
