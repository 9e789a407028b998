package tensor

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestNewIsZeroFilled(t *testing.T) {
	x := New(2, 3, 4)
	assert.Equal(t, Shape{2, 3, 4}, x.Shape())
	assert.Equal(t, 24, x.Size())
	for _, v := range x.Data() {
		assert.Equal(t, 0.0, v)
	}
}

func TestFromSliceRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		shape Shape
	}{
		{"vector", Shape{5}},
		{"matrix", Shape{2, 3}},
		{"4d", Shape{1, 2, 2, 2}},
		{"scalar", Shape{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]float64, tt.shape.NumElements())
			for i := range data {
				data[i] = float64(i)*0.5 - 1
			}
			x, err := FromSlice(data, tt.shape)
			require.NoError(t, err)
			if diff := cmp.Diff(data, x.Data()); diff != "" {
				t.Errorf("data mismatch (-want +got):\n%s", diff)
			}
			// The tensor owns a copy.
			data[0] = 100
			assert.NotEqual(t, 100.0, x.Data()[0])
		})
	}
}

func TestFromSliceLengthMismatch(t *testing.T) {
	_, err := FromSlice([]float64{1, 2, 3}, Shape{2, 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShape))
}

func TestGetSetBounds(t *testing.T) {
	x := New(2, 2)
	require.NoError(t, x.Set(3, 7))
	v, err := x.Get(3)
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	_, err = x.Get(4)
	assert.ErrorIs(t, err, ErrIndex)
	assert.ErrorIs(t, x.Set(-1, 0), ErrIndex)
}

func TestMultiIndex(t *testing.T) {
	x, err := FromSlice([]float64{0, 1, 2, 3, 4, 5}, Shape{2, 3})
	require.NoError(t, err)

	v, err := x.At(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	require.NoError(t, x.SetAt(9, 0, 1))
	assert.Equal(t, 9.0, x.Data()[1])

	_, err = x.At(2, 0)
	assert.ErrorIs(t, err, ErrIndex)
	_, err = x.At(1)
	assert.ErrorIs(t, err, ErrShape)
}

func TestFillAndFactories(t *testing.T) {
	x := New(3)
	x.Fill(2.5)
	assert.Equal(t, []float64{2.5, 2.5, 2.5}, x.Data())

	assert.Equal(t, []float64{1, 1}, Ones(Shape{2}).Data())
	assert.Equal(t, []float64{0, 0}, Zeros(Shape{2}).Data())
	assert.Equal(t, []float64{-1, -1}, Full(Shape{2}, -1).Data())
}

func TestAdd(t *testing.T) {
	a, _ := FromSlice([]float64{1, 2, 3}, Shape{3})
	b, _ := FromSlice([]float64{10, 20, 30}, Shape{3})

	c, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22, 33}, c.Data())
	// Operands untouched.
	assert.Equal(t, []float64{1, 2, 3}, a.Data())

	_, err = a.Add(New(2))
	assert.ErrorIs(t, err, ErrShape)
}

func TestDiv(t *testing.T) {
	a, _ := FromSlice([]float64{1, -4, 9}, Shape{3})
	b, _ := FromSlice([]float64{2, 2, -3}, Shape{3})

	c, err := a.Div(b)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -2, -3}, c.Data())
	assert.Equal(t, []float64{1, -4, 9}, a.Data())

	_, err = a.Div(New(2))
	assert.ErrorIs(t, err, ErrShape)

	b.Data()[1] = 0
	_, err = a.Div(b)
	assert.ErrorIs(t, err, ErrNumeric)
}

func TestMatMul(t *testing.T) {
	a, _ := FromSlice([]float64{
		1, 2, 3,
		4, 5, 6,
	}, Shape{2, 3})
	b, _ := FromSlice([]float64{
		7, 8,
		9, 10,
		11, 12,
	}, Shape{3, 2})

	c, err := a.MatMul(b)
	require.NoError(t, err)
	want, _ := FromSlice([]float64{58, 64, 139, 154}, Shape{2, 2})
	if diff := cmp.Diff(want.Data(), c.Data()); diff != "" {
		t.Errorf("MatMul mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Shape{2, 2}, c.Shape())

	_, err = a.MatMul(a)
	assert.ErrorIs(t, err, ErrShape)
	_, err = a.MatMul(New(3))
	assert.ErrorIs(t, err, ErrShape)

	empty, err := New(2, 0).MatMul(New(0, 3))
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 6), empty.Data())
}

func TestTranspose(t *testing.T) {
	a, _ := FromSlice([]float64{
		1, 2, 3,
		4, 5, 6,
	}, Shape{2, 3})

	at, err := a.Transpose()
	require.NoError(t, err)
	assert.Equal(t, Shape{3, 2}, at.Shape())
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, at.Data())

	// (A·Aᵗ)ᵗ = A·Aᵗ.
	sym, err := a.MatMul(at)
	require.NoError(t, err)
	symT, err := sym.Transpose()
	require.NoError(t, err)
	assert.True(t, sym.Equal(symT, 0))

	_, err = New(2, 2, 2).Transpose()
	assert.ErrorIs(t, err, ErrShape)
}

func TestAddInPlaceAccumulates(t *testing.T) {
	g := New(2)
	d, _ := FromSlice([]float64{1, -1}, Shape{2})
	require.NoError(t, g.AddInPlace(d))
	require.NoError(t, g.AddInPlace(d))
	assert.Equal(t, []float64{2, -2}, g.Data())
}

func TestReshape(t *testing.T) {
	x, _ := FromSlice([]float64{1, 2, 3, 4, 5, 6}, Shape{2, 3})
	require.NoError(t, x.Reshape(3, 2))
	assert.Equal(t, Shape{3, 2}, x.Shape())
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, x.Data())

	assert.ErrorIs(t, x.Reshape(4, 2), ErrShape)

	v, err := x.View(6)
	require.NoError(t, err)
	v.Data()[0] = 42
	assert.Equal(t, 42.0, x.Data()[0])
}

func TestShapeRows(t *testing.T) {
	rows, cols := Shape{4, 3, 5}.Rows()
	assert.Equal(t, 12, rows)
	assert.Equal(t, 5, cols)
	assert.Equal(t, Shape{4, 3, 7}, Shape{4, 3, 5}.WithLast(7))
}

func TestComputeStrides(t *testing.T) {
	if diff := cmp.Diff([]int{12, 4, 1}, Shape{2, 3, 4}.ComputeStrides()); diff != "" {
		t.Errorf("strides mismatch (-want +got):\n%s", diff)
	}
}

func TestIsFinite(t *testing.T) {
	x := New(2)
	assert.True(t, x.IsFinite())
	x.Data()[1] = 1 / x.Data()[0]
	assert.False(t, x.IsFinite())
}

func TestRandIsSeeded(t *testing.T) {
	a := Rand(Shape{8}, -1, 1, newTestSource(7))
	b := Rand(Shape{8}, -1, 1, newTestSource(7))
	assert.True(t, a.Equal(b, 0))
	for _, v := range a.Data() {
		assert.GreaterOrEqual(t, v, -1.0)
		assert.Less(t, v, 1.0)
	}
}

func newTestSource(seed uint64) rand.Source {
	return rand.NewSource(seed)
}
