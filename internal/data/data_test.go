package data_test

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/napcas-ml/napcas/internal/data"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// indexed returns a dataset whose i-th input is [i, i] and target is i.
func indexed(t *testing.T, n int) *data.Dataset {
	t.Helper()
	x, y := tensor.New(n, 2), tensor.New(n)
	for i := 0; i < n; i++ {
		x.Data()[2*i], x.Data()[2*i+1] = float64(i), float64(i)
		y.Data()[i] = float64(i)
	}
	ds, err := data.NewDataset(x, y)
	require.NoError(t, err)
	return ds
}

func drain(l data.Loader) (targets []float64, sizes []int) {
	for {
		_, y, ok := l.Next()
		if !ok {
			return targets, sizes
		}
		targets = append(targets, y.Data()...)
		sizes = append(sizes, y.Dim(0))
	}
}

func TestTensorLoaderSequential(t *testing.T) {
	l, err := data.NewTensorLoader(indexed(t, 10), data.LoaderConfig{BatchSize: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, l.BatchSize())
	assert.Equal(t, 3, l.NumBatches())

	targets, sizes := drain(l)
	assert.Equal(t, []int{4, 4, 2}, sizes)
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, targets)

	_, _, ok := l.Next()
	assert.False(t, ok, "exhausted loader must stay exhausted until Reset")
	l.Reset()
	again, _ := drain(l)
	assert.Equal(t, targets, again)
}

func TestTensorLoaderShuffle(t *testing.T) {
	l, err := data.NewTensorLoader(indexed(t, 32), data.LoaderConfig{BatchSize: 5, Shuffle: true, Seed: 3})
	require.NoError(t, err)

	first, _ := drain(l)
	l.Reset()
	second, _ := drain(l)
	assert.ElementsMatch(t, first, second, "every sample is served once per epoch")
	assert.NotEqual(t, first, second, "epochs are reshuffled")

	// Inputs stay paired with their targets.
	l.Reset()
	x, y, ok := l.Next()
	require.True(t, ok)
	for i, target := range y.Data() {
		assert.Equal(t, target, x.Data()[2*i])
	}
}

func TestTensorLoaderNoise(t *testing.T) {
	ds := indexed(t, 200)
	l, err := data.NewTensorLoader(ds, data.LoaderConfig{BatchSize: 200, Noise: 0.01, Seed: 1})
	require.NoError(t, err)
	x, _, ok := l.Next()
	require.True(t, ok)

	var sum, sq float64
	for i, v := range x.Data() {
		d := v - ds.Inputs.Data()[i]
		sum += d
		sq += d * d
	}
	n := float64(x.Size())
	assert.InDelta(t, 0, sum/n, 0.005)
	assert.InDelta(t, 0.01, math.Sqrt(sq/n), 0.003)
	assert.Equal(t, 199.0, ds.Inputs.Data()[398], "augmentation must not touch the dataset")
}

func TestTensorLoaderTimeMajor(t *testing.T) {
	ds := data.Sine(3, 4, 1)
	l, err := data.NewTensorLoader(ds, data.LoaderConfig{BatchSize: 2, TimeMajor: true})
	require.NoError(t, err)

	x, y, ok := l.Next()
	require.True(t, ok)
	assert.Equal(t, tensor.Shape{4, 2, 1}, x.Shape())
	assert.Equal(t, tensor.Shape{2, 1}, y.Shape())
	for step := 0; step < 4; step++ {
		for b := 0; b < 2; b++ {
			want, _ := ds.Inputs.At(b, step, 0)
			got, _ := x.At(step, b, 0)
			assert.Equal(t, want, got)
		}
	}

	_, err = data.NewTensorLoader(indexed(t, 2), data.LoaderConfig{BatchSize: 1, TimeMajor: true})
	assert.True(t, errors.Is(err, tensor.ErrShape))
}

func TestLoaderConfigErrors(t *testing.T) {
	_, err := data.NewTensorLoader(indexed(t, 2), data.LoaderConfig{})
	assert.True(t, errors.Is(err, tensor.ErrShape))
	_, err = data.NewTensorLoader(indexed(t, 2), data.LoaderConfig{BatchSize: 1, Noise: -1})
	assert.True(t, errors.Is(err, tensor.ErrNumeric))
}

func TestDatasetSplit(t *testing.T) {
	train, val, err := indexed(t, 10).Split(8)
	require.NoError(t, err)
	assert.Equal(t, 8, train.Len())
	assert.Equal(t, 2, val.Len())
	assert.Equal(t, []float64{8, 9}, val.Targets.Data())
	assert.Equal(t, tensor.Shape{2}, val.InputShape())

	_, _, err = indexed(t, 3).Split(4)
	assert.True(t, errors.Is(err, tensor.ErrIndex))

	_, err = data.NewDataset(tensor.New(3, 2), tensor.New(2))
	assert.True(t, errors.Is(err, tensor.ErrShape))
}

func TestSyntheticShapes(t *testing.T) {
	tests := []struct {
		name          string
		ds            *data.Dataset
		input, target tensor.Shape
	}{
		{"blobs", data.Blobs(20, 3, 4, 0.5, 1), tensor.Shape{3}, tensor.Shape{}},
		{"xor", data.XOR(20, 1), tensor.Shape{2}, tensor.Shape{1}},
		{"sine", data.Sine(20, 6, 1), tensor.Shape{6, 1}, tensor.Shape{1}},
		{"images", data.Images(20, 4, 6, 1), tensor.Shape{1, 6, 6}, tensor.Shape{}},
		{"ring", data.Ring(20, 1), tensor.Shape{2}, tensor.Shape{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 20, tt.ds.Len())
			assert.Equal(t, tt.input, tt.ds.InputShape())
			assert.Equal(t, tt.target, tt.ds.TargetShape())
			assert.True(t, tt.ds.Inputs.IsFinite())
		})
	}
}

func TestSyntheticLabels(t *testing.T) {
	blobs := data.Blobs(100, 2, 3, 0.1, 2)
	for _, c := range blobs.Targets.Data() {
		assert.Contains(t, []float64{0, 1, 2}, c)
	}
	assert.Equal(t, blobs.Inputs.Data(), data.Blobs(100, 2, 3, 0.1, 2).Inputs.Data(), "same seed, same data")

	xor := data.XOR(50, 3)
	for i, y := range xor.Targets.Data() {
		a, b := xor.Inputs.Data()[2*i], xor.Inputs.Data()[2*i+1]
		assert.Equal(t, a*b > 0, y == 1)
	}

	// The lit quadrant carries the class.
	img := data.Images(8, 4, 4, 5)
	for i, c := range img.Targets.Data() {
		pix := img.Inputs.Data()[i*16 : (i+1)*16]
		r0, c0 := (int(c)/2)*2, (int(c)%2)*2
		assert.Greater(t, pix[r0*4+c0], 0.5, "sample %d class %v", i, c)
	}

	// sin(a+2h) = 2cos(h)sin(a+h) - sin(a) links consecutive values.
	sine := data.Sine(1, 3, 4)
	x := sine.Inputs.Data()
	assert.InDelta(t, 2*math.Cos(0.3)*x[1]-x[0], x[2], 1e-12)
	assert.InDelta(t, 2*math.Cos(0.3)*x[2]-x[1], sine.Targets.Data()[0], 1e-12)
}

func writeIDX(t *testing.T, path string, header []uint32, payload []byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, binary.Write(f, binary.BigEndian, header))
	_, err = f.Write(payload)
	require.NoError(t, err)
}

func TestLoadIDX(t *testing.T) {
	dir := t.TempDir()
	images, labels := filepath.Join(dir, "images"), filepath.Join(dir, "labels")
	writeIDX(t, images, []uint32{2051, 3, 2, 2}, []byte{
		0, 255, 0, 0,
		51, 51, 51, 51,
		255, 255, 255, 255,
	})
	writeIDX(t, labels, []uint32{2049, 3}, []byte{7, 1, 0})

	ds, err := data.LoadIDX(images, labels, 2)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1, 2, 2}, ds.Inputs.Shape())
	assert.Equal(t, []float64{0, 1, 0, 0, 0.2, 0.2, 0.2, 0.2}, ds.Inputs.Data())
	assert.Equal(t, []float64{7, 1}, ds.Targets.Data())

	_, err = data.LoadIDX(labels, labels, 0)
	assert.ErrorContains(t, err, "invalid magic number")
}
