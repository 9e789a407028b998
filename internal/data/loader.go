package data

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/napcas-ml/napcas/internal/tensor"
)

// Loader yields mini-batches.
type Loader interface {
	// Next returns the next batch, or ok == false at the end of the epoch.
	Next() (input, target *tensor.Tensor, ok bool)
	// Reset starts a new epoch.
	Reset()
	// BatchSize returns the nominal batch size. The last batch of an
	// epoch may be smaller.
	BatchSize() int
}

// LoaderConfig configures a TensorLoader.
type LoaderConfig struct {
	BatchSize int     // Samples per batch (required)
	Shuffle   bool    // Reorder samples at every Reset
	Noise     float64 // Stddev of Gaussian noise added to inputs (0 disables)
	TimeMajor bool    // Emit [seq_len, batch, ...] inputs from [n, seq_len, ...] samples
	Seed      uint64  // Seed for shuffling and noise
}

// TensorLoader serves batches from an in-memory Dataset.
type TensorLoader struct {
	ds    *Dataset
	cfg   LoaderConfig
	rng   *rand.Rand
	noise distuv.Normal
	order []int
	pos   int
}

// NewTensorLoader creates a loader over ds. The first epoch starts
// immediately; call Reset before each further epoch.
func NewTensorLoader(ds *Dataset, cfg LoaderConfig) (*TensorLoader, error) {
	if cfg.BatchSize <= 0 {
		return nil, tensor.ShapeErrorf("loader: batch size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.Noise < 0 {
		return nil, tensor.NumericErrorf("loader: noise stddev must be non-negative, got %g", cfg.Noise)
	}
	if cfg.TimeMajor && ds.Inputs.Rank() < 3 {
		return nil, tensor.ShapeErrorf("loader: time-major batches need [n, seq_len, ...] inputs, got %v", ds.Inputs.Shape())
	}
	src := rand.NewSource(cfg.Seed)
	l := &TensorLoader{
		ds:    ds,
		cfg:   cfg,
		rng:   rand.New(src),
		noise: distuv.Normal{Mu: 0, Sigma: cfg.Noise, Src: src},
		order: make([]int, ds.Len()),
	}
	for i := range l.order {
		l.order[i] = i
	}
	l.Reset()
	return l, nil
}

// Reset implements Loader.
func (l *TensorLoader) Reset() {
	l.pos = 0
	if l.cfg.Shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// BatchSize implements Loader.
func (l *TensorLoader) BatchSize() int {
	return l.cfg.BatchSize
}

// NumBatches returns the number of batches per epoch.
func (l *TensorLoader) NumBatches() int {
	return (l.ds.Len() + l.cfg.BatchSize - 1) / l.cfg.BatchSize
}

// Next implements Loader.
func (l *TensorLoader) Next() (input, target *tensor.Tensor, ok bool) {
	if l.pos >= len(l.order) {
		return nil, nil, false
	}
	end := min(l.pos+l.cfg.BatchSize, len(l.order))
	idx := l.order[l.pos:end]
	l.pos = end

	input = gather(l.ds.Inputs, idx)
	target = gather(l.ds.Targets, idx)
	if l.cfg.Noise > 0 {
		x := input.Data()
		for i := range x {
			x[i] += l.noise.Rand()
		}
	}
	if l.cfg.TimeMajor {
		input = swapLeading(input)
	}
	return input, target, true
}

// gather copies the samples at idx into a new [len(idx), ...] tensor.
func gather(t *tensor.Tensor, idx []int) *tensor.Tensor {
	shape := t.Shape()
	stride := shape[1:].NumElements()
	shape[0] = len(idx)
	out := tensor.New(shape...)
	src, dst := t.Data(), out.Data()
	for i, s := range idx {
		copy(dst[i*stride:(i+1)*stride], src[s*stride:(s+1)*stride])
	}
	return out
}

// swapLeading transposes the first two axes: [a, b, ...] -> [b, a, ...].
func swapLeading(t *tensor.Tensor) *tensor.Tensor {
	shape := t.Shape()
	a, b := shape[0], shape[1]
	inner := shape[2:].NumElements()
	shape[0], shape[1] = b, a
	out := tensor.New(shape...)
	src, dst := t.Data(), out.Data()
	for i := 0; i < a; i++ {
		for j := 0; j < b; j++ {
			copy(dst[(j*a+i)*inner:(j*a+i+1)*inner], src[(i*b+j)*inner:(i*b+j+1)*inner])
		}
	}
	return out
}
