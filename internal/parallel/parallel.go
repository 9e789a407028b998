// Package parallel provides the bounded worker pool behind the numeric kernels.
//
// Every helper splits [0, n) into disjoint chunks; callers must ensure that
// iteration i writes only outputs owned by i so results match a sequential
// run exactly.
package parallel

import (
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/napcas-ml/napcas/internal/envconfig"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

// DefaultConfig returns defaults based on NAPCAS_NUM_THREADS or the CPU count.
func DefaultConfig() Config {
	n := int(envconfig.NumThreads())
	if n == 0 {
		n = runtime.NumCPU()
	}
	return Config{
		Enabled:      n > 1 && !envconfig.NoParallel(),
		NumWorkers:   n,
		MinChunkSize: 64,
	}
}

var global atomic.Pointer[Config]

// Default returns the process-wide configuration used by kernels.
func Default() Config {
	if c := global.Load(); c != nil {
		return *c
	}
	c := DefaultConfig()
	global.CompareAndSwap(nil, &c)
	return *global.Load()
}

// SetDefault replaces the process-wide configuration.
func SetDefault(cfg Config) {
	global.Store(&cfg)
}

// WithMinChunk returns a copy of cfg with MinChunkSize set to n. Kernels
// whose per-item cost is large (one image, one attention head) use 1.
func (cfg Config) WithMinChunk(n int) Config {
	cfg.MinChunkSize = n
	return cfg
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	_ = ForErr(n, func(i int) error {
		f(i)
		return nil
	}, cfg)
}

// ForErr is For with error propagation. The first error is returned after
// all started chunks finish.
func ForErr(n int, f func(i int) error, cfg Config) error {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < 2*max(cfg.MinChunkSize, 1) {
		for i := 0; i < n; i++ {
			if err := f(i); err != nil {
				return err
			}
		}
		return nil
	}

	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := f(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// ForBatch optimized for batch*channels iteration pattern.
// Common in CNN operations like Conv2D.
func ForBatch(batch, channels int, f func(b, c int), cfg Config) {
	n := batch * channels
	For(n, func(k int) {
		f(k/channels, k%channels)
	}, cfg)
}
