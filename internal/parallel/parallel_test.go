package parallel

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parallelConfig() Config {
	return Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}
}

func TestFor(t *testing.T) {
	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, parallelConfig())

	assert.Equal(t, int64(n), counter)
}

func TestForVisitsEachIndexOnce(t *testing.T) {
	n := 257
	seen := make([]int32, n)
	For(n, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	}, parallelConfig())

	for i, c := range seen {
		if c != 1 {
			t.Errorf("index %d visited %d times", i, c)
		}
	}
}

func TestForBatch(t *testing.T) {
	batch, channels := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, channels)
	}

	ForBatch(batch, channels, func(b, c int) {
		results[b][c] = true
	}, parallelConfig().WithMinChunk(1))

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			if !results[b][c] {
				t.Errorf("Missing result at [%d][%d]", b, c)
			}
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	cfg := Config{Enabled: false}

	var counter int64
	For(100, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	assert.Equal(t, int64(100), counter)
}

func TestForErrPropagates(t *testing.T) {
	boom := errors.New("boom")
	err := ForErr(100, func(i int) error {
		if i == 57 {
			return boom
		}
		return nil
	}, parallelConfig())
	require.ErrorIs(t, err, boom)

	err = ForErr(10, func(i int) error {
		if i == 3 {
			return boom
		}
		return nil
	}, Config{})
	require.ErrorIs(t, err, boom)
}

func TestSetDefault(t *testing.T) {
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	SetDefault(Config{Enabled: false, NumWorkers: 1})
	assert.False(t, Default().Enabled)
	assert.Equal(t, 1, Default().NumWorkers)
}

func TestDefaultConfigFromEnv(t *testing.T) {
	t.Setenv("NAPCAS_NUM_THREADS", "3")
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.NumWorkers)
	assert.True(t, cfg.Enabled)
}

func BenchmarkFor(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(j int) {
				atomic.AddInt64(&sum, int64(j))
			}, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		seq := Config{Enabled: false}
		for i := 0; i < b.N; i++ {
			var sum int64
			For(n, func(j int) {
				atomic.AddInt64(&sum, int64(j))
			}, seq)
		}
	})
}
