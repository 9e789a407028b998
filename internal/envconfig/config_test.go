package envconfig

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"false": slog.LevelInfo,
		"0":     slog.LevelInfo,
		"1":     slog.LevelDebug,
		"true":  slog.LevelDebug,
		"2":     slog.Level(-8),
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("NAPCAS_DEBUG", k)
			assert.Equal(t, v, LogLevel())
		})
	}
}

func TestVarTrimsQuotes(t *testing.T) {
	t.Setenv("NAPCAS_TEST_VAR", `  "value" `)
	assert.Equal(t, "value", Var("NAPCAS_TEST_VAR"))
}

func TestUint(t *testing.T) {
	cases := map[string]uint{
		"0":    0,
		"1":    1,
		"16":   16,
		"-1":   0,
		"bad":  0,
		"   8": 8,
	}

	for k, v := range cases {
		t.Run(k, func(t *testing.T) {
			t.Setenv("NAPCAS_NUM_THREADS", k)
			assert.Equal(t, v, NumThreads())
		})
	}
}

func TestSeed(t *testing.T) {
	t.Setenv("NAPCAS_SEED", "42")
	assert.Equal(t, uint64(42), Seed())
}

func TestBool(t *testing.T) {
	t.Setenv("NAPCAS_NO_PARALLEL", "1")
	assert.True(t, NoParallel())
	t.Setenv("NAPCAS_NO_PARALLEL", "false")
	assert.False(t, NoParallel())
}

func TestCheckpointDir(t *testing.T) {
	t.Setenv("NAPCAS_CHECKPOINT_DIR", "/tmp/ckpt")
	assert.Equal(t, "/tmp/ckpt", CheckpointDir())
}

func TestValuesCoversAsMap(t *testing.T) {
	vals := Values()
	for k := range AsMap() {
		assert.Contains(t, vals, k)
	}
}
