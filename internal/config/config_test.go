package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/napcas-ml/napcas/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestDecodeOverridesDefaults(t *testing.T) {
	cfg, err := config.Decode(strings.NewReader(`
seed: 7
data:
  dataset: sine
  seq_len: 8
model:
  kind: lstm
  hidden: [12]
  layers: 2
optimizer:
  kind: sgd
  lr: 0.05
  momentum: 0.9
training:
  loss: mse
  epochs: 3
`))
	require.NoError(t, err)

	want := config.Default()
	want.Seed = 7
	want.Data.Dataset = "sine"
	want.Data.SeqLen = 8
	want.Model.Kind = "lstm"
	want.Model.Hidden = []int{12}
	want.Model.Layers = 2
	want.Optimizer.Kind = "sgd"
	want.Optimizer.LR = 0.05
	want.Optimizer.Momentum = 0.9
	want.Training.Loss = "mse"
	want.Training.Epochs = 3
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeEmpty(t *testing.T) {
	cfg, err := config.Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := config.Decode(strings.NewReader("model:\n  kindd: mlp\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown model", func(c *config.Config) { c.Model.Kind = "resnet" }, "model.kind"},
		{"zero lr", func(c *config.Config) { c.Optimizer.LR = 0 }, "optimizer.lr"},
		{"momentum out of range", func(c *config.Config) { c.Optimizer.Momentum = 1 }, "optimizer.momentum"},
		{"zero batch", func(c *config.Config) { c.Training.BatchSize = 0 }, "training.batch_size"},
		{"unknown loss", func(c *config.Config) { c.Training.Loss = "hinge" }, "training.loss"},
		{"recurrent on blobs", func(c *config.Config) { c.Model.Kind = "gru" }, "sequence dataset"},
		{"heads do not divide", func(c *config.Config) {
			c.Model.Kind, c.Data.Dataset, c.Training.Loss = "transformer", "sine", "mse"
			c.Model.DModel, c.Model.Heads = 10, 3
		}, "multiple of model.heads"},
		{"cnn without images", func(c *config.Config) { c.Model.Kind = "cnn" }, "image dataset"},
		{"idx without paths", func(c *config.Config) { c.Data.Dataset = "idx" }, "data.images"},
		{"negative noise", func(c *config.Config) { c.Data.Noise = -1 }, "data.noise"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Kind = "napcas"
	cfg.Model.PruneThreshold = 0.05
	b, err := cfg.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, b, 0o600))
	loaded, err := config.Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.True(t, os.IsNotExist(err))
}
