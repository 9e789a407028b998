package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/napcas-ml/napcas/internal/version"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cli := NewCLI()
	cli.SetOut(&out)
	cli.SetErr(&errOut)
	cli.SetArgs(args)
	err := cli.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "napcas version "+version.Version+"\n", out)

	out, err = run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
}

func TestTrainInspectEval(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
seed: 3
data:
  samples: 40
model:
  kind: napcas
  hidden: [8]
  prune_threshold: 0.05
training:
  epochs: 2
  batch_size: 10
`), 0o600))
	ckpt := filepath.Join(dir, "model.napc")

	out, err := run(t, "train", "--config", cfgPath, "--output", ckpt)
	require.NoError(t, err)
	assert.Contains(t, out, "EPOCH")
	assert.Contains(t, out, "ACTIVE")
	assert.Contains(t, out, "checkpoint: "+ckpt)

	out, err = run(t, "inspect", "--stats", ckpt)
	require.NoError(t, err)
	for _, want := range []string{"Sequential", "Checkpoint", "adam", "000.weight", "000.weight.mask", "optim.step", "mean"} {
		assert.Contains(t, out, want)
	}

	out, err = run(t, "eval", "--config", cfgPath, ckpt)
	require.NoError(t, err)
	assert.Contains(t, out, "accuracy:")
	assert.Contains(t, out, "epoch:    2")
}

func TestTrainPrintConfig(t *testing.T) {
	_, err := run(t, "train", "--model", "gru", "--print-config")
	require.Error(t, err, "gru on the default blobs dataset is invalid")

	out, err := run(t, "train", "--epochs", "7", "--print-config")
	require.NoError(t, err)
	assert.Contains(t, out, "epochs: 7")
	assert.Contains(t, out, "kind: mlp")
}

func TestInspectErrors(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "bad.napc")
	require.NoError(t, os.WriteFile(bad, []byte("not a checkpoint"), 0o600))
	_, err := run(t, "inspect", bad)
	assert.Error(t, err)

	_, err = run(t, "inspect")
	assert.Error(t, err)
}
