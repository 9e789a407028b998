// Package config loads YAML run configurations for the napcas CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config describes one training run.
type Config struct {
	Seed      uint64    `yaml:"seed"`
	Data      Data      `yaml:"data"`
	Model     Model     `yaml:"model"`
	Optimizer Optimizer `yaml:"optimizer"`
	Training  Training  `yaml:"training"`
}

// Data selects the training dataset.
type Data struct {
	Dataset  string  `yaml:"dataset"`          // blobs, xor, sine, images, ring or idx
	Samples  int     `yaml:"samples"`          // Number of training samples (idx: upper bound)
	Features int     `yaml:"features"`         // blobs: input width
	Classes  int     `yaml:"classes"`          // blobs, images, idx: number of classes
	SeqLen   int     `yaml:"seq_len"`          // sine: sequence length
	Size     int     `yaml:"size"`             // images: height and width
	Noise    float64 `yaml:"noise"`            // Gaussian augmentation stddev (0 disables)
	Images   string  `yaml:"images,omitempty"` // idx: image file
	Labels   string  `yaml:"labels,omitempty"` // idx: label file
}

// Model selects and sizes the network.
type Model struct {
	Kind           string  `yaml:"kind"`            // mlp, napcas, nncell, cnn, rnn, lstm, gru, transformer or gan
	Hidden         []int   `yaml:"hidden"`          // Hidden widths (mlp, napcas, nncell, gan), or one recurrent width
	Activation     string  `yaml:"activation"`      // relu, sigmoid or tanh
	Layers         int     `yaml:"layers"`          // Recurrent or transformer layers
	Heads          int     `yaml:"heads"`           // Attention heads
	DModel         int     `yaml:"d_model"`         // Transformer width
	Causal         bool    `yaml:"causal"`          // Causal attention mask
	Channels       []int   `yaml:"channels"`        // CNN block widths
	KernelSize     int     `yaml:"kernel_size"`     // CNN kernel
	PoolSize       int     `yaml:"pool_size"`       // CNN pooling window
	LatentDim      int     `yaml:"latent_dim"`      // GAN noise width
	PruneThreshold float64 `yaml:"prune_threshold"` // napcas: prune |w| below this after each epoch
}

// Optimizer configures the optimizer.
type Optimizer struct {
	Kind     string  `yaml:"kind"` // sgd or adam
	LR       float64 `yaml:"lr"`
	Momentum float64 `yaml:"momentum"`
	Beta1    float64 `yaml:"beta1"`
	Beta2    float64 `yaml:"beta2"`
	Eps      float64 `yaml:"eps"`
	ClipNorm float64 `yaml:"clip_norm"` // Global gradient norm limit (0 disables)
}

// Training configures the training loop.
type Training struct {
	Epochs     int    `yaml:"epochs"`
	BatchSize  int    `yaml:"batch_size"`
	Loss       string `yaml:"loss"` // mse, cross_entropy or bce
	Shuffle    bool   `yaml:"shuffle"`
	Checkpoint string `yaml:"checkpoint"` // Output path ("" disables)
}

// Model kinds.
var modelKinds = []string{"mlp", "napcas", "nncell", "cnn", "rnn", "lstm", "gru", "transformer", "gan"}

// Default returns the configuration used when no file is given: an MLP
// classifier on Gaussian blobs trained with Adam.
func Default() Config {
	return Config{
		Data: Data{
			Dataset:  "blobs",
			Samples:  512,
			Features: 4,
			Classes:  3,
			SeqLen:   16,
			Size:     8,
		},
		Model: Model{
			Kind:       "mlp",
			Hidden:     []int{32},
			Activation: "relu",
			Layers:     1,
			Heads:      2,
			DModel:     16,
			KernelSize: 3,
			PoolSize:   2,
			Channels:   []int{8},
			LatentDim:  4,
		},
		Optimizer: Optimizer{
			Kind:  "adam",
			LR:    0.01,
			Beta1: 0.9,
			Beta2: 0.999,
			Eps:   1e-8,
		},
		Training: Training{
			Epochs:    10,
			BatchSize: 32,
			Loss:      "cross_entropy",
			Shuffle:   true,
		},
	}
}

// Load reads a YAML configuration from path on top of Default.
func Load(path string) (Config, error) {
	//nolint:gosec // G304: the config path is user input
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Decode reads a YAML configuration on top of Default and validates it.
// Unknown fields are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(slices.Contains([]string{"blobs", "xor", "sine", "images", "ring", "idx"}, c.Data.Dataset), "data.dataset: unknown dataset %q", c.Data.Dataset)
	check(c.Data.Samples > 0, "data.samples must be positive, got %d", c.Data.Samples)
	check(c.Data.Noise >= 0, "data.noise must be non-negative, got %g", c.Data.Noise)
	switch c.Data.Dataset {
	case "blobs":
		check(c.Data.Features > 0, "data.features must be positive, got %d", c.Data.Features)
		check(c.Data.Classes > 1, "data.classes must be at least 2, got %d", c.Data.Classes)
	case "images":
		check(c.Data.Classes > 1 && c.Data.Classes <= 4, "data.classes must be in [2, 4] for images, got %d", c.Data.Classes)
		check(c.Data.Size >= 2, "data.size must be at least 2, got %d", c.Data.Size)
	case "idx":
		check(c.Data.Images != "" && c.Data.Labels != "", "data.images and data.labels are required for idx")
		check(c.Data.Classes > 1, "data.classes must be at least 2, got %d", c.Data.Classes)
	case "sine":
		check(c.Data.SeqLen > 0, "data.seq_len must be positive, got %d", c.Data.SeqLen)
	}

	check(slices.Contains(modelKinds, c.Model.Kind), "model.kind: unknown kind %q", c.Model.Kind)
	for _, h := range c.Model.Hidden {
		check(h > 0, "model.hidden sizes must be positive, got %v", c.Model.Hidden)
	}
	check(slices.Contains([]string{"relu", "sigmoid", "tanh"}, c.Model.Activation), "model.activation: unknown activation %q", c.Model.Activation)
	check(c.Model.PruneThreshold >= 0, "model.prune_threshold must be non-negative, got %g", c.Model.PruneThreshold)
	switch c.Model.Kind {
	case "rnn", "lstm", "gru":
		check(len(c.Model.Hidden) == 1, "model.hidden must hold one width for %s, got %v", c.Model.Kind, c.Model.Hidden)
		check(c.Model.Layers > 0, "model.layers must be positive, got %d", c.Model.Layers)
		check(c.Data.Dataset == "sine", "model.kind %s needs a sequence dataset, got %q", c.Model.Kind, c.Data.Dataset)
	case "transformer":
		check(c.Model.Layers > 0, "model.layers must be positive, got %d", c.Model.Layers)
		check(c.Model.Heads > 0 && c.Model.DModel%c.Model.Heads == 0, "model.d_model (%d) must be a multiple of model.heads (%d)", c.Model.DModel, c.Model.Heads)
		check(c.Data.Dataset == "sine", "model.kind transformer needs a sequence dataset, got %q", c.Data.Dataset)
	case "cnn":
		check(len(c.Model.Channels) > 0, "model.channels must not be empty")
		check(c.Model.KernelSize > 0, "model.kernel_size must be positive, got %d", c.Model.KernelSize)
		check(c.Model.PoolSize > 0, "model.pool_size must be positive, got %d", c.Model.PoolSize)
		check(c.Data.Dataset == "images" || c.Data.Dataset == "idx", "model.kind cnn needs an image dataset, got %q", c.Data.Dataset)
	case "gan":
		check(c.Model.LatentDim > 0, "model.latent_dim must be positive, got %d", c.Model.LatentDim)
		check(c.Data.Dataset == "ring", "model.kind gan needs the ring dataset, got %q", c.Data.Dataset)
	}

	check(c.Optimizer.Kind == "sgd" || c.Optimizer.Kind == "adam", "optimizer.kind: unknown optimizer %q", c.Optimizer.Kind)
	check(c.Optimizer.LR > 0, "optimizer.lr must be positive, got %g", c.Optimizer.LR)
	check(c.Optimizer.Momentum >= 0 && c.Optimizer.Momentum < 1, "optimizer.momentum must be in [0, 1), got %g", c.Optimizer.Momentum)
	check(c.Optimizer.Beta1 >= 0 && c.Optimizer.Beta1 < 1, "optimizer.beta1 must be in [0, 1), got %g", c.Optimizer.Beta1)
	check(c.Optimizer.Beta2 >= 0 && c.Optimizer.Beta2 < 1, "optimizer.beta2 must be in [0, 1), got %g", c.Optimizer.Beta2)
	check(c.Optimizer.Eps >= 0, "optimizer.eps must be non-negative, got %g", c.Optimizer.Eps)
	check(c.Optimizer.ClipNorm >= 0, "optimizer.clip_norm must be non-negative, got %g", c.Optimizer.ClipNorm)

	check(c.Training.Epochs > 0, "training.epochs must be positive, got %d", c.Training.Epochs)
	check(c.Training.BatchSize > 0, "training.batch_size must be positive, got %d", c.Training.BatchSize)
	if c.Model.Kind != "gan" {
		check(slices.Contains([]string{"mse", "cross_entropy", "bce"}, c.Training.Loss), "training.loss: unknown loss %q", c.Training.Loss)
	}
	if c.Data.Dataset == "sine" {
		check(c.Training.Loss == "mse", "training.loss must be mse for the sine dataset, got %q", c.Training.Loss)
	}

	return errors.Join(errs...)
}
