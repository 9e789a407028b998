package train

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/napcas-ml/napcas/internal/config"
	"github.com/napcas-ml/napcas/internal/data"
	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/optim"
)

// NewDataset builds the dataset described by cfg.
func NewDataset(cfg config.Data, seed uint64) (*data.Dataset, error) {
	switch cfg.Dataset {
	case "blobs":
		return data.Blobs(cfg.Samples, cfg.Features, cfg.Classes, 0.5, seed), nil
	case "xor":
		return data.XOR(cfg.Samples, seed), nil
	case "sine":
		return data.Sine(cfg.Samples, cfg.SeqLen, seed), nil
	case "images":
		return data.Images(cfg.Samples, cfg.Classes, cfg.Size, seed), nil
	case "ring":
		return data.Ring(cfg.Samples, seed), nil
	case "idx":
		return data.LoadIDX(cfg.Images, cfg.Labels, cfg.Samples)
	}
	return nil, fmt.Errorf("unknown dataset %q", cfg.Dataset)
}

// NewModel builds the network described by cfg for samples of ds.
func NewModel(cfg config.Config, ds *data.Dataset) (nn.Module, error) {
	m := cfg.Model
	in := ds.InputShape()
	out := outputWidth(cfg, ds)

	var (
		model nn.Module
		err   error
	)
	switch m.Kind {
	case "mlp":
		model, err = nn.NewMLP(slices.Concat([]int{in.NumElements()}, m.Hidden, []int{out}), m.Activation)
	case "napcas":
		model, err = cellStack(in.NumElements(), m.Hidden, out, m.Activation, func(in, out int) nn.Module {
			return nn.NewNAPCASim(in, out)
		})
	case "nncell":
		model, err = cellStack(in.NumElements(), m.Hidden, out, m.Activation, func(in, out int) nn.Module {
			return nn.NewNNCell(in, out)
		})
	case "cnn":
		if len(in) != 3 {
			return nil, fmt.Errorf("cnn: expected [channels, height, width] samples, got %v", in)
		}
		model, err = nn.NewCNN(nn.CNNConfig{
			InChannels: in[0],
			Height:     in[1],
			Width:      in[2],
			Channels:   m.Channels,
			KernelSize: m.KernelSize,
			PoolSize:   m.PoolSize,
			NumClasses: out,
		})
	case "rnn", "lstm", "gru":
		var rec *nn.Sequential
		rec, err = nn.NewRecurrent(m.Kind, in[len(in)-1], m.Hidden[0], m.Layers)
		if err == nil {
			rec.Add(nn.NewLastStep())
			rec.Add(nn.NewLinear(m.Hidden[0], out))
			model = rec
		}
	case "transformer":
		var tr *nn.Sequential
		tr, err = nn.NewTransformer(nn.TransformerConfig{
			DModel:    m.DModel,
			NumHeads:  m.Heads,
			NumLayers: m.Layers,
			Causal:    m.Causal,
		})
		if err == nil {
			model = nn.NewSequential(nn.NewLinear(in[len(in)-1], m.DModel), tr, nn.NewLastStep(), nn.NewLinear(m.DModel, out))
		}
	case "gan":
		width := in.NumElements()
		hidden := slices.Clone(m.Hidden)
		gen := slices.Concat([]int{m.LatentDim}, hidden, []int{width})
		slices.Reverse(hidden)
		disc := slices.Concat([]int{width}, hidden, []int{1})
		return nn.NewGANFromSizes(gen, disc)
	default:
		return nil, fmt.Errorf("unknown model kind %q", m.Kind)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Training.Loss == "bce" {
		return nn.NewSequential(model, nn.NewSigmoid()), nil
	}
	return model, nil
}

// cellStack builds one cell per hidden layer, each followed by the
// activation, and a Linear read-out.
func cellStack(in int, hidden []int, out int, activation string, cell func(in, out int) nn.Module) (*nn.Sequential, error) {
	seq := nn.NewSequential()
	for _, h := range hidden {
		act, err := nn.NewActivation(activation)
		if err != nil {
			return nil, err
		}
		seq.Add(cell(in, h))
		seq.Add(act)
		in = h
	}
	seq.Add(nn.NewLinear(in, out))
	return seq, nil
}

// outputWidth is the class count for cross-entropy and the target width
// otherwise.
func outputWidth(cfg config.Config, ds *data.Dataset) int {
	if cfg.Training.Loss != "cross_entropy" {
		return ds.TargetShape().NumElements()
	}
	classes := cfg.Data.Classes
	if labels := ds.Targets.Data(); len(labels) > 0 {
		classes = max(classes, int(floats.Max(labels))+1)
	}
	return max(classes, 2)
}

// NewLoss returns the loss named by name.
func NewLoss(name string) (nn.Loss, error) {
	switch name {
	case "mse":
		return nn.NewMSE(), nil
	case "cross_entropy":
		return nn.NewCrossEntropy(), nil
	case "bce":
		return nn.NewBCE(), nil
	}
	return nil, fmt.Errorf("unknown loss %q", name)
}

// NewOptimizer builds the optimizer described by cfg over modules.
func NewOptimizer(cfg config.Optimizer, modules ...nn.Module) (optim.Optimizer, error) {
	switch cfg.Kind {
	case "sgd":
		return optim.NewSGD(modules, optim.SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum}), nil
	case "adam":
		return optim.NewAdam(modules, optim.AdamConfig{
			LR:    cfg.LR,
			Betas: [2]float64{cfg.Beta1, cfg.Beta2},
			Eps:   cfg.Eps,
		}), nil
	}
	return nil, fmt.Errorf("unknown optimizer %q", cfg.Kind)
}

// Prunable collects the NAPCASim cells of a model.
func Prunable(m nn.Module) []*nn.NAPCASim {
	switch m := m.(type) {
	case *nn.NAPCASim:
		return []*nn.NAPCASim{m}
	case *nn.Sequential:
		var cells []*nn.NAPCASim
		for _, sub := range m.Modules() {
			cells = append(cells, Prunable(sub)...)
		}
		return cells
	}
	return nil
}
