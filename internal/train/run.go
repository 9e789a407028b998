package train

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/napcas-ml/napcas/internal/checkpoint"
	"github.com/napcas-ml/napcas/internal/config"
	"github.com/napcas-ml/napcas/internal/data"
	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/optim"
)

// valFraction of the dataset is held out for validation.
const valFraction = 0.2

// Run builds everything cfg describes and trains it.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger) ([]EpochStats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Seed != 0 {
		nn.SetSeed(cfg.Seed)
	}

	ds, err := NewDataset(cfg.Data, cfg.Seed)
	if err != nil {
		return nil, err
	}
	model, err := NewModel(cfg, ds)
	if err != nil {
		return nil, err
	}
	logger.Info("model built", "kind", cfg.Model.Kind, "parameters", nn.NumParameters(model), "samples", ds.Len())

	if gan, ok := model.(*nn.GAN); ok {
		return runGAN(ctx, cfg, gan, ds, logger)
	}

	lossFn, err := NewLoss(cfg.Training.Loss)
	if err != nil {
		return nil, err
	}
	opt, err := NewOptimizer(cfg.Optimizer, model)
	if err != nil {
		return nil, err
	}

	trainSet, valSet, err := ds.Split(ds.Len() - int(valFraction*float64(ds.Len())))
	if err != nil {
		return nil, err
	}
	loaderCfg := LoaderConfig(cfg)
	trainLoader, err := data.NewTensorLoader(trainSet, loaderCfg)
	if err != nil {
		return nil, err
	}
	var valLoader data.Loader
	if valSet.Len() > 0 {
		valCfg := loaderCfg
		valCfg.Shuffle, valCfg.Noise = false, 0
		if valLoader, err = data.NewTensorLoader(valSet, valCfg); err != nil {
			return nil, err
		}
	}

	t := &Trainer{
		Model:          model,
		Loss:           lossFn,
		Optimizer:      opt,
		ClipNorm:       cfg.Optimizer.ClipNorm,
		PruneThreshold: cfg.Model.PruneThreshold,
		Checkpoint:     cfg.Training.Checkpoint,
		CheckpointMeta: checkpoint.CheckpointMeta{
			OptimizerType:   cfg.Optimizer.Kind,
			OptimizerConfig: optimizerConfig(cfg.Optimizer),
		},
		Logger: logger,
	}
	return t.Fit(ctx, trainLoader, valLoader, cfg.Training.Epochs)
}

func runGAN(ctx context.Context, cfg config.Config, gan *nn.GAN, ds *data.Dataset, logger *slog.Logger) ([]EpochStats, error) {
	genOpt, err := NewOptimizer(cfg.Optimizer, gan.Generator())
	if err != nil {
		return nil, err
	}
	discOpt, err := NewOptimizer(cfg.Optimizer, gan.Discriminator())
	if err != nil {
		return nil, err
	}
	gan.SetOptimizers(genOpt, discOpt)

	loader, err := data.NewTensorLoader(ds, LoaderConfig(cfg))
	if err != nil {
		return nil, err
	}
	t := &GANTrainer{
		GAN:        gan,
		LatentDim:  cfg.Model.LatentDim,
		LR:         cfg.Optimizer.LR,
		Seed:       cfg.Seed,
		Checkpoint: cfg.Training.Checkpoint,
		Logger:     logger,
	}
	return t.Fit(ctx, loader, cfg.Training.Epochs)
}

// LoaderConfig returns the training loader settings cfg implies.
// Sequence models get time-major batches.
func LoaderConfig(cfg config.Config) data.LoaderConfig {
	lc := data.LoaderConfig{
		BatchSize: cfg.Training.BatchSize,
		Shuffle:   cfg.Training.Shuffle,
		Noise:     cfg.Data.Noise,
		Seed:      cfg.Seed,
	}
	switch cfg.Model.Kind {
	case "rnn", "lstm", "gru", "transformer":
		lc.TimeMajor = true
	}
	return lc
}

func optimizerConfig(cfg config.Optimizer) map[string]float64 {
	m := map[string]float64{"lr": cfg.LR}
	switch cfg.Kind {
	case "sgd":
		m["momentum"] = cfg.Momentum
	case "adam":
		m["beta1"], m["beta2"], m["eps"] = cfg.Beta1, cfg.Beta2, cfg.Eps
	}
	if cfg.ClipNorm > 0 {
		m["clip_norm"] = cfg.ClipNorm
	}
	return m
}

// Resume loads a checkpoint written by Run into a model and optimizer
// built from cfg, returning them with the checkpoint header.
func Resume(cfg config.Config, path string) (nn.Module, optim.Optimizer, checkpoint.Header, error) {
	ds, err := NewDataset(cfg.Data, cfg.Seed)
	if err != nil {
		return nil, nil, checkpoint.Header{}, err
	}
	model, err := NewModel(cfg, ds)
	if err != nil {
		return nil, nil, checkpoint.Header{}, err
	}
	opt, err := NewOptimizer(cfg.Optimizer, model)
	if err != nil {
		return nil, nil, checkpoint.Header{}, err
	}
	stateful, _ := opt.(checkpoint.Stateful)
	header, err := checkpoint.Load(path, model, stateful)
	if err != nil {
		return nil, nil, checkpoint.Header{}, fmt.Errorf("resume: %w", err)
	}
	return model, opt, header, nil
}
