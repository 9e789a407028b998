package main

import (
	"fmt"
	"log/slog"
	"math"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/napcas-ml/napcas/internal/config"
	"github.com/napcas-ml/napcas/internal/data"
	"github.com/napcas-ml/napcas/internal/envconfig"
	"github.com/napcas-ml/napcas/internal/train"
)

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model described by a YAML run configuration",
		Example: `  napcas train
  napcas train --config lstm.yaml --epochs 20 --save
  napcas train --model napcas --print-config > run.yaml`,
		Args: cobra.NoArgs,
		RunE: trainHandler,
	}
	cmd.Flags().StringP("config", "c", "", "Run configuration file (defaults are used when empty)")
	cmd.Flags().String("model", "", "Override model.kind")
	cmd.Flags().Int("epochs", 0, "Override training.epochs")
	cmd.Flags().Float64("lr", 0, "Override optimizer.lr")
	cmd.Flags().Uint64("seed", 0, "Override seed")
	cmd.Flags().StringP("output", "o", "", "Checkpoint path (overrides training.checkpoint)")
	cmd.Flags().Bool("save", false, "Write a checkpoint to NAPCAS_CHECKPOINT_DIR")
	cmd.Flags().Bool("print-config", false, "Print the effective configuration and exit")
	return cmd
}

// loadConfig reads --config and applies the override flags.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
	}
	if cmd.Flags().Changed("model") {
		cfg.Model.Kind, _ = cmd.Flags().GetString("model")
	}
	if cmd.Flags().Changed("epochs") {
		cfg.Training.Epochs, _ = cmd.Flags().GetInt("epochs")
	}
	if cmd.Flags().Changed("lr") {
		cfg.Optimizer.LR, _ = cmd.Flags().GetFloat64("lr")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed, _ = cmd.Flags().GetUint64("seed")
	} else if cfg.Seed == 0 {
		cfg.Seed = envconfig.Seed()
	}
	return cfg, cfg.Validate()
}

func trainHandler(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if p, _ := cmd.Flags().GetBool("print-config"); p {
		b, err := cfg.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(b)
		return err
	}

	if out, _ := cmd.Flags().GetString("output"); out != "" {
		cfg.Training.Checkpoint = out
	} else if save, _ := cmd.Flags().GetBool("save"); save {
		cfg.Training.Checkpoint = filepath.Join(envconfig.CheckpointDir(), cfg.Model.Kind+".napc")
	}

	stats, err := train.Run(cmd.Context(), cfg, slog.Default())
	if len(stats) > 0 {
		train.RenderEpochs(cmd.OutOrStdout(), stats)
	}
	if err != nil {
		return err
	}
	if cfg.Training.Checkpoint != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "\ncheckpoint: %s\n", cfg.Training.Checkpoint)
	}
	return nil
}

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval CHECKPOINT",
		Short: "Evaluate a checkpoint on the configured dataset",
		Args:  cobra.ExactArgs(1),
		RunE:  evalHandler,
	}
	cmd.Flags().StringP("config", "c", "", "Run configuration the checkpoint was trained with")
	cmd.Flags().String("model", "", "Override model.kind")
	cmd.Flags().Uint64("seed", 0, "Override seed")
	return cmd
}

func evalHandler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Model.Kind == "gan" {
		return fmt.Errorf("eval: GAN checkpoints have no supervised loss; use inspect")
	}
	model, opt, header, err := train.Resume(cfg, args[0])
	if err != nil {
		return err
	}
	loss, err := train.NewLoss(cfg.Training.Loss)
	if err != nil {
		return err
	}
	ds, err := train.NewDataset(cfg.Data, cfg.Seed)
	if err != nil {
		return err
	}
	lc := train.LoaderConfig(cfg)
	lc.Shuffle, lc.Noise = false, 0
	loader, err := data.NewTensorLoader(ds, lc)
	if err != nil {
		return err
	}
	t := &train.Trainer{Model: model, Loss: loss, Optimizer: opt}
	l, acc, err := t.Evaluate(cmd.Context(), loader)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "model:    %s\n", header.ModelType)
	if header.CheckpointMeta != nil {
		fmt.Fprintf(w, "epoch:    %d\n", header.CheckpointMeta.Epoch)
	}
	fmt.Fprintf(w, "loss:     %.4f\n", l)
	if !math.IsNaN(acc) {
		fmt.Fprintf(w, "accuracy: %.1f%%\n", 100*acc)
	}
	return nil
}
