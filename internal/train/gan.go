package train

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/exp/rand"

	"github.com/napcas-ml/napcas/internal/checkpoint"
	"github.com/napcas-ml/napcas/internal/data"
	"github.com/napcas-ml/napcas/internal/nn"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// GANTrainer fits a GAN with adversarial steps on real batches.
type GANTrainer struct {
	GAN       *nn.GAN
	LatentDim int
	// LR is used by networks without an installed optimizer.
	LR         float64
	Seed       uint64
	Checkpoint string
	Logger     *slog.Logger

	src  rand.Source
	step int64
}

// Fit runs epochs passes over realData. Only the inputs of each batch are used.
func (g *GANTrainer) Fit(ctx context.Context, realData data.Loader, epochs int) ([]EpochStats, error) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if g.src == nil {
		g.src = rand.NewSource(g.Seed)
	}
	genLoss, discLoss := tensor.New(1), tensor.New(1)

	stats := make([]EpochStats, 0, epochs)
	for epoch := 1; epoch <= epochs; epoch++ {
		start := time.Now()
		s := newStats(epoch)
		realData.Reset()
		var gSum, dSum float64
		batches := 0
		for {
			if err := ctx.Err(); err != nil {
				return stats, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			x, _, ok := realData.Next()
			if !ok {
				break
			}
			noise := tensor.Randn(tensor.Shape{x.Dim(0), g.LatentDim}, 0, 1, g.src)
			if err := g.GAN.TrainStep(x, noise, g.LR, genLoss, discLoss); err != nil {
				return stats, fmt.Errorf("epoch %d batch %d: %w", epoch, batches, err)
			}
			g.step++
			gSum += genLoss.Data()[0]
			dSum += discLoss.Data()[0]
			batches++
		}
		if batches > 0 {
			s.Loss = gSum / float64(batches)
			s.DiscLoss = dSum / float64(batches)
		}
		if g.Checkpoint != "" {
			meta := &checkpoint.CheckpointMeta{Epoch: epoch, Step: g.step, Loss: s.Loss}
			if err := checkpoint.Save(g.Checkpoint, g.GAN, checkpoint.Options{ModelType: "GAN", Meta: meta}); err != nil {
				return stats, fmt.Errorf("epoch %d checkpoint: %w", epoch, err)
			}
		}
		s.Duration = time.Since(start)
		stats = append(stats, s)
		logger.Info("epoch complete", "epoch", epoch, "gen_loss", s.Loss, "disc_loss", s.DiscLoss, "duration", s.Duration)
	}
	return stats, nil
}
