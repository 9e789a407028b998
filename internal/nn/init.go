package nn

import (
	"math"
	"sync"
	"time"

	"golang.org/x/exp/rand"

	"github.com/napcas-ml/napcas/internal/envconfig"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// lockedSource serializes access to a rand.Source so layers can be
// constructed from several goroutines.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

var initSource = &lockedSource{src: rand.NewSource(defaultSeed())}

func defaultSeed() uint64 {
	if seed := envconfig.Seed(); seed != 0 {
		return seed
	}
	return uint64(time.Now().UnixNano())
}

// SetSeed reseeds the source used for weight initialization.
func SetSeed(seed uint64) {
	initSource.Seed(seed)
}

// InitSource returns the shared initialization source.
func InitSource() rand.Source {
	return initSource
}

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
func Xavier(fanIn, fanOut int, shape tensor.Shape) *tensor.Tensor {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return tensor.Rand(shape, -bound, bound, initSource)
}

// Uniform fills a new tensor from U(-bound, bound).
func Uniform(shape tensor.Shape, bound float64) *tensor.Tensor {
	return tensor.Rand(shape, -bound, bound, initSource)
}

// Randn creates a tensor with values from N(0, std²).
func Randn(shape tensor.Shape, std float64) *tensor.Tensor {
	return tensor.Randn(shape, 0, std, initSource)
}
