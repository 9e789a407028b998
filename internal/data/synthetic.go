package data

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/napcas-ml/napcas/internal/tensor"
)

// Blobs draws n points in features dimensions around classes Gaussian
// centers. Targets are class indices, shape [n].
func Blobs(n, features, classes int, spread float64, seed uint64) *Dataset {
	if n <= 0 || features <= 0 || classes <= 0 {
		panic(fmt.Sprintf("data.Blobs: sizes must be positive, got n=%d features=%d classes=%d", n, features, classes))
	}
	src := rand.NewSource(seed)
	rng := rand.New(src)
	centers := tensor.Rand(tensor.Shape{classes, features}, -4, 4, src).Data()
	noise := distuv.Normal{Mu: 0, Sigma: spread, Src: src}

	x := tensor.New(n, features)
	y := tensor.New(n)
	for i := 0; i < n; i++ {
		c := rng.Intn(classes)
		y.Data()[i] = float64(c)
		row := x.Data()[i*features : (i+1)*features]
		for j := range row {
			row[j] = centers[c*features+j] + noise.Rand()
		}
	}
	return &Dataset{Inputs: x, Targets: y}
}

// XOR draws n points from [-1, 1)² labelled 1 when both coordinates share
// a sign. Targets have shape [n, 1].
func XOR(n int, seed uint64) *Dataset {
	x := tensor.Rand(tensor.Shape{n, 2}, -1, 1, rand.NewSource(seed))
	y := tensor.New(n, 1)
	for i := 0; i < n; i++ {
		if x.Data()[2*i]*x.Data()[2*i+1] > 0 {
			y.Data()[i] = 1
		}
	}
	return &Dataset{Inputs: x, Targets: y}
}

// sineStep is the phase advance between consecutive time steps.
const sineStep = 0.3

// Sine draws n sine windows of seqLen steps with random phase. Inputs
// have shape [n, seqLen, 1]; the target [n, 1] is the next value.
func Sine(n, seqLen int, seed uint64) *Dataset {
	phase := distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: rand.NewSource(seed)}
	x := tensor.New(n, seqLen, 1)
	y := tensor.New(n, 1)
	for i := 0; i < n; i++ {
		p := phase.Rand()
		for t := 0; t < seqLen; t++ {
			x.Data()[i*seqLen+t] = math.Sin(p + sineStep*float64(t))
		}
		y.Data()[i] = math.Sin(p + sineStep*float64(seqLen))
	}
	return &Dataset{Inputs: x, Targets: y}
}

// Images draws n single-channel size×size images whose class (up to 4)
// is the lit quadrant, over low-amplitude noise. Inputs have shape
// [n, 1, size, size]; targets are class indices, shape [n].
func Images(n, classes, size int, seed uint64) *Dataset {
	if classes < 1 || classes > 4 || size < 2 {
		panic(fmt.Sprintf("data.Images: need 1..4 classes and size >= 2, got classes=%d size=%d", classes, size))
	}
	src := rand.NewSource(seed)
	rng := rand.New(src)
	x := tensor.Randn(tensor.Shape{n, 1, size, size}, 0, 0.1, src)
	y := tensor.New(n)
	half := size / 2
	for i := 0; i < n; i++ {
		c := rng.Intn(classes)
		y.Data()[i] = float64(c)
		img := x.Data()[i*size*size : (i+1)*size*size]
		r0, c0 := (c/2)*half, (c%2)*half
		for r := r0; r < r0+half; r++ {
			for k := c0; k < c0+half; k++ {
				img[r*size+k] += 1
			}
		}
	}
	return &Dataset{Inputs: x, Targets: y}
}

// Ring draws n points near the unit circle, shape [n, 2]. Targets are
// ones, shape [n, 1], the "real" label of a GAN discriminator.
func Ring(n int, seed uint64) *Dataset {
	src := rand.NewSource(seed)
	angle := distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: src}
	radius := distuv.Normal{Mu: 1, Sigma: 0.05, Src: src}
	x := tensor.New(n, 2)
	for i := 0; i < n; i++ {
		a, r := angle.Rand(), radius.Rand()
		x.Data()[2*i] = r * math.Cos(a)
		x.Data()[2*i+1] = r * math.Sin(a)
	}
	return &Dataset{Inputs: x, Targets: tensor.Ones(tensor.Shape{n, 1})}
}
