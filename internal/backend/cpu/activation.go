package cpu

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// ReLU writes max(0, x) into out.
func ReLU(out, x []float64) {
	for i, v := range x {
		if v > 0 {
			out[i] = v
		} else {
			out[i] = 0
		}
	}
}

// ReLUBackward writes dy where x > 0, else 0, into dx.
func ReLUBackward(dx, dy, x []float64) {
	for i, v := range x {
		if v > 0 {
			dx[i] = dy[i]
		} else {
			dx[i] = 0
		}
	}
}

// Sigmoid writes 1/(1+exp(-x)) into out.
func Sigmoid(out, x []float64) {
	for i, v := range x {
		out[i] = SigmoidScalar(v)
	}
}

// SigmoidScalar evaluates the logistic function without overflow.
func SigmoidScalar(v float64) float64 {
	if v >= 0 {
		return 1 / (1 + math.Exp(-v))
	}
	e := math.Exp(v)
	return e / (1 + e)
}

// SigmoidBackward computes dx = dy·y·(1−y) from the forward output y.
func SigmoidBackward(dx, dy, y []float64) {
	for i, s := range y {
		dx[i] = dy[i] * s * (1 - s)
	}
}

// Tanh writes tanh(x) into out.
func Tanh(out, x []float64) {
	for i, v := range x {
		out[i] = math.Tanh(v)
	}
}

// TanhBackward computes dx = dy·(1−y²) from the forward output y.
func TanhBackward(dx, dy, y []float64) {
	for i, t := range y {
		dx[i] = dy[i] * (1 - t*t)
	}
}

// LogSumExp returns log(sum(exp(x))) computed with the max subtracted.
func LogSumExp(x []float64) float64 {
	if len(x) == 0 {
		return math.Inf(-1)
	}
	m := floats.Max(x)
	if math.IsInf(m, -1) {
		return m
	}
	var sum float64
	for _, v := range x {
		sum += math.Exp(v - m)
	}
	return m + math.Log(sum)
}

// SoftmaxRows writes the row-wise softmax of x[rows, cols] into out.
// The row maximum is subtracted before exponentiation.
func SoftmaxRows(out, x []float64, rows, cols int) {
	for r := 0; r < rows; r++ {
		row := x[r*cols : (r+1)*cols]
		dst := out[r*cols : (r+1)*cols]
		m := floats.Max(row)
		var sum float64
		for j, v := range row {
			e := math.Exp(v - m)
			dst[j] = e
			sum += e
		}
		floats.Scale(1/sum, dst)
	}
}
