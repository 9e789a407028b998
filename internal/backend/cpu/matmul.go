// Package cpu implements the numeric kernels used by the layers in internal/nn.
//
// Kernels operate on raw row-major []float64 buffers. Dense products go
// through gonum's BLAS; the remaining kernels split work across the
// internal/parallel pool so that each output element is written by
// exactly one task.
package cpu

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
)

// Gemm computes C = op(A)·op(B) + beta·C.
//
// Dimensions are given after transposition:
//   - op(A) is [m, k]
//   - op(B) is [k, n]
//   - C is [m, n]
//
// All buffers are dense row-major. A is stored as [m, k] when transA is
// false and as [k, m] otherwise; B likewise.
func Gemm(transA, transB bool, m, n, k int, a, b []float64, beta float64, c []float64) {
	if m == 0 || n == 0 {
		return
	}
	if k == 0 {
		scale(beta, c[:m*n])
		return
	}

	ta, ga := blas.NoTrans, general(m, k, a)
	if transA {
		ta, ga = blas.Trans, general(k, m, a)
	}
	tb, gb := blas.NoTrans, general(k, n, b)
	if transB {
		tb, gb = blas.Trans, general(n, k, b)
	}
	blas64.Gemm(ta, tb, 1, ga, gb, beta, general(m, n, c))
}

// MatMulNT computes C[m,n] = A[m,k]·B[n,k]ᵗ + beta·C.
// This is the Linear forward shape: y = x·Wᵗ.
func MatMulNT(c, a, b []float64, m, n, k int, beta float64) {
	Gemm(false, true, m, n, k, a, b, beta, c)
}

// MatMulNN computes C[m,n] = A[m,k]·B[k,n] + beta·C.
func MatMulNN(c, a, b []float64, m, n, k int, beta float64) {
	Gemm(false, false, m, n, k, a, b, beta, c)
}

// MatMulTN computes C[m,n] = A[k,m]ᵗ·B[k,n] + beta·C.
// With beta=1 this accumulates weight gradients: dW += dyᵗ·x.
func MatMulTN(c, a, b []float64, m, n, k int, beta float64) {
	Gemm(true, false, m, n, k, a, b, beta, c)
}

// AddRowVector adds v[cols] to every row of x[rows, cols].
func AddRowVector(x []float64, rows, cols int, v []float64) {
	for r := 0; r < rows; r++ {
		blas64.Implementation().Daxpy(cols, 1, v, 1, x[r*cols:(r+1)*cols], 1)
	}
}

// AccumulateColSum adds the column sums of x[rows, cols] into dst[cols].
func AccumulateColSum(dst, x []float64, rows, cols int) {
	for r := 0; r < rows; r++ {
		blas64.Implementation().Daxpy(cols, 1, x[r*cols:(r+1)*cols], 1, dst, 1)
	}
}

func general(rows, cols int, data []float64) blas64.General {
	return blas64.General{Rows: rows, Cols: cols, Stride: max(cols, 1), Data: data[:rows*cols]}
}

func scale(beta float64, x []float64) {
	if beta == 1 {
		return
	}
	if beta == 0 {
		clear(x)
		return
	}
	for i := range x {
		x[i] *= beta
	}
}
