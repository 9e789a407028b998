package cpu

import (
	"github.com/napcas-ml/napcas/internal/parallel"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// ConvGeometry describes one Conv2D problem.
//
// Input is [N, C, H, W]; the unrolled patch matrix ("cols") is
// [N*HOut*WOut, C*KH*KW], one row per output position.
type ConvGeometry struct {
	N, C, H, W     int
	KH, KW         int
	Stride, Pad    int
	HOut, WOut     int
	OutputChannels int
}

// ConvOutputSize returns floor((in + 2·pad − kernel)/stride) + 1.
//
// Returns a shape error when the result is not positive.
func ConvOutputSize(in, kernel, stride, pad int) (int, error) {
	if stride <= 0 {
		return 0, tensor.ShapeErrorf("conv: stride must be positive, got %d", stride)
	}
	num := in + 2*pad - kernel
	if num < 0 {
		return 0, tensor.ShapeErrorf("conv: kernel %d larger than padded input %d", kernel, in+2*pad)
	}
	out := num/stride + 1
	if out <= 0 {
		return 0, tensor.ShapeErrorf("conv: output size %d (in=%d kernel=%d stride=%d pad=%d)", out, in, kernel, stride, pad)
	}
	return out, nil
}

// ColWidth returns C*KH*KW.
func (g ConvGeometry) ColWidth() int { return g.C * g.KH * g.KW }

// ColHeight returns N*HOut*WOut.
func (g ConvGeometry) ColHeight() int { return g.N * g.HOut * g.WOut }

// Im2Col transforms input tensor into column matrix.
//
// Input: [N, C, H, W]
// Output: cols [N * H_out * W_out, C * K_h * K_w]
//
// Each row of cols corresponds to one output position.
// Each column corresponds to one kernel weight. Padding reads as zero.
func Im2Col(cols, input []float64, g ConvGeometry) {
	colWidth := g.ColWidth()
	rowsPerImage := g.HOut * g.WOut

	parallel.For(g.N, func(n int) {
		colIdx := n * rowsPerImage
		for outH := 0; outH < g.HOut; outH++ {
			for outW := 0; outW < g.WOut; outW++ {
				hStart := outH*g.Stride - g.Pad
				wStart := outW*g.Stride - g.Pad
				bufIdx := colIdx * colWidth

				for c := 0; c < g.C; c++ {
					plane := (n*g.C + c) * g.H * g.W
					for kh := 0; kh < g.KH; kh++ {
						h := hStart + kh
						for kw := 0; kw < g.KW; kw++ {
							w := wStart + kw
							if h >= 0 && h < g.H && w >= 0 && w < g.W {
								cols[bufIdx] = input[plane+h*g.W+w]
							} else {
								cols[bufIdx] = 0
							}
							bufIdx++
						}
					}
				}
				colIdx++
			}
		}
	}, parallel.Default().WithMinChunk(1))
}

// Col2Im scatter-adds dcols back into dinput using the Im2Col mapping.
//
// Overlapping patches accumulate. dinput is not cleared first.
// Work is split per image; images never share input elements.
func Col2Im(dinput, dcols []float64, g ConvGeometry) {
	colWidth := g.ColWidth()
	rowsPerImage := g.HOut * g.WOut

	parallel.For(g.N, func(n int) {
		colIdx := n * rowsPerImage
		for outH := 0; outH < g.HOut; outH++ {
			for outW := 0; outW < g.WOut; outW++ {
				hStart := outH*g.Stride - g.Pad
				wStart := outW*g.Stride - g.Pad
				bufIdx := colIdx * colWidth

				for c := 0; c < g.C; c++ {
					plane := (n*g.C + c) * g.H * g.W
					for kh := 0; kh < g.KH; kh++ {
						h := hStart + kh
						for kw := 0; kw < g.KW; kw++ {
							w := wStart + kw
							if h >= 0 && h < g.H && w >= 0 && w < g.W {
								dinput[plane+h*g.W+w] += dcols[bufIdx]
							}
							bufIdx++
						}
					}
				}
				colIdx++
			}
		}
	}, parallel.Default().WithMinChunk(1))
}

// RowsToNCHW rearranges rows [N*HOut*WOut, COut] into [N, COut, HOut, WOut].
func RowsToNCHW(dst, rows []float64, n, cout, hw int) {
	for b := 0; b < n; b++ {
		for p := 0; p < hw; p++ {
			src := rows[(b*hw+p)*cout:]
			for c := 0; c < cout; c++ {
				dst[(b*cout+c)*hw+p] = src[c]
			}
		}
	}
}

// NCHWToRows is the inverse of RowsToNCHW.
func NCHWToRows(dst, nchw []float64, n, cout, hw int) {
	for b := 0; b < n; b++ {
		for p := 0; p < hw; p++ {
			row := dst[(b*hw+p)*cout:]
			for c := 0; c < cout; c++ {
				row[c] = nchw[(b*cout+c)*hw+p]
			}
		}
	}
}
