package cpu

import (
	"github.com/napcas-ml/napcas/internal/parallel"
	"github.com/napcas-ml/napcas/internal/tensor"
)

// PoolOutputSize returns floor((in − kernel)/stride) + 1.
//
// Returns a shape error when the result is not positive.
func PoolOutputSize(in, kernel, stride int) (int, error) {
	if kernel <= 0 || stride <= 0 {
		return 0, tensor.ShapeErrorf("maxpool: kernel %d and stride %d must be positive", kernel, stride)
	}
	if kernel > in {
		return 0, tensor.ShapeErrorf("maxpool: kernel %d larger than input %d", kernel, in)
	}
	return (in-kernel)/stride + 1, nil
}

// MaxPool2D computes window maxima over [N, C, H, W] input.
//
// argmax receives, for every output element, the flat input index of the
// winning element. The window is scanned row-major and only a strictly
// greater value replaces the current winner, so ties go to the first
// maximum encountered.
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func MaxPool2D(out []float64, argmax []int, in []float64, n, c, h, w, k, stride, hOut, wOut int) {
	parallel.ForBatch(n, c, func(b, ch int) {
		plane := (b*c + ch) * h * w
		outPlane := (b*c + ch) * hOut * wOut
		for oh := 0; oh < hOut; oh++ {
			for ow := 0; ow < wOut; ow++ {
				best := plane + oh*stride*w + ow*stride
				bestVal := in[best]
				for kh := 0; kh < k; kh++ {
					row := plane + (oh*stride+kh)*w + ow*stride
					for kw := 0; kw < k; kw++ {
						if v := in[row+kw]; v > bestVal {
							bestVal = v
							best = row + kw
						}
					}
				}
				out[outPlane+oh*wOut+ow] = bestVal
				argmax[outPlane+oh*wOut+ow] = best
			}
		}
	}, parallel.Default().WithMinChunk(4))
}

// MaxPool2DBackward routes each upstream gradient to its cached argmax.
//
// dinput is accumulated into, not cleared. planeOut is HOut*WOut; every
// argmax of plane p lies in input plane p, so planes run independently.
func MaxPool2DBackward(dinput, dout []float64, argmax []int, planes, planeOut int) {
	parallel.For(planes, func(p int) {
		for i := p * planeOut; i < (p+1)*planeOut; i++ {
			dinput[argmax[i]] += dout[i]
		}
	}, parallel.Default().WithMinChunk(4))
}
