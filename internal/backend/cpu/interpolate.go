package cpu

import (
	"fmt"

	"github.com/born-ml/fpn/internal/parallel"
	"github.com/born-ml/fpn/internal/tensor"
)

// ResizeBilinear resizes the spatial dims of a 4D tensor to exactly
// height x width with bilinear interpolation and half-pixel centers
// (align_corners=False).
//
// For output coordinate d along an axis of input length in and output
// length out:
//
//	src = (d + 0.5) * in/out - 0.5, clamped below at 0
//	i0  = floor(src), i1 = min(i0+1, in-1), frac = src - i0
//
// Any target size is accepted, so a coarse pyramid level can be matched to
// a finer lateral map whose size is not an exact multiple (odd inputs).
// Resizing to the input's own size is the identity.
func (cpu *CPUBackend) ResizeBilinear(x *tensor.RawTensor, height, width int) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("resize: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if height <= 0 || width <= 0 {
		panic(fmt.Sprintf("resize: invalid target size %dx%d", height, width))
	}
	N, C, H, W := shape.NCHW()

	result := cpu.newResult("resize", tensor.Shape{N, C, height, width}, x.DType())
	ys := bilinearTaps(H, height)
	xs := bilinearTaps(W, width)

	switch x.DType() {
	case tensor.Float32:
		resizeBilinear(result.AsFloat32(), x.AsFloat32(), N, C, H, W, ys, xs, cpu.par)
	default:
		panic(fmt.Sprintf("resize: unsupported dtype %s", x.DType()))
	}

	return result
}

// tap is the pair of source indices and the weight of the upper one.
type tap struct {
	i0, i1 int
	frac   float64
}

// bilinearTaps precomputes source taps for every output coordinate of one axis.
func bilinearTaps(in, out int) []tap {
	taps := make([]tap, out)
	scale := float64(in) / float64(out)

	for d := range taps {
		src := (float64(d)+0.5)*scale - 0.5
		if src < 0 {
			src = 0
		}
		i0 := int(src)
		if i0 > in-1 {
			i0 = in - 1
		}
		i1 := i0
		if i0 < in-1 {
			i1 = i0 + 1
		}
		taps[d] = tap{i0: i0, i1: i1, frac: src - float64(i0)}
	}
	return taps
}

func resizeBilinear(out, in []float32, N, C, H, W int, ys, xs []tap, par parallel.Config) {
	inPlane := H * W
	outPlane := len(ys) * len(xs)

	parallel.ForPlanes(N, C, func(n, c int) {
		k := n*C + c
		src := in[k*inPlane : (k+1)*inPlane]
		dst := out[k*outPlane : (k+1)*outPlane]

		for oy, ty := range ys {
			row0 := src[ty.i0*W : (ty.i0+1)*W]
			row1 := src[ty.i1*W : (ty.i1+1)*W]
			ly := float32(ty.frac)
			hy := 1 - ly

			for ox, tx := range xs {
				lx := float32(tx.frac)
				hx := 1 - lx
				top := hx*row0[tx.i0] + lx*row0[tx.i1]
				bottom := hx*row1[tx.i0] + lx*row1[tx.i1]
				dst[oy*len(xs)+ox] = hy*top + ly*bottom
			}
		}
	}, par)
}
