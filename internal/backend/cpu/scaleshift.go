package cpu

import (
	"fmt"

	"github.com/born-ml/fpn/internal/parallel"
	"github.com/born-ml/fpn/internal/tensor"
)

// ScaleShift computes out[n,c,h,w] = x[n,c,h,w]*scale[c] + shift[c].
//
// scale and shift are 1D [C] tensors; either may be nil. Conv2D bias is a
// ScaleShift with a nil scale, and inference-mode batch normalization folds
// its running statistics into a single scale/shift pair.
func (cpu *CPUBackend) ScaleShift(x, scale, shift *tensor.RawTensor) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("scaleshift: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	N, C, H, W := shape.NCHW()

	for _, p := range []*tensor.RawTensor{scale, shift} {
		if p == nil {
			continue
		}
		if !p.Shape().Equal(tensor.Shape{C}) {
			panic(fmt.Sprintf("scaleshift: per-channel tensor shape %v, want [%d]", p.Shape(), C))
		}
		if p.DType() != x.DType() {
			panic(fmt.Sprintf("scaleshift: dtype %s != input dtype %s", p.DType(), x.DType()))
		}
	}

	result := cpu.newResult("scaleshift", shape, x.DType())

	switch x.DType() {
	case tensor.Float32:
		var s, b []float32
		if scale != nil {
			s = scale.AsFloat32()
		}
		if shift != nil {
			b = shift.AsFloat32()
		}
		scaleShift(result.AsFloat32(), x.AsFloat32(), s, b, N, C, H*W, cpu.par)
	default:
		panic(fmt.Sprintf("scaleshift: unsupported dtype %s", x.DType()))
	}

	return result
}

func scaleShift(out, in, scale, shift []float32, N, C, plane int, par parallel.Config) {
	parallel.ForPlanes(N, C, func(n, c int) {
		k := n*C + c
		src := in[k*plane : (k+1)*plane]
		dst := out[k*plane : (k+1)*plane]

		s, b := float32(1), float32(0)
		if scale != nil {
			s = scale[c]
		}
		if shift != nil {
			b = shift[c]
		}
		for i, v := range src {
			dst[i] = v*s + b
		}
	}, par)
}
