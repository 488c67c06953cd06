package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/fpn/internal/parallel"
	"github.com/born-ml/fpn/internal/tensor"
)

// MaxPool2D performs 2D max pooling with implicit -Inf padding.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height + 2*padding - kernelSize) / stride + 1
//	out_width  = (width + 2*padding - kernelSize) / stride + 1
//
// Padding never contributes to the result: each window is clipped to the
// valid input region. padding must not exceed kernelSize/2, which
// guarantees every window overlaps at least one input cell.
//
// Example (3x3 pool, stride=2, padding=1), as used by a ResNet stem:
//
//	[N, 64, 300, 150] -> [N, 64, 150, 75]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	N, C, H, W := inputShape.NCHW()

	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if padding < 0 || padding > kernelSize/2 {
		panic(fmt.Sprintf("maxpool2d: padding %d must be in [0, %d]", padding, kernelSize/2))
	}

	HOut := (H+2*padding-kernelSize)/stride + 1
	WOut := (W+2*padding-kernelSize)/stride + 1
	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid output dimensions %dx%d (kernel=%d, stride=%d, padding=%d, input=%dx%d)",
			HOut, WOut, kernelSize, stride, padding, H, W))
	}

	output := cpu.newResult("maxpool2d", tensor.Shape{N, C, HOut, WOut}, input.DType())
	p := poolGeom{H: H, W: W, HOut: HOut, WOut: WOut, kernel: kernelSize, stride: stride, padding: padding}

	switch input.DType() {
	case tensor.Float32:
		maxpool2d(output.AsFloat32(), input.AsFloat32(), N, C, p, cpu.par)
	default:
		panic(fmt.Sprintf("maxpool2d: unsupported dtype %v", input.DType()))
	}

	return output
}

type poolGeom struct {
	H, W, HOut, WOut        int
	kernel, stride, padding int
}

func maxpool2d(out, in []float32, N, C int, p poolGeom, par parallel.Config) {
	inPlane := p.H * p.W
	outPlane := p.HOut * p.WOut
	negInf := float32(math.Inf(-1))

	parallel.ForPlanes(N, C, func(n, c int) {
		k := n*C + c
		src := in[k*inPlane : (k+1)*inPlane]
		dst := out[k*outPlane : (k+1)*outPlane]

		for outH := 0; outH < p.HOut; outH++ {
			hStart := outH*p.stride - p.padding
			hEnd := min(hStart+p.kernel, p.H)
			hStart = max(hStart, 0)

			for outW := 0; outW < p.WOut; outW++ {
				wStart := outW*p.stride - p.padding
				wEnd := min(wStart+p.kernel, p.W)
				wStart = max(wStart, 0)

				maxVal := negInf
				for h := hStart; h < hEnd; h++ {
					row := src[h*p.W : (h+1)*p.W]
					for w := wStart; w < wEnd; w++ {
						if row[w] > maxVal {
							maxVal = row[w]
						}
					}
				}
				dst[outH*p.WOut+outW] = maxVal
			}
		}
	}, par)
}
