package cpu

import (
	"fmt"

	"github.com/born-ml/fpn/internal/parallel"
	"github.com/born-ml/fpn/internal/tensor"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// convGeom holds the dimensions of one Conv2D call.
type convGeom struct {
	N, CIn, H, W    int
	COut, KH, KW    int
	HOut, WOut      int
	stride, padding int
}

// colRows is the reduction length of the lowered matmul (C_in * K_h * K_w).
func (g convGeom) colRows() int { return g.CIn * g.KH * g.KW }

// colCols is the number of output positions per image (H_out * W_out).
func (g convGeom) colCols() int { return g.HOut * g.WOut }

// pointwise reports whether the conv is a 1x1, stride 1, unpadded projection.
// The input plane is then already the im2col matrix.
func (g convGeom) pointwise() bool {
	return g.KH == 1 && g.KW == 1 && g.stride == 1 && g.padding == 0
}

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - kernel_h) / stride + 1
//	out_w = (width + 2*padding - kernel_w) / stride + 1
//
// Algorithm, per batch item:
//  1. Im2col: lower the padded input to a [C_in*K_h*K_w, H_out*W_out] matrix
//  2. GEMM:   kernel [C_out, C_in*K_h*K_w] @ cols -> [C_out, H_out*W_out]
//
// The GEMM result is already laid out as the item's [C_out, H_out, W_out]
// slab of the NCHW output, so no rearrangement pass is needed. Batch items
// are processed in parallel; each writes a disjoint slab.
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if input.DType() != kernel.DType() {
		panic(fmt.Sprintf("conv2d: input dtype %s != kernel dtype %s", input.DType(), kernel.DType()))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("conv2d: invalid stride %d", stride))
	}
	if padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid padding %d", padding))
	}

	g := convGeom{stride: stride, padding: padding}
	g.N, g.CIn, g.H, g.W = inputShape.NCHW()
	var cInK int
	g.COut, cInK, g.KH, g.KW = kernelShape.NCHW()

	if g.CIn != cInK {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", g.CIn, cInK))
	}

	g.HOut = (g.H+2*padding-g.KH)/stride + 1
	g.WOut = (g.W+2*padding-g.KW)/stride + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", g.HOut, g.WOut))
	}

	output := cpu.newResult("conv2d", tensor.Shape{g.N, g.COut, g.HOut, g.WOut}, input.DType())

	switch input.DType() {
	case tensor.Float32:
		conv2dFloat32(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), g, cpu.par)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	return output
}

func conv2dFloat32(out, in, kernel []float32, g convGeom, par parallel.Config) {
	rows, cols := g.colRows(), g.colCols()
	inItem := g.CIn * g.H * g.W
	outItem := g.COut * cols

	k := blas32.General{Rows: g.COut, Cols: rows, Stride: rows, Data: kernel}

	parallel.For(g.N, func(n int) {
		var colBuf []float32
		if g.pointwise() {
			colBuf = in[n*inItem : (n+1)*inItem]
		} else {
			colBuf = make([]float32, rows*cols)
			im2col(colBuf, in[n*inItem:(n+1)*inItem], g)
		}

		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, k,
			blas32.General{Rows: rows, Cols: cols, Stride: cols, Data: colBuf},
			0,
			blas32.General{Rows: g.COut, Cols: cols, Stride: cols, Data: out[n*outItem : (n+1)*outItem]},
		)
	}, par)
}

// im2col lowers one [C, H, W] image into colBuf [C*K_h*K_w, H_out*W_out].
//
// Row (c*K_h + kh)*K_w + kw holds, for every output position, the input
// value under kernel tap (c, kh, kw); positions that fall in the zero
// padding contribute 0.
func im2col(colBuf, img []float32, g convGeom) {
	cols := g.colCols()
	row := 0

	for c := 0; c < g.CIn; c++ {
		plane := img[c*g.H*g.W : (c+1)*g.H*g.W]
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				dst := colBuf[row*cols : (row+1)*cols]
				idx := 0
				for outH := 0; outH < g.HOut; outH++ {
					h := outH*g.stride - g.padding + kh
					if h < 0 || h >= g.H {
						for outW := 0; outW < g.WOut; outW++ {
							dst[idx] = 0
							idx++
						}
						continue
					}
					src := plane[h*g.W : (h+1)*g.W]
					for outW := 0; outW < g.WOut; outW++ {
						w := outW*g.stride - g.padding + kw
						if w >= 0 && w < g.W {
							dst[idx] = src[w]
						} else {
							dst[idx] = 0
						}
						idx++
					}
				}
				row++
			}
		}
	}
}
