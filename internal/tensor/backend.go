package tensor

// Backend defines the operations a compute backend must provide to run the
// feature pyramid. Every op allocates a fresh result and never mutates its
// inputs.
//
// Implementations:
//   - CPU: Pure Go, im2col convolution over gonum BLAS
type Backend interface {
	// Element-wise operations.
	// Add requires identical shapes; the pyramid never broadcasts.
	Add(a, b *RawTensor) *RawTensor
	ReLU(x *RawTensor) *RawTensor

	// Convolutional operations.
	// Conv2D: input [N,C_in,H,W], kernel [C_out,C_in,K_h,K_w] -> [N,C_out,H_out,W_out].
	Conv2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	// MaxPool2D pads with -Inf so padded cells never win.
	MaxPool2D(input *RawTensor, kernelSize, stride, padding int) *RawTensor

	// ScaleShift computes x[n,c,h,w]*scale[c] + shift[c].
	// A nil scale means 1; a nil shift means 0.
	// Used for convolution bias and inference-mode batch normalization.
	ScaleShift(x, scale, shift *RawTensor) *RawTensor

	// ResizeBilinear resizes the spatial dims of a 4D tensor to exactly
	// height x width using half-pixel centers (align_corners=False).
	ResizeBilinear(x *RawTensor, height, width int) *RawTensor

	// Metadata
	Name() string
	Device() Device
}
