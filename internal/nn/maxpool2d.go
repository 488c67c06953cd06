package nn

import (
	"fmt"

	"github.com/born-ml/fpn/internal/tensor"
)

// MaxPool2D is a 2D max pooling layer.
//
// Padded cells never win the max, so padding only changes the output size.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height + 2*padding - kernelSize) / stride + 1
//	out_width  = (width + 2*padding - kernelSize) / stride + 1
//
// Example:
//
//	pool := nn.NewMaxPool2D(3, 2, 1, backend)
//	output := pool.Forward(input) // [N, 64, 300, 150] -> [N, 64, 150, 75]
type MaxPool2D[B tensor.Backend] struct {
	kernelSize int
	stride     int
	padding    int
	backend    B
}

// NewMaxPool2D creates a new 2D max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *MaxPool2D[B] {
	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if padding < 0 || padding > kernelSize/2 {
		panic(fmt.Sprintf("maxpool2d: padding %d must be in [0, %d]", padding, kernelSize/2))
	}

	return &MaxPool2D[B]{
		kernelSize: kernelSize,
		stride:     stride,
		padding:    padding,
		backend:    backend,
	}
}

// Forward performs max pooling on the input.
func (m *MaxPool2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	outputRaw := m.backend.MaxPool2D(input.Raw(), m.kernelSize, m.stride, m.padding)
	return tensor.New[float32, B](outputRaw, m.backend)
}

// Parameters returns nil (MaxPool2D has no parameters).
func (m *MaxPool2D[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a string representation of the layer.
func (m *MaxPool2D[B]) String() string {
	return fmt.Sprintf("MaxPool2D(kernel_size=%d, stride=%d, padding=%d)", m.kernelSize, m.stride, m.padding)
}

// ComputeOutputSize computes output spatial dimensions for given input size.
func (m *MaxPool2D[B]) ComputeOutputSize(inputH, inputW int) [2]int {
	outH := (inputH+2*m.padding-m.kernelSize)/m.stride + 1
	outW := (inputW+2*m.padding-m.kernelSize)/m.stride + 1
	return [2]int{outH, outW}
}
