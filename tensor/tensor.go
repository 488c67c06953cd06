// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"math/rand"

	"github.com/born-ml/fpn/internal/tensor"
)

// DType is a constraint for tensor element types (float32, float64).
type DType = tensor.DType

// DataType represents the element type of a raw tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
)

// Device represents where tensor data resides.
type Device = tensor.Device

// CPU is the host device.
const CPU Device = tensor.CPU

// Shape represents the dimensions of a tensor.
// Example: Shape{1, 256, 75, 38} is a single 256-channel 75x38 feature map.
type Shape = tensor.Shape

// RawTensor is the untyped buffer backends operate on.
type RawTensor = tensor.RawTensor

// Backend defines the kernels a compute backend must implement.
type Backend = tensor.Backend

// Tensor is a generic type-safe tensor.
//
// T is the element type (float32, float64). B is the backend.
type Tensor[T DType, B Backend] = tensor.Tensor[T, B]

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Zeros[T, B](shape, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	return tensor.Ones[T, B](shape, b)
}

// Full creates a tensor filled with value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	return tensor.Full[T, B](shape, value, b)
}

// Scalar creates a 0-D tensor.
func Scalar[T DType, B Backend](value T, b B) *Tensor[T, B] {
	return tensor.Scalar[T, B](value, b)
}

// Randn creates a tensor of N(0, 1) samples drawn from rng (nil uses the
// global source).
//
// Example:
//
//	rng := rand.New(rand.NewSource(1))
//	x := tensor.Randn[float32](tensor.Shape{1, 3, 600, 300}, rng, backend)
func Randn[T DType, B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Randn[T, B](shape, rng, b)
}

// Uniform creates a tensor of U(low, high) samples drawn from rng.
func Uniform[T DType, B Backend](shape Shape, low, high float64, rng *rand.Rand, b B) *Tensor[T, B] {
	return tensor.Uniform[T, B](shape, low, high, rng, b)
}

// FromSlice creates a tensor from a Go slice. The data is copied.
//
// Example:
//
//	x, err := tensor.FromSlice(pixels, tensor.Shape{1, 3, h, w}, backend)
func FromSlice[T DType, B Backend](data []T, shape Shape, b B) (*Tensor[T, B], error) {
	return tensor.FromSlice[T, B](data, shape, b)
}

// New wraps a raw tensor.
//
// This is a low-level function. Most users should use Zeros or FromSlice.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// NewRaw allocates a zeroed raw tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}
