// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/fpn/internal/nn"
	"github.com/born-ml/fpn/internal/tensor"
)

// Module is implemented by every single-input layer.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named weight or buffer.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// Parameterized is anything that owns parameters.
type Parameterized[B tensor.Backend] = nn.Parameterized[B]

// Child is a named submodule.
type Child[B tensor.Backend] = nn.Child[B]

// Container is implemented by modules with named submodules.
type Container[B tensor.Backend] = nn.Container[B]

// State dict errors.
var (
	ErrMissingKey    = nn.ErrMissingKey
	ErrUnexpectedKey = nn.ErrUnexpectedKey
	ErrShapeMismatch = nn.ErrShapeMismatch
)

// Expansion is the ratio of a Bottleneck's output channels to its width.
const Expansion = nn.Expansion

// Conv2D represents a 2D convolutional layer.
type Conv2D[B tensor.Backend] = nn.Conv2D[B]

// NewConv2D creates a new 2D convolutional layer with Kaiming-uniform
// weights drawn from rng.
//
// Example:
//
//	conv := nn.NewConv2D(2048, 256, 1, 1, 1, 0, true, rng, backend)  // lateral 1x1 projection
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	rng *rand.Rand,
	backend B,
) *Conv2D[B] {
	return nn.NewConv2D(inChannels, outChannels, kernelH, kernelW, stride, padding, useBias, rng, backend)
}

// BatchNorm2D is inference-mode batch normalization.
type BatchNorm2D[B tensor.Backend] = nn.BatchNorm2D[B]

// NewBatchNorm2D creates a batch normalization layer over numFeatures channels.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	return nn.NewBatchNorm2D(numFeatures, backend)
}

// MaxPool2D represents a 2D max pooling layer.
type MaxPool2D[B tensor.Backend] = nn.MaxPool2D[B]

// NewMaxPool2D creates a new 2D max pooling layer.
func NewMaxPool2D[B tensor.Backend](kernelSize, stride, padding int, backend B) *MaxPool2D[B] {
	return nn.NewMaxPool2D(kernelSize, stride, padding, backend)
}

// ReLU is the rectified linear activation.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Bottleneck is the residual block of a 50/101-layer backbone.
type Bottleneck[B tensor.Backend] = nn.Bottleneck[B]

// NewBottleneck creates a bottleneck block.
func NewBottleneck[B tensor.Backend](inPlanes, planes, stride int, rng *rand.Rand, backend B) *Bottleneck[B] {
	return nn.NewBottleneck(inPlanes, planes, stride, rng, backend)
}

// StateDict returns m's parameters keyed by dotted name.
func StateDict[B tensor.Backend](m Parameterized[B]) map[string]*tensor.RawTensor {
	return nn.StateDict(m)
}

// LoadStateDict copies state into m's parameters.
func LoadStateDict[B tensor.Backend](m Parameterized[B], state map[string]*tensor.RawTensor) error {
	return nn.LoadStateDict(m, state)
}
