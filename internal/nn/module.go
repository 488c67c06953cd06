// Package nn implements the neural network modules the feature pyramid is
// built from.
//
// This package provides:
//   - Module interface: Base interface for all NN components
//   - Parameter: Learnable weights and inference buffers
//   - Conv2D, BatchNorm2D, MaxPool2D, ReLU: Convolutional building blocks
//   - Sequential: Container for stacking layers
//   - Bottleneck: The residual block used by every backbone stage
//   - StateDict / LoadStateDict: Dotted-name parameter export and import
//
// Modules run in inference mode only; there is no autodiff or training state.
package nn

import (
	"github.com/born-ml/fpn/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all parameters and buffers
//
// Modules can be composed to build complex architectures:
//
//	stem := nn.NewSequential[B](
//	    nn.NewConv2D(3, 64, 7, 7, 2, 3, false, rng, backend),
//	    nn.NewBatchNorm2D(64, backend),
//	    nn.NewReLU[B](),
//	    nn.NewMaxPool2D(3, 2, 1, backend),
//	)
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	Parameterized[B]

	// Forward computes the output of the module given an input tensor.
	// Forward must not mutate the input or the module.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
}

// Parameterized is anything that owns parameters.
type Parameterized[B tensor.Backend] interface {
	// Parameters returns all parameters, including those of nested
	// modules. Leaf modules name their parameters locally ("weight"); full
	// dotted names are assigned by StateDict.
	Parameters() []*Parameter[B]
}

// Child is a named submodule of a container module.
type Child[B tensor.Backend] struct {
	Name   string
	Module Module[B]
}

// Container is implemented by anything composed of named submodules.
// StateDict walks containers to build dotted parameter names. A container
// need not be a Module itself; a multi-output network is a Container too.
type Container[B tensor.Backend] interface {
	Parameterized[B]
	Children() []Child[B]
}
