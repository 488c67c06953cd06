package nn

import (
	"github.com/born-ml/fpn/internal/tensor"
)

// Parameter is a named tensor owned by a module.
//
// Learnable weights (convolution kernels, biases, BN affine terms) and
// inference buffers (BN running statistics) are both Parameters; Buffer
// reports which is which so parameter counts match the usual convention.
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	buffer bool
}

// NewParameter creates a learnable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// NewBuffer creates a non-learnable buffer such as a running mean.
func NewBuffer[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t, buffer: true}
}

// Name returns the parameter's local name (e.g. "weight", "running_var").
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Buffer reports whether the parameter is a non-learnable buffer.
func (p *Parameter[B]) Buffer() bool {
	return p.buffer
}

// CountParameters returns the number of learnable scalars in params.
func CountParameters[B tensor.Backend](params []*Parameter[B]) int {
	total := 0
	for _, p := range params {
		if !p.buffer {
			total += p.tensor.NumElements()
		}
	}
	return total
}
