package nn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/fpn/internal/tensor"
)

// Sequential is a container module that chains multiple modules together.
//
// Each module's output becomes the next module's input. A backbone stage is
// a Sequential of Bottleneck blocks:
//
//	layer2 := nn.NewSequential[B](
//	    nn.NewBottleneck(256, 128, 2, rng, backend),
//	    nn.NewBottleneck(512, 128, 1, rng, backend),
//	)
//
// An empty Sequential is the identity.
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a new Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{
		modules: modules,
	}
}

// Forward applies all modules in sequence.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	output := input
	for _, module := range s.modules {
		output = module.Forward(output)
	}
	return output
}

// Parameters returns all parameters from all modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

// Children names each module by its index ("0", "1", ...).
func (s *Sequential[B]) Children() []Child[B] {
	children := make([]Child[B], len(s.modules))
	for i, m := range s.modules {
		children[i] = Child[B]{Name: strconv.Itoa(i), Module: m}
	}
	return children
}

// Add appends a module to the sequence.
func (s *Sequential[B]) Add(module Module[B]) {
	s.modules = append(s.modules, module)
}

// Len returns the number of modules in the sequence.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at the given index.
//
// Panics if index is out of bounds.
func (s *Sequential[B]) Module(index int) Module[B] {
	if index < 0 || index >= len(s.modules) {
		panic("Sequential.Module: index out of bounds")
	}
	return s.modules[index]
}

// String lists the contained modules one per line.
func (s *Sequential[B]) String() string {
	var sb strings.Builder
	sb.WriteString("Sequential(\n")
	for i, m := range s.modules {
		fmt.Fprintf(&sb, "  (%d): %v\n", i, m)
	}
	sb.WriteString(")")
	return sb.String()
}
