package nn

import (
	"math"
	"math/rand"

	"github.com/born-ml/fpn/internal/tensor"
)

// KaimingUniform draws weights from U(-1/sqrt(fan_in), 1/sqrt(fan_in)).
//
// This is the default initialization of convolution weights and biases in
// the common reference frameworks (Kaiming uniform with a=sqrt(5)), so a
// freshly built pyramid has activation statistics comparable to an
// untrained reference model.
//
// Parameters:
//   - fanIn: in_channels * kernel_h * kernel_w
//   - shape: Shape of the tensor
//   - rng: Random source; nil uses the global source
//   - backend: Backend to use for tensor creation
func KaimingUniform[B tensor.Backend](fanIn int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := 1.0 / math.Sqrt(float64(fanIn))
	return tensor.Uniform[float32](shape, -bound, bound, rng, backend)
}

// Zeros creates a tensor filled with zeros.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}
