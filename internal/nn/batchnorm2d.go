package nn

import (
	"fmt"
	"math"

	"github.com/born-ml/fpn/internal/tensor"
)

// DefaultBatchNormEps is the variance epsilon used by NewBatchNorm2D.
const DefaultBatchNormEps = 1e-5

// BatchNorm2D normalizes each channel of an NCHW tensor with its running
// statistics (inference mode):
//
//	y = (x - running_mean[c]) / sqrt(running_var[c] + eps) * weight[c] + bias[c]
//
// The four per-channel terms are folded into one scale/shift pair at call
// time, so loading new statistics through LoadStateDict takes effect
// immediately.
type BatchNorm2D[B tensor.Backend] struct {
	numFeatures int
	eps         float64

	weight      *Parameter[B] // gamma [C]
	bias        *Parameter[B] // beta [C]
	runningMean *Parameter[B] // buffer [C]
	runningVar  *Parameter[B] // buffer [C]

	backend B
}

// NewBatchNorm2D creates a batch normalization layer over numFeatures
// channels with weight=1, bias=0, running_mean=0, running_var=1.
func NewBatchNorm2D[B tensor.Backend](numFeatures int, backend B) *BatchNorm2D[B] {
	if numFeatures <= 0 {
		panic(fmt.Sprintf("batchnorm2d: invalid num_features %d", numFeatures))
	}

	shape := tensor.Shape{numFeatures}
	return &BatchNorm2D[B]{
		numFeatures: numFeatures,
		eps:         DefaultBatchNormEps,
		weight:      NewParameter("weight", Ones(shape, backend)),
		bias:        NewParameter("bias", Zeros(shape, backend)),
		runningMean: NewBuffer("running_mean", Zeros(shape, backend)),
		runningVar:  NewBuffer("running_var", Ones(shape, backend)),
		backend:     backend,
	}
}

// Forward applies the per-channel normalization.
func (bn *BatchNorm2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("batchnorm2d: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != bn.numFeatures {
		panic(fmt.Sprintf("batchnorm2d: input channels %d != num_features %d", shape[1], bn.numFeatures))
	}

	scale, shift := bn.fold()
	out := bn.backend.ScaleShift(input.Raw(), scale.Raw(), shift.Raw())
	return tensor.New[float32, B](out, bn.backend)
}

// fold computes scale = weight/sqrt(var+eps) and shift = bias - mean*scale.
func (bn *BatchNorm2D[B]) fold() (scale, shift *tensor.Tensor[float32, B]) {
	shape := tensor.Shape{bn.numFeatures}
	scale = tensor.Zeros[float32](shape, bn.backend)
	shift = tensor.Zeros[float32](shape, bn.backend)

	gamma := bn.weight.Tensor().Data()
	beta := bn.bias.Tensor().Data()
	mean := bn.runningMean.Tensor().Data()
	variance := bn.runningVar.Tensor().Data()
	s, b := scale.Data(), shift.Data()

	for c := range s {
		inv := 1 / math.Sqrt(float64(variance[c])+bn.eps)
		s[c] = float32(float64(gamma[c]) * inv)
		b[c] = float32(float64(beta[c]) - float64(mean[c])*float64(gamma[c])*inv)
	}
	return scale, shift
}

// Parameters returns weight, bias and the two running-statistic buffers.
func (bn *BatchNorm2D[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{bn.weight, bn.bias, bn.runningMean, bn.runningVar}
}

// NumFeatures returns the channel count.
func (bn *BatchNorm2D[B]) NumFeatures() int {
	return bn.numFeatures
}

// String returns a string representation of the layer.
func (bn *BatchNorm2D[B]) String() string {
	return fmt.Sprintf("BatchNorm2D(%d, eps=%g)", bn.numFeatures, bn.eps)
}
