package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/fpn/internal/tensor"
)

// Expansion is the ratio between a Bottleneck's output channels and its
// inner width.
const Expansion = 4

// Bottleneck is the residual block of a ResNet-50/101 backbone stage.
//
// Main path:
//
//	conv1 1x1 (in -> planes)            -> bn1 -> relu
//	conv2 3x3 stride s (planes->planes) -> bn2 -> relu
//	conv3 1x1 (planes -> 4*planes)      -> bn3
//
// Shortcut: identity, or conv 1x1 stride s (in -> 4*planes) -> bn when the
// stride is not 1 or the channel count changes.
//
// Output: relu(main + shortcut), shape [N, 4*planes, ceil(H/s), ceil(W/s)].
type Bottleneck[B tensor.Backend] struct {
	inPlanes int
	planes   int
	stride   int

	conv1 *Conv2D[B]
	bn1   *BatchNorm2D[B]
	conv2 *Conv2D[B]
	bn2   *BatchNorm2D[B]
	conv3 *Conv2D[B]
	bn3   *BatchNorm2D[B]

	downsample *Sequential[B] // nil for the identity shortcut
}

// NewBottleneck creates a bottleneck block reading inPlanes channels and
// producing Expansion*planes channels at the given stride.
func NewBottleneck[B tensor.Backend](inPlanes, planes, stride int, rng *rand.Rand, backend B) *Bottleneck[B] {
	outPlanes := Expansion * planes

	b := &Bottleneck[B]{
		inPlanes: inPlanes,
		planes:   planes,
		stride:   stride,
		conv1:    NewConv2D(inPlanes, planes, 1, 1, 1, 0, false, rng, backend),
		bn1:      NewBatchNorm2D(planes, backend),
		conv2:    NewConv2D(planes, planes, 3, 3, stride, 1, false, rng, backend),
		bn2:      NewBatchNorm2D(planes, backend),
		conv3:    NewConv2D(planes, outPlanes, 1, 1, 1, 0, false, rng, backend),
		bn3:      NewBatchNorm2D(outPlanes, backend),
	}

	if stride != 1 || inPlanes != outPlanes {
		b.downsample = NewSequential[B](
			NewConv2D(inPlanes, outPlanes, 1, 1, stride, 0, false, rng, backend),
			NewBatchNorm2D(outPlanes, backend),
		)
	}

	return b
}

// Forward computes relu(main(x) + shortcut(x)).
func (b *Bottleneck[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := b.bn1.Forward(b.conv1.Forward(x)).ReLU()
	out = b.bn2.Forward(b.conv2.Forward(out)).ReLU()
	out = b.bn3.Forward(b.conv3.Forward(out))

	shortcut := x
	if b.downsample != nil {
		shortcut = b.downsample.Forward(x)
	}

	return out.Add(shortcut).ReLU()
}

// Parameters returns all parameters of the block.
func (b *Bottleneck[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, c := range b.Children() {
		params = append(params, c.Module.Parameters()...)
	}
	return params
}

// Children uses the conventional layer names (conv1, bn1, ..., downsample).
func (b *Bottleneck[B]) Children() []Child[B] {
	children := []Child[B]{
		{Name: "conv1", Module: b.conv1},
		{Name: "bn1", Module: b.bn1},
		{Name: "conv2", Module: b.conv2},
		{Name: "bn2", Module: b.bn2},
		{Name: "conv3", Module: b.conv3},
		{Name: "bn3", Module: b.bn3},
	}
	if b.downsample != nil {
		children = append(children, Child[B]{Name: "downsample", Module: b.downsample})
	}
	return children
}

// OutChannels returns Expansion*planes.
func (b *Bottleneck[B]) OutChannels() int {
	return Expansion * b.planes
}

// HasProjection reports whether the shortcut is a projection.
func (b *Bottleneck[B]) HasProjection() bool {
	return b.downsample != nil
}

// String returns a string representation of the block.
func (b *Bottleneck[B]) String() string {
	return fmt.Sprintf("Bottleneck(in=%d, planes=%d, out=%d, stride=%d, projection=%v)",
		b.inPlanes, b.planes, b.OutChannels(), b.stride, b.HasProjection())
}
