package fpn

import (
	"math/rand"
	"strconv"

	"github.com/born-ml/fpn/internal/nn"
	"github.com/born-ml/fpn/internal/tensor"
)

// stageStrides are the strides of the first block of each backbone stage.
var stageStrides = [4]int{1, 2, 2, 2}

// Backbone is the bottom-up pathway: a strided stem followed by four stages
// of bottleneck blocks producing c2..c5 at strides 4, 8, 16 and 32.
type Backbone[B tensor.Backend] struct {
	conv1 *nn.Conv2D[B]
	bn1   *nn.BatchNorm2D[B]
	pool  *nn.MaxPool2D[B]

	layers      [4]*nn.Sequential[B]
	outChannels [4]int
}

// NewBackbone builds the stem and the four stages described by cfg.
func NewBackbone[B tensor.Backend](cfg Config, rng *rand.Rand, backend B) *Backbone[B] {
	b := &Backbone[B]{
		conv1: nn.NewConv2D(3, cfg.BaseWidth, 7, 7, 2, 3, false, rng, backend),
		bn1:   nn.NewBatchNorm2D(cfg.BaseWidth, backend),
		pool:  nn.NewMaxPool2D(3, 2, 1, backend),
	}

	inPlanes := cfg.BaseWidth
	for k := range b.layers {
		b.layers[k] = makeLayer(&inPlanes, cfg.stagePlanes(k), cfg.NumBlocks[k], stageStrides[k], rng, backend)
		b.outChannels[k] = inPlanes
	}
	return b
}

// makeLayer stacks blocks bottlenecks; the first carries the stage stride.
// inPlanes is advanced to the stage's output width.
func makeLayer[B tensor.Backend](inPlanes *int, planes, blocks, stride int, rng *rand.Rand, backend B) *nn.Sequential[B] {
	layer := nn.NewSequential[B]()
	for i := range blocks {
		s := 1
		if i == 0 {
			s = stride
		}
		layer.Add(nn.NewBottleneck(*inPlanes, planes, s, rng, backend))
		*inPlanes = planes * nn.Expansion
	}
	return layer
}

// Stem computes c1 = maxpool(relu(bn1(conv1(x)))) at stride 4.
func (b *Backbone[B]) Stem(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return b.pool.Forward(b.bn1.Forward(b.conv1.Forward(x)).ReLU())
}

// Stage runs backbone stage k (0-based), mapping c(k+1) to c(k+2).
func (b *Backbone[B]) Stage(k int, x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return b.layers[k].Forward(x)
}

// OutChannels returns the channel count of c(k+2).
func (b *Backbone[B]) OutChannels(k int) int {
	return b.outChannels[k]
}

// Children returns conv1, bn1 and layer1..layer4.
func (b *Backbone[B]) Children() []nn.Child[B] {
	children := []nn.Child[B]{
		{Name: "conv1", Module: b.conv1},
		{Name: "bn1", Module: b.bn1},
	}
	for k, layer := range b.layers {
		children = append(children, nn.Child[B]{Name: "layer" + strconv.Itoa(k+1), Module: layer})
	}
	return children
}

// Parameters returns every backbone parameter.
func (b *Backbone[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, c := range b.Children() {
		params = append(params, c.Module.Parameters()...)
	}
	return params
}
