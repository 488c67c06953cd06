package fpn

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/born-ml/fpn/internal/logutil"
	"github.com/born-ml/fpn/internal/nn"
	"github.com/born-ml/fpn/internal/tensor"
)

type feature[B tensor.Backend] = *tensor.Tensor[float32, B]

// Network is a feature pyramid network: a bottleneck backbone, two extra
// stride-2 convolutions (conv6, conv7), three lateral 1x1 projections and a
// two-step top-down pathway.
//
// Only the parts needed for Config.Depth levels are evaluated. All modules
// are built regardless, so the parameter set does not depend on depth.
//
// Forward does not modify the network, so concurrent Forward calls are safe.
// LoadStateDict overwrites weights in place and must not run concurrently
// with Forward.
type Network[B tensor.Backend] struct {
	cfg  Config
	plan Plan

	backbone *Backbone[B]
	conv6    *nn.Conv2D[B]
	conv7    *nn.Conv2D[B]

	latlayer1 *nn.Conv2D[B] // c5 -> p5
	latlayer2 *nn.Conv2D[B] // c4 -> lateral for p4
	latlayer3 *nn.Conv2D[B] // c3 -> lateral for p3

	toplayer1 *nn.Conv2D[B] // refines p5 + lateral(c4)
	toplayer2 *nn.Conv2D[B] // refines p4 + lateral(c3)

	ops     map[string]func(in []feature[B]) feature[B]
	backend B
}

// New builds a network from cfg. Weights are initialized from cfg.Seed.
//
// Returns an error wrapping ErrInvalidConfig or ErrWindowExceedsPyramid if
// cfg does not validate.
func New[B tensor.Backend](cfg Config, backend B) (*Network[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plan, err := NewPlan(cfg.Depth())
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed)) //nolint:gosec // weight init, not security
	backbone := NewBackbone(cfg, rng, backend)
	c3, c4, c5 := backbone.OutChannels(1), backbone.OutChannels(2), backbone.OutChannels(3)
	ch := cfg.Channels

	n := &Network[B]{
		cfg:       cfg,
		plan:      plan,
		backbone:  backbone,
		conv6:     nn.NewConv2D(c5, ch, 3, 3, 2, 1, true, rng, backend),
		conv7:     nn.NewConv2D(ch, ch, 3, 3, 2, 1, true, rng, backend),
		latlayer1: nn.NewConv2D(c5, ch, 1, 1, 1, 0, true, rng, backend),
		latlayer2: nn.NewConv2D(c4, ch, 1, 1, 1, 0, true, rng, backend),
		latlayer3: nn.NewConv2D(c3, ch, 1, 1, 1, 0, true, rng, backend),
		toplayer1: nn.NewConv2D(ch, ch, 3, 3, 1, 1, true, rng, backend),
		toplayer2: nn.NewConv2D(ch, ch, 3, 3, 1, 1, true, rng, backend),
		backend:   backend,
	}
	n.bind()

	slog.Debug("built feature pyramid",
		"blocks", cfg.NumBlocks,
		"depth", cfg.Depth(),
		"window", n.Window(),
		"compat", cfg.Compat,
		"layers", strings.Join(plan.Layers(), ","),
		"parameters", n.NumParameters())

	return n, nil
}

// bind maps every graph node to the computation it performs. Required
// inputs come first in the argument slice, followed by optional inputs,
// which are nil when disabled.
func (n *Network[B]) bind() {
	stage := func(k int) func([]feature[B]) feature[B] {
		return func(in []feature[B]) feature[B] { return n.backbone.Stage(k, in[0]) }
	}

	n.ops = map[string]func([]feature[B]) feature[B]{
		"c1": func(in []feature[B]) feature[B] { return n.backbone.Stem(in[0]) },
		"c2": stage(0),
		"c3": stage(1),
		"c4": stage(2),
		"c5": stage(3),
		"p6": func(in []feature[B]) feature[B] { return n.conv6.Forward(in[0]) },
		"p7": func(in []feature[B]) feature[B] { return n.conv7.Forward(in[0].ReLU()) },
		"p5": func(in []feature[B]) feature[B] { return n.latlayer1.Forward(in[0]) },
		"lat4": func(in []feature[B]) feature[B] {
			return n.latlayer2.Forward(in[0])
		},
		"p4": func(in []feature[B]) feature[B] {
			return n.toplayer1.Forward(UpsampleAdd(in[1], in[0]))
		},
		"lat3": func(in []feature[B]) feature[B] {
			return n.latlayer3.Forward(in[0])
		},
		"p3": func(in []feature[B]) feature[B] {
			return n.toplayer2.Forward(UpsampleAdd(in[1], in[0]))
		},
	}
}

// Forward computes the pyramid for x, shaped [N, 3, H, W], and returns the
// configured window of levels in p3..p7 order.
//
// Returns an error wrapping ErrInvalidInput if x has the wrong rank or
// channel count. Calling Forward twice with the same input yields
// bit-identical outputs.
func (n *Network[B]) Forward(x *tensor.Tensor[float32, B]) ([]Level[B], error) {
	shape := x.Shape()
	if len(shape) != 4 {
		return nil, fmt.Errorf("%w: expected [N, 3, H, W], got %dD shape %v", ErrInvalidInput, len(shape), shape)
	}
	if shape[1] != 3 {
		return nil, fmt.Errorf("%w: expected 3 channels, got %d", ErrInvalidInput, shape[1])
	}

	values := map[string]feature[B]{"image": x}
	for _, node := range n.plan.nodes {
		in := make([]feature[B], 0, len(node.Inputs)+len(node.Optional))
		for _, name := range node.Inputs {
			in = append(in, values[name])
		}
		for _, name := range node.Optional {
			in = append(in, values[name])
		}

		start := time.Now()
		out := n.ops[node.Name](in)
		values[node.Name] = out
		logutil.Trace("evaluated pyramid node", "node", node.Name, "layer", node.Layer,
			"shape", out.Shape(), "elapsed", time.Since(start))
	}

	lo, hi := n.cfg.window()
	levels := make([]Level[B], 0, hi-lo)
	for _, id := range AllLevels[lo:hi] {
		if fm, ok := values[id.String()]; ok {
			levels = append(levels, presentLevel(id, fm))
			continue
		}
		var placeholder feature[B]
		if n.cfg.Compat {
			placeholder = tensor.Scalar[float32](0, n.backend)
		}
		levels = append(levels, absentLevel(id, placeholder))
	}
	return levels, nil
}

// LevelShape is the predicted output shape of one returned level. Shape is
// nil when the level is not computed.
type LevelShape struct {
	ID    LevelID
	Shape tensor.Shape
}

// OutputShapes predicts the shapes Forward returns for an [batch, 3,
// height, width] input without running the network.
func (n *Network[B]) OutputShapes(batch, height, width int) []LevelShape {
	return outputShapes(n.cfg, n.plan, batch, height, width)
}

// OutputShapes validates c and predicts the shapes a network built from it
// returns, without allocating any weights.
func (c Config) OutputShapes(batch, height, width int) ([]LevelShape, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	plan, err := NewPlan(c.Depth())
	if err != nil {
		return nil, err
	}
	return outputShapes(c, plan, batch, height, width), nil
}

func outputShapes(cfg Config, plan Plan, batch, height, width int) []LevelShape {
	// Every strided op in the network (7x7/2 pad 3, pool 3/2 pad 1, 3x3/2
	// pad 1, 1x1/2) maps a side of length s to ceil(s/2).
	half := func(s int) int { return (s-1)/2 + 1 }

	h, w := half(half(height)), half(half(width)) // c1, c2
	var sizes [NumLevels][2]int
	for i := range sizes {
		h, w = half(h), half(w)
		sizes[i] = [2]int{h, w}
	}

	window := cfg.Window()
	shapes := make([]LevelShape, 0, len(window))
	for _, id := range window {
		ls := LevelShape{ID: id}
		if plan.Enabled(id.String()) {
			ls.Shape = tensor.Shape{batch, cfg.Channels, sizes[id][0], sizes[id][1]}
		}
		shapes = append(shapes, ls)
	}
	return shapes
}

// Config returns the network's configuration.
func (n *Network[B]) Config() Config {
	return n.cfg
}

// Plan returns the computation plan.
func (n *Network[B]) Plan() Plan {
	return n.plan
}

// Window returns the IDs of the levels Forward returns.
func (n *Network[B]) Window() []LevelID {
	return n.cfg.Window()
}

// Backbone returns the bottom-up pathway.
func (n *Network[B]) Backbone() *Backbone[B] {
	return n.backbone
}

// Children names the network's modules as in the reference checkpoint
// layout: conv1, bn1, layer1..4, conv6, conv7, latlayer1..3, toplayer1..2.
func (n *Network[B]) Children() []nn.Child[B] {
	return append(n.backbone.Children(),
		nn.Child[B]{Name: "conv6", Module: n.conv6},
		nn.Child[B]{Name: "conv7", Module: n.conv7},
		nn.Child[B]{Name: "latlayer1", Module: n.latlayer1},
		nn.Child[B]{Name: "latlayer2", Module: n.latlayer2},
		nn.Child[B]{Name: "latlayer3", Module: n.latlayer3},
		nn.Child[B]{Name: "toplayer1", Module: n.toplayer1},
		nn.Child[B]{Name: "toplayer2", Module: n.toplayer2},
	)
}

// Parameters returns all parameters and buffers.
func (n *Network[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	for _, c := range n.Children() {
		params = append(params, c.Module.Parameters()...)
	}
	return params
}

// NumParameters returns the number of learnable scalars.
func (n *Network[B]) NumParameters() int {
	return nn.CountParameters(n.Parameters())
}

// StateDict returns every parameter keyed by dotted name
// ("layer1.0.conv1.weight", "latlayer2.bias", ...). Tensors are shared.
func (n *Network[B]) StateDict() map[string]*tensor.RawTensor {
	return nn.StateDict[B](n)
}

// LoadStateDict replaces the network's weights. Every key must be present
// with a matching shape; on error the network is unchanged. It must not be
// called while a Forward call is in progress.
func (n *Network[B]) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return nn.LoadStateDict[B](n, state)
}

// String summarizes the configuration and plan.
func (n *Network[B]) String() string {
	ids := make([]string, 0, NumLevels)
	for _, id := range n.Window() {
		ids = append(ids, id.String())
	}
	return fmt.Sprintf("FPN(blocks=%v, depth=%d, window=[%s], channels=%d, compat=%v, plan={%s})",
		n.cfg.NumBlocks, n.cfg.Depth(), strings.Join(ids, " "), n.cfg.Channels, n.cfg.Compat, n.plan)
}
