package fpn

import (
	"fmt"
	"strings"
)

// Node is one step of the pyramid's computation graph. It produces the
// value Name by running Layer over its inputs.
type Node struct {
	// Name is the value the node produces (c2, p4, ...).
	Name string
	// Layer names the module the node runs, as it appears in the state dict.
	Layer string
	// Inputs must all be computed before the node runs.
	Inputs []string
	// Optional inputs are used when enabled and treated as absent otherwise.
	Optional []string
	// MinDepth is the smallest Config.Depth at which the node runs.
	MinDepth int
}

// graph is the full computation graph, in declaration order. The input
// image is the value "image".
var graph = []Node{
	{Name: "c1", Layer: "conv1", Inputs: []string{"image"}, MinDepth: 0},
	{Name: "c2", Layer: "layer1", Inputs: []string{"c1"}, MinDepth: 0},
	{Name: "c3", Layer: "layer2", Inputs: []string{"c2"}, MinDepth: 0},
	{Name: "c4", Layer: "layer3", Inputs: []string{"c3"}, MinDepth: 2},
	{Name: "c5", Layer: "layer4", Inputs: []string{"c4"}, MinDepth: 3},
	{Name: "p6", Layer: "conv6", Inputs: []string{"c5"}, MinDepth: 4},
	{Name: "p7", Layer: "conv7", Inputs: []string{"p6"}, MinDepth: 5},
	{Name: "p5", Layer: "latlayer1", Inputs: []string{"c5"}, MinDepth: 3},
	{Name: "lat4", Layer: "latlayer2", Inputs: []string{"c4"}, MinDepth: 2},
	{Name: "p4", Layer: "toplayer1", Inputs: []string{"lat4"}, Optional: []string{"p5"}, MinDepth: 2},
	{Name: "lat3", Layer: "latlayer3", Inputs: []string{"c3"}, MinDepth: 0},
	{Name: "p3", Layer: "toplayer2", Inputs: []string{"lat3"}, Optional: []string{"p4"}, MinDepth: 0},
}

// Plan is the ordered list of nodes that run for a given depth. It is
// derived once when a network is built.
type Plan struct {
	depth int
	nodes []Node
}

// NewPlan returns the nodes enabled at the given depth in an order where
// every node follows the nodes it reads.
func NewPlan(depth int) (Plan, error) {
	enabled := make(map[string]Node)
	for _, n := range graph {
		if depth >= n.MinDepth {
			enabled[n.Name] = n
		}
	}

	// Kahn's algorithm; ties keep declaration order.
	indegree := make(map[string]int, len(enabled))
	consumers := make(map[string][]string)
	for _, n := range graph {
		if _, ok := enabled[n.Name]; !ok {
			continue
		}
		for _, in := range n.Inputs {
			if in == "image" {
				continue
			}
			if _, ok := enabled[in]; !ok {
				return Plan{}, fmt.Errorf("plan: %s needs %s, which is disabled at depth %d", n.Name, in, depth)
			}
			indegree[n.Name]++
			consumers[in] = append(consumers[in], n.Name)
		}
		for _, in := range n.Optional {
			if _, ok := enabled[in]; ok {
				indegree[n.Name]++
				consumers[in] = append(consumers[in], n.Name)
			}
		}
	}

	ordered := make([]Node, 0, len(enabled))
	done := make(map[string]bool, len(enabled))
	for len(ordered) < len(enabled) {
		progressed := false
		for _, n := range graph {
			if _, ok := enabled[n.Name]; !ok || done[n.Name] || indegree[n.Name] > 0 {
				continue
			}
			ordered = append(ordered, n)
			done[n.Name] = true
			for _, c := range consumers[n.Name] {
				indegree[c]--
			}
			progressed = true
		}
		if !progressed {
			return Plan{}, fmt.Errorf("plan: dependency cycle at depth %d", depth)
		}
	}

	return Plan{depth: depth, nodes: ordered}, nil
}

// Depth returns the depth the plan was built for.
func (p Plan) Depth() int {
	return p.depth
}

// Nodes returns the enabled nodes in evaluation order.
func (p Plan) Nodes() []Node {
	return append([]Node(nil), p.nodes...)
}

// Enabled reports whether the named value is computed.
func (p Plan) Enabled(name string) bool {
	for _, n := range p.nodes {
		if n.Name == name {
			return true
		}
	}
	return false
}

// Layers returns the names of the layers the plan runs, in order.
func (p Plan) Layers() []string {
	layers := make([]string, len(p.nodes))
	for i, n := range p.nodes {
		layers[i] = n.Layer
	}
	return layers
}

// String renders the plan as "c2 <- image; c3 <- c2; ...".
func (p Plan) String() string {
	parts := make([]string, len(p.nodes))
	for i, n := range p.nodes {
		inputs := append([]string(nil), n.Inputs...)
		for _, opt := range n.Optional {
			if p.Enabled(opt) {
				inputs = append(inputs, opt)
			}
		}
		parts[i] = fmt.Sprintf("%s <- %s", n.Name, strings.Join(inputs, ", "))
	}
	return strings.Join(parts, "; ")
}
