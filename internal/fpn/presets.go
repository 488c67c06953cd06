package fpn

import (
	"fmt"
	"sort"

	"github.com/born-ml/fpn/internal/tensor"
)

// Backbone stage depths of the named presets.
var (
	ResNet50Blocks  = [4]int{3, 4, 6, 3}
	ResNet101Blocks = [4]int{2, 4, 23, 3}
)

var presets = map[string][4]int{
	"50":  ResNet50Blocks,
	"101": ResNet101Blocks,
}

// Build creates a network with the given stage depths, starting from
// DefaultConfig and applying opts in order.
func Build[B tensor.Backend](numBlocks [4]int, backend B, opts ...Option) (*Network[B], error) {
	cfg := DefaultConfig(numBlocks)
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg, backend)
}

// FPN50 builds a pyramid over a 50-layer bottleneck backbone.
func FPN50[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return Build(ResNet50Blocks, backend, opts...)
}

// FPN101 builds a pyramid over a 101-layer bottleneck backbone.
func FPN101[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return Build(ResNet101Blocks, backend, opts...)
}

// PresetBlocks returns the stage depths for a preset name ("50" or "101").
func PresetBlocks(name string) ([4]int, error) {
	blocks, ok := presets[name]
	if !ok {
		return [4]int{}, fmt.Errorf("%w: unknown preset %q (want one of %v)", ErrInvalidConfig, name, PresetNames())
	}
	return blocks, nil
}

// PresetNames lists the preset names.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
