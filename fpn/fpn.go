// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package fpn builds RetinaNet-style feature pyramid networks.
//
// A network runs a bottleneck backbone over an image, adds two extra
// stride-2 levels and fuses coarse levels back into finer ones, returning a
// configurable window of the pyramid (p3, p4, p5, p6, p7) at strides 8 to
// 128. Only the levels the configuration needs are computed.
//
// Example:
//
//	backend := cpu.New()
//	net, err := fpn.FPN50(backend, fpn.WithNumLayers(3))
//	if err != nil {
//	    return err
//	}
//	levels, err := net.Forward(image) // p3, p4, p5
//	for _, l := range levels {
//	    fm, _ := l.FeatureMap()
//	    fmt.Println(l.ID(), fm.Shape())
//	}
package fpn

import (
	"github.com/born-ml/fpn/internal/fpn"
	"github.com/born-ml/fpn/internal/tensor"
)

// Network is a feature pyramid network.
type Network[B tensor.Backend] = fpn.Network[B]

// Config describes a network.
type Config = fpn.Config

// Option modifies a Config.
type Option = fpn.Option

// Level is one returned pyramid slot, present or absent.
type Level[B tensor.Backend] = fpn.Level[B]

// LevelID names a pyramid level.
type LevelID = fpn.LevelID

// LevelShape is a predicted output shape.
type LevelShape = fpn.LevelShape

// Plan is the ordered set of computation steps for a configuration.
type Plan = fpn.Plan

// Node is one computation step.
type Node = fpn.Node

// Pyramid levels.
const (
	P3 = fpn.P3
	P4 = fpn.P4
	P5 = fpn.P5
	P6 = fpn.P6
	P7 = fpn.P7
)

// NumLevels is the size of the full pyramid.
const NumLevels = fpn.NumLevels

// Errors returned by New and Forward.
var (
	ErrInvalidConfig        = fpn.ErrInvalidConfig
	ErrWindowExceedsPyramid = fpn.ErrWindowExceedsPyramid
	ErrInvalidInput         = fpn.ErrInvalidInput
)

// Backbone stage depths of the presets.
var (
	ResNet50Blocks  = fpn.ResNet50Blocks
	ResNet101Blocks = fpn.ResNet101Blocks
)

// DefaultConfig returns the standard configuration for the given stage depths.
func DefaultConfig(numBlocks [4]int) Config {
	return fpn.DefaultConfig(numBlocks)
}

// New builds a network from cfg.
func New[B tensor.Backend](cfg Config, backend B) (*Network[B], error) {
	return fpn.New(cfg, backend)
}

// Build builds a network with the given stage depths and options.
func Build[B tensor.Backend](numBlocks [4]int, backend B, opts ...Option) (*Network[B], error) {
	return fpn.Build(numBlocks, backend, opts...)
}

// FPN50 builds a pyramid over a 50-layer backbone ([3, 4, 6, 3] blocks).
func FPN50[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return fpn.FPN50(backend, opts...)
}

// FPN101 builds a pyramid over a 101-layer backbone ([2, 4, 23, 3] blocks).
func FPN101[B tensor.Backend](backend B, opts ...Option) (*Network[B], error) {
	return fpn.FPN101(backend, opts...)
}

// NewPlan returns the computation plan for a depth.
func NewPlan(depth int) (Plan, error) {
	return fpn.NewPlan(depth)
}

// UpsampleAdd bilinearly resizes coarse to lateral's size and adds it.
func UpsampleAdd[B tensor.Backend](coarse, lateral *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return fpn.UpsampleAdd(coarse, lateral)
}

// WithNumLayers sets how many levels Forward returns.
func WithNumLayers(n int) Option { return fpn.WithNumLayers(n) }

// WithNumFPNLayers sets how many levels are computed.
func WithNumFPNLayers(n int) Option { return fpn.WithNumFPNLayers(n) }

// WithFPNSkipLayers sets the index of the first returned level.
func WithFPNSkipLayers(n int) Option { return fpn.WithFPNSkipLayers(n) }

// WithCompat enables reference-compatible window clipping and placeholders.
func WithCompat(compat bool) Option { return fpn.WithCompat(compat) }

// WithBaseWidth sets the stem width.
func WithBaseWidth(n int) Option { return fpn.WithBaseWidth(n) }

// WithChannels sets the pyramid width.
func WithChannels(n int) Option { return fpn.WithChannels(n) }

// WithSeed sets the weight initialization seed.
func WithSeed(seed int64) Option { return fpn.WithSeed(seed) }
