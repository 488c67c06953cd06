// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn exposes the building blocks of the feature pyramid backbone.
//
// Modules run in inference mode. Batch normalization uses running
// statistics, and parameters can be exchanged by dotted name through
// StateDict and LoadStateDict.
//
// # Basic Usage
//
//	backend := cpu.New()
//	rng := rand.New(rand.NewSource(0))
//	stage := nn.NewSequential[*cpu.Backend](
//	    nn.NewBottleneck(256, 128, 2, rng, backend),
//	    nn.NewBottleneck(512, 128, 1, rng, backend),
//	)
//	c3 := stage.Forward(c2)
package nn
