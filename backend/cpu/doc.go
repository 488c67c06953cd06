// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// # Overview
//
// This package implements the network's kernels with:
//   - Pure Go implementation (no CGO)
//   - Im2col convolutions executed by gonum BLAS
//   - Float32 and Float64 support
//   - Parallelism across batch items and channel planes
//
// Every output element is computed by exactly one goroutine in a fixed
// order, so results are bit-identical across runs and worker counts.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/fpn/backend/cpu"
//	    "github.com/born-ml/fpn/fpn"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    net, err := fpn.FPN50(backend)
//	    ...
//	}
package cpu
