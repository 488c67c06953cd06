// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types used by the feature
// pyramid network.
//
// # Overview
//
// Tensors are dense, row-major and immutable from the point of view of the
// network: every op returns a fresh tensor. Feature maps are 4-D
// [batch, channels, height, width] float32 tensors.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/fpn/backend/cpu"
//	    "github.com/born-ml/fpn/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    image := tensor.Zeros[float32](tensor.Shape{1, 3, 600, 300}, backend)
//	    _ = image
//	}
//
// # Backends
//
// A Backend implements the handful of kernels the network needs: Conv2D,
// MaxPool2D, Add, ReLU, per-channel ScaleShift and ResizeBilinear. The
// backend/cpu package provides a pure Go implementation.
package tensor
