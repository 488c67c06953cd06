// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/fpn/internal/backend/cpu"
	"github.com/born-ml/fpn/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend with one worker per CPU.
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{1, 3, 600, 300}, backend)
func New() *Backend {
	return internalcpu.New()
}

// NewWithWorkers creates a CPU backend capped at n worker goroutines per
// op. n <= 0 keeps the default.
func NewWithWorkers(n int) *Backend {
	return internalcpu.NewWithWorkers(n)
}
