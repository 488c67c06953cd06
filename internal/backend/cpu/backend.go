// Package cpu implements the pure Go CPU backend used to run the feature pyramid.
//
// Kernels operate on float32 tensors, the only element type the network
// layers create; other dtypes panic with "op: unsupported dtype".
//
// Convolutions are lowered to matrix multiplication with im2col and executed
// by gonum's BLAS. Pooling, resizing and element-wise ops iterate over
// independent feature-map planes, split across goroutines by internal/parallel.
package cpu

import (
	"fmt"

	"github.com/born-ml/fpn/internal/parallel"
	"github.com/born-ml/fpn/internal/tensor"
)

// CPUBackend implements tensor.Backend on the CPU.
//
// A CPUBackend holds no mutable state after construction and is safe for
// concurrent use by multiple forward passes.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// New creates a CPU backend that uses one worker per CPU.
func New() *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    parallel.DefaultConfig(),
	}
}

// NewWithWorkers creates a CPU backend capped at n worker goroutines per op.
// n <= 0 keeps the default; n == 1 runs every op inline.
func NewWithWorkers(n int) *CPUBackend {
	b := New()
	if n > 0 {
		b.par = b.par.WithWorkers(n)
	}
	return b
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Workers returns the worker cap used for op-level parallelism.
func (cpu *CPUBackend) Workers() int {
	if !cpu.par.Enabled {
		return 1
	}
	return cpu.par.NumWorkers
}

// newResult allocates an op result, panicking with the op name on failure.
func (cpu *CPUBackend) newResult(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	out, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return out
}

// Add performs element-wise addition of two tensors with identical shapes.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("add: dtype mismatch %s vs %s", a.DType(), b.DType()))
	}

	result := cpu.newResult("add", a.Shape(), a.DType())

	switch a.DType() {
	case tensor.Float32:
		addSlices(result.AsFloat32(), a.AsFloat32(), b.AsFloat32())
	default:
		panic(fmt.Sprintf("add: unsupported dtype %s", a.DType()))
	}

	return result
}

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := cpu.newResult("relu", x.Shape(), x.DType())

	switch x.DType() {
	case tensor.Float32:
		reluSlice(result.AsFloat32(), x.AsFloat32())
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s", x.DType()))
	}

	return result
}

func addSlices(dst, a, b []float32) {
	b = b[:len(a)]
	dst = dst[:len(a)]
	for i := range a {
		dst[i] = a[i] + b[i]
	}
}

func reluSlice(dst, x []float32) {
	dst = dst[:len(x)]
	for i, v := range x {
		if v > 0 {
			dst[i] = v
		} else {
			dst[i] = 0
		}
	}
}
