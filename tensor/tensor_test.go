// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/born-ml/fpn/backend/cpu"
	"github.com/born-ml/fpn/tensor"
)

// TestBackendInterface verifies that the CPU backend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = cpu.New()
}

// TestRawTensorAPI verifies RawTensor type alias exposes expected API.
func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}

	if !raw.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("Shape() = %v, want [2 3]", raw.Shape())
	}
	if raw.DType() != tensor.Float32 {
		t.Errorf("DType() = %v, want Float32", raw.DType())
	}
	if raw.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want CPU", raw.Device())
	}
	if raw.NumElements() != 6 {
		t.Errorf("NumElements() = %d, want 6", raw.NumElements())
	}
}

// TestCreation exercises the public constructors.
func TestCreation(t *testing.T) {
	backend := cpu.New()

	ones := tensor.Ones[float32](tensor.Shape{1, 2, 2, 2}, backend)
	sum := ones.Add(ones)
	for i, v := range sum.Data() {
		if v != 2 {
			t.Fatalf("sum[%d] = %v, want 2", i, v)
		}
	}

	x, err := tensor.FromSlice([]float32{-1, 2}, tensor.Shape{2}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	if got := x.ReLU().Data(); got[0] != 0 || got[1] != 2 {
		t.Errorf("ReLU() = %v, want [0 2]", got)
	}

	if s := tensor.Scalar[float32](0, backend); !s.Shape().IsScalar() {
		t.Errorf("Scalar shape = %v", s.Shape())
	}

	a := tensor.Randn[float32](tensor.Shape{4}, rand.New(rand.NewSource(3)), backend)
	b := tensor.Randn[float32](tensor.Shape{4}, rand.New(rand.NewSource(3)), backend)
	if !a.Equal(b) {
		t.Error("Randn with equal seeds differs")
	}

	u := tensor.Uniform[float64](tensor.Shape{100}, -0.5, 0.5, rand.New(rand.NewSource(4)), backend)
	for _, v := range u.Data() {
		if v < -0.5 || v >= 0.5 {
			t.Fatalf("Uniform value %v out of range", v)
		}
	}

	if f := tensor.Full[float32](tensor.Shape{3}, 1.5, backend); f.At(2) != 1.5 {
		t.Errorf("Full value = %v", f.At(2))
	}
	if z := tensor.Zeros[float32](tensor.Shape{2, 2}, backend); z.NumElements() != 4 {
		t.Errorf("Zeros NumElements = %d", z.NumElements())
	}
}
