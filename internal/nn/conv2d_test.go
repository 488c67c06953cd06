package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/born-ml/fpn/internal/backend/cpu"
	"github.com/born-ml/fpn/internal/tensor"
)

func testRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic test weights
}

// TestConv2D_Creation tests Conv2D layer creation.
func TestConv2D_Creation(t *testing.T) {
	backend := cpu.New()

	// Create Conv2D: 3 -> 64 channels, 7x7 kernel, stride 2, padding 3
	conv := NewConv2D(3, 64, 7, 7, 2, 3, true, testRand(1), backend)

	if conv.InChannels() != 3 {
		t.Errorf("Expected in_channels=3, got %d", conv.InChannels())
	}
	if conv.OutChannels() != 64 {
		t.Errorf("Expected out_channels=64, got %d", conv.OutChannels())
	}

	kernelSize := conv.KernelSize()
	if kernelSize[0] != 7 || kernelSize[1] != 7 {
		t.Errorf("Expected kernel_size=[7,7], got %v", kernelSize)
	}

	weightShape := conv.Weight().Tensor().Shape()
	if !weightShape.Equal(tensor.Shape{64, 3, 7, 7}) {
		t.Errorf("Weight shape: expected [64 3 7 7], got %v", weightShape)
	}
	if !conv.Bias().Tensor().Shape().Equal(tensor.Shape{64}) {
		t.Errorf("Bias shape: expected [64], got %v", conv.Bias().Tensor().Shape())
	}

	if len(conv.Parameters()) != 2 {
		t.Errorf("Expected 2 parameters (weight, bias), got %d", len(conv.Parameters()))
	}

	noBias := NewConv2D(3, 8, 1, 1, 1, 0, false, nil, backend)
	if noBias.Bias() != nil || len(noBias.Parameters()) != 1 {
		t.Errorf("Expected no bias parameter")
	}
}

// TestConv2D_InitBounds checks weights stay within 1/sqrt(fan_in).
func TestConv2D_InitBounds(t *testing.T) {
	conv := NewConv2D(16, 8, 3, 3, 1, 1, true, testRand(2), cpu.New())
	bound := float32(1 / math.Sqrt(16*3*3))

	for _, p := range conv.Parameters() {
		for _, v := range p.Tensor().Data() {
			if v < -bound || v > bound {
				t.Fatalf("%s value %v outside [-%v, %v]", p.Name(), v, bound, bound)
			}
		}
	}
}

// TestConv2D_SeedDeterminism checks identical seeds give identical weights.
func TestConv2D_SeedDeterminism(t *testing.T) {
	a := NewConv2D(4, 4, 3, 3, 1, 1, true, testRand(9), cpu.New())
	b := NewConv2D(4, 4, 3, 3, 1, 1, true, testRand(9), cpu.New())

	if !a.Weight().Tensor().Equal(b.Weight().Tensor()) || !a.Bias().Tensor().Equal(b.Bias().Tensor()) {
		t.Error("same seed produced different parameters")
	}
}

// TestConv2D_ForwardShape tests forward pass output shape.
func TestConv2D_ForwardShape(t *testing.T) {
	backend := cpu.New()

	tests := []struct {
		name         string
		kernel, s, p int
		inH, inW     int
		wantH, wantW int
	}{
		{"stem", 7, 2, 3, 600, 300, 300, 150},
		{"lateral", 1, 1, 0, 19, 10, 19, 10},
		{"extra level", 3, 2, 1, 19, 10, 10, 5},
		{"extra level odd", 3, 2, 1, 5, 3, 3, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv := NewConv2D(2, 3, tt.kernel, tt.kernel, tt.s, tt.p, true, testRand(1), backend)
			input := tensor.Zeros[float32](tensor.Shape{2, 2, tt.inH, tt.inW}, backend)

			output := conv.Forward(input)

			expected := tensor.Shape{2, 3, tt.wantH, tt.wantW}
			if !output.Shape().Equal(expected) {
				t.Errorf("Output shape: expected %v, got %v", expected, output.Shape())
			}
			size := conv.ComputeOutputSize(tt.inH, tt.inW)
			if size[0] != tt.wantH || size[1] != tt.wantW {
				t.Errorf("ComputeOutputSize: expected [%d,%d], got %v", tt.wantH, tt.wantW, size)
			}
		})
	}
}

// TestConv2D_ForwardValues tests forward pass with known values.
func TestConv2D_ForwardValues(t *testing.T) {
	backend := cpu.New()

	conv := NewConv2D(1, 1, 2, 2, 1, 0, false, nil, backend)
	copy(conv.Weight().Tensor().Data(), []float32{1, 2, 3, 4})

	input := tensor.Zeros[float32](tensor.Shape{1, 1, 3, 3}, backend)
	for i := range input.Data() {
		input.Data()[i] = float32(i + 1)
	}

	output := conv.Forward(input)

	// [0,0]: 1*1 + 2*2 + 3*4 + 4*5 = 37
	// [0,1]: 1*2 + 2*3 + 3*5 + 4*6 = 47
	// [1,0]: 1*4 + 2*5 + 3*7 + 4*8 = 67
	// [1,1]: 1*5 + 2*6 + 3*8 + 4*9 = 77
	expected := []float32{37, 47, 67, 77}
	for i, exp := range expected {
		if output.Data()[i] != exp {
			t.Errorf("Output[%d]: expected %.1f, got %.1f", i, exp, output.Data()[i])
		}
	}
}

// TestConv2D_WithBias tests forward pass with bias.
func TestConv2D_WithBias(t *testing.T) {
	backend := cpu.New()

	conv := NewConv2D(1, 2, 2, 2, 1, 0, true, nil, backend)
	for i := range conv.Weight().Tensor().Data() {
		conv.Weight().Tensor().Data()[i] = 1
	}
	copy(conv.Bias().Tensor().Data(), []float32{10, 20})

	output := conv.Forward(tensor.Ones[float32](tensor.Shape{1, 1, 2, 2}, backend))

	// 1+1+1+1 = 4, plus per-channel bias
	if output.At(0, 0, 0, 0) != 14 {
		t.Errorf("Output channel 0: expected 14, got %.1f", output.At(0, 0, 0, 0))
	}
	if output.At(0, 1, 0, 0) != 24 {
		t.Errorf("Output channel 1: expected 24, got %.1f", output.At(0, 1, 0, 0))
	}
}

// TestConv2D_WrongChannelsPanics checks channel validation.
func TestConv2D_WrongChannelsPanics(t *testing.T) {
	backend := cpu.New()
	conv := NewConv2D(4, 2, 1, 1, 1, 0, false, nil, backend)

	defer func() {
		if recover() == nil {
			t.Error("expected panic for mismatched input channels")
		}
	}()
	conv.Forward(tensor.Zeros[float32](tensor.Shape{1, 3, 2, 2}, backend))
}

// TestConv2D_String tests the layer description.
func TestConv2D_String(t *testing.T) {
	conv := NewConv2D(256, 256, 3, 3, 1, 1, true, nil, cpu.New())
	want := "Conv2D(in_channels=256, out_channels=256, kernel_size=(3, 3), stride=1, padding=1, bias=true)"
	if conv.String() != want {
		t.Errorf("String() = %q, want %q", conv.String(), want)
	}
}
