package tensor

// Add performs element-wise addition. Shapes must match exactly.
//
// Example:
//
//	a := tensor.Ones[float32](Shape{1, 8, 4, 4}, backend)
//	c := a.Add(a) // all 2s
func (t *Tensor[T, B]) Add(other *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](t.backend.Add(t.raw, other.raw), t.backend)
}

// ReLU applies max(0, x) element-wise.
func (t *Tensor[T, B]) ReLU() *Tensor[T, B] {
	return New[T, B](t.backend.ReLU(t.raw), t.backend)
}

// ResizeBilinear resizes a 4D tensor's spatial dims to height x width.
func (t *Tensor[T, B]) ResizeBilinear(height, width int) *Tensor[T, B] {
	return New[T, B](t.backend.ResizeBilinear(t.raw, height, width), t.backend)
}
