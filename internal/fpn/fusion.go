package fpn

import (
	"github.com/born-ml/fpn/internal/tensor"
)

// UpsampleAdd resizes coarse to lateral's height and width with bilinear
// interpolation (half-pixel centers, no corner alignment) and adds it to
// lateral.
//
// Adjacent levels of an odd-sized input can differ by one pixel, so coarse
// is resized to lateral's exact size rather than scaled by two. A nil or
// scalar coarse map stands for an absent level, and lateral is returned
// unchanged.
func UpsampleAdd[B tensor.Backend](coarse, lateral *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if coarse == nil || coarse.Shape().IsScalar() {
		return lateral
	}
	_, _, h, w := lateral.Shape().NCHW()
	return coarse.ResizeBilinear(h, w).Add(lateral)
}
