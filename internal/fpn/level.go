package fpn

import (
	"fmt"

	"github.com/born-ml/fpn/internal/tensor"
)

// LevelID names one slot of the five-level pyramid.
type LevelID int

// Pyramid levels, finest first.
const (
	P3 LevelID = iota
	P4
	P5
	P6
	P7
)

// AllLevels lists the pyramid levels in output order.
var AllLevels = [NumLevels]LevelID{P3, P4, P5, P6, P7}

// Index returns the 0-based position of the level in the pyramid.
func (id LevelID) Index() int {
	return int(id)
}

// Stride returns the level's downsampling factor relative to the input:
// 8, 16, 32, 64 or 128.
func (id LevelID) Stride() int {
	return 8 << id
}

// String returns "p3" ... "p7".
func (id LevelID) String() string {
	if id < P3 || id > P7 {
		return fmt.Sprintf("LevelID(%d)", int(id))
	}
	return fmt.Sprintf("p%d", int(id)+3)
}

// Level is one returned pyramid slot: either a computed feature map or an
// absent marker for a level the configuration did not compute.
type Level[B tensor.Backend] struct {
	id          LevelID
	fm          *tensor.Tensor[float32, B]
	placeholder *tensor.Tensor[float32, B]
}

func presentLevel[B tensor.Backend](id LevelID, fm *tensor.Tensor[float32, B]) Level[B] {
	return Level[B]{id: id, fm: fm}
}

func absentLevel[B tensor.Backend](id LevelID, placeholder *tensor.Tensor[float32, B]) Level[B] {
	return Level[B]{id: id, placeholder: placeholder}
}

// ID returns which pyramid slot this is.
func (l Level[B]) ID() LevelID {
	return l.id
}

// Present reports whether the level was computed.
func (l Level[B]) Present() bool {
	return l.fm != nil
}

// FeatureMap returns the [N, C, H, W] map, or false if the level is absent.
func (l Level[B]) FeatureMap() (*tensor.Tensor[float32, B], bool) {
	return l.fm, l.fm != nil
}

// Tensor returns the feature map of a present level. For an absent level it
// returns the zero scalar placeholder in compat mode and nil otherwise.
func (l Level[B]) Tensor() *tensor.Tensor[float32, B] {
	if l.fm != nil {
		return l.fm
	}
	return l.placeholder
}

// String describes the level, e.g. "p4[1 256 38 19]" or "p6(absent)".
func (l Level[B]) String() string {
	if l.fm == nil {
		return l.id.String() + "(absent)"
	}
	return fmt.Sprintf("%s%v", l.id, []int(l.fm.Shape()))
}
