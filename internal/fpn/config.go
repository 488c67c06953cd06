package fpn

import (
	"errors"
	"fmt"
)

// NumLevels is the size of the full pyramid (p3..p7).
const NumLevels = 5

// Defaults used by DefaultConfig.
const (
	DefaultNumLayers = NumLevels
	DefaultBaseWidth = 64
	DefaultChannels  = 256
)

// Configuration and input errors. Returned errors wrap these, so callers
// can match them with errors.Is.
var (
	ErrInvalidConfig        = errors.New("invalid pyramid config")
	ErrWindowExceedsPyramid = errors.New("window exceeds pyramid size")
	ErrInvalidInput         = errors.New("invalid input")
)

// Config describes the shape of a feature pyramid network.
//
// A Config is fixed when the network is built; the network keeps its own
// normalized copy.
type Config struct {
	// NumBlocks is the number of bottleneck blocks in each backbone stage.
	NumBlocks [4]int

	// NumLayers is how many consecutive levels Forward returns.
	NumLayers int

	// NumFPNLayers is how many levels are computed. Values below NumLayers
	// are raised to NumLayers.
	NumFPNLayers int

	// FPNSkipLayers is the index of the first returned level.
	FPNSkipLayers int

	// Compat keeps the permissive slicing of the reference model: a window
	// running past p7 is clipped instead of rejected, and levels that were
	// not computed carry a zero scalar tensor.
	Compat bool

	// BaseWidth is the stem width; stage k uses BaseWidth<<k inner planes.
	BaseWidth int

	// Channels is the width of every pyramid level.
	Channels int

	// Seed drives weight initialization.
	Seed int64
}

// DefaultConfig returns the standard configuration for the given backbone
// stage depths: all five levels, 64-wide stem, 256-channel pyramid.
func DefaultConfig(numBlocks [4]int) Config {
	return Config{
		NumBlocks: numBlocks,
		NumLayers: DefaultNumLayers,
		BaseWidth: DefaultBaseWidth,
		Channels:  DefaultChannels,
	}
}

// Option modifies a Config.
type Option func(*Config)

// WithNumLayers sets how many levels Forward returns.
func WithNumLayers(n int) Option {
	return func(c *Config) { c.NumLayers = n }
}

// WithNumFPNLayers sets how many levels are computed.
func WithNumFPNLayers(n int) Option {
	return func(c *Config) { c.NumFPNLayers = n }
}

// WithFPNSkipLayers sets the index of the first returned level.
func WithFPNSkipLayers(n int) Option {
	return func(c *Config) { c.FPNSkipLayers = n }
}

// WithCompat enables reference-compatible window clipping and zero-scalar
// placeholders.
func WithCompat(compat bool) Option {
	return func(c *Config) { c.Compat = compat }
}

// WithBaseWidth sets the stem width.
func WithBaseWidth(n int) Option {
	return func(c *Config) { c.BaseWidth = n }
}

// WithChannels sets the pyramid width.
func WithChannels(n int) Option {
	return func(c *Config) { c.Channels = n }
}

// WithSeed sets the weight initialization seed.
func WithSeed(seed int64) Option {
	return func(c *Config) { c.Seed = seed }
}

// Depth returns the number of levels that are computed:
// max(NumFPNLayers, NumLayers).
func (c Config) Depth() int {
	return max(c.NumFPNLayers, c.NumLayers)
}

// Validate checks the config.
//
// Negative counts and non-positive widths are always rejected. Outside
// compat mode the window [FPNSkipLayers, FPNSkipLayers+NumLayers) must be
// non-empty and fit inside the five-level pyramid.
func (c Config) Validate() error {
	for i, n := range c.NumBlocks {
		if n <= 0 {
			return fmt.Errorf("%w: stage %d has %d blocks", ErrInvalidConfig, i+1, n)
		}
	}
	if c.BaseWidth <= 0 {
		return fmt.Errorf("%w: base width %d", ErrInvalidConfig, c.BaseWidth)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("%w: channels %d", ErrInvalidConfig, c.Channels)
	}
	if c.NumLayers < 0 {
		return fmt.Errorf("%w: num_layers %d is negative", ErrInvalidConfig, c.NumLayers)
	}
	if c.NumFPNLayers < 0 {
		return fmt.Errorf("%w: num_fpn_layers %d is negative", ErrInvalidConfig, c.NumFPNLayers)
	}
	if c.FPNSkipLayers < 0 {
		return fmt.Errorf("%w: fpn_skip_layers %d is negative", ErrInvalidConfig, c.FPNSkipLayers)
	}

	if c.Compat {
		return nil
	}

	if c.NumLayers == 0 {
		return fmt.Errorf("%w: num_layers must be at least 1", ErrInvalidConfig)
	}
	if c.NumFPNLayers > NumLevels {
		return fmt.Errorf("%w: num_fpn_layers %d exceeds %d levels", ErrInvalidConfig, c.NumFPNLayers, NumLevels)
	}
	if c.NumLayers > NumLevels-c.FPNSkipLayers {
		return fmt.Errorf("%w: %d levels from offset %d requested, pyramid has %d (p3..p7)",
			ErrWindowExceedsPyramid, c.NumLayers, c.FPNSkipLayers, NumLevels)
	}
	return nil
}

// window returns the half-open range of level indices Forward returns,
// clipped to the pyramid.
func (c Config) window() (lo, hi int) {
	lo = min(c.FPNSkipLayers, NumLevels)
	hi = lo + max(min(c.NumLayers, NumLevels-lo), 0)
	return lo, hi
}

// Window returns the IDs of the levels Forward returns.
func (c Config) Window() []LevelID {
	lo, hi := c.window()
	return append([]LevelID(nil), AllLevels[lo:hi]...)
}

// stagePlanes returns the inner width of backbone stage k (0-based).
func (c Config) stagePlanes(k int) int {
	return c.BaseWidth << k
}
