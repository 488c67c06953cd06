package fpn

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/born-ml/fpn/internal/backend/cpu"
	"github.com/born-ml/fpn/internal/logutil"
	"github.com/born-ml/fpn/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed)) //nolint:gosec // test data
}

// countingBackend records how many convolutions ran and the input channel
// counts they saw.
type countingBackend struct {
	*cpu.CPUBackend

	conv2d atomic.Int64
	mu     sync.Mutex
	inputs map[int]int
}

func newCountingBackend() *countingBackend {
	return &countingBackend{CPUBackend: cpu.New(), inputs: make(map[int]int)}
}

func (c *countingBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	c.conv2d.Add(1)
	c.mu.Lock()
	c.inputs[input.Shape()[1]]++
	c.mu.Unlock()
	return c.CPUBackend.Conv2D(input, kernel, stride, padding)
}

// small keeps the tests fast: a 4-wide stem and an 8-channel pyramid.
var small = []Option{WithBaseWidth(4), WithChannels(8), WithSeed(7)}

func smallNet[B tensor.Backend](t *testing.T, blocks [4]int, backend B, opts ...Option) *Network[B] {
	t.Helper()
	net, err := Build(blocks, backend, append(append([]Option(nil), small...), opts...)...)
	require.NoError(t, err)
	return net
}

func randomImage[B tensor.Backend](backend B, n, h, w int) *tensor.Tensor[float32, B] {
	return tensor.Randn[float32](tensor.Shape{n, 3, h, w}, newTestRand(42), backend)
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }

// The default window over a 600x300 image is p3..p7 at strides 8..128.
func TestForward_FullPyramid(t *testing.T) {
	backend := cpu.New()
	net := smallNet(t, ResNet50Blocks, backend)

	levels, err := net.Forward(randomImage(backend, 1, 600, 300))
	require.NoError(t, err)
	require.Len(t, levels, 5)

	want := [][2]int{{75, 38}, {38, 19}, {19, 10}, {10, 5}, {5, 3}}
	for i, l := range levels {
		fm, ok := l.FeatureMap()
		require.True(t, ok, "level %s absent", l.ID())
		assert.Equal(t, AllLevels[i], l.ID())
		assert.Equal(t, 8<<i, l.ID().Stride())
		assert.True(t, fm.Shape().Equal(tensor.Shape{1, 8, want[i][0], want[i][1]}), "%s: %v", l.ID(), fm.Shape())
	}
}

// A single-level pyramid returns p3 and never runs stage 3, stage 4 or
// the extra convolutions.
func TestForward_SingleLevelSkipsDeepStages(t *testing.T) {
	backend := newCountingBackend()
	net := smallNet(t, ResNet50Blocks, backend, WithNumLayers(1))

	levels, err := net.Forward(randomImage(backend, 1, 64, 48))
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, P3, levels[0].ID())
	assert.True(t, levels[0].Present())

	// stem 1 + layer1 (3 blocks, 3 convs each, 1 projection) 10
	// + layer2 13 + latlayer3 1 + toplayer2 1
	assert.Equal(t, int64(26), backend.conv2d.Load())

	// Only stage 3 and later read 64- or 128-channel maps (c4, c5).
	assert.NotZero(t, backend.inputs[4*4*2])
	assert.Zero(t, backend.inputs[4*4*4], "c4 must not be computed")
	assert.Zero(t, backend.inputs[4*4*8], "c5 must not be computed")
}

func TestForward_ConvolutionCountByDepth(t *testing.T) {
	// With one block per stage every stage is 3 convs plus a projection.
	want := map[int]int64{1: 11, 2: 17, 3: 22, 4: 23, 5: 24}

	for depth, count := range want {
		backend := newCountingBackend()
		net := smallNet(t, [4]int{1, 1, 1, 1}, backend, WithNumLayers(1), WithNumFPNLayers(depth))

		levels, err := net.Forward(randomImage(backend, 1, 32, 32))
		require.NoError(t, err)
		require.Len(t, levels, 1)
		assert.Equal(t, count, backend.conv2d.Load(), "depth %d", depth)
	}
}

// Computing all five levels and skipping three returns p6 and p7.
func TestForward_TailWindow(t *testing.T) {
	backend := cpu.New()
	net := smallNet(t, [4]int{1, 1, 1, 1}, backend,
		WithNumLayers(2), WithNumFPNLayers(5), WithFPNSkipLayers(3))

	levels, err := net.Forward(randomImage(backend, 2, 64, 64))
	require.NoError(t, err)
	require.Len(t, levels, 2)

	assert.Equal(t, P6, levels[0].ID())
	assert.Equal(t, P7, levels[1].ID())
	for _, l := range levels {
		fm, ok := l.FeatureMap()
		require.True(t, ok)
		side := ceilDiv(64, l.ID().Stride())
		assert.True(t, fm.Shape().Equal(tensor.Shape{2, 8, side, side}), "%s: %v", l.ID(), fm.Shape())
	}
	assert.Equal(t, []LevelID{P6, P7}, net.Window())
}

// A window running past p7 is rejected, or clipped in compat mode.
func TestForward_WindowPastPyramid(t *testing.T) {
	backend := cpu.New()

	_, err := Build([4]int{1, 1, 1, 1}, backend, WithFPNSkipLayers(4), WithNumLayers(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWindowExceedsPyramid), "got %v", err)

	x := randomImage(backend, 1, 32, 32)

	// Depth is max(2, 0), so p7 falls outside the computed levels.
	net := smallNet(t, [4]int{1, 1, 1, 1}, backend, WithCompat(true), WithFPNSkipLayers(4), WithNumLayers(2))
	levels, err := net.Forward(x)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, P7, levels[0].ID())
	assert.False(t, levels[0].Present())
	require.NotNil(t, levels[0].Tensor())
	assert.True(t, levels[0].Tensor().Shape().IsScalar())

	net = smallNet(t, [4]int{1, 1, 1, 1}, backend,
		WithCompat(true), WithFPNSkipLayers(4), WithNumLayers(2), WithNumFPNLayers(5))
	levels, err = net.Forward(x)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, P7, levels[0].ID())
	assert.True(t, levels[0].Present())
}

func TestForward_CompatOverflowingWindow(t *testing.T) {
	backend := cpu.New()
	net := smallNet(t, [4]int{1, 1, 1, 1}, backend,
		WithCompat(true), WithFPNSkipLayers(1), WithNumLayers(math.MaxInt))

	assert.Equal(t, []LevelID{P4, P5, P6, P7}, net.Window())
	levels, err := net.Forward(randomImage(backend, 1, 32, 32))
	require.NoError(t, err)
	require.Len(t, levels, 4)
	for _, l := range levels {
		assert.True(t, l.Present(), "%s", l.ID())
	}
	assert.Len(t, net.OutputShapes(1, 32, 32), 4)
}

func TestForward_CompatPlaceholders(t *testing.T) {
	backend := cpu.New()

	// Depth is max(num_fpn_layers, num_layers), so an offset window can
	// reach past the computed levels: depth 1 leaves p5 absent, depth 3
	// leaves p6 and p7 absent.
	strict := smallNet(t, [4]int{1, 1, 1, 1}, backend, WithNumLayers(1), WithFPNSkipLayers(2))
	compat := smallNet(t, [4]int{1, 1, 1, 1}, backend, WithCompat(true), WithNumLayers(3), WithFPNSkipLayers(2))

	x := randomImage(backend, 1, 32, 32)

	levels, err := strict.Forward(x)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.False(t, levels[0].Present())
	assert.Nil(t, levels[0].Tensor())

	levels, err = compat.Forward(x)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, P5, levels[0].ID())
	assert.True(t, levels[0].Present())
	for _, l := range levels[1:] {
		assert.False(t, l.Present(), "%s", l.ID())
		require.NotNil(t, l.Tensor())
		assert.True(t, l.Tensor().Shape().IsScalar())
		assert.Equal(t, float32(0), l.Tensor().Item())
	}
}

func TestForward_CompatEmptyWindow(t *testing.T) {
	backend := cpu.New()
	net := smallNet(t, [4]int{1, 1, 1, 1}, backend, WithCompat(true), WithNumLayers(0))

	levels, err := net.Forward(randomImage(backend, 1, 16, 16))
	require.NoError(t, err)
	assert.Empty(t, levels)
}

// A present level at pyramid index i has stride 2^(i+3) whatever the window
// and input parity.
func TestForward_LevelStrides(t *testing.T) {
	backend := cpu.New()
	sizes := [][2]int{{33, 17}, {64, 64}, {45, 90}, {1, 1}}

	for skip := 0; skip < NumLevels; skip++ {
		net := smallNet(t, [4]int{1, 1, 1, 1}, backend,
			WithFPNSkipLayers(skip), WithNumLayers(NumLevels-skip), WithNumFPNLayers(NumLevels))
		for _, size := range sizes {
			levels, err := net.Forward(randomImage(backend, 1, size[0], size[1]))
			require.NoError(t, err)
			require.Len(t, levels, NumLevels-skip)

			for j, l := range levels {
				assert.Equal(t, skip+j, l.ID().Index())
				fm, ok := l.FeatureMap()
				require.True(t, ok)
				_, c, h, w := fm.Shape().NCHW()
				stride := 1 << (l.ID().Index() + 3)
				assert.Equal(t, 8, c)
				assert.Equal(t, ceilDiv(size[0], stride), h, "%s of %v", l.ID(), size)
				assert.Equal(t, ceilDiv(size[1], stride), w, "%s of %v", l.ID(), size)
			}
		}
	}
}

func TestForward_Idempotent(t *testing.T) {
	backend := cpu.New()
	net := smallNet(t, [4]int{2, 1, 2, 1}, backend)
	x := randomImage(backend, 2, 37, 29)
	before := x.Clone()

	first, err := net.Forward(x)
	require.NoError(t, err)
	second, err := net.Forward(x)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Tensor().Equal(second[i].Tensor()), "level %s differs", first[i].ID())
	}
	assert.True(t, x.Equal(before), "input was modified")
}

func TestForward_Concurrent(t *testing.T) {
	backend := cpu.New()
	net := smallNet(t, [4]int{1, 1, 1, 1}, backend)
	x := randomImage(backend, 1, 40, 24)

	want, err := net.Forward(x)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := net.Forward(x)
			if !assert.NoError(t, err) {
				return
			}
			for i := range want {
				assert.True(t, want[i].Tensor().Equal(got[i].Tensor()))
			}
		}()
	}
	wg.Wait()
}

func TestForward_InvalidInput(t *testing.T) {
	backend := cpu.New()
	net := smallNet(t, [4]int{1, 1, 1, 1}, backend)

	inputs := []tensor.Shape{
		{3, 32, 32},
		{1, 1, 32, 32},
		{1, 4, 32, 32},
	}
	for _, shape := range inputs {
		_, err := net.Forward(tensor.Zeros[float32](shape, backend))
		assert.ErrorIs(t, err, ErrInvalidInput, "shape %v", shape)
	}

	// An empty batch never reaches Forward.
	_, err := tensor.FromSlice[float32](nil, tensor.Shape{0, 3, 32, 32}, backend)
	assert.Error(t, err)
}

func TestOutputShapes_MatchForward(t *testing.T) {
	backend := cpu.New()
	net := smallNet(t, [4]int{1, 1, 1, 1}, backend, WithCompat(true), WithNumFPNLayers(3), WithFPNSkipLayers(1), WithNumLayers(4))

	predicted := net.OutputShapes(2, 75, 41)
	levels, err := net.Forward(randomImage(backend, 2, 75, 41))
	require.NoError(t, err)

	require.Len(t, predicted, len(levels))
	for i, l := range levels {
		assert.Equal(t, l.ID(), predicted[i].ID)
		if fm, ok := l.FeatureMap(); ok {
			assert.True(t, fm.Shape().Equal(predicted[i].Shape), "%s: %v vs %v", l.ID(), fm.Shape(), predicted[i].Shape)
		} else {
			assert.Nil(t, predicted[i].Shape)
		}
	}
}

func TestOutputShapes_FullWidth(t *testing.T) {
	net, err := FPN50(cpu.New())
	require.NoError(t, err)

	var got [][]int
	for _, ls := range net.OutputShapes(1, 600, 300) {
		got = append(got, ls.Shape)
	}
	assert.Equal(t, [][]int{
		{1, 256, 75, 38},
		{1, 256, 38, 19},
		{1, 256, 19, 10},
		{1, 256, 10, 5},
		{1, 256, 5, 3},
	}, got)
}

func TestNetwork_StateDict(t *testing.T) {
	backend := cpu.New()
	net := smallNet(t, ResNet50Blocks, backend)
	state := net.StateDict()

	shapes := map[string]tensor.Shape{
		"conv1.weight":                       {4, 3, 7, 7},
		"bn1.running_var":                    {4},
		"layer1.0.conv1.weight":              {4, 4, 1, 1},
		"layer1.0.downsample.0.weight":       {16, 4, 1, 1},
		"layer2.3.bn3.bias":                  {32},
		"layer3.5.conv2.weight":              {16, 16, 3, 3},
		"layer4.0.downsample.1.running_mean": {128},
		"conv6.weight":                       {8, 128, 3, 3},
		"conv7.bias":                         {8},
		"latlayer1.weight":                   {8, 128, 1, 1},
		"latlayer2.weight":                   {8, 64, 1, 1},
		"latlayer3.weight":                   {8, 32, 1, 1},
		"toplayer1.weight":                   {8, 8, 3, 3},
		"toplayer2.bias":                     {8},
	}
	for key, shape := range shapes {
		require.Contains(t, state, key)
		assert.True(t, state[key].Shape().Equal(shape), "%s: %v", key, state[key].Shape())
	}
	assert.NotContains(t, state, "conv1.bias")
	assert.NotContains(t, state, "layer1.1.downsample.0.weight")
}

func TestNetwork_LoadStateDict(t *testing.T) {
	backend := cpu.New()
	src := smallNet(t, [4]int{1, 2, 1, 1}, backend, WithSeed(1))
	dst := smallNet(t, [4]int{1, 2, 1, 1}, backend, WithSeed(2))
	x := randomImage(backend, 1, 32, 32)

	a, err := src.Forward(x)
	require.NoError(t, err)
	b, err := dst.Forward(x)
	require.NoError(t, err)
	require.False(t, a[0].Tensor().Equal(b[0].Tensor()))

	// Checkpoints exported from training carry BatchNorm update counters.
	state := src.StateDict()
	state["bn1.num_batches_tracked"] = state["bn1.bias"]
	state["layer2.1.bn3.num_batches_tracked"] = state["bn1.bias"]

	require.NoError(t, dst.LoadStateDict(state))
	b, err = dst.Forward(x)
	require.NoError(t, err)
	for i := range a {
		assert.True(t, a[i].Tensor().Equal(b[i].Tensor()), "level %s", a[i].ID())
	}

	// A differently shaped network cannot load it.
	other := smallNet(t, [4]int{1, 2, 1, 1}, backend, WithChannels(16))
	assert.Error(t, other.LoadStateDict(src.StateDict()))
}

func TestNetwork_SeedDeterminism(t *testing.T) {
	backend := cpu.New()
	a := smallNet(t, [4]int{1, 1, 1, 1}, backend, WithSeed(5))
	b := smallNet(t, [4]int{1, 1, 1, 1}, backend, WithSeed(5))

	sa, sb := a.StateDict(), b.StateDict()
	require.Equal(t, len(sa), len(sb))
	for k, v := range sa {
		assert.Equal(t, v.AsFloat32(), sb[k].AsFloat32(), k)
	}
}

func TestNetwork_ParametersIndependentOfDepth(t *testing.T) {
	backend := cpu.New()
	shallow := smallNet(t, [4]int{1, 1, 1, 1}, backend, WithNumLayers(1))
	deep := smallNet(t, [4]int{1, 1, 1, 1}, backend)

	assert.Equal(t, deep.NumParameters(), shallow.NumParameters())
	assert.Len(t, shallow.StateDict(), len(deep.StateDict()))
}

func TestNetwork_NumParameters(t *testing.T) {
	if testing.Short() {
		t.Skip("builds full-width backbones")
	}

	net50, err := FPN50(cpu.New())
	require.NoError(t, err)
	net101, err := FPN101(cpu.New())
	require.NoError(t, err)

	// ResNet-50 trunk without fc: 23,508,032 learnable scalars.
	// conv6 (2048*256*9 + 256) + conv7 (256*256*9 + 256)
	// + latlayers ((2048+1024+512)*256 + 3*256) + toplayers 2*(256*256*9 + 256).
	extra := (2048*256*9 + 256) + (256*256*9 + 256) + ((2048+1024+512)*256 + 3*256) + 2*(256*256*9+256)
	assert.Equal(t, 23508032+extra, net50.NumParameters())
	assert.Greater(t, net101.NumParameters(), net50.NumParameters())
}

func TestForward_FullWidth(t *testing.T) {
	if testing.Short() {
		t.Skip("full-width FPN50 forward pass")
	}

	backend := cpu.New()
	net, err := FPN50(backend)
	require.NoError(t, err)

	levels, err := net.Forward(randomImage(backend, 1, 600, 300))
	require.NoError(t, err)
	require.Len(t, levels, 5)
	for i, ls := range net.OutputShapes(1, 600, 300) {
		fm, ok := levels[i].FeatureMap()
		require.True(t, ok)
		assert.True(t, fm.Shape().Equal(ls.Shape))
	}
}

func TestNew_Logging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(logutil.NewLogger(&buf, logutil.LevelTrace))

	backend := cpu.New()
	net := smallNet(t, [4]int{1, 1, 1, 1}, backend, WithNumLayers(1))
	_, err := net.Forward(randomImage(backend, 1, 16, 16))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "built feature pyramid")
	assert.Contains(t, out, "layers=conv1,layer1,layer2,latlayer3,toplayer2")
	assert.Contains(t, out, "node=lat3")
	assert.NotContains(t, out, "node=c4")
}

func TestNetwork_String(t *testing.T) {
	net := smallNet(t, [4]int{1, 1, 1, 1}, cpu.New(), WithNumLayers(2), WithFPNSkipLayers(1), WithNumFPNLayers(3))

	s := net.String()
	assert.Contains(t, s, "depth=3")
	assert.Contains(t, s, "window=[p4 p5]")
	assert.Contains(t, s, "p4 <- lat4, p5")
}

func TestPresets(t *testing.T) {
	blocks, err := PresetBlocks("101")
	require.NoError(t, err)
	assert.Equal(t, ResNet101Blocks, blocks)

	_, err = PresetBlocks("34")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, []string{"101", "50"}, PresetNames())
}
