package fpn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlan_EnabledNodes(t *testing.T) {
	tests := []struct {
		depth int
		want  []string
	}{
		{0, []string{"c1", "c2", "c3", "lat3", "p3"}},
		{1, []string{"c1", "c2", "c3", "lat3", "p3"}},
		{2, []string{"c1", "c2", "c3", "c4", "lat4", "p4", "lat3", "p3"}},
		{3, []string{"c1", "c2", "c3", "c4", "c5", "p5", "lat4", "p4", "lat3", "p3"}},
		{4, []string{"c1", "c2", "c3", "c4", "c5", "p6", "p5", "lat4", "p4", "lat3", "p3"}},
		{5, []string{"c1", "c2", "c3", "c4", "c5", "p6", "p7", "p5", "lat4", "p4", "lat3", "p3"}},
	}

	for _, tt := range tests {
		plan, err := NewPlan(tt.depth)
		require.NoError(t, err)

		var names []string
		for _, n := range plan.Nodes() {
			names = append(names, n.Name)
		}
		assert.Equal(t, tt.want, names, "depth %d", tt.depth)
		assert.Equal(t, tt.depth, plan.Depth())
	}
}

func TestPlan_DependencyOrder(t *testing.T) {
	for depth := 1; depth <= NumLevels; depth++ {
		plan, err := NewPlan(depth)
		require.NoError(t, err)

		seen := map[string]bool{"image": true}
		for _, n := range plan.Nodes() {
			for _, in := range n.Inputs {
				assert.True(t, seen[in], "depth %d: %s runs before its input %s", depth, n.Name, in)
			}
			for _, in := range n.Optional {
				if plan.Enabled(in) {
					assert.True(t, seen[in], "depth %d: %s runs before %s", depth, n.Name, in)
				}
			}
			seen[n.Name] = true
		}
	}
}

func TestPlan_LevelEnabledByDepth(t *testing.T) {
	for depth := 1; depth <= NumLevels; depth++ {
		plan, err := NewPlan(depth)
		require.NoError(t, err)
		for _, id := range AllLevels {
			assert.Equal(t, id.Index() < depth, plan.Enabled(id.String()), "depth %d level %s", depth, id)
		}
	}
}

func TestPlan_String(t *testing.T) {
	plan, err := NewPlan(2)
	require.NoError(t, err)

	assert.Equal(t, "c1 <- image; c2 <- c1; c3 <- c2; c4 <- c3; lat4 <- c4; p4 <- lat4; lat3 <- c3; p3 <- lat3, p4",
		plan.String())
	assert.Equal(t, []string{"conv1", "layer1", "layer2", "layer3", "latlayer2", "toplayer1", "latlayer3", "toplayer2"},
		plan.Layers())
}
