package bfl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePath() PathState {
	return NewPathState(5).
		Extend(1, 1, rootFeature).
		Extend(0.6, 1, 2).
		Extend(0.3, 0, 4).
		Extend(0.45, 1, 0)
}

func TestPathStateTotalWeight(t *testing.T) {
	path := samplePath()
	require.Equal(t, 3, path.Size())

	sum := 0.0
	weights := path.Weights()
	for i := 0; i <= path.Size(); i++ {
		sum += weights[i]
	}
	assert.InDelta(t, sum, path.TotalWeight(), 1e-15)
	for i := path.Size() + 1; i < len(weights); i++ {
		assert.Zero(t, weights[i], "entries beyond size stay zero")
	}
}

func TestPathStateExtendUnwindRoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		zero, one float64
		feature   int
	}{
		{"included", 0.25, 1, 3},
		{"excluded", 0.7, 0, 1},
		{"full", 1, 1, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := samplePath()
			after := before.Extend(tc.zero, tc.one, tc.feature).Unwind(tc.feature)

			assert.Equal(t, before.Factors(), after.Factors())
			require.Equal(t, len(before.Weights()), len(after.Weights()))
			for i, w := range before.Weights() {
				assert.InDelta(t, w, after.Weights()[i], 1e-12, "weight %d", i)
			}
		})
	}
}

func TestPathStateRootRoundTrip(t *testing.T) {
	empty := NewPathState(2)
	root := empty.Extend(1, 1, rootFeature)
	assert.Equal(t, []float64{1, 0, 0, 0}, root.Weights())
	assert.Equal(t, empty.Weights(), root.Unwind(rootFeature).Weights())
	assert.Empty(t, root.Unwind(rootFeature).Factors())
}

func TestPathStateIsOutOfPlace(t *testing.T) {
	path := samplePath()
	weights := path.Weights()
	factors := path.Factors()

	extended := path.Extend(0.5, 1, 1)
	unwound := path.Unwind(2)

	assert.Equal(t, weights, path.Weights())
	assert.Equal(t, factors, path.Factors())
	assert.True(t, extended.Contains(1))
	assert.False(t, path.Contains(1))
	assert.False(t, unwound.Contains(2))
	assert.True(t, path.Contains(2))
}

func TestPathStateSiblingsDoNotAlias(t *testing.T) {
	parent := samplePath()
	hot := parent.Extend(0.4, 1, 1)
	cold := parent.Extend(0.6, 0, 1)

	hotFactor, _ := hot.Factor(1)
	coldFactor, _ := cold.Factor(1)
	assert.Equal(t, 1.0, hotFactor.WeightWhenIncluded)
	assert.Equal(t, 0.0, coldFactor.WeightWhenIncluded)
	assert.NotEqual(t, hot.Weights(), cold.Weights())
}

func TestPathStateUnwoundSum(t *testing.T) {
	path := samplePath()
	for _, feature := range []int{2, 4, 0} {
		assert.InDelta(t, path.Unwind(feature).TotalWeight(), path.UnwoundSum(feature), 1e-12, "feature %d", feature)
	}
}

func TestPathStateRejectsInvalidFactors(t *testing.T) {
	path := NewPathState(3).Extend(1, 1, rootFeature)
	assert.Panics(t, func() { path.Extend(0.5, 0.5, 0) }, "partially included")
	assert.Panics(t, func() { path.Extend(0, 1, 0) }, "perfectly determining when excluded")
	assert.Panics(t, func() { path.Extend(0.5, 1, 0).Extend(0.5, 1, 0) }, "duplicate feature")
	assert.Panics(t, func() { path.Unwind(2) }, "feature not on path")
}
