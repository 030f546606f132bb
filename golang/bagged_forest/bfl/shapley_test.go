package bfl

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func assertAdditive(t *testing.T, tree *Tree, input []float64) {
	t.Helper()
	phi, err := tree.Shapley(input)
	require.NoError(t, err)
	expected, err := tree.ExpectedValue(input)
	require.NoError(t, err)
	prediction, err := tree.Transform(input)
	require.NoError(t, err)

	for q := 0; q < tree.OutputDim; q++ {
		total := expected[q] + mat.Sum(phi.ColView(q))
		assert.InDelta(t, prediction.Leaf.Values[q], total, 1e-10, "output %d for input %v", q, input)
	}
}

func TestShapleyAdditivity(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	trees := map[string]*Tree{
		"repeated": GenerateRepeatedFeatureTree(t),
		"vector":   GenerateVectorTree(t),
		"linear":   GenerateLinearTree(t),
	}
	for name, tree := range trees {
		t.Run(name, func(t *testing.T) {
			for trial := 0; trial < 50; trial++ {
				input := randomInput(rng, tree.NumFeatures)
				if tree.NumFeatures == 4 {
					input[3] = float64(rng.Intn(3))
				}
				assertAdditive(t, tree, input)
			}
		})
	}
}

func TestShapleyMatchesCoalitionEnumeration(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cases := []struct {
		name string
		tree *Tree
		omit []int
	}{
		{"repeated", GenerateRepeatedFeatureTree(t), nil},
		{"repeated omit 0", GenerateRepeatedFeatureTree(t), []int{0}},
		{"vector omit 3", GenerateVectorTree(t), []int{3}},
		{"linear omit 1", GenerateLinearTree(t), []int{1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for trial := 0; trial < 20; trial++ {
				input := randomInput(rng, tc.tree.NumFeatures)
				if tc.tree.NumFeatures == 4 {
					input[3] = float64(rng.Intn(3))
				}
				phi, err := tc.tree.Shapley(input, tc.omit...)
				require.NoError(t, err)

				want := bruteForceShapley(tc.tree, input, tc.omit...)
				for f := range want {
					for q := range want[f] {
						assert.InDelta(t, want[f][q], phi.At(f, q), 1e-10, "feature %d output %d", f, q)
					}
				}
			}
		})
	}
}

func TestShapleyOmittedRowsAreZero(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	tree := GenerateRepeatedFeatureTree(t)
	for trial := 0; trial < 20; trial++ {
		input := randomInput(rng, 3)
		phi, err := tree.Shapley(input, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, 0.0, phi.At(0, 0))
		assert.Equal(t, 0.0, phi.At(2, 0))
	}
}

func TestShapleySingleSplit(t *testing.T) {
	tree, err := NewTree(split(0, 0.5, leaf(1, 4), leaf(1, 10)), 1)
	require.NoError(t, err)

	phi, err := tree.Shapley([]float64{0.1})
	require.NoError(t, err)
	assert.InDelta(t, -3.0, phi.At(0, 0), 1e-12)

	phi, err = tree.Shapley([]float64{0.9})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, phi.At(0, 0), 1e-12)
}

func TestShapleySingleLeafTree(t *testing.T) {
	tree, err := NewTree(leaf(3, 1.5), 2)
	require.NoError(t, err)

	phi, err := tree.Shapley([]float64{0.1, 0.2})
	require.NoError(t, err)
	r, c := phi.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 1, c)
	assert.Equal(t, 0.0, mat.Sum(phi))
}

func TestShapleyRejectsMalformedInput(t *testing.T) {
	tree := GenerateRepeatedFeatureTree(t)

	_, err := tree.Shapley([]float64{0.1, 0.2})
	assert.ErrorIs(t, err, ErrFeatureCount)

	_, err = tree.Shapley([]float64{0.1, 0.2, 0.3}, 3)
	assert.ErrorIs(t, err, ErrOmittedFeature)

	_, err = tree.Shapley([]float64{0.1, 0.2, 0.3}, -1)
	assert.ErrorIs(t, err, ErrOmittedFeature)
}

func TestShapleyRejectsLabelLeaves(t *testing.T) {
	root := split(0, 0.5,
		&LeafNode{Model: LabelLeaf{Label: 1}, Weight: 2},
		&LeafNode{Model: LabelLeaf{Label: 0}, Weight: 3},
	)
	tree, err := NewTree(root, 1)
	require.NoError(t, err)
	assert.True(t, tree.Classification)

	_, err = tree.Shapley([]float64{0.2})
	assert.ErrorIs(t, err, ErrNonNumericLeaf)
}

type foreignNode struct{ weight float64 }

func (n foreignNode) TrainingWeight() float64 { return n.weight }
func (foreignNode) sealed()                   {}

func TestShapleyUnknownNodeIsFatal(t *testing.T) {
	tree := &Tree{
		Root:        &InternalNode{Split: RealSplit{Index: 0, Threshold: 0.5}, Left: foreignNode{1}, Right: leaf(1, 2), Weight: 2},
		NumFeatures: 1,
		OutputDim:   1,
	}
	_, err := tree.Shapley([]float64{0.1})
	assert.ErrorIs(t, err, ErrUnknownNode)

	_, err = tree.Transform([]float64{0.1})
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestLeafShapleyOutsideTree(t *testing.T) {
	phi, err := leaf(1, 2.0).Shapley([]float64{0.3})
	assert.NoError(t, err)
	assert.Nil(t, phi)
}
