package bfl

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func GenerateForest(t *testing.T, opts ...Option) *Forest {
	t.Helper()
	trees := []*Tree{GenerateRepeatedFeatureTree(t), GenerateLinearTree(t), GenerateRepeatedFeatureTree(t)}
	nib := [][]int{{1, 0, 2, 1}, {0, 2, 1, 1}, {2, 1, 0, 1}}
	forest, err := NewForest(trees, nib, opts...)
	require.NoError(t, err)
	return forest
}

func TestForestTransform(t *testing.T) {
	forest := GenerateForest(t, Workers(2))
	rng := rand.New(rand.NewSource(9))
	inputs := [][]float64{randomInput(rng, 3), randomInput(rng, 3), randomInput(rng, 3)}

	result, err := forest.Transform(context.Background(), inputs)
	require.NoError(t, err)
	require.Equal(t, 3, result.Len())

	for p, input := range inputs {
		want := 0.0
		for _, tree := range forest.Trees {
			prediction, err := tree.Transform(input)
			require.NoError(t, err)
			want += prediction.Leaf.Values[0] / 3
		}
		assert.InDelta(t, want, result.Expected()[p], 1e-12)
	}

	mean, err := result.StdDevMean(context.Background())
	require.NoError(t, err)
	assert.Len(t, mean, 3)

	batched, err := forest.Transform(context.Background(), inputs, Batched(true))
	require.NoError(t, err)
	batchedMean, err := batched.StdDevMean(context.Background())
	require.NoError(t, err)
	assert.InDeltaSlice(t, mean, batchedMean, 1e-9)
}

func TestForestShapleyIsMeanOfTrees(t *testing.T) {
	forest := GenerateForest(t)
	rng := rand.New(rand.NewSource(13))
	inputs := [][]float64{randomInput(rng, 3), randomInput(rng, 3)}

	phi, err := forest.Shapley(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 1}, []int(phi.Shape()))

	for p, input := range inputs {
		want := mat.NewDense(3, 1, nil)
		for _, tree := range forest.Trees {
			treePhi, err := tree.Shapley(input)
			require.NoError(t, err)
			want.Add(want, treePhi)
		}
		want.Scale(1.0/3, want)

		total := 0.0
		for f := 0; f < 3; f++ {
			got, err := phi.At(p, f, 0)
			require.NoError(t, err)
			assert.InDelta(t, want.At(f, 0), got.(float64), 1e-12)
			total += got.(float64)
		}

		expected, err := forest.ExpectedValue(input)
		require.NoError(t, err)
		result, err := forest.Transform(context.Background(), [][]float64{input})
		require.NoError(t, err)
		assert.InDelta(t, result.Expected()[0], expected[0]+total, 1e-10)
	}
}

func TestForestShapleyOmission(t *testing.T) {
	forest := GenerateForest(t)
	phi, err := forest.Shapley(context.Background(), [][]float64{{0.3, 0.6, 0.9}}, 1)
	require.NoError(t, err)
	omitted, err := phi.At(0, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, omitted)
}

func TestForestCancellation(t *testing.T) {
	forest := GenerateForest(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := forest.Transform(ctx, [][]float64{{0.1, 0.2, 0.3}})
	assert.ErrorIs(t, err, context.Canceled)
	_, err = forest.Shapley(ctx, [][]float64{{0.1, 0.2, 0.3}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForestValidation(t *testing.T) {
	forest := GenerateForest(t)
	ctx := context.Background()

	_, err := forest.Transform(ctx, nil)
	assert.ErrorIs(t, err, ErrShape)
	_, err = forest.Transform(ctx, [][]float64{{0.1, 0.2}})
	assert.ErrorIs(t, err, ErrFeatureCount)
	_, err = forest.Shapley(ctx, [][]float64{{0.1, 0.2, 0.3}}, 3)
	assert.ErrorIs(t, err, ErrOmittedFeature)

	_, err = NewForest(nil, nil)
	assert.ErrorIs(t, err, ErrShape)
	_, err = NewForest([]*Tree{GenerateRepeatedFeatureTree(t), GenerateVectorTree(t)}, nil)
	assert.ErrorIs(t, err, ErrShape)
	_, err = NewForest([]*Tree{GenerateRepeatedFeatureTree(t)}, [][]int{{1}, {2}})
	assert.ErrorIs(t, err, ErrShape)
}

func TestForestClassificationVotes(t *testing.T) {
	vector := GenerateVectorTree(t)
	forest, err := NewForest([]*Tree{vector, vector, vector}, nil)
	require.NoError(t, err)

	result, err := forest.Transform(context.Background(), [][]float64{{0.1, 0, 0, 2}, {0, 0.2, 0, 1}})
	require.NoError(t, err)
	assert.True(t, result.IsClassification())
	assert.Equal(t, []int{0, 1}, result.Labels())

	probabilities, err := result.Probabilities(2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, probabilities.At(1, 1))
}
