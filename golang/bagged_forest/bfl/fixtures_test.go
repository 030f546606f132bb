package bfl

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func leaf(weight float64, values ...float64) *LeafNode {
	return &LeafNode{Model: ConstantLeaf{Values: values}, Weight: weight}
}

func split(feature int, threshold float64, left, right Node) *InternalNode {
	return &InternalNode{
		Split:  RealSplit{Index: feature, Threshold: threshold},
		Left:   left,
		Right:  right,
		Weight: left.TrainingWeight() + right.TrainingWeight(),
	}
}

//GenerateRepeatedFeatureTree splits on feature 0 twice along one branch.
func GenerateRepeatedFeatureTree(t *testing.T) *Tree {
	t.Helper()
	root := split(0, 0.5,
		split(1, 0.3,
			leaf(10, 1.0),
			split(0, 0.2, leaf(5, 2.0), leaf(7, 3.5)),
		),
		split(2, 0.7,
			leaf(8, -1.0),
			split(1, 0.9, leaf(4, 4.0), leaf(6, 0.5)),
		),
	)
	tree, err := NewTree(root, 3)
	require.NoError(t, err)
	return tree
}

//GenerateVectorTree has two-dimensional leaves and a categorical split.
func GenerateVectorTree(t *testing.T) *Tree {
	t.Helper()
	root := &InternalNode{
		Split: CategoricalSplit{Index: 3, LeftCategories: []int{0, 2}},
		Left: split(0, 0.4,
			leaf(3, 0.9, 0.1),
			split(2, 0.6, leaf(2, 0.2, 0.8), leaf(4, 0.5, 0.5)),
		),
		Right:  split(1, 0.5, leaf(6, 0.3, 0.7), leaf(5, 0.6, 0.4)),
		Weight: 20,
	}
	tree, err := NewTree(root, 4)
	require.NoError(t, err)
	return tree
}

//GenerateLinearTree has input-dependent linear leaves.
func GenerateLinearTree(t *testing.T) *Tree {
	t.Helper()
	root := &InternalNode{
		Split: RealSplit{Index: 1, Threshold: 0.5},
		Left:  &LeafNode{Model: LinearLeaf{Intercept: 1, Coefficients: []float64{2, 0, -1}}, Weight: 9},
		Right: split(0, 0.25,
			&LeafNode{Model: LinearLeaf{Intercept: -2, Coefficients: []float64{0, 1, 1}}, Weight: 3},
			&LeafNode{Model: LinearLeaf{Intercept: 0.5, Coefficients: []float64{1, 1, 0}}, Weight: 4},
		),
		Weight: 16,
	}
	tree, err := NewTree(root, 3)
	require.NoError(t, err)
	return tree
}

func randomInput(rng *rand.Rand, numFeatures int) []float64 {
	input := make([]float64, numFeatures)
	for q := range input {
		input[q] = rng.Float64()
	}
	return input
}

//conditionalExpectation is the tree output when only the features in known are fixed to the
//input; unknown splits are averaged by training weight.
func conditionalExpectation(node Node, input []float64, known map[int]bool) []float64 {
	switch n := node.(type) {
	case *LeafNode:
		return n.Model.Predict(input).Values
	case *InternalNode:
		if known[n.Split.Feature()] {
			hot, _ := n.children(input)
			return conditionalExpectation(hot, input, known)
		}
		left := conditionalExpectation(n.Left, input, known)
		right := conditionalExpectation(n.Right, input, known)
		out := make([]float64, len(left))
		for q := range out {
			out[q] = (left[q]*n.Left.TrainingWeight() + right[q]*n.Right.TrainingWeight()) / n.Weight
		}
		return out
	}
	panic("unknown node")
}

func factorial(n int) float64 {
	f := 1.0
	for i := 2; i <= n; i++ {
		f *= float64(i)
	}
	return f
}

//bruteForceShapley enumerates every coalition. Omitted features are never fixed.
func bruteForceShapley(tree *Tree, input []float64, omit ...int) [][]float64 {
	numFeatures := tree.NumFeatures
	omitted := map[int]bool{}
	for _, f := range omit {
		omitted[f] = true
	}
	value := func(mask int) []float64 {
		known := map[int]bool{}
		for f := 0; f < numFeatures; f++ {
			if mask&(1<<f) != 0 && !omitted[f] {
				known[f] = true
			}
		}
		return conditionalExpectation(tree.Root, input, known)
	}

	phi := make([][]float64, numFeatures)
	for f := 0; f < numFeatures; f++ {
		phi[f] = make([]float64, tree.OutputDim)
		for mask := 0; mask < 1<<numFeatures; mask++ {
			if mask&(1<<f) != 0 {
				continue
			}
			size := 0
			for g := 0; g < numFeatures; g++ {
				if mask&(1<<g) != 0 {
					size++
				}
			}
			weight := factorial(size) * factorial(numFeatures-size-1) / factorial(numFeatures)
			with, without := value(mask|(1<<f)), value(mask)
			for q := range phi[f] {
				phi[f][q] += weight * (with[q] - without[q])
			}
		}
	}
	return phi
}

//generateEnsemble builds N regression members over rows inputs with a random bootstrap matrix
//over m training rows.
func generateEnsemble(rng *rand.Rand, n, rows, m int) ([]ModelPrediction, [][]int) {
	predictions := make([]ModelPrediction, n)
	nib := make([][]int, n)
	for j := range predictions {
		expected := make([]float64, rows)
		for p := range expected {
			expected[p] = float64(p) + rng.NormFloat64()
		}
		predictions[j] = ModelPrediction{Expected: expected}

		nib[j] = make([]int, m)
		for draw := 0; draw < m; draw++ {
			nib[j][rng.Intn(m)]++
		}
	}
	return predictions, nib
}
