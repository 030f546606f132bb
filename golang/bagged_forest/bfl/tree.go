package bfl

import (
	"fmt"
	"math"
)

//weightTolerance bounds the relative mismatch between a parent's weight and its children's sum.
const weightTolerance = 1e-9

//Tree is one trained ensemble member. It is read-only after NewTree and may be shared between
//goroutines.
type Tree struct {
	Root           Node
	NumFeatures    int
	OutputDim      int
	Classification bool
}

//TreePrediction is the result of descending a tree for one input.
type TreePrediction struct {
	Leaf  LeafPrediction
	Depth int
}

//NewTree validates the node structure and infers the output dimension and the task kind.
//A tree whose leaves vote labels or produce more than one value is a classification tree.
func NewTree(root Node, numFeatures int) (*Tree, error) {
	tree := &Tree{Root: root, NumFeatures: numFeatures}
	dims := map[int]bool{}
	labels := false
	err := walk(root, 0, func(node Node, _ int) error {
		switch n := node.(type) {
		case *InternalNode:
			if n.Split == nil || n.Left == nil || n.Right == nil {
				return fmt.Errorf("internal node without split or children")
			}
			if f := n.Split.Feature(); f < 0 || f >= numFeatures {
				return fmt.Errorf("split feature %d outside [0, %d)", f, numFeatures)
			}
			sum := n.Left.TrainingWeight() + n.Right.TrainingWeight()
			if math.Abs(sum-n.Weight) > weightTolerance*math.Max(1, n.Weight) {
				return fmt.Errorf("node weight %g differs from children sum %g", n.Weight, sum)
			}
		case *LeafNode:
			if n.Model == nil {
				return fmt.Errorf("leaf without model")
			}
			if n.Model.OutputDim() < 1 {
				return fmt.Errorf("%w: leaf has no outputs", ErrShape)
			}
			switch m := n.Model.(type) {
			case LabelLeaf:
				labels = true
			case LinearLeaf:
				if len(m.Coefficients) > numFeatures {
					return fmt.Errorf("%w: linear leaf has %d coefficients, input has %d features",
						ErrShape, len(m.Coefficients), numFeatures)
				}
			}
			dims[n.Model.OutputDim()] = true
		}
		if node.TrainingWeight() <= 0 {
			return fmt.Errorf("node training weight %g must be positive", node.TrainingWeight())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("leaves disagree on output dimension: %v", dims)
	}
	for d := range dims {
		tree.OutputDim = d
	}
	tree.Classification = labels || tree.OutputDim > 1
	return tree, nil
}

//walk visits every node depth-first, parents before children.
func walk(node Node, depth int, visit func(Node, int) error) error {
	switch n := node.(type) {
	case *InternalNode:
		if err := visit(n, depth); err != nil {
			return err
		}
		if n.Left == nil || n.Right == nil {
			return nil
		}
		if err := walk(n.Left, depth+1, visit); err != nil {
			return err
		}
		return walk(n.Right, depth+1, visit)
	case *LeafNode:
		return visit(n, depth)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownNode, node)
	}
}

func (tree *Tree) checkInput(input []float64) error {
	if len(input) != tree.NumFeatures {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(input), tree.NumFeatures)
	}
	return nil
}

//Transform descends the split predicates until a leaf and returns the leaf prediction together
//with the depth at which it was found.
func (tree *Tree) Transform(input []float64) (TreePrediction, error) {
	if err := tree.checkInput(input); err != nil {
		return TreePrediction{}, err
	}
	node := tree.Root
	depth := 0
	for {
		switch n := node.(type) {
		case *InternalNode:
			if n.Split.TurnLeft(input) {
				node = n.Left
			} else {
				node = n.Right
			}
			depth++
		case *LeafNode:
			return TreePrediction{Leaf: n.Model.Predict(input), Depth: depth}, nil
		default:
			return TreePrediction{}, fmt.Errorf("%w: %T", ErrUnknownNode, node)
		}
	}
}

//PredictBatch runs Transform over a batch and packs the results as one member prediction:
//labels for classification trees, the first output value otherwise.
func (tree *Tree) PredictBatch(inputs [][]float64) (ModelPrediction, error) {
	var prediction ModelPrediction
	if tree.Classification {
		prediction.Labels = make([]int, len(inputs))
	} else {
		prediction.Expected = make([]float64, len(inputs))
	}
	gradients := make([][]float64, len(inputs))
	hasGradient := true

	for p, input := range inputs {
		result, err := tree.Transform(input)
		if err != nil {
			return ModelPrediction{}, fmt.Errorf("row %d: %w", p, err)
		}
		if tree.Classification {
			prediction.Labels[p] = result.Leaf.Label
		} else {
			prediction.Expected[p] = result.Leaf.Values[0]
		}
		gradients[p] = result.Leaf.Gradient
		hasGradient = hasGradient && result.Leaf.Gradient != nil
	}
	if hasGradient && len(inputs) > 0 {
		prediction.Gradient = gradients
	}
	return prediction, nil
}

//ExpectedValue is the training-weighted mean of the leaf outputs evaluated at input, i.e. the
//tree's output when no feature is known.
func (tree *Tree) ExpectedValue(input []float64) ([]float64, error) {
	if err := tree.checkInput(input); err != nil {
		return nil, err
	}
	total := tree.Root.TrainingWeight()
	expected := make([]float64, tree.OutputDim)
	err := walk(tree.Root, 0, func(node Node, _ int) error {
		leaf, ok := node.(*LeafNode)
		if !ok {
			return nil
		}
		out := leaf.Model.Predict(input)
		if !out.Numeric() {
			return ErrNonNumericLeaf
		}
		for q, val := range out.Values {
			expected[q] += val * leaf.Weight / total
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expected, nil
}

//MaxDepth returns the depth of the deepest leaf.
func (tree *Tree) MaxDepth() int {
	maxDepth := 0
	_ = walk(tree.Root, 0, func(_ Node, depth int) error {
		if depth > maxDepth {
			maxDepth = depth
		}
		return nil
	})
	return maxDepth
}
