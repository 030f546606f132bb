package bfl

import (
	"fmt"

	mapset "github.com/deckarep/golang-set"
	"gonum.org/v1/gonum/mat"
)

//shapleyWalker carries the per-call state of a TreeSHAP traversal. phi is owned by the call;
//the path state is passed by value down the recursion.
type shapleyWalker struct {
	input []float64
	omit  mapset.Set
	phi   *mat.Dense
	dim   int
}

//Shapley computes exact Shapley attributions of the tree output for input. The result has one
//row per feature and one column per output dimension. Features listed in omitFeatures are
//marginalised over the training distribution instead of conditioned on the input; their rows
//are always zero.
func (tree *Tree) Shapley(input []float64, omitFeatures ...int) (*mat.Dense, error) {
	if err := tree.checkInput(input); err != nil {
		return nil, err
	}
	omit := mapset.NewThreadUnsafeSet()
	for _, f := range omitFeatures {
		if f < 0 || f >= tree.NumFeatures {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOmittedFeature, f, tree.NumFeatures)
		}
		omit.Add(f)
	}

	walker := &shapleyWalker{
		input: input,
		omit:  omit,
		phi:   mat.NewDense(tree.NumFeatures, tree.OutputDim, nil),
		dim:   tree.OutputDim,
	}
	path := NewPathState(tree.NumFeatures)
	if err := walker.visit(tree.Root, path, 1.0, 1.0, rootFeature, 1.0); err != nil {
		return nil, err
	}
	return walker.phi, nil
}

func (w *shapleyWalker) omitted(featureIndex int) bool {
	return featureIndex >= 0 && w.omit.Contains(featureIndex)
}

//visit accumulates scale times the attribution of the subtree rooted at node into phi.
//The parent's pending factor (zeroFraction, oneFraction, featureIndex) has not been applied
//to parentPath yet.
func (w *shapleyWalker) visit(
	node Node,
	parentPath PathState,
	zeroFraction, oneFraction float64,
	featureIndex int,
	scale float64,
) error {
	switch n := node.(type) {
	case *LeafNode:
		return w.leaf(n, parentPath, zeroFraction, oneFraction, featureIndex, scale)
	case *InternalNode:
		return w.internal(n, parentPath, zeroFraction, oneFraction, featureIndex, scale)
	default:
		return fmt.Errorf("%w: %T", ErrUnknownNode, node)
	}
}

func (w *shapleyWalker) leaf(
	node *LeafNode,
	parentPath PathState,
	zeroFraction, oneFraction float64,
	featureIndex int,
	scale float64,
) error {
	path := parentPath
	if !w.omitted(featureIndex) {
		path = parentPath.Extend(zeroFraction, oneFraction, featureIndex)
	}

	out := node.Model.Predict(w.input)
	if !out.Numeric() {
		return ErrNonNumericLeaf
	}
	if len(out.Values) != w.dim {
		return fmt.Errorf("%w: leaf has %d outputs, tree has %d", ErrShape, len(out.Values), w.dim)
	}

	for _, factor := range path.factors {
		if factor.FeatureIndex < 0 {
			continue
		}
		weight := path.UnwoundSum(factor.FeatureIndex) *
			(factor.WeightWhenIncluded - factor.WeightWhenExcluded) * scale
		for q, val := range out.Values {
			w.phi.Set(factor.FeatureIndex, q, w.phi.At(factor.FeatureIndex, q)+weight*val)
		}
	}
	return nil
}

func (w *shapleyWalker) internal(
	node *InternalNode,
	parentPath PathState,
	zeroFraction, oneFraction float64,
	featureIndex int,
	scale float64,
) error {
	hot, cold := node.children(w.input)
	hotShare := hot.TrainingWeight() / node.Weight
	coldShare := cold.TrainingWeight() / node.Weight
	splitFeature := node.Split.Feature()

	// An omitted split is averaged over both children by their training share.
	if w.omitted(splitFeature) {
		if err := w.visit(hot, parentPath, zeroFraction, oneFraction, featureIndex, scale*hotShare); err != nil {
			return err
		}
		return w.visit(cold, parentPath, zeroFraction, oneFraction, featureIndex, scale*coldShare)
	}

	path := parentPath.Extend(zeroFraction, oneFraction, featureIndex)

	incomingZero, incomingOne := 1.0, 1.0
	if earlier, ok := path.Factor(splitFeature); ok {
		incomingZero, incomingOne = earlier.WeightWhenExcluded, earlier.WeightWhenIncluded
		path = path.Unwind(splitFeature)
	}

	if err := w.visit(hot, path, hotShare*incomingZero, incomingOne, splitFeature, scale); err != nil {
		return err
	}
	return w.visit(cold, path, coldShare*incomingZero, 0, splitFeature, scale)
}
