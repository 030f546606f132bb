package bfl

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//Forest is a trained bagged ensemble: the member trees and the inclusion matrix recording how
//often each training row was drawn into each member's bootstrap sample. A Forest is read-only
//and safe for concurrent queries.
type Forest struct {
	Trees []*Tree
	Nib   [][]int
	opts  []Option
}

//NewForest checks that the trees agree on shape and that nib has one row per tree. nib may be
//nil for ensembles trained without resampling.
func NewForest(trees []*Tree, nib [][]int, opts ...Option) (*Forest, error) {
	if len(trees) == 0 {
		return nil, fmt.Errorf("%w: forest without trees", ErrShape)
	}
	first := trees[0]
	for t, tree := range trees {
		if tree.NumFeatures != first.NumFeatures || tree.OutputDim != first.OutputDim ||
			tree.Classification != first.Classification {
			return nil, fmt.Errorf("%w: tree %d disagrees with tree 0", ErrShape, t)
		}
	}
	if nib != nil {
		if _, err := validateNib(nib, len(trees)); err != nil {
			return nil, err
		}
	}
	return &Forest{Trees: trees, Nib: nib, opts: opts}, nil
}

//NumFeatures is the input width shared by all trees.
func (forest *Forest) NumFeatures() int { return forest.Trees[0].NumFeatures }

//OutputDim is the leaf output dimension shared by all trees.
func (forest *Forest) OutputDim() int { return forest.Trees[0].OutputDim }

func (forest *Forest) checkInputs(inputs [][]float64) error {
	if len(inputs) == 0 {
		return fmt.Errorf("%w: no inputs", ErrShape)
	}
	for p, input := range inputs {
		if len(input) != forest.NumFeatures() {
			return fmt.Errorf("row %d: %w: got %d, want %d", p, ErrFeatureCount, len(input), forest.NumFeatures())
		}
	}
	return nil
}

//Transform predicts the batch with every tree in parallel and aggregates the member
//predictions. Extra options override the forest's own.
func (forest *Forest) Transform(ctx context.Context, inputs [][]float64, opts ...Option) (*EnsembleResult, error) {
	if err := forest.checkInputs(inputs); err != nil {
		return nil, err
	}
	all := append(append([]Option{}, forest.opts...), opts...)
	o := newOptions(all)

	predictions := make([]ModelPrediction, len(forest.Trees))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for t, tree := range forest.Trees {
		t, tree := t, tree
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			prediction, err := tree.PredictBatch(inputs)
			if err != nil {
				return fmt.Errorf("tree %d: %w", t, err)
			}
			predictions[t] = prediction
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Aggregate(predictions, forest.Nib, all...)
}

//Shapley computes the forest's attributions as the mean of the per-tree attributions. The
//result is a rows x features x outputs tensor. Every (tree, row) pair is an independent task;
//the reduction runs after all tasks finished.
func (forest *Forest) Shapley(ctx context.Context, inputs [][]float64, omitFeatures ...int) (*tensor.Dense, error) {
	if err := forest.checkInputs(inputs); err != nil {
		return nil, err
	}
	numFeatures, outputDim := forest.NumFeatures(), forest.OutputDim()
	for _, f := range omitFeatures {
		if f < 0 || f >= numFeatures {
			return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOmittedFeature, f, numFeatures)
		}
	}
	o := newOptions(forest.opts)

	numTrees := len(forest.Trees)
	attributions := make([]*mat.Dense, len(inputs)*numTrees)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for p, input := range inputs {
		for t, tree := range forest.Trees {
			p, input, t, tree := p, input, t, tree
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				phi, err := tree.Shapley(input, omitFeatures...)
				if err != nil {
					return fmt.Errorf("tree %d, row %d: %w", t, p, err)
				}
				attributions[p*numTrees+t] = phi
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	backing := make([]float64, len(inputs)*numFeatures*outputDim)
	for p := range inputs {
		for t := 0; t < numTrees; t++ {
			phi := attributions[p*numTrees+t]
			for f := 0; f < numFeatures; f++ {
				for q := 0; q < outputDim; q++ {
					backing[(p*numFeatures+f)*outputDim+q] += phi.At(f, q) / float64(numTrees)
				}
			}
		}
	}
	return tensor.New(
		tensor.WithShape(len(inputs), numFeatures, outputDim),
		tensor.WithBacking(backing),
	), nil
}

//ExpectedValue is the mean over trees of each tree's empty-path value at input.
func (forest *Forest) ExpectedValue(input []float64) ([]float64, error) {
	expected := make([]float64, forest.OutputDim())
	for t, tree := range forest.Trees {
		value, err := tree.ExpectedValue(input)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", t, err)
		}
		for q, v := range value {
			expected[q] += v / float64(len(forest.Trees))
		}
	}
	return expected, nil
}
