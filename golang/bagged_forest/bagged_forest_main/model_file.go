package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tarstars/bagged_uncertainty/golang/bagged_forest/bfl"
)

//TreeNodeRecord is a node of a stored tree. Trees are stored as arrays: LeftIndex and RightIndex
//are -1 for a leaf, otherwise they are array indices of the children. A leaf refers to an entry
//of LeafNodes through LeafIndex, which is -1 for an internal node.
type TreeNodeRecord struct {
	FeatureNumber   int     `json:"feature_number"`
	Threshold       float64 `json:"threshold"`
	LeftCategories  []int   `json:"left_categories,omitempty"`
	LeftIndex       int     `json:"left_index"`
	RightIndex      int     `json:"right_index"`
	LeafIndex       int     `json:"leaf_index"`
	NumberOfObjects float64 `json:"number_of_objects"`
}

//LeafRecord stores the sub-model of a leaf: a constant vector, a label vote or a linear model.
type LeafRecord struct {
	Prediction   []float64 `json:"prediction,omitempty"`
	Label        *int      `json:"label,omitempty"`
	Intercept    float64   `json:"intercept,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`
}

//TreeRecord describes one stored tree. TreeNodes[0] is the root.
type TreeRecord struct {
	TreeNodes []TreeNodeRecord `json:"tree_nodes"`
	LeafNodes []LeafRecord     `json:"leaf_nodes"`
}

//ModelRecord is the stored form of a bagged forest.
type ModelRecord struct {
	NumFeatures int          `json:"num_features"`
	Trees       []TreeRecord `json:"trees"`
	Nib         [][]int      `json:"nib,omitempty"`
}

func (record LeafRecord) model() (bfl.LeafModel, error) {
	switch {
	case record.Label != nil:
		return bfl.LabelLeaf{Label: *record.Label}, nil
	case record.Coefficients != nil:
		return bfl.LinearLeaf{Intercept: record.Intercept, Coefficients: record.Coefficients}, nil
	case record.Prediction != nil:
		return bfl.ConstantLeaf{Values: record.Prediction}, nil
	default:
		return nil, fmt.Errorf("leaf has neither prediction, label nor coefficients")
	}
}

//buildNode converts the array node at ind. depth bounds the recursion so that cyclic index
//references are reported instead of overflowing the stack.
func (record TreeRecord) buildNode(ind, depth int) (bfl.Node, error) {
	if ind < 0 || ind >= len(record.TreeNodes) {
		return nil, fmt.Errorf("node index %d outside [0, %d)", ind, len(record.TreeNodes))
	}
	if depth > len(record.TreeNodes) {
		return nil, fmt.Errorf("node %d: cyclic tree", ind)
	}
	node := record.TreeNodes[ind]

	if node.LeafIndex != -1 {
		if node.LeafIndex < 0 || node.LeafIndex >= len(record.LeafNodes) {
			return nil, fmt.Errorf("node %d: leaf index %d outside [0, %d)", ind, node.LeafIndex, len(record.LeafNodes))
		}
		model, err := record.LeafNodes[node.LeafIndex].model()
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", ind, err)
		}
		return &bfl.LeafNode{Model: model, Weight: node.NumberOfObjects}, nil
	}

	left, err := record.buildNode(node.LeftIndex, depth+1)
	if err != nil {
		return nil, err
	}
	right, err := record.buildNode(node.RightIndex, depth+1)
	if err != nil {
		return nil, err
	}

	var split bfl.Split = bfl.RealSplit{Index: node.FeatureNumber, Threshold: node.Threshold}
	if node.LeftCategories != nil {
		split = bfl.CategoricalSplit{Index: node.FeatureNumber, LeftCategories: node.LeftCategories}
	}
	return &bfl.InternalNode{Split: split, Left: left, Right: right, Weight: node.NumberOfObjects}, nil
}

//Forest converts the stored model into a validated forest.
func (record ModelRecord) Forest(opts ...bfl.Option) (*bfl.Forest, error) {
	trees := make([]*bfl.Tree, len(record.Trees))
	for t, treeRecord := range record.Trees {
		root, err := treeRecord.buildNode(0, 0)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", t, err)
		}
		trees[t], err = bfl.NewTree(root, record.NumFeatures)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", t, err)
		}
	}
	return bfl.NewForest(trees, record.Nib, opts...)
}

//LoadModel reads a stored forest from a JSON file.
func LoadModel(filename string, opts ...bfl.Option) (*bfl.Forest, error) {
	source, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer func() { _ = source.Close() }()

	var record ModelRecord
	decoder := json.NewDecoder(source)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&record); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return record.Forest(opts...)
}
