package bfl

import "gonum.org/v1/gonum/mat"

//Node is a tree node. The set of implementations is closed: *InternalNode and *LeafNode.
type Node interface {
	TrainingWeight() float64
	sealed()
}

//InternalNode routes an input to Left or Right according to Split. Weight is the number of
//training rows that reached the node.
type InternalNode struct {
	Split       Split
	Left, Right Node
	Weight      float64
}

func (node *InternalNode) TrainingWeight() float64 { return node.Weight }
func (*InternalNode) sealed()                      {}

//children returns the child the input follows first and the other one second.
func (node *InternalNode) children(input []float64) (hot, cold Node) {
	if node.Split.TurnLeft(input) {
		return node.Left, node.Right
	}
	return node.Right, node.Left
}

//LeafNode holds a fitted sub-model and the number of training rows that reached it.
type LeafNode struct {
	Model  LeafModel
	Weight float64
}

func (node *LeafNode) TrainingWeight() float64 { return node.Weight }
func (*LeafNode) sealed()                      {}

//Shapley has nothing to attribute for a leaf queried outside a tree.
func (node *LeafNode) Shapley(_ []float64, _ ...int) (*mat.Dense, error) {
	return nil, nil
}
