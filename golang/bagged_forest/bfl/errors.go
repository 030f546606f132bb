package bfl

import "errors"

var (
	// ErrTooFewMembers is returned when a variance is requested from fewer than two ensemble members.
	ErrTooFewMembers = errors.New("bootstrap variance undefined for fewer than 2 ensemble members")

	// ErrNonNumericLeaf is returned when attribution reaches a leaf whose output is a label.
	ErrNonNumericLeaf = errors.New("shapley attribution requires a numeric leaf output")

	// ErrUnknownNode signals a node outside the closed {InternalNode, LeafNode} set.
	ErrUnknownNode = errors.New("tree traversal reached an unknown node variant")

	// ErrFeatureCount is returned for an input vector of the wrong length.
	ErrFeatureCount = errors.New("input has the wrong number of features")

	// ErrOmittedFeature is returned for an omitted feature index outside [0, numFeatures).
	ErrOmittedFeature = errors.New("omitted feature index out of range")

	// ErrShape is returned when predictions, inclusion counts or ground truth disagree in shape.
	ErrShape = errors.New("inconsistent shapes")
)
