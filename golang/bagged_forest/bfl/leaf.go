package bfl

import (
	"fmt"
	"strings"
)

//LeafPrediction is the output of a leaf sub-model for one input. Values is nil for label leaves.
type LeafPrediction struct {
	Values   []float64
	Label    int
	Gradient []float64
}

//Numeric reports whether the prediction carries numeric values usable for attribution.
func (p LeafPrediction) Numeric() bool {
	return p.Values != nil
}

//LeafModel is the fitted sub-model stored in a leaf.
type LeafModel interface {
	Predict(input []float64) LeafPrediction
	OutputDim() int
	Description() string
}

//ConstantLeaf predicts a fixed vector: a single mean for regression or per-class scores for
//classification-style outputs. Its label is the index of the largest value.
type ConstantLeaf struct {
	Values []float64
}

func (leaf ConstantLeaf) Predict(_ []float64) LeafPrediction {
	label := 0
	for ind, val := range leaf.Values {
		if val > leaf.Values[label] {
			label = ind
		}
	}
	return LeafPrediction{Values: leaf.Values, Label: label}
}

func (leaf ConstantLeaf) OutputDim() int { return len(leaf.Values) }

func (leaf ConstantLeaf) Description() string {
	var sb strings.Builder
	sb.WriteString("[")
	for _, val := range leaf.Values {
		sb.WriteString(fmt.Sprintf("  %6.2f,\n", val))
	}
	sb.WriteString("]")
	return sb.String()
}

//LabelLeaf votes for a single class label. It has no numeric output.
type LabelLeaf struct {
	Label int
}

func (leaf LabelLeaf) Predict(_ []float64) LeafPrediction {
	return LeafPrediction{Label: leaf.Label}
}

func (leaf LabelLeaf) OutputDim() int { return 1 }

func (leaf LabelLeaf) Description() string {
	return fmt.Sprintf("label %d", leaf.Label)
}

//LinearLeaf predicts Intercept + Coefficients·x and reports Coefficients as the gradient.
type LinearLeaf struct {
	Intercept    float64
	Coefficients []float64
}

func (leaf LinearLeaf) Predict(input []float64) LeafPrediction {
	s := leaf.Intercept
	for q, c := range leaf.Coefficients {
		s += c * input[q]
	}
	gradient := make([]float64, len(leaf.Coefficients))
	copy(gradient, leaf.Coefficients)
	return LeafPrediction{Values: []float64{s}, Gradient: gradient}
}

func (leaf LinearLeaf) OutputDim() int { return 1 }

func (leaf LinearLeaf) Description() string {
	return fmt.Sprintf("%6.2f + linear(%d)", leaf.Intercept, len(leaf.Coefficients))
}
