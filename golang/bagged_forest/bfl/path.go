package bfl

import "fmt"

//rootFeature marks the sentinel factor every traversal branch starts with.
const rootFeature = -1

//FeatureWeightFactor records how a feature conditions a traversal branch: the share of path mass
//kept when the feature is unknown and when it is known.
type FeatureWeightFactor struct {
	FeatureIndex       int
	WeightWhenExcluded float64
	WeightWhenIncluded float64
}

//PathState is the combinatorial bookkeeping of one branch of a TreeSHAP traversal.
//weights[k] is the permutation-weighted path mass of subsets with k known features.
//
//PathState has value semantics: Extend and Unwind return modified copies and never touch the
//receiver, so sibling branches can start from the same parent state.
type PathState struct {
	factors []FeatureWeightFactor
	weights []float64
}

//NewPathState creates an empty path able to hold numFeatures features plus the root sentinel.
func NewPathState(numFeatures int) PathState {
	return PathState{
		factors: make([]FeatureWeightFactor, 0, numFeatures+2),
		weights: make([]float64, numFeatures+2),
	}
}

//Size is the number of non-root features on the path.
func (p PathState) Size() int {
	return len(p.factors) - 1
}

//Factors returns a copy of the factors in path order.
func (p PathState) Factors() []FeatureWeightFactor {
	out := make([]FeatureWeightFactor, len(p.factors))
	copy(out, p.factors)
	return out
}

//Weights returns a copy of the path mass by subset size.
func (p PathState) Weights() []float64 {
	out := make([]float64, len(p.weights))
	copy(out, p.weights)
	return out
}

func (p PathState) clone() PathState {
	factors := make([]FeatureWeightFactor, len(p.factors), cap(p.factors))
	copy(factors, p.factors)
	weights := make([]float64, len(p.weights))
	copy(weights, p.weights)
	return PathState{factors: factors, weights: weights}
}

func (p PathState) index(featureIndex int) int {
	for k, f := range p.factors {
		if f.FeatureIndex == featureIndex {
			return k
		}
	}
	return -1
}

//Contains reports whether the feature already conditions the path.
func (p PathState) Contains(featureIndex int) bool {
	return p.index(featureIndex) >= 0
}

//Factor returns the factor stored for the feature.
func (p PathState) Factor(featureIndex int) (FeatureWeightFactor, bool) {
	k := p.index(featureIndex)
	if k < 0 {
		return FeatureWeightFactor{}, false
	}
	return p.factors[k], true
}

//TotalWeight is the sum of the path mass over subset sizes 0..Size().
func (p PathState) TotalWeight() float64 {
	total := 0.0
	for i := 0; i < len(p.factors); i++ {
		total += p.weights[i]
	}
	return total
}

//Extend appends a conditioning feature (or the root sentinel for a negative index) and
//redistributes the path mass over subset sizes.
func (p PathState) Extend(weightExcluded, weightIncluded float64, featureIndex int) PathState {
	if weightIncluded != 0 && weightIncluded != 1 {
		panic(fmt.Sprintf("weight when included must be 0 or 1, got %g", weightIncluded))
	}
	if featureIndex >= 0 && (weightExcluded <= 0 || weightExcluded > 1) {
		panic(fmt.Sprintf("weight when excluded must be in (0, 1], got %g", weightExcluded))
	}
	if p.Contains(featureIndex) {
		panic(fmt.Sprintf("feature %d is already on the path", featureIndex))
	}
	if len(p.factors) >= len(p.weights) {
		panic(fmt.Sprintf("path capacity %d exceeded", len(p.weights)))
	}

	next := p.clone()
	next.factors = append(next.factors, FeatureWeightFactor{featureIndex, weightExcluded, weightIncluded})
	size := next.Size()
	w := next.weights
	if size == 0 {
		w[0] = 1
	} else {
		w[size] = 0
	}
	for i := size - 1; i >= 0; i-- {
		w[i+1] += weightIncluded * w[i] * float64(i+1) / float64(size+1)
		w[i] = weightExcluded * w[i] * float64(size-i) / float64(size+1)
	}
	return next
}

//Unwind returns a copy of the path with the feature's contribution algebraically removed.
func (p PathState) Unwind(featureIndex int) PathState {
	k := p.index(featureIndex)
	if k < 0 {
		panic(fmt.Sprintf("feature %d is not on the path", featureIndex))
	}
	next := p.clone()
	factor := next.factors[k]
	size := next.Size()
	w := next.weights

	nextOnePortion := w[size]
	for i := size - 1; i >= 0; i-- {
		if factor.WeightWhenIncluded != 0 {
			tmp := w[i]
			w[i] = nextOnePortion * float64(size+1) / (float64(i+1) * factor.WeightWhenIncluded)
			nextOnePortion = tmp - w[i]*factor.WeightWhenExcluded*float64(size-i)/float64(size+1)
		} else {
			w[i] = w[i] * float64(size+1) / (factor.WeightWhenExcluded * float64(size-i))
		}
	}
	w[size] = 0
	next.factors = append(next.factors[:k], next.factors[k+1:]...)
	return next
}

//UnwoundSum equals Unwind(featureIndex).TotalWeight() without allocating the unwound copy.
func (p PathState) UnwoundSum(featureIndex int) float64 {
	k := p.index(featureIndex)
	if k < 0 {
		panic(fmt.Sprintf("feature %d is not on the path", featureIndex))
	}
	factor := p.factors[k]
	size := p.Size()
	w := p.weights

	total := 0.0
	nextOnePortion := w[size]
	for i := size - 1; i >= 0; i-- {
		if factor.WeightWhenIncluded != 0 {
			tmp := nextOnePortion * float64(size+1) / (float64(i+1) * factor.WeightWhenIncluded)
			total += tmp
			nextOnePortion = w[i] - tmp*factor.WeightWhenExcluded*float64(size-i)/float64(size+1)
		} else {
			total += w[i] * float64(size+1) / (factor.WeightWhenExcluded * float64(size-i))
		}
	}
	return total
}
