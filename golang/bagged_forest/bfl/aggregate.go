package bfl

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//memberMatrix packs regression predictions into an N x R matrix: one row per member.
func memberMatrix(predictions []ModelPrediction, rows int) *mat.Dense {
	treePredictions := mat.NewDense(len(predictions), rows, nil)
	for j, p := range predictions {
		treePredictions.SetRow(j, p.Expected)
	}
	return treePredictions
}

//ensembleMean is the arithmetic mean over members for every input row.
func ensembleMean(treePredictions *mat.Dense) []float64 {
	_, rows := treePredictions.Dims()
	expected := make([]float64, rows)
	for p := range expected {
		expected[p] = stat.Mean(mat.Col(nil, p, treePredictions), nil)
	}
	return expected
}

//plurality counts member votes for every input row and returns the winning label together with
//each label's vote fraction. Ties are broken uniformly at random among the tied labels.
func plurality(predictions []ModelPrediction, rows int, rng *rand.Rand) (labels []int, fractions []map[int]float64) {
	labels = make([]int, rows)
	fractions = make([]map[int]float64, rows)
	n := float64(len(predictions))

	for p := 0; p < rows; p++ {
		counts := make(map[int]int)
		for _, member := range predictions {
			counts[member.Labels[p]]++
		}

		best := 0
		var tied []int
		fractions[p] = make(map[int]float64, len(counts))
		for label, count := range counts {
			fractions[p][label] = float64(count) / n
			switch {
			case count > best:
				best = count
				tied = append(tied[:0], label)
			case count == best:
				tied = append(tied, label)
			}
		}
		sort.Ints(tied)
		if len(tied) == 1 {
			labels[p] = tied[0]
		} else {
			labels[p] = tied[rng.Intn(len(tied))]
		}
	}
	return labels, fractions
}

//meanGradient averages member gradients row by row. It returns nil unless every member
//supplied a gradient.
func meanGradient(predictions []ModelPrediction, rows int) [][]float64 {
	for _, p := range predictions {
		if p.Gradient == nil {
			return nil
		}
	}
	n := float64(len(predictions))
	gradient := make([][]float64, rows)
	for p := 0; p < rows; p++ {
		for _, member := range predictions {
			g := member.Gradient[p]
			if gradient[p] == nil {
				gradient[p] = make([]float64, len(g))
			}
			for q := range gradient[p] {
				if q < len(g) {
					gradient[p][q] += g[q] / n
				}
			}
		}
	}
	return gradient
}
