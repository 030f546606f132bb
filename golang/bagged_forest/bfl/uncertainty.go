package bfl

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//TreeVariance is the Bessel-corrected sample variance of member predictions around expected.
func TreeVariance(treePredictions []float64, expected float64) (float64, error) {
	n := len(treePredictions)
	if n < 2 {
		return 0, fmt.Errorf("%w: got %d", ErrTooFewMembers, n)
	}
	return stat.MomentAbout(2, treePredictions, expected, nil) * float64(n) / float64(n-1), nil
}

//VarianceContribution is one training row's bias-corrected contribution to the variance of the
//ensemble mean. vecN holds the row's bootstrap counts per member, numTrainingRows is the width
//of the inclusion matrix. The infinitesimal-jackknife covariance is returned alongside the score.
//
//With an out-of-bag member the score averages the jackknife-after-bootstrap and the
//infinitesimal-jackknife estimates, corrected by e times the Monte Carlo bias term; otherwise
//only the infinitesimal jackknife is used.
func VarianceContribution(vecN []int, treePredictions []float64, expected float64, numTrainingRows int) (score, covariance float64) {
	n := len(treePredictions)
	nTot := 0
	for _, count := range vecN {
		nTot += count
	}

	oobSum, oobCount := 0.0, 0
	for j, count := range vecN {
		covariance += float64(count-nTot) * (treePredictions[j] - expected)
		if count == 0 {
			oobSum += treePredictions[j]
			oobCount++
		}
	}
	covariance /= float64(n)
	varIJ := covariance * covariance

	// Bessel-corrected variance times (N-1)/N^2.
	varT := stat.MomentAbout(2, treePredictions, expected, nil) / float64(n)

	if oobCount == 0 {
		return varIJ - varT, covariance
	}
	tNotMean := oobSum / float64(oobCount)
	m := float64(numTrainingRows)
	varJ := (tNotMean - expected) * (tNotMean - expected) * (m - 1) / m
	return 0.5 * (varJ + varIJ - math.E*varT), covariance
}

//ScoreSet holds raw per-row variance scores and infinitesimal-jackknife covariances,
//both R x M: one row per prediction, one column per training row.
type ScoreSet struct {
	Scores     *mat.Dense
	Covariance *mat.Dense
}

//RowScores evaluates VarianceContribution for every prediction and training row.
//treePredictions is N x R (one row per member).
func RowScores(treePredictions *mat.Dense, expected []float64, nib [][]int) ScoreSet {
	n, rows := treePredictions.Dims()
	m := len(nib[0])
	set := ScoreSet{
		Scores:     mat.NewDense(rows, m, nil),
		Covariance: mat.NewDense(rows, m, nil),
	}

	vecN := make([]int, n)
	column := make([]float64, n)
	for p := 0; p < rows; p++ {
		mat.Col(column, p, treePredictions)
		for i := 0; i < m; i++ {
			for j := 0; j < n; j++ {
				vecN[j] = nib[j][i]
			}
			score, covariance := VarianceContribution(vecN, column, expected[p], m)
			set.Scores.Set(p, i, score)
			set.Covariance.Set(p, i, covariance)
		}
	}
	return set
}

//influenceSign is +1 when the training row pulls the prediction away from the truth and -1
//when it pulls toward it.
func influenceSign(covariance, expected, truth float64) float64 {
	return sign(covariance) * sign(expected-truth)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
