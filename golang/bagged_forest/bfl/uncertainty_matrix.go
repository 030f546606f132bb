package bfl

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//InclusionMaps are the two linear maps derived from an inclusion matrix that turn a batch of
//member predictions into per-training-row variance scores with a handful of matrix products.
//Both maps are N x M.
type InclusionMaps struct {
	//ij[j][i] = (Nib[j][i] - nTot_i) / N: the infinitesimal-jackknife covariance weights.
	ij *mat.Dense
	//jab[j][i] = 1/k_i when member j left row i out of bag (k_i such members), 0 otherwise.
	jab *mat.Dense
	//oob[i] is true when at least one member left row i out of bag.
	oob          []bool
	members      int
	trainingRows int
}

//NewInclusionMaps derives the maps once; they can be reused for any number of prediction batches.
func NewInclusionMaps(nib [][]int) (*InclusionMaps, error) {
	if len(nib) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewMembers, len(nib))
	}
	m, err := validateNib(nib, len(nib))
	if err != nil {
		return nil, err
	}
	n := len(nib)
	maps := &InclusionMaps{
		ij:           mat.NewDense(n, m, nil),
		jab:          mat.NewDense(n, m, nil),
		oob:          make([]bool, m),
		members:      n,
		trainingRows: m,
	}
	for i := 0; i < m; i++ {
		nTot, oobCount := 0, 0
		for j := 0; j < n; j++ {
			nTot += nib[j][i]
			if nib[j][i] == 0 {
				oobCount++
			}
		}
		for j := 0; j < n; j++ {
			maps.ij.Set(j, i, float64(nib[j][i]-nTot)/float64(n))
			if nib[j][i] == 0 {
				maps.jab.Set(j, i, 1/float64(oobCount))
			}
		}
		maps.oob[i] = oobCount > 0
	}
	return maps, nil
}

//Scores computes the same quantities as RowScores for an N x R batch of member predictions.
//ctx is checked between the linear-algebra stages; on cancellation no partial result escapes.
func (maps *InclusionMaps) Scores(ctx context.Context, treePredictions *mat.Dense, expected []float64) (ScoreSet, error) {
	n, rows := treePredictions.Dims()
	if n != maps.members || len(expected) != rows {
		return ScoreSet{}, fmt.Errorf("%w: predictions %dx%d, %d expected values, %d members",
			ErrShape, n, rows, len(expected), maps.members)
	}

	// Stage 1: center member predictions on the ensemble mean and the bias term.
	centered := mat.NewDense(n, rows, nil)
	centered.Apply(func(_, p int, v float64) float64 { return v - expected[p] }, treePredictions)
	varT := make([]float64, rows)
	for p := 0; p < rows; p++ {
		col := mat.Col(nil, p, centered)
		varT[p] = mat.Dot(mat.NewVecDense(n, col), mat.NewVecDense(n, col)) / float64(n*n)
	}
	if err := ctx.Err(); err != nil {
		return ScoreSet{}, err
	}

	// Stage 2: infinitesimal-jackknife covariances, R x M.
	covariance := mat.NewDense(rows, maps.trainingRows, nil)
	covariance.Mul(centered.T(), maps.ij)
	if err := ctx.Err(); err != nil {
		return ScoreSet{}, err
	}

	// Stage 3: out-of-bag mean minus ensemble mean, R x M.
	oobShift := mat.NewDense(rows, maps.trainingRows, nil)
	oobShift.Mul(centered.T(), maps.jab)
	if err := ctx.Err(); err != nil {
		return ScoreSet{}, err
	}

	// Stage 4: combine into bias-corrected scores.
	m := float64(maps.trainingRows)
	scores := mat.NewDense(rows, maps.trainingRows, nil)
	scores.Apply(func(p, i int, c float64) float64 {
		varIJ := c * c
		if !maps.oob[i] {
			return varIJ - varT[p]
		}
		d := oobShift.At(p, i)
		varJ := d * d * (m - 1) / m
		return 0.5 * (varJ + varIJ - math.E*varT[p])
	}, covariance)

	return ScoreSet{Scores: scores, Covariance: covariance}, nil
}
