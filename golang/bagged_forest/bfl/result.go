package bfl

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

//EnsembleResult is the aggregated output of an ensemble for one batch of inputs together with
//everything needed to derive its uncertainty. It is never mutated after Aggregate returns;
//every accessor computes a fresh value.
type EnsembleResult struct {
	opts           Options
	nib            [][]int
	members        int
	rows           int
	classification bool

	treePredictions *mat.Dense
	expected        []float64
	labels          []int
	fractions       []map[int]float64
	gradient        [][]float64
}

//Aggregate combines member predictions and the inclusion matrix into an ensemble result.
//nib may be nil, which is treated as disabled bootstrap.
func Aggregate(predictions []ModelPrediction, nib [][]int, opts ...Option) (*EnsembleResult, error) {
	rows, classification, err := validatePredictions(predictions)
	if err != nil {
		return nil, err
	}
	if nib != nil {
		if _, err := validateNib(nib, len(predictions)); err != nil {
			return nil, err
		}
	}

	result := &EnsembleResult{
		opts:           newOptions(opts),
		nib:            nib,
		members:        len(predictions),
		rows:           rows,
		classification: classification,
		gradient:       meanGradient(predictions, rows),
	}
	if classification {
		result.labels, result.fractions = plurality(predictions, rows, result.opts.rng)
	} else {
		result.treePredictions = memberMatrix(predictions, rows)
		result.expected = ensembleMean(result.treePredictions)
	}
	return result, nil
}

//IsClassification reports whether the members voted labels.
func (r *EnsembleResult) IsClassification() bool { return r.classification }

//Len is the number of predictions in the batch.
func (r *EnsembleResult) Len() int { return r.rows }

//Expected returns the ensemble mean per input row; nil for classification.
func (r *EnsembleResult) Expected() []float64 {
	if r.expected == nil {
		return nil
	}
	out := make([]float64, len(r.expected))
	copy(out, r.expected)
	return out
}

//Labels returns the plurality label per input row; nil for regression.
func (r *EnsembleResult) Labels() []int {
	if r.labels == nil {
		return nil
	}
	out := make([]int, len(r.labels))
	copy(out, r.labels)
	return out
}

//VoteFractions maps every voted label to its share of member votes, per input row.
func (r *EnsembleResult) VoteFractions() []map[int]float64 {
	out := make([]map[int]float64, len(r.fractions))
	for p, fractions := range r.fractions {
		out[p] = make(map[int]float64, len(fractions))
		for label, f := range fractions {
			out[p][label] = f
		}
	}
	return out
}

//Probabilities lays the vote fractions out as an R x numClasses matrix whose rows sum to one.
func (r *EnsembleResult) Probabilities(numClasses int) (*mat.Dense, error) {
	if !r.classification {
		return nil, fmt.Errorf("class probabilities of a regression ensemble")
	}
	if r.rows == 0 || numClasses <= 0 {
		return nil, fmt.Errorf("%w: %d rows, %d classes", ErrShape, r.rows, numClasses)
	}
	probabilities := mat.NewDense(r.rows, numClasses, nil)
	for p, fractions := range r.fractions {
		for label, f := range fractions {
			if label < 0 || label >= numClasses {
				return nil, fmt.Errorf("%w: label %d outside [0, %d)", ErrShape, label, numClasses)
			}
			probabilities.Set(p, label, f)
		}
	}
	return probabilities, nil
}

//Gradient returns the mean member gradient per input row, or nil when a member had none.
func (r *EnsembleResult) Gradient() [][]float64 {
	if r.gradient == nil {
		return nil
	}
	out := make([][]float64, len(r.gradient))
	for p, g := range r.gradient {
		out[p] = append([]float64(nil), g...)
	}
	return out
}

func (r *EnsembleResult) bootstrapDisabled() bool {
	return r.opts.disableBootstrap || r.nib == nil
}

//observational is the rescaled Bessel-corrected standard deviation of member predictions.
func (r *EnsembleResult) observational() ([]float64, error) {
	if r.members < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewMembers, r.members)
	}
	std := make([]float64, r.rows)
	column := make([]float64, r.members)
	for p := range std {
		mat.Col(column, p, r.treePredictions)
		variance, err := TreeVariance(column, r.expected[p])
		if err != nil {
			return nil, err
		}
		std[p] = r.opts.rescale * math.Sqrt(variance)
	}
	return std, nil
}

//StdDevObs is the observational uncertainty: the spread of member predictions. It returns nil
//without error for classification and when bootstrap is disabled.
func (r *EnsembleResult) StdDevObs() ([]float64, error) {
	if r.classification || r.bootstrapDisabled() {
		return nil, nil
	}
	return r.observational()
}

//StdDevMean is the uncertainty of the ensemble mean from the bias-corrected jackknife
//estimators. Without bootstrap or jackknife it degenerates to the observational estimate.
func (r *EnsembleResult) StdDevMean(ctx context.Context) ([]float64, error) {
	if r.classification {
		return nil, nil
	}
	if r.members < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewMembers, r.members)
	}
	if r.bootstrapDisabled() || !r.opts.useJackknife {
		return r.observational()
	}

	set, err := r.scores(ctx)
	if err != nil {
		return nil, err
	}
	std := make([]float64, r.rows)
	for p := range std {
		variance, warning := RectifyEstimatedVariance(set.Scores.RawRowView(p))
		if warning != WarningNone {
			r.opts.observer.ObserveWarning(warning, p, variance)
		}
		std[p] = math.Sqrt(variance)
	}
	return std, nil
}

//ImportanceScores returns an R x M matrix of non-negative per-training-row contributions to
//each prediction's StdDevMean. It returns nil when the jackknife estimators are unavailable.
func (r *EnsembleResult) ImportanceScores(ctx context.Context) (*mat.Dense, error) {
	if r.classification || r.bootstrapDisabled() || !r.opts.useJackknife {
		return nil, nil
	}
	if r.members < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewMembers, r.members)
	}
	set, err := r.scores(ctx)
	if err != nil {
		return nil, err
	}
	rows, m := set.Scores.Dims()
	importance := mat.NewDense(rows, m, nil)
	for p := 0; p < rows; p++ {
		importance.SetRow(p, RectifyImportanceScores(set.Scores.RawRowView(p)))
	}
	return importance, nil
}

//InfluenceScores signs the importance scores: positive entries mark training rows that pull
//the prediction away from truth, negative entries rows that pull it toward truth.
func (r *EnsembleResult) InfluenceScores(ctx context.Context, truth []float64) (*mat.Dense, error) {
	if len(truth) != r.rows {
		return nil, fmt.Errorf("%w: %d truth values for %d predictions", ErrShape, len(truth), r.rows)
	}
	if r.classification || r.bootstrapDisabled() || !r.opts.useJackknife {
		return nil, nil
	}
	if r.members < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewMembers, r.members)
	}
	set, err := r.scores(ctx)
	if err != nil {
		return nil, err
	}
	rows, m := set.Scores.Dims()
	influence := mat.NewDense(rows, m, nil)
	for p := 0; p < rows; p++ {
		importance := RectifyImportanceScores(set.Scores.RawRowView(p))
		for i, score := range importance {
			influence.Set(p, i, score*influenceSign(set.Covariance.At(p, i), r.expected[p], truth[p]))
		}
	}
	return influence, nil
}

func (r *EnsembleResult) scores(ctx context.Context) (ScoreSet, error) {
	if !r.opts.batched {
		return RowScores(r.treePredictions, r.expected, r.nib), nil
	}
	maps, err := NewInclusionMaps(r.nib)
	if err != nil {
		return ScoreSet{}, err
	}
	return maps.Scores(ctx, r.treePredictions, r.expected)
}
