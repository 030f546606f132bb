package bfl

import "fmt"

//ModelPrediction is one ensemble member's output for a batch of inputs. Exactly one of
//Expected (regression) and Labels (classification) is set. Gradient is optional and holds one
//vector per input.
type ModelPrediction struct {
	Expected []float64
	Labels   []int
	Gradient [][]float64
}

//Len is the number of inputs the prediction covers.
func (p ModelPrediction) Len() int {
	if p.Labels != nil {
		return len(p.Labels)
	}
	return len(p.Expected)
}

//IsClassification reports whether the member voted labels.
func (p ModelPrediction) IsClassification() bool {
	return p.Labels != nil
}

//validatePredictions checks that all members agree on task kind and batch size and returns
//that size.
func validatePredictions(predictions []ModelPrediction) (rows int, classification bool, err error) {
	if len(predictions) == 0 {
		return 0, false, fmt.Errorf("%w: no member predictions", ErrShape)
	}
	rows = predictions[0].Len()
	if rows == 0 {
		return 0, false, fmt.Errorf("%w: empty prediction batch", ErrShape)
	}
	classification = predictions[0].IsClassification()
	for j, p := range predictions {
		if p.IsClassification() != classification {
			return 0, false, fmt.Errorf("%w: member %d mixes regression and classification", ErrShape, j)
		}
		if p.Len() != rows {
			return 0, false, fmt.Errorf("%w: member %d has %d rows, want %d", ErrShape, j, p.Len(), rows)
		}
		if p.Gradient != nil && len(p.Gradient) != rows {
			return 0, false, fmt.Errorf("%w: member %d has %d gradients, want %d", ErrShape, j, len(p.Gradient), rows)
		}
	}
	return rows, classification, nil
}

//validateNib checks that the inclusion matrix has one row per member, a common width and no
//negative counts. It returns the number of training rows.
func validateNib(nib [][]int, members int) (int, error) {
	if len(nib) == 0 || len(nib) != members {
		return 0, fmt.Errorf("%w: inclusion matrix has %d rows, want %d members", ErrShape, len(nib), members)
	}
	width := len(nib[0])
	if width == 0 {
		return 0, fmt.Errorf("%w: inclusion matrix has no training rows", ErrShape)
	}
	for j, row := range nib {
		if len(row) != width {
			return 0, fmt.Errorf("%w: inclusion row %d has %d columns, want %d", ErrShape, j, len(row), width)
		}
		for i, n := range row {
			if n < 0 {
				return 0, fmt.Errorf("%w: negative inclusion count at (%d, %d)", ErrShape, j, i)
			}
		}
	}
	return width, nil
}
