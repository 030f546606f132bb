package main

import (
	"fmt"
	"math"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

//readNpy reads the content of an npy file
func readNpy(fileName string) (*mat.Dense, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}

	denseMat := &mat.Dense{}
	if err := r.Read(denseMat); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	return denseMat, nil
}

//writeNpy stores m as an npy file.
func writeNpy(fileName string, m *mat.Dense) error {
	dst, err := os.Create(fileName)
	if err != nil {
		return err
	}
	if err := npyio.Write(dst, m); err != nil {
		_ = dst.Close()
		return fmt.Errorf("%s: %w", fileName, err)
	}
	return dst.Close()
}

//rowsOf copies the rows of m into a slice of input vectors.
func rowsOf(m *mat.Dense) [][]float64 {
	h, _ := m.Dims()
	rows := make([][]float64, h)
	for p := range rows {
		rows[p] = mat.Row(nil, p, m)
	}
	return rows
}

//countsOf converts an inclusion matrix stored as floats into bootstrap counts.
func countsOf(m *mat.Dense) ([][]int, error) {
	h, w := m.Dims()
	counts := make([][]int, h)
	for j := range counts {
		counts[j] = make([]int, w)
		for i := range counts[j] {
			v := m.At(j, i)
			if v < 0 || v != math.Trunc(v) {
				return nil, fmt.Errorf("inclusion count (%d, %d) = %g is not a non-negative integer", j, i, v)
			}
			counts[j][i] = int(v)
		}
	}
	return counts, nil
}

//column packs a vector as an n x 1 matrix.
func column(values []float64) *mat.Dense {
	return mat.NewDense(len(values), 1, append([]float64(nil), values...))
}
