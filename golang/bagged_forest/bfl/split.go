package bfl

import (
	"fmt"
	"strings"
)

//Split is the predicate stored in an internal node. TurnLeft reports whether an input descends
//into the left child.
type Split interface {
	Feature() int
	TurnLeft(input []float64) bool
	Description() string
}

//RealSplit sends an input left when its feature value is strictly less than Threshold.
type RealSplit struct {
	Index     int
	Threshold float64
}

func (s RealSplit) Feature() int { return s.Index }

func (s RealSplit) TurnLeft(input []float64) bool {
	return input[s.Index] < s.Threshold
}

func (s RealSplit) Description() string {
	return fmt.Sprintf("f_%d < %6.5f", s.Index, s.Threshold)
}

//CategoricalSplit sends an input left when its feature value, read as an integer category,
//belongs to LeftCategories.
type CategoricalSplit struct {
	Index          int
	LeftCategories []int
}

func (s CategoricalSplit) Feature() int { return s.Index }

func (s CategoricalSplit) TurnLeft(input []float64) bool {
	category := int(input[s.Index])
	for _, c := range s.LeftCategories {
		if c == category {
			return true
		}
	}
	return false
}

func (s CategoricalSplit) Description() string {
	parts := make([]string, len(s.LeftCategories))
	for i, c := range s.LeftCategories {
		parts[i] = fmt.Sprint(c)
	}
	return fmt.Sprintf("f_%d in {%s}", s.Index, strings.Join(parts, ","))
}
