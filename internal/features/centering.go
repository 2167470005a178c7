package features

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"solodiary/domain/core"
)

// GrandMeanCenter subtracts the overall sample mean, ignoring missing
// entries. Returns the centered values and the mean that was removed.
func GrandMeanCenter(values []float64) ([]float64, float64, error) {
	observed := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			observed = append(observed, v)
		}
	}
	mean, err := stats.Mean(observed)
	if err != nil {
		return nil, 0, fmt.Errorf("grand-mean centering: %w", err)
	}

	centered := make([]float64, len(values))
	for i, v := range values {
		centered[i] = v - mean // NaN propagates
	}
	return centered, mean, nil
}

// SplitBetweenWithin decomposes a centered column into a between-person
// component (the subject's own mean, constant across that subject's rows)
// and a within-person component (the daily deviation from it). Subject
// means ignore missing entries; a missing value yields a missing within
// component but still carries the subject's between component.
func SplitBetweenWithin(centered []float64, subjectRows map[core.SubjectID][]int) (between, within []float64) {
	between = make([]float64, len(centered))
	within = make([]float64, len(centered))
	for i := range between {
		between[i] = math.NaN()
		within[i] = math.NaN()
	}

	for _, idx := range subjectRows {
		sum, n := 0.0, 0
		for _, i := range idx {
			if !math.IsNaN(centered[i]) {
				sum += centered[i]
				n++
			}
		}
		subjectMean := math.NaN()
		if n > 0 {
			subjectMean = sum / float64(n)
		}
		for _, i := range idx {
			between[i] = subjectMean
			within[i] = centered[i] - subjectMean
		}
	}
	return between, within
}

// Square squares each value elementwise. Applied to the between and within
// components separately, never to the raw value: centering first and then
// squaring keeps the quadratic decomposition aligned with the linear one.
func Square(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * v
	}
	return out
}
