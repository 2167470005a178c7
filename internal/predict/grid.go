// Package predict generates model-implied outcome curves over the
// within-person solitude-time range, with credible intervals from the
// posterior draws of a Bayesian fit.
package predict

import (
	"fmt"
	"math"

	"solodiary/domain/core"
	"solodiary/domain/diary"
)

// GridPoints is the resolution of every predictive curve.
const GridPoints = 101

// Grid is a set of evenly spaced values of the within-person time
// predictor, plus the moderator setting the curve is evaluated at.
type Grid struct {
	Values         []float64
	Moderator      core.VariableKey // empty when no moderator
	ModeratorValue float64
	Label          string
}

// BuildGrid spans the observed range of the within-person solitude-time
// column with GridPoints evenly spaced values. One builder serves every
// research question; the moderator is an optional override.
func BuildGrid(table *diary.Table, moderator core.VariableKey, moderatorValue float64, label string) (Grid, error) {
	col, err := table.Column(diary.Within(diary.ColSolitudeTime))
	if err != nil {
		return Grid{}, err
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range col {
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo > hi {
		return Grid{}, fmt.Errorf("%w: no observed within-person solitude time", core.ErrInsufficientData)
	}

	values := make([]float64, GridPoints)
	step := (hi - lo) / float64(GridPoints-1)
	for i := range values {
		values[i] = lo + float64(i)*step
	}

	return Grid{
		Values:         values,
		Moderator:      moderator,
		ModeratorValue: moderatorValue,
		Label:          label,
	}, nil
}

// ModeratorLevels returns the -1 SD and +1 SD values of a moderator
// column, ignoring missing entries.
func ModeratorLevels(table *diary.Table, moderator core.VariableKey) (low, high float64, err error) {
	col, err := table.Column(moderator)
	if err != nil {
		return 0, 0, err
	}

	sum, n := 0.0, 0
	for _, v := range col {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n < 2 {
		return 0, 0, fmt.Errorf("%w: moderator %s", core.ErrInsufficientData, moderator)
	}
	mean := sum / float64(n)
	ss := 0.0
	for _, v := range col {
		if !math.IsNaN(v) {
			ss += (v - mean) * (v - mean)
		}
	}
	sd := math.Sqrt(ss / float64(n-1))
	return mean - sd, mean + sd, nil
}
