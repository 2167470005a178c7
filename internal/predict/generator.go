package predict

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"solodiary/domain/diary"
	"solodiary/domain/model"
)

// Point is one position on a predictive curve: the grid value of the
// within-person time predictor, the expected outcome, and its 95%
// credible bounds.
type Point struct {
	X     float64
	Fit   float64
	Lower float64
	Upper float64
}

// Curve is a population-level expected-outcome curve for one moderator
// setting.
type Curve struct {
	Label  string
	Points []Point
}

// Generate evaluates the fitted curve on the grid. All covariates other
// than the time predictor and the grid's moderator are held at zero (the
// centered reference level); random effects are marginalized out by using
// fixed-effect draws only. The quadratic term is recomputed as the square
// of each grid point, never read from a stored column.
func Generate(spec model.Spec, fit *model.FitResult, grid Grid) (Curve, error) {
	if fit.Posterior == nil {
		return Curve{}, fmt.Errorf("fit %s has no posterior draws", fit.Formula)
	}
	draws := fit.Posterior.Draws
	if len(draws) == 0 {
		return Curve{}, fmt.Errorf("fit %s has an empty posterior", fit.Formula)
	}

	timeW := diary.Within(diary.ColSolitudeTime)
	timeWSq := diary.WithinSq(diary.ColSolitudeTime)

	// Per-term evaluation at a grid value: product over the term's
	// columns, with non-grid covariates pinned at zero.
	termValue := func(term model.Term, x float64) float64 {
		v := 1.0
		for _, col := range term.Columns {
			switch col {
			case timeW:
				v *= x
			case timeWSq:
				v *= x * x
			case grid.Moderator:
				v *= grid.ModeratorValue
			default:
				return 0
			}
		}
		return v
	}

	points := make([]Point, len(grid.Values))
	sample := make([]float64, len(draws))
	for i, x := range grid.Values {
		for di, draw := range draws {
			y := draw[0] // intercept
			for ti, term := range spec.Fixed {
				tv := termValue(term, x)
				if tv != 0 {
					y += draw[ti+1] * tv
				}
			}
			sample[di] = y
		}

		mean, err := stats.Mean(sample)
		if err != nil {
			return Curve{}, err
		}
		lower, err := stats.Percentile(sample, 2.5)
		if err != nil {
			return Curve{}, err
		}
		upper, err := stats.Percentile(sample, 97.5)
		if err != nil {
			return Curve{}, err
		}
		points[i] = Point{X: x, Fit: mean, Lower: lower, Upper: upper}
	}

	return Curve{Label: grid.Label, Points: points}, nil
}
