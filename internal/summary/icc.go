package summary

import (
	"fmt"

	"gonum.org/v1/gonum/stat/distuv"

	"solodiary/domain/model"
)

// ICC is the intraclass correlation of an unconditional model: the share
// of outcome variance attributable to stable between-subject differences.
type ICC struct {
	Value float64
	Lower float64
	Upper float64
}

// ICCFromFit derives the intraclass correlation and its 95% confidence
// interval from an intercept-only fit. The interval uses the one-way
// random-effects F bounds with the average cluster size.
func ICCFromFit(fit *model.FitResult) (ICC, error) {
	between, ok := fit.RandomVariances["(Intercept)"]
	if !ok {
		return ICC{}, fmt.Errorf("fit %s has no random intercept variance", fit.Formula)
	}
	residual := fit.ResidualVariance
	total := between + residual
	if total <= 0 {
		return ICC{}, fmt.Errorf("fit %s has non-positive total variance", fit.Formula)
	}
	value := between / total

	if fit.NSubjects < 2 || fit.NObs <= fit.NSubjects {
		return ICC{Value: value, Lower: 0, Upper: 1}, nil
	}

	n0 := float64(fit.NObs) / float64(fit.NSubjects)
	fObs := 1 + n0*between/residual
	df1 := float64(fit.NSubjects - 1)
	df2 := float64(fit.NObs - fit.NSubjects)

	fUpperQ := distuv.F{D1: df1, D2: df2}.Quantile(0.975)
	fLowerQ := distuv.F{D1: df2, D2: df1}.Quantile(0.975)

	fl := fObs / fUpperQ
	fu := fObs * fLowerQ
	lower := (fl - 1) / (fl - 1 + n0)
	upper := (fu - 1) / (fu - 1 + n0)
	if lower < 0 {
		lower = 0
	}
	if upper > 1 {
		upper = 1
	}

	return ICC{Value: value, Lower: lower, Upper: upper}, nil
}
