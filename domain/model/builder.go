package model

import (
	"fmt"

	"solodiary/domain/core"
	"solodiary/domain/diary"
)

// Build maps (outcome, variant) to a model specification. Pure; the only
// failure mode is an outcome/variant combination outside the enumerated set.
func Build(outcome Outcome, variant Variant) (Spec, error) {
	if !outcome.Valid() {
		return Spec{}, fmt.Errorf("%w: %s", core.ErrUnknownOutcome, outcome)
	}
	if outcome == OutcomeSolitudeTime && variant != VariantUnconditional {
		return Spec{}, fmt.Errorf("%w: %s only supports the unconditional variant",
			core.ErrUnknownOutcome, outcome)
	}

	lagW := diary.Within(diary.Lagged(outcome.Column()))
	timeB := diary.Between(diary.ColSolitudeTime)
	timeBSq := diary.BetweenSq(diary.ColSolitudeTime)
	timeW := diary.Within(diary.ColSolitudeTime)
	timeWSq := diary.WithinSq(diary.ColSolitudeTime)
	choiceW := diary.Within(diary.ColChoice)

	switch variant {
	case VariantMARCheck:
		// Day predicts the outcome; systematic drift would flag
		// missingness related to time in study.
		return Spec{
			Outcome: outcome,
			Variant: variant,
			Fixed:   []Term{T(diary.ColDay)},
			Random:  []core.VariableKey{diary.ColDay},
		}, nil

	case VariantUnconditional:
		// Intercept-only model for variance partitioning (ICC).
		return Spec{
			Outcome: outcome,
			Variant: variant,
		}, nil

	case VariantRQ1:
		// Tipping point: between- and within-person solitude time,
		// linear and quadratic, controlling the lagged outcome.
		return Spec{
			Outcome: outcome,
			Variant: variant,
			Fixed: []Term{
				T(timeB), T(timeBSq),
				T(lagW),
				T(timeW), T(timeWSq),
			},
			Random: []core.VariableKey{lagW, timeW, timeWSq},
		}, nil

	case VariantRQ3Choice:
		// Daily choiceful motivation moderating the solitude-time curve.
		return Spec{
			Outcome: outcome,
			Variant: variant,
			Fixed: []Term{
				T(lagW),
				T(timeW), T(timeWSq),
				T(choiceW),
				T(timeW, choiceW), T(timeWSq, choiceW),
			},
			Random: []core.VariableKey{lagW, timeW, timeWSq, choiceW},
		}, nil

	case VariantRQ3Motivation:
		// Trait self-determined motivation as a between-subjects
		// moderator: it does not vary within subject, so it gets no
		// matching random slope.
		return Spec{
			Outcome: outcome,
			Variant: variant,
			Fixed: []Term{
				T(lagW),
				T(timeW), T(timeWSq),
				T(diary.ColMotivation),
				T(timeW, diary.ColMotivation), T(timeWSq, diary.ColMotivation),
			},
			Random: []core.VariableKey{lagW, timeW, timeWSq},
		}, nil
	}

	return Spec{}, fmt.Errorf("%w: %s", core.ErrUnknownVariant, variant)
}

// MustBuild builds a spec for a combination known to be valid.
func MustBuild(outcome Outcome, variant Variant) Spec {
	spec, err := Build(outcome, variant)
	if err != nil {
		panic(err)
	}
	return spec
}
