package features

import (
	"solodiary/domain/core"
	"solodiary/domain/diary"
	applog "solodiary/internal"
)

// lagVars are the variables that gain a one-day-lagged counterpart.
var lagVars = []core.VariableKey{
	diary.ColSatisfaction,
	diary.ColLonely,
	diary.ColAlonely,
	diary.ColStress,
	diary.ColAutonomy,
	diary.ColSolitudeTime,
}

// Builder augments the joined table with lagged, centered and decomposed
// predictor columns. Derivation is idempotent: a column that already
// exists is never recomputed, so centering happens once per variable.
type Builder struct {
	logger *applog.Logger
}

// NewBuilder creates a feature builder.
func NewBuilder(logger *applog.Logger) *Builder {
	if logger == nil {
		logger = applog.DefaultLogger
	}
	return &Builder{logger: logger}
}

// Build derives all feature columns in place and returns the table.
func (b *Builder) Build(table *diary.Table) (*diary.Table, error) {
	subjectRows := table.SubjectRows()

	// One-day lags per subject.
	for _, key := range lagVars {
		lagKey := diary.Lagged(key)
		if table.HasColumn(lagKey) {
			continue
		}
		raw, err := table.Column(key)
		if err != nil {
			return nil, err
		}
		if err := table.SetColumn(lagKey, LagByDay(raw, subjectRows)); err != nil {
			return nil, err
		}
	}

	// Grand-mean centering plus between/within split for solitude time,
	// its lag, the choice rating, and every lagged outcome.
	splitVars := []core.VariableKey{
		diary.ColSolitudeTime,
		diary.Lagged(diary.ColSolitudeTime),
		diary.ColChoice,
	}
	for _, key := range lagVars {
		if key == diary.ColSolitudeTime {
			continue
		}
		splitVars = append(splitVars, diary.Lagged(key))
	}

	for _, key := range splitVars {
		if err := b.centerAndSplit(table, key, subjectRows); err != nil {
			return nil, err
		}
	}

	// Quadratic terms for solitude time: square the split components,
	// not the raw value.
	for _, pair := range [][2]core.VariableKey{
		{diary.Between(diary.ColSolitudeTime), diary.BetweenSq(diary.ColSolitudeTime)},
		{diary.Within(diary.ColSolitudeTime), diary.WithinSq(diary.ColSolitudeTime)},
	} {
		if table.HasColumn(pair[1]) {
			continue
		}
		linear, err := table.Column(pair[0])
		if err != nil {
			return nil, err
		}
		if err := table.SetColumn(pair[1], Square(linear)); err != nil {
			return nil, err
		}
	}

	b.logger.Debug("feature table has %d columns", len(table.ColumnKeys()))
	return table, nil
}

func (b *Builder) centerAndSplit(table *diary.Table, key core.VariableKey, subjectRows map[core.SubjectID][]int) error {
	centeredKey := diary.Centered(key)
	betweenKey := diary.Between(key)
	withinKey := diary.Within(key)
	if table.HasColumn(centeredKey) && table.HasColumn(betweenKey) && table.HasColumn(withinKey) {
		return nil
	}

	raw, err := table.Column(key)
	if err != nil {
		return err
	}
	centered, mean, err := GrandMeanCenter(raw)
	if err != nil {
		return err
	}
	b.logger.Debug("centered %s (grand mean %.4f)", key, mean)

	between, within := SplitBetweenWithin(centered, subjectRows)
	if err := table.SetColumn(centeredKey, centered); err != nil {
		return err
	}
	if err := table.SetColumn(betweenKey, between); err != nil {
		return err
	}
	return table.SetColumn(withinKey, within)
}
