package features

import (
	"math"

	"solodiary/domain/core"
)

// LagByDay shifts a column one day back within each subject. The first
// day of every subject has no prior value and gets NaN; every later day
// carries the previous day's raw value. Row indices per subject must be
// ordered by day, which diary.Table.SubjectRows guarantees.
func LagByDay(values []float64, subjectRows map[core.SubjectID][]int) []float64 {
	lagged := make([]float64, len(values))
	for i := range lagged {
		lagged[i] = math.NaN()
	}
	for _, idx := range subjectRows {
		for pos := 1; pos < len(idx); pos++ {
			lagged[idx[pos]] = values[idx[pos-1]]
		}
	}
	return lagged
}
