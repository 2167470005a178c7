package diary

import (
	"solodiary/domain/core"
)

// Well-known columns of the joined observation table. Diary-level variables
// vary day to day; baseline variables repeat on every row of a subject.
const (
	ColDay          core.VariableKey = "day"
	ColSatisfaction core.VariableKey = "satisfaction"
	ColLonely       core.VariableKey = "lonely"
	ColAlonely      core.VariableKey = "alonely"
	ColStress       core.VariableKey = "stress"
	ColAutonomy     core.VariableKey = "autonomy"
	ColChoice       core.VariableKey = "choice"
	ColSolitudeTime core.VariableKey = "stime"

	// Baseline (person-level) variables, joined onto every observation.
	ColMotivation core.VariableKey = "motivation_c"
	ColAge        core.VariableKey = "age"
)

// DiaryColumns are the per-day variables a loaded table must carry.
var DiaryColumns = []core.VariableKey{
	ColSatisfaction,
	ColLonely,
	ColAlonely,
	ColStress,
	ColAutonomy,
	ColChoice,
	ColSolitudeTime,
}

// MaxDay is the length of the diary protocol.
const MaxDay = 21

// Observation is one (subject, day) diary record.
type Observation struct {
	Subject core.SubjectID
	Day     int
	Values  map[core.VariableKey]float64
}

// Baseline is the person-level trait record joined onto every observation
// of a subject. Motivation is grand-mean centered across subjects at load.
type Baseline struct {
	Subject    core.SubjectID
	Motivation float64
	Age        float64
	Gender     string
}
