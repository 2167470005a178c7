package model

import (
	"strings"

	"solodiary/domain/core"
)

// Outcome enumerates the diary outcomes a model can be fit for.
type Outcome string

const (
	OutcomeSatisfaction Outcome = "satisfaction"
	OutcomeLonely       Outcome = "lonely"
	OutcomeAlonely      Outcome = "alonely"
	OutcomeStress       Outcome = "stress"
	OutcomeAutonomy     Outcome = "autonomy"
	// OutcomeSolitudeTime is valid for the unconditional variant only.
	OutcomeSolitudeTime Outcome = "stime"
)

// Outcomes lists the well-being outcomes used across research questions.
var Outcomes = []Outcome{
	OutcomeSatisfaction,
	OutcomeLonely,
	OutcomeAlonely,
	OutcomeStress,
	OutcomeAutonomy,
}

// Column returns the observation-table column this outcome reads from.
func (o Outcome) Column() core.VariableKey {
	return core.VariableKey(o)
}

// String returns the outcome name.
func (o Outcome) String() string {
	return string(o)
}

// Valid reports whether the outcome is one of the enumerated set.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSatisfaction, OutcomeLonely, OutcomeAlonely,
		OutcomeStress, OutcomeAutonomy, OutcomeSolitudeTime:
		return true
	}
	return false
}

// Variant enumerates the research-question model shapes.
type Variant string

const (
	VariantMARCheck      Variant = "mar_check"
	VariantUnconditional Variant = "unconditional"
	VariantRQ1           Variant = "rq1_tipping_point"
	VariantRQ3Choice     Variant = "rq3a_choice"
	VariantRQ3Motivation Variant = "rq3b_motivation"
)

// Variants lists all model variants in report order.
var Variants = []Variant{
	VariantMARCheck,
	VariantUnconditional,
	VariantRQ1,
	VariantRQ3Choice,
	VariantRQ3Motivation,
}

// Term is one fixed-effect term: a product of feature columns. A single
// column is a main effect; two or more form an interaction.
type Term struct {
	Columns []core.VariableKey `json:"columns"`
}

// T builds a term from columns.
func T(columns ...core.VariableKey) Term {
	return Term{Columns: columns}
}

// Name renders the term in formula notation ("a" or "a:b").
func (t Term) Name() string {
	parts := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		parts[i] = c.String()
	}
	return strings.Join(parts, ":")
}

// Spec is an immutable model specification: outcome plus fixed-effect terms
// plus per-subject random slopes. A random intercept is always present.
type Spec struct {
	Outcome Outcome            `json:"outcome"`
	Variant Variant            `json:"variant"`
	Fixed   []Term             `json:"fixed"`
	Random  []core.VariableKey `json:"random"`
}

// Formula renders the spec in lme4-style notation, canonical for cache
// keying and report display.
func (s Spec) Formula() string {
	var b strings.Builder
	b.WriteString(s.Outcome.String())
	b.WriteString(" ~ 1")
	for _, t := range s.Fixed {
		b.WriteString(" + ")
		b.WriteString(t.Name())
	}
	b.WriteString(" + (1")
	for _, r := range s.Random {
		b.WriteString(" + ")
		b.WriteString(r.String())
	}
	b.WriteString(" | subject)")
	return b.String()
}

// Key fingerprints the canonical formula for cache keying.
func (s Spec) Key() core.SpecKey {
	return core.NewSpecKey([]byte(s.Formula()))
}

// TermNames returns fixed-effect names with the intercept first, matching
// the coefficient order produced by the fitters.
func (s Spec) TermNames() []string {
	names := make([]string, 0, len(s.Fixed)+1)
	names = append(names, "(Intercept)")
	for _, t := range s.Fixed {
		names = append(names, t.Name())
	}
	return names
}
