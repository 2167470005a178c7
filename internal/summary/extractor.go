// Package summary normalizes fitted models into report tables.
package summary

import (
	"fmt"

	"solodiary/domain/model"
)

// Table is the ordered coefficient table of one fitted model.
type Table struct {
	Formula     string
	Method      model.Method
	Rows        []model.Estimate
	NObs        int
	NSubjects   int
	Convergence model.Convergence
}

// Extract converts a fit result into its coefficient table. Row order
// follows the specification's term order, intercept first.
func Extract(fit *model.FitResult) (*Table, error) {
	if fit == nil {
		return nil, fmt.Errorf("nil fit result")
	}
	rows := make([]model.Estimate, len(fit.Estimates))
	copy(rows, fit.Estimates)
	return &Table{
		Formula:     fit.Formula,
		Method:      fit.Method,
		Rows:        rows,
		NObs:        fit.NObs,
		NSubjects:   fit.NSubjects,
		Convergence: fit.Convergence,
	}, nil
}
