// Package design turns a model specification and a feature table into the
// dense matrices the fitters operate on: the response vector, the
// fixed-effect matrix and the per-subject random-effect matrix.
package design

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"solodiary/domain/core"
	"solodiary/domain/diary"
	"solodiary/domain/model"
)

// Matrices is the complete-case design for one model fit.
//
// The random-effect structure is variance components: one independent
// component per random term (intercept first), each spanning one column
// block of Z with a column per subject.
type Matrices struct {
	Y *mat.VecDense // n response values
	X *mat.Dense    // n x p fixed effects, intercept first
	Z *mat.Dense    // n x (components*subjects) random effects

	TermNames   []string // p names, "(Intercept)" first
	RandomNames []string // component names, "(Intercept)" first
	Subjects    []core.SubjectID
	RowSubject  []int // subject index per retained row

	N          int
	P          int
	NSubjects  int
	Components int
}

// Build assembles complete-case matrices for spec from table. Rows with a
// missing response or any missing predictor are dropped (lagged predictors
// make every subject's first day incomplete by construction).
func Build(spec model.Spec, table *diary.Table) (*Matrices, error) {
	outcome, err := table.Column(spec.Outcome.Column())
	if err != nil {
		return nil, err
	}

	termCols := make([][]float64, 0, len(spec.Fixed))
	for _, term := range spec.Fixed {
		col, err := productColumn(term, table)
		if err != nil {
			return nil, err
		}
		termCols = append(termCols, col)
	}

	randomCols := make([][]float64, 0, len(spec.Random))
	for _, key := range spec.Random {
		col, err := table.Column(key)
		if err != nil {
			return nil, err
		}
		randomCols = append(randomCols, col)
	}

	// Complete cases only.
	var keep []int
	for i := 0; i < table.NumRows(); i++ {
		ok := !math.IsNaN(outcome[i])
		for _, col := range termCols {
			ok = ok && !math.IsNaN(col[i])
		}
		for _, col := range randomCols {
			ok = ok && !math.IsNaN(col[i])
		}
		if ok {
			keep = append(keep, i)
		}
	}

	p := len(spec.Fixed) + 1
	n := len(keep)
	if n <= p {
		return nil, fmt.Errorf("%w: %d complete rows for %d fixed effects",
			core.ErrInsufficientData, n, p)
	}

	subjects := table.Subjects()
	subjectIndex := make(map[core.SubjectID]int)
	var subjectList []core.SubjectID
	rowSubject := make([]int, n)
	for r, i := range keep {
		s := subjects[i]
		idx, ok := subjectIndex[s]
		if !ok {
			idx = len(subjectList)
			subjectIndex[s] = idx
			subjectList = append(subjectList, s)
		}
		rowSubject[r] = idx
	}
	m := len(subjectList)

	y := mat.NewVecDense(n, nil)
	x := mat.NewDense(n, p, nil)
	for r, i := range keep {
		y.SetVec(r, outcome[i])
		x.Set(r, 0, 1.0)
		for j, col := range termCols {
			x.Set(r, j+1, col[i])
		}
	}

	components := len(spec.Random) + 1
	z := mat.NewDense(n, components*m, nil)
	for r, i := range keep {
		s := rowSubject[r]
		z.Set(r, s, 1.0) // random intercept block
		for c, col := range randomCols {
			z.Set(r, (c+1)*m+s, col[i])
		}
	}

	randomNames := make([]string, 0, components)
	randomNames = append(randomNames, "(Intercept)")
	for _, key := range spec.Random {
		randomNames = append(randomNames, key.String())
	}

	return &Matrices{
		Y:           y,
		X:           x,
		Z:           z,
		TermNames:   spec.TermNames(),
		RandomNames: randomNames,
		Subjects:    subjectList,
		RowSubject:  rowSubject,
		N:           n,
		P:           p,
		NSubjects:   m,
		Components:  components,
	}, nil
}

// productColumn evaluates one fixed-effect term as the elementwise product
// of its columns.
func productColumn(term model.Term, table *diary.Table) ([]float64, error) {
	if len(term.Columns) == 0 {
		return nil, fmt.Errorf("empty term")
	}
	first, err := table.Column(term.Columns[0])
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(first))
	copy(out, first)
	for _, key := range term.Columns[1:] {
		col, err := table.Column(key)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i] *= col[i]
		}
	}
	return out, nil
}
