package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"solodiary/app"
	"solodiary/domain/diary"
	"solodiary/domain/model"
	"solodiary/internal/summary"
)

const coefSheet = "Coefficients"

// rqColumns maps the three research questions to their table slots.
type rqColumn struct {
	label   string
	variant model.Variant
}

var rqColumns = []rqColumn{
	{"RQ1", model.VariantRQ1},
	{"RQ3a", model.VariantRQ3Choice},
	{"RQ3b", model.VariantRQ3Motivation},
}

// WriteCoefficientWorkbook writes the exportable coefficient table:
// within-person and between-person sections, one row group per outcome,
// the linear and quadratic solitude-time coefficients of all three
// research questions side by side.
func WriteCoefficientWorkbook(path string, report *app.Report) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", coefSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	row := 1
	writeCells(f, row, "Section", "Outcome", "Term")
	for i, rq := range rqColumns {
		col := 4 + i*3
		setCell(f, col, row, rq.label+" b (SE)")
		setCell(f, col+1, row, rq.label+" 95% CI")
		setCell(f, col+2, row, rq.label+" p")
	}
	row++

	for _, section := range []struct {
		name   string
		within bool
	}{
		{"Within-person", true},
		{"Between-person", false},
	} {
		writeCells(f, row, section.name)
		row++
		for _, outcome := range report.Sections {
			row = writeOutcomeGroup(f, row, outcome, section.within)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save coefficient workbook: %w", err)
	}
	return nil
}

// writeOutcomeGroup writes one outcome's rows for a section, unioning the
// terms that appear in any research question's table.
func writeOutcomeGroup(f *excelize.File, row int, section app.OutcomeSection, within bool) int {
	tables := map[model.Variant]*summary.Table{
		model.VariantRQ1:           section.RQ1,
		model.VariantRQ3Choice:     section.RQ3Choice,
		model.VariantRQ3Motivation: section.RQ3Motivation,
	}

	var terms []string
	seen := make(map[string]bool)
	for _, rq := range rqColumns {
		tbl := tables[rq.variant]
		if tbl == nil {
			continue
		}
		for _, est := range tbl.Rows {
			if est.Name == "(Intercept)" || seen[est.Name] || isWithinTerm(est.Name) != within {
				continue
			}
			seen[est.Name] = true
			terms = append(terms, est.Name)
		}
	}

	first := true
	for _, term := range terms {
		if first {
			setCell(f, 2, row, string(section.Outcome))
			first = false
		}
		setCell(f, 3, row, term)
		for i, rq := range rqColumns {
			tbl := tables[rq.variant]
			if tbl == nil {
				continue
			}
			col := 4 + i*3
			for _, est := range tbl.Rows {
				if est.Name != term {
					continue
				}
				setCell(f, col, row, fmt.Sprintf("%.2f (%.2f)", est.Coef, est.SE))
				setCell(f, col+1, row, fmt.Sprintf("[%.2f, %.2f]", est.Lower, est.Upper))
				setCell(f, col+2, row, formatP(est.PValue))
			}
		}
		row++
	}
	return row
}

// isWithinTerm classifies a term name. Between-person terms carry the
// subject-mean suffix or the trait motivation score; everything touching
// a within-person component is within.
func isWithinTerm(name string) bool {
	if strings.Contains(name, "_cw") {
		return true
	}
	if strings.Contains(name, "_cb") || strings.Contains(name, diary.ColMotivation.String()) {
		return false
	}
	return true
}

func writeCells(f *excelize.File, row int, values ...string) {
	for i, v := range values {
		setCell(f, i+1, row, v)
	}
}

func setCell(f *excelize.File, col, row int, value string) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return
	}
	// Ignoring the write error: SaveAs surfaces a broken workbook anyway.
	_ = f.SetCellValue(coefSheet, cell, value)
}
