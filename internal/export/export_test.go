package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"solodiary/app"
	"solodiary/domain/core"
	"solodiary/domain/model"
	"solodiary/internal/predict"
	"solodiary/internal/summary"
)

func sampleReport() *app.Report {
	table := func(formula string, rows ...model.Estimate) *summary.Table {
		return &summary.Table{
			Formula:     formula,
			Method:      model.MethodREML,
			Rows:        rows,
			NObs:        200,
			NSubjects:   20,
			Convergence: model.Convergence{Converged: true},
		}
	}
	intercept := model.Estimate{Name: "(Intercept)", Coef: 3.1, SE: 0.1, Lower: 2.9, Upper: 3.3, PValue: 0.0001}
	timeW := model.Estimate{Name: "stime_cw", Coef: 0.41, SE: 0.05, Lower: 0.31, Upper: 0.51, PValue: 0.004}
	timeWSq := model.Estimate{Name: "stime_cw2", Coef: -0.09, SE: 0.02, Lower: -0.13, Upper: -0.05, PValue: 0.002}
	timeB := model.Estimate{Name: "stime_cb", Coef: 0.12, SE: 0.08, Lower: -0.04, Upper: 0.28, PValue: 0.14}

	icc := summary.ICC{Value: 0.42, Lower: 0.30, Upper: 0.55}
	curve := predict.Curve{
		Label: "population",
		Points: []predict.Point{
			{X: -1, Fit: 2.6, Lower: 2.4, Upper: 2.8},
			{X: 0, Fit: 3.1, Lower: 2.9, Upper: 3.3},
			{X: 1, Fit: 3.4, Lower: 3.2, Upper: 3.6},
		},
	}

	return &app.Report{
		RunID:       core.NewReportRunID(),
		GeneratedAt: time.Date(2026, 8, 25, 9, 0, 0, 0, time.UTC),
		Fingerprint: core.NewDataFingerprint([]byte("sample")),
		NObs:        200,
		NSubjects:   20,
		Sections: []app.OutcomeSection{
			{
				Outcome:       model.OutcomeSatisfaction,
				MARCheck:      table("satisfaction ~ 1 + day + (1 + day | subject)", intercept),
				Unconditional: table("satisfaction ~ 1 + (1 | subject)", intercept),
				ICC:           &icc,
				RQ1:           table("satisfaction ~ ...", intercept, timeB, timeW, timeWSq),
				RQ3Choice:     table("satisfaction ~ ...", intercept, timeW, timeWSq),
				RQ3Motivation: table("satisfaction ~ ...", intercept, timeW, timeWSq),
				Curves: map[model.Variant][]predict.Curve{
					model.VariantRQ1: {curve},
				},
			},
		},
		SolitudeTimeICC: &icc,
		Failures:        map[string]string{"lonely/rq1_tipping_point": "insufficient data"},
	}
}

// TestWriteAllArtifacts verifies every artifact lands in the output
// directory
func TestWriteAllArtifacts(t *testing.T) {
	dir := t.TempDir()
	if err := NewExporter(dir, nil).WriteAll(sampleReport()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	for _, name := range []string{
		"report.md",
		"report.html",
		"coefficients.xlsx",
		"curves_satisfaction_rq1_tipping_point.csv",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Missing artifact %s: %v", name, err)
		}
	}
}

// TestMarkdownContent verifies the report body carries the sections,
// estimates and failure list
func TestMarkdownContent(t *testing.T) {
	dir := t.TempDir()
	if err := NewExporter(dir, nil).WriteAll(sampleReport()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "report.md"))
	if err != nil {
		t.Fatalf("Reading report.md failed: %v", err)
	}
	md := string(raw)

	for _, want := range []string{
		"## Satisfaction",
		"ICC: 0.42, 95% CI [0.30, 0.55]",
		"| stime_cw | 0.41 | 0.05 | [0.31, 0.51] | 0.004 |",
		"| (Intercept) | 3.10 | 0.10 | [2.90, 3.30] | <.001 |",
		"## Failed fits",
		"`lonely/rq1_tipping_point`: insufficient data",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("report.md missing %q", want)
		}
	}
}

// TestCurveCSV verifies the curve export format
func TestCurveCSV(t *testing.T) {
	dir := t.TempDir()
	if err := NewExporter(dir, nil).WriteAll(sampleReport()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "curves_satisfaction_rq1_tipping_point.csv"))
	if err != nil {
		t.Fatalf("Reading curve CSV failed: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if lines[0] != "label,x,fit,lower,upper" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	if len(lines) != 4 {
		t.Fatalf("Expected 3 data rows, got %d", len(lines)-1)
	}
	if lines[1] != "population,-1,2.6,2.4,2.8" {
		t.Errorf("Unexpected first row %q", lines[1])
	}
}

// TestCoefficientWorkbook verifies the xlsx layout: a header row, section
// rows and the within-person solitude-time terms
func TestCoefficientWorkbook(t *testing.T) {
	dir := t.TempDir()
	if err := NewExporter(dir, nil).WriteAll(sampleReport()); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	f, err := excelize.OpenFile(filepath.Join(dir, "coefficients.xlsx"))
	if err != nil {
		t.Fatalf("Opening workbook failed: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Coefficients")
	if err != nil {
		t.Fatalf("Reading sheet failed: %v", err)
	}
	if len(rows) < 4 {
		t.Fatalf("Workbook has only %d rows", len(rows))
	}
	if rows[0][0] != "Section" || rows[0][3] != "RQ1 b (SE)" {
		t.Errorf("Unexpected header row: %v", rows[0])
	}

	flat := make([]string, 0)
	for _, row := range rows {
		flat = append(flat, strings.Join(row, "|"))
	}
	body := strings.Join(flat, "\n")
	for _, want := range []string{"Within-person", "Between-person", "stime_cw", "stime_cb", "0.41 (0.05)"} {
		if !strings.Contains(body, want) {
			t.Errorf("Workbook missing %q", want)
		}
	}
}
