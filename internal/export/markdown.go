// Package export renders report artifacts: the markdown/HTML report body,
// per-curve CSV files and the word-processor-compatible coefficient
// workbook. All numeric rounding happens here, at presentation time.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"solodiary/app"
	"solodiary/domain/model"
	applog "solodiary/internal"
	"solodiary/internal/predict"
	"solodiary/internal/summary"
)

// Exporter writes every report artifact into one output directory.
type Exporter struct {
	dir    string
	logger *applog.Logger
}

// NewExporter creates an exporter rooted at dir.
func NewExporter(dir string, logger *applog.Logger) *Exporter {
	if logger == nil {
		logger = applog.DefaultLogger
	}
	return &Exporter{dir: dir, logger: logger}
}

// WriteAll renders report.md, report.html, the curve CSVs and the
// coefficient workbook.
func (e *Exporter) WriteAll(report *app.Report) error {
	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	md := renderMarkdown(report)
	mdPath := filepath.Join(e.dir, "report.md")
	if err := os.WriteFile(mdPath, []byte(md), 0644); err != nil {
		return fmt.Errorf("failed to write report.md: %w", err)
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.CompletePage})
	htmlBody := markdown.ToHTML([]byte(md), p, renderer)
	if err := os.WriteFile(filepath.Join(e.dir, "report.html"), htmlBody, 0644); err != nil {
		return fmt.Errorf("failed to write report.html: %w", err)
	}

	for _, section := range report.Sections {
		for variant, curves := range section.Curves {
			if err := e.writeCurves(section.Outcome, variant, curves); err != nil {
				return err
			}
		}
	}

	if err := WriteCoefficientWorkbook(filepath.Join(e.dir, "coefficients.xlsx"), report); err != nil {
		return err
	}

	e.logger.Info("report artifacts written to %s", e.dir)
	return nil
}

// writeCurves emits one CSV per outcome/variant with every moderator level.
func (e *Exporter) writeCurves(outcome model.Outcome, variant model.Variant, curves []predict.Curve) error {
	var b strings.Builder
	b.WriteString("label,x,fit,lower,upper\n")
	for _, curve := range curves {
		for _, pt := range curve.Points {
			fmt.Fprintf(&b, "%s,%g,%g,%g,%g\n", curve.Label, pt.X, pt.Fit, pt.Lower, pt.Upper)
		}
	}
	name := fmt.Sprintf("curves_%s_%s.csv", outcome, variant)
	if err := os.WriteFile(filepath.Join(e.dir, name), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func renderMarkdown(report *app.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Daily Solitude and Well-Being: Analysis Report\n\n")
	fmt.Fprintf(&b, "Run `%s`, generated %s.\n\n", report.RunID,
		report.GeneratedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "%d observations from %d subjects; data fingerprint `%.12s`.\n\n",
		report.NObs, report.NSubjects, report.Fingerprint.String())

	if report.SolitudeTimeICC != nil {
		fmt.Fprintf(&b, "Solitude time ICC: %s.\n\n", formatICC(*report.SolitudeTimeICC))
	}

	for _, section := range report.Sections {
		fmt.Fprintf(&b, "## %s\n\n", titleCase(section.Outcome.String()))
		if section.ICC != nil {
			fmt.Fprintf(&b, "ICC: %s.\n\n", formatICC(*section.ICC))
		}
		writeTable(&b, "MAR check", section.MARCheck)
		writeTable(&b, "Unconditional model", section.Unconditional)
		writeTable(&b, "RQ1: tipping point", section.RQ1)
		writeTable(&b, "RQ3a: choiceful motivation", section.RQ3Choice)
		writeTable(&b, "RQ3b: self-determined motivation", section.RQ3Motivation)
	}

	if len(report.Failures) > 0 {
		b.WriteString("## Failed fits\n\n")
		keys := make([]string, 0, len(report.Failures))
		for k := range report.Failures {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- `%s`: %s\n", k, report.Failures[k])
		}
		b.WriteString("\n")
	}
	return b.String()
}

func writeTable(b *strings.Builder, title string, tbl *summary.Table) {
	if tbl == nil {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", title)
	fmt.Fprintf(b, "`%s` (n=%d, subjects=%d)\n\n", tbl.Formula, tbl.NObs, tbl.NSubjects)
	if tbl.Convergence.Singular || !tbl.Convergence.Converged {
		fmt.Fprintf(b, "*Convergence warning: %s*\n\n", tbl.Convergence.Message)
	}
	b.WriteString("| Term | b | SE | 95% CI | p |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")
	for _, row := range tbl.Rows {
		fmt.Fprintf(b, "| %s | %.2f | %.2f | [%.2f, %.2f] | %s |\n",
			row.Name, row.Coef, row.SE, row.Lower, row.Upper, formatP(row.PValue))
	}
	b.WriteString("\n")
}

func formatICC(icc summary.ICC) string {
	return fmt.Sprintf("%.2f, 95%% CI [%.2f, %.2f]", icc.Value, icc.Lower, icc.Upper)
}

func formatP(p float64) string {
	if p < 0.001 {
		return "<.001"
	}
	return fmt.Sprintf("%.3f", p)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
