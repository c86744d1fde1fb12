// Package report renders pipeline reports for the terminal.
package report

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/semgeo/semgeo/pkg/pipeline"
)

// Renderer formats reports with styles suited to its output.
type Renderer struct {
	out io.Writer

	title    lipgloss.Style
	pass     lipgloss.Style
	fail     lipgloss.Style
	warn     lipgloss.Style
	step     lipgloss.Style
	detail   lipgloss.Style
	summary  lipgloss.Style
	errorBox lipgloss.Style
}

// NewRenderer creates a renderer for w. Colors are used only when w is a
// terminal that supports them.
func NewRenderer(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		out:      w,
		title:    r.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true),
		pass:     r.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true),
		fail:     r.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true),
		warn:     r.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true),
		step:     r.NewStyle().Foreground(lipgloss.Color("#CCCCCC")),
		detail:   r.NewStyle().Foreground(lipgloss.Color("#A0AEC0")),
		summary:  r.NewStyle().Bold(true),
		errorBox: r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#FF6B6B")).Padding(0, 1),
	}
}

// Print writes the rendered report.
func (r *Renderer) Print(report *pipeline.Report) error {
	_, err := io.WriteString(r.out, r.Render(report))
	return err
}

// Render returns the report as styled text.
func (r *Renderer) Render(report *pipeline.Report) string {
	var lines []string

	lines = append(lines, r.title.Render("semgeo run "+report.RunID))

	for _, step := range report.Steps {
		lines = append(lines, r.renderStep(step))
	}

	if len(report.Tests) > 0 {
		lines = append(lines, "", r.title.Render("Tests"))
		for _, test := range report.Tests {
			lines = append(lines, r.renderTest(test))
		}
	}

	for _, name := range report.Skipped {
		lines = append(lines, r.warn.Render("SKIP")+" "+r.detail.Render("unknown scenario "+name))
	}

	lines = append(lines, "", r.summary.Render(fmt.Sprintf(
		"%d passed, %d failed · %d triples · %s",
		report.Passed(), report.Failed(), report.Triples, report.Duration.Round(1e6))))

	if report.Output != "" {
		lines = append(lines, r.detail.Render("Written to "+report.Output))
	}
	if report.Error != "" {
		lines = append(lines, r.errorBox.Render(fmt.Sprintf("%s at %s\n%s", r.fail.Render("FAILED"), report.State, report.Error)))
	}

	return strings.Join(lines, "\n") + "\n"
}

func (r *Renderer) renderStep(step pipeline.Step) string {
	if step.Kind == pipeline.StepMissing {
		return r.warn.Render("MISS") + " " + r.detail.Render(fmt.Sprintf("%s: %s", step.Entity, step.Message))
	}

	label := fmt.Sprintf("%-7s", strings.ToUpper(string(step.Kind)))
	source := step.Source
	if step.Kind != pipeline.StepClosure {
		source = filepath.Base(source)
	}
	return r.step.Render(label) + " " + source + " " +
		r.detail.Render(fmt.Sprintf("triples: %d (%+d)", step.After, step.Delta))
}

func (r *Renderer) renderTest(test pipeline.TestOutcome) string {
	label := r.pass.Render("PASS")
	if !test.Passed {
		label = r.fail.Render("FAIL")
	}
	line := label + " " + filepath.Base(test.Source) + " " + r.detail.Render(fmt.Sprintf("rows: %d", test.Rows))
	if test.Error != "" {
		line += " " + r.fail.Render(test.Error)
	}
	return line
}
