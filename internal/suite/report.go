package suite

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
)

const ruleWidth = 60

// Printer writes the human-readable progress and summary of a run.
// Colors are only emitted when w is a terminal.
type Printer struct {
	w       io.Writer
	pass    lipgloss.Style
	fail    lipgloss.Style
	warn    lipgloss.Style
	heading lipgloss.Style
}

func NewPrinter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		pass:    r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		fail:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("3")),
		heading: r.NewStyle().Bold(true),
	}
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Step announces a check.
func (p *Printer) Step(format string, args ...any) {
	p.line("\n"+format, args...)
}

func (p *Printer) Pass(format string, args ...any) {
	p.line(p.pass.Render("✓")+" "+format, args...)
}

func (p *Printer) Fail(format string, args ...any) {
	p.line(p.fail.Render("✗")+" "+format, args...)
}

func (p *Printer) Warn(format string, args ...any) {
	p.line("   "+p.warn.Render("!")+" "+format, args...)
}

// Detail prints an indented line under the last status line.
func (p *Printer) Detail(format string, args ...any) {
	p.line("   "+format, args...)
}

// Section prints a ruled heading.
func (p *Printer) Section(title string) {
	rule := strings.Repeat("=", ruleWidth)
	p.line("\n%s\n%s\n%s", rule, p.heading.Render(title), rule)
}

func (p *Printer) status(ok bool) string {
	if ok {
		return p.pass.Render("PASS")
	}
	return p.fail.Render("FAIL")
}

// Report prints the summary block and the list of failing checks.
func (p *Printer) Report(s Summary) {
	p.Section("TEST SUMMARY")
	p.line("Character Info Endpoint: %s", p.status(s.Info.OK()))
	p.line("Individual Endpoints: %d/%d passed", s.Individual.Passed, s.Individual.Total)
	p.line("Memory Functionality: %d/%d passed", s.Memory.Passed, s.Memory.Total)
	p.line("Conversation History: %d/%d passed", s.History.Passed, s.History.Total)

	p.line("\nOVERALL: %d/%d tests passed (%.1f%%)", s.Overall.Passed, s.Overall.Total, s.Overall.Percent())
	if s.Overall.OK() {
		p.line("%s All tests passed! Character endpoints are working correctly.", p.pass.Render("✓"))
	} else {
		p.line("%s Some tests failed. Check the output above for details.", p.warn.Render("!"))
	}

	p.Section("FAILED TESTS")
	if len(s.Failed) == 0 {
		p.line("(none)")
	}
	for _, name := range s.Failed {
		p.line("- %s", name)
	}
}

// preview shortens a response to n bytes for display, keeping UTF-8 intact.
func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
