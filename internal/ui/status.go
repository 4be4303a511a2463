// Package ui renders severity-coded status lines for the interactive CLI.
package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	stepStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	dimStyle  = lipgloss.NewStyle().Faint(true)
)

// Printer writes status lines to an output stream
type Printer struct {
	out io.Writer
}

// NewPrinter creates a status printer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// OK prints a success line
func (p *Printer) OK(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", okStyle.Render("[ok]"), fmt.Sprintf(format, args...))
}

// Warn prints a warning line
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", warnStyle.Render("[warn]"), fmt.Sprintf(format, args...))
}

// Error prints an error line
func (p *Printer) Error(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", errStyle.Render("[error]"), fmt.Sprintf(format, args...))
}

// Step prints a progress line for one switch phase
func (p *Printer) Step(format string, args ...any) {
	fmt.Fprintf(p.out, "%s %s\n", stepStyle.Render("-->"), fmt.Sprintf(format, args...))
}

// Dim prints secondary detail, such as log tails
func (p *Printer) Dim(text string) {
	fmt.Fprintln(p.out, dimStyle.Render(text))
}
