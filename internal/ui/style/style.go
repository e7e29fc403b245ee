// Package style renders kap's terminal output.
package style

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	// Colors
	colorGreen  = lipgloss.Color("#22c55e")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	keyStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	successStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	hintStyle = lipgloss.NewStyle().
			Foreground(colorYellow)
)

// Row is one key/value line of a section.
type Row struct {
	Key   string
	Value string
}

// Section is a titled group of rows.
type Section struct {
	Title string
	Rows  []Row
}

// Printer writes plain or styled text depending on the destination.
type Printer struct {
	out   io.Writer
	color bool
}

// NewPrinter styles output only when out is a terminal.
func NewPrinter(out io.Writer) *Printer {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Printer{out: out, color: color}
}

// NewPlainPrinter never styles its output.
func NewPlainPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) render(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

// Sections prints each section as a title followed by aligned rows.
func (p *Printer) Sections(sections []Section) {
	for i, sec := range sections {
		if i > 0 {
			fmt.Fprintln(p.out)
		}
		fmt.Fprintln(p.out, p.render(sectionStyle, sec.Title))

		width := 0
		for _, r := range sec.Rows {
			width = max(width, len(r.Key))
		}
		for _, r := range sec.Rows {
			key := fmt.Sprintf("%-*s", width+1, r.Key+":")
			fmt.Fprintf(p.out, "  %s %s\n", p.render(keyStyle, key), p.render(valueStyle, r.Value))
		}
	}
}

// Success prints a highlighted completion message.
func (p *Printer) Success(msg string) {
	fmt.Fprintln(p.out, p.render(successStyle, msg))
}

// Title prints a bold heading.
func (p *Printer) Title(msg string) {
	fmt.Fprintln(p.out, p.render(titleStyle, msg))
}

// Hints prints follow-up instructions, one per line.
func (p *Printer) Hints(lines ...string) {
	for _, l := range lines {
		fmt.Fprintln(p.out, p.render(hintStyle, strings.TrimRight(l, "\n")))
	}
}
