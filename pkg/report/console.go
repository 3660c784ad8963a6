package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/nttrun/pkg/runner"
	"github.com/ormasoftchile/nttrun/pkg/value"
)

// Verdict glyphs convey meaning without relying on colour alone.
const (
	GlyphPass   = "✓"
	GlyphFail   = "✗"
	GlyphInconc = "?"
	GlyphNone   = "·"
	GlyphError  = "!"
	GlyphNotRun = "⊘"
)

// Palette shared with the progress view.
var (
	ColorGreen  = lipgloss.Color("42")
	ColorRed    = lipgloss.Color("196")
	ColorYellow = lipgloss.Color("214")
	ColorDim    = lipgloss.Color("240")
	ColorCyan   = lipgloss.Color("51")
)

// Glyph returns the glyph and colour of a result.
func Glyph(res *runner.Result) (string, lipgloss.Color) {
	if !res.Ran() {
		return GlyphNotRun, ColorDim
	}
	return VerdictGlyph(res.Verdict)
}

// VerdictGlyph returns the glyph and colour of a verdict.
func VerdictGlyph(v value.Verdict) (string, lipgloss.Color) {
	switch v {
	case value.VerdictPass:
		return GlyphPass, ColorGreen
	case value.VerdictInconc:
		return GlyphInconc, ColorYellow
	case value.VerdictFail:
		return GlyphFail, ColorRed
	case value.VerdictNone:
		return GlyphNone, ColorDim
	}
	return GlyphError, ColorRed
}

// Console writes a coloured, column-aligned report. Colours are dropped
// when w is not a terminal.
type Console struct {
	w io.Writer
	r *lipgloss.Renderer
}

// NewConsole returns a console printer writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, r: lipgloss.NewRenderer(w)}
}

func (c *Console) Print(out *runner.Output) error {
	width := 0
	for i := range out.Results {
		width = max(width, runewidth.StringWidth(out.Results[i].Test.Name()))
	}
	dim := c.r.NewStyle().Foreground(ColorDim)

	for i := range out.Results {
		res := &out.Results[i]
		glyph, color := Glyph(res)
		status := c.r.NewStyle().Foreground(color).Bold(true).Render(runewidth.FillRight(Status(res), 7))
		name := runewidth.FillRight(res.Test.Name(), width)
		line := fmt.Sprintf("%s %s  %s  %s",
			c.r.NewStyle().Foreground(color).Render(glyph),
			status,
			name,
			dim.Render(round(res.Duration).String()))
		if d := detail(res); d != "" {
			line += dim.Render(d)
		}
		if _, err := fmt.Fprintln(c.w, line); err != nil {
			return err
		}
	}

	_, color := VerdictGlyph(out.Summary.Overall)
	if out.Summary.NotRun > 0 && !value.Worse(out.Summary.Overall, value.VerdictInconc) {
		color = ColorYellow
	}
	summary := c.r.NewStyle().Bold(true).Foreground(color).Render(SummaryLine(out.Summary))
	_, err := fmt.Fprintf(c.w, "\n%s\n", summary)
	return err
}
