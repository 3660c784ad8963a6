// Package tui renders the live progress of a batch of runs as a Bubble Tea
// program. It shares glyphs and colours with the console report.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ormasoftchile/nttrun/pkg/report"
)

// Row glyphs not covered by report.
const (
	GlyphPending = "○"
	GlyphCursor  = "▸"
)

var colorWhite = lipgloss.Color("255")

// --- Header styles ---

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(report.ColorCyan).
	Padding(0, 1)

var engineStyle = lipgloss.NewStyle().
	Foreground(report.ColorDim)

// --- Row styles ---

var (
	rowNormal = lipgloss.NewStyle().
			Foreground(colorWhite)

	rowSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(report.ColorCyan)

	rowPending = lipgloss.NewStyle().
			Faint(true)
)

// --- Detail and footer styles ---

var (
	detailStyle = lipgloss.NewStyle().
			Foreground(report.ColorDim).
			PaddingLeft(4)

	keyStyle = lipgloss.NewStyle().
			Foreground(report.ColorCyan).
			Bold(true)

	keyDescStyle = lipgloss.NewStyle().
			Foreground(report.ColorDim)

	errorStyle = lipgloss.NewStyle().
			Foreground(report.ColorRed).
			Bold(true)
)

var spinnerStyle = lipgloss.NewStyle().
	Foreground(report.ColorYellow)

func verdictStyle(color lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(color).Bold(true)
}
