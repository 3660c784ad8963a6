package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/ormasoftchile/nttrun/pkg/report"
	"github.com/ormasoftchile/nttrun/pkg/runner"
	"github.com/ormasoftchile/nttrun/pkg/suite"
)

type rowState int

const (
	rowWaiting rowState = iota
	rowRunning
	rowDone
)

// row tracks one test of the batch.
type row struct {
	test   suite.Test
	state  rowState
	result *runner.Result
}

// --- Messages ---

// eventMsg delivers a runner progress event.
type eventMsg struct {
	Event runner.Event
}

// doneMsg signals the end of the batch.
type doneMsg struct {
	Output *runner.Output
	Err    error
}

// Model is the Bubble Tea model of the progress view.
type Model struct {
	engine   string
	rows     []row
	selected int
	follow   bool // keep the cursor on the most recently finished test
	finished int
	spinner  spinner.Model

	done    bool
	aborted bool
	output  *runner.Output
	err     error
	start   time.Time

	cancel context.CancelFunc
	width  int
	height int
}

// NewModel returns a model for tests run against engine. cancel aborts the
// batch when the user quits early; it may be nil.
func NewModel(engine string, tests []suite.Test, cancel context.CancelFunc) Model {
	rows := make([]row, len(tests))
	for i, t := range tests {
		rows[i] = row{test: t}
	}
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return Model{
		engine:  engine,
		rows:    rows,
		follow:  true,
		spinner: sp,
		start:   time.Now(),
		cancel:  cancel,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			if !m.done {
				m.aborted = true
				if m.cancel != nil {
					m.cancel()
				}
			}
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			m.follow = false
			if m.selected > 0 {
				m.selected--
			}
		case key.Matches(msg, keys.Down):
			m.follow = false
			if m.selected < len(m.rows)-1 {
				m.selected++
			}
		case key.Matches(msg, keys.Follow):
			m.follow = true
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.applyEvent(msg.Event)

	case doneMsg:
		m.done = true
		m.output = msg.Output
		m.err = msg.Err
		if msg.Output != nil {
			for i := range msg.Output.Results {
				if i < len(m.rows) {
					m.rows[i].state = rowDone
					m.rows[i].result = &msg.Output.Results[i]
				}
			}
			m.finished = len(msg.Output.Results)
		}
		return m, tea.Quit
	}
	return m, nil
}

// applyEvent updates the row an event refers to.
func (m *Model) applyEvent(ev runner.Event) {
	if ev.Index < 0 || ev.Index >= len(m.rows) {
		return
	}
	r := &m.rows[ev.Index]
	switch ev.Kind {
	case runner.EventStarted:
		r.state = rowRunning
	case runner.EventFinished:
		r.state = rowDone
		r.result = ev.Result
		m.finished++
		if m.follow {
			m.selected = ev.Index
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")

	first, last := m.window()
	width := 0
	for _, r := range m.rows[first:last] {
		width = max(width, runewidth.StringWidth(r.test.Name()))
	}
	for i := first; i < last; i++ {
		b.WriteString(m.renderRow(i, width))
		b.WriteString("\n")
	}

	if m.selected < len(m.rows) {
		if d := m.detail(m.rows[m.selected]); d != "" {
			b.WriteString("\n")
			b.WriteString(detailStyle.Render(d))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("  ✗ " + m.err.Error()))
	case m.output != nil:
		_, color := report.VerdictGlyph(m.output.Summary.Overall)
		b.WriteString("  " + verdictStyle(color).Render(report.SummaryLine(m.output.Summary)))
	default:
		b.WriteString("  " + keyBarText(m.done))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHeader() string {
	left := headerStyle.Render("nttrun")
	if m.engine != "" {
		left += " " + engineStyle.Render(m.engine)
	}
	var status string
	switch {
	case m.done:
		status = fmt.Sprintf("%d/%d done in %s", m.finished, len(m.rows), time.Since(m.start).Round(time.Millisecond))
	case m.aborted:
		status = "aborting"
	default:
		status = fmt.Sprintf("%s %d/%d", m.spinner.View(), m.finished, len(m.rows))
	}
	return left + "  " + status
}

func (m Model) renderRow(i, width int) string {
	r := m.rows[i]
	name := runewidth.FillRight(r.test.Name(), width)

	var glyph, status string
	switch r.state {
	case rowWaiting:
		glyph = rowPending.Render(GlyphPending)
		status = rowPending.Render("waiting")
	case rowRunning:
		glyph = m.spinner.View()
		status = spinnerStyle.Render("running")
	case rowDone:
		g, color := report.Glyph(r.result)
		glyph = verdictStyle(color).Render(g)
		status = verdictStyle(color).Render(report.Status(r.result))
		if r.result.Duration > 0 {
			status += " " + engineStyle.Render(r.result.Duration.Round(time.Millisecond).String())
		}
	}

	line := fmt.Sprintf("%s %s  %s", glyph, name, status)
	if i == m.selected {
		return rowSelected.Render(GlyphCursor) + " " + line
	}
	return "  " + rowNormal.Render(line)
}

func (m Model) detail(r row) string {
	if r.result == nil {
		return ""
	}
	res := r.result
	if !res.Ran() {
		return fmt.Sprintf("%s: %v", res.ErrorKind(), res.Err)
	}
	var parts []string
	if res.EchoMismatch {
		parts = append(parts, fmt.Sprintf("answered as %q", res.Response.TestName))
	}
	for _, p := range res.Response.Parameters {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, "\n")
}

// window returns the range of rows that fits the terminal, keeping the
// selected row visible.
func (m Model) window() (int, int) {
	n := len(m.rows)
	avail := m.height - 8
	if m.height == 0 || avail >= n {
		return 0, n
	}
	avail = max(avail, 1)
	first := m.selected - avail/2
	first = max(0, min(first, n-avail))
	return first, first + avail
}

// Run executes tests with r while showing progress on out. It returns when
// the batch completes or the user aborts; an aborted batch returns
// context.Canceled.
func Run(ctx context.Context, r *runner.Runner, tests []suite.Test, params runner.ParamSource, in io.Reader, out io.Writer) (*runner.Output, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewModel(r.EngineName, tests, cancel)
	p := tea.NewProgram(m, tea.WithInput(in), tea.WithOutput(out), tea.WithContext(ctx))

	run := *r
	next := r.OnEvent
	run.OnEvent = func(ev runner.Event) {
		p.Send(eventMsg{Event: ev})
		if next != nil {
			next(ev)
		}
	}

	result := make(chan doneMsg, 1)
	go func() {
		output, err := run.RunAll(ctx, tests, params)
		result <- doneMsg{Output: output, Err: err}
		p.Send(doneMsg{Output: output, Err: err})
	}()

	final, err := p.Run()
	cancel()
	done := <-result
	if fm, ok := final.(Model); ok && fm.aborted {
		return nil, context.Canceled
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return nil, fmt.Errorf("progress view: %w", err)
	}
	return done.Output, done.Err
}
