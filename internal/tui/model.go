// Package tui implements the interactive terminal client for querying ragd.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/ragd/internal/pipeline"
)

// Asker is the TUI-facing subset of the query pipeline.
type Asker interface {
	Query(ctx context.Context, question, scope string) (*pipeline.QueryResult, error)
}

// answerMsg carries a finished query back into the update loop.
type answerMsg struct {
	result *pipeline.QueryResult
	err    error
}

// Model is the Bubble Tea model for the query client.
type Model struct {
	asker    Asker
	scope    string
	input    textinput.Model
	viewport viewport.Model
	result   *pipeline.QueryResult
	status   string
	ready    bool
	waiting  bool
}

// queryTimeout bounds a single question round trip.
const queryTimeout = 2 * time.Minute

// New creates the TUI model. scope selects which document scope questions
// run against; empty means the default scope.
func New(asker Asker, scope string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)

	label := scope
	if label == "" {
		label = "default"
	}
	return Model{
		asker:    asker,
		scope:    scope,
		input:    ti,
		viewport: vp,
		status:   fmt.Sprintf("Scope %q. Type a question.", label),
	}
}

// Init starts the text input cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := answerBoxStyle.GetFrameSize()
		_, qh := questionBoxStyle.GetFrameSize()
		reserved := 2 + qh + 1 // header, status, question box, spacer
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = maxInt(20, msg.Width)
		m.viewport.Height = maxInt(3, vh-rh)
		m.viewport.SetContent(m.renderResult())
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.String() == "esc" {
			return m, tea.Quit
		}
		if msg.String() == "enter" && !m.waiting {
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				break
			}
			m.waiting = true
			m.status = "Thinking..."
			return m, ask(m.asker, question, m.scope)
		}

	case answerMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.result = nil
		} else {
			m.result = msg.result
			m.status = fmt.Sprintf("Answered by %s in %dms", msg.result.Model, msg.result.LatencyMS)
			m.input.SetValue("")
		}
		m.viewport.SetContent(m.renderResult())
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask runs the query off the update loop so typing stays responsive.
func ask(asker Asker, question, scope string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		defer cancel()

		result, err := asker.Query(ctx, question, scope)
		return answerMsg{result: result, err: err}
	}
}

// View renders the layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("ragd")
	answer := answerBoxStyle.Render(m.viewport.View())
	question := questionBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + answer + "\n" + question + "\n" + status
}

// renderResult formats the current answer with its citations.
func (m Model) renderResult() string {
	if m.result == nil {
		return "No answer yet."
	}

	var b strings.Builder
	b.WriteString(m.result.Answer)

	if len(m.result.Citations) > 0 {
		b.WriteString("\n\n")
		b.WriteString(citationHeaderStyle.Render("Sources"))
		for _, c := range m.result.Citations {
			b.WriteString("\n")
			location := c.Source
			if c.Section != "" {
				location += ", " + c.Section
			}
			b.WriteString(markerStyle.Render(c.Marker) + " " + location)
			if c.Snippet != "" {
				b.WriteString("\n    " + snippetStyle.Render(c.Snippet))
			}
		}
	}

	return b.String()
}

var (
	headerStyle         = lipgloss.NewStyle().Bold(true)
	statusStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	answerBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionBoxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	citationHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	markerStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	snippetStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
