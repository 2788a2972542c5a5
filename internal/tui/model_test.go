package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/pipeline"
)

type fakeAsker struct {
	lastQuestion string
	lastScope    string
	result       *pipeline.QueryResult
	err          error
}

func (f *fakeAsker) Query(ctx context.Context, question, scope string) (*pipeline.QueryResult, error) {
	f.lastQuestion, f.lastScope = question, scope
	return f.result, f.err
}

func TestView_BeforeFirstResize(t *testing.T) {
	m := New(&fakeAsker{}, "")
	assert.Equal(t, "Loading...", m.View())
}

func TestUpdate_WindowSizeMakesReady(t *testing.T) {
	m := New(&fakeAsker{}, "")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(Model)

	assert.True(t, m.ready)
	assert.Contains(t, m.View(), "ragd")
	assert.Contains(t, m.View(), "No answer yet.")
}

func TestUpdate_EnterRunsQuery(t *testing.T) {
	asker := &fakeAsker{result: &pipeline.QueryResult{
		Answer: "the sky is blue [1]",
		Citations: []pipeline.Citation{
			{Marker: "[1]", Source: "notes.txt", Snippet: "the sky is blue"},
		},
		Model: "llama-3.3-70b-versatile",
	}}

	m := New(asker, "s1")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(Model)

	m.input.SetValue("what color is the sky?")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.waiting)
	assert.Equal(t, "Thinking...", m.status)

	msg := cmd()
	answer, ok := msg.(answerMsg)
	require.True(t, ok)
	require.NoError(t, answer.err)
	assert.Equal(t, "what color is the sky?", asker.lastQuestion)
	assert.Equal(t, "s1", asker.lastScope)

	updated, _ = m.Update(answer)
	m = updated.(Model)
	assert.False(t, m.waiting)
	assert.Contains(t, m.renderResult(), "the sky is blue [1]")
	assert.Contains(t, m.renderResult(), "notes.txt")
	assert.Contains(t, m.status, "llama-3.3-70b-versatile")
}

func TestUpdate_EmptyQuestionIgnored(t *testing.T) {
	m := New(&fakeAsker{}, "")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(Model)

	m.input.SetValue("   ")
	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	assert.False(t, m.waiting)
}

func TestUpdate_QueryError(t *testing.T) {
	asker := &fakeAsker{err: errors.New("generation failed")}

	m := New(asker, "")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(Model)

	m.input.SetValue("q")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	require.NotNil(t, cmd)

	updated, _ = m.Update(cmd())
	m = updated.(Model)
	assert.Contains(t, m.status, "generation failed")
	assert.Equal(t, "No answer yet.", m.renderResult())
}

func TestUpdate_CtrlCQuits(t *testing.T) {
	m := New(&fakeAsker{}, "")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestRenderResult_SectionShown(t *testing.T) {
	m := New(&fakeAsker{}, "")
	m.result = &pipeline.QueryResult{
		Answer: "see [1]",
		Citations: []pipeline.Citation{
			{Marker: "[1]", Source: "report.pdf", Section: "3", Snippet: "page three text"},
		},
	}
	out := m.renderResult()
	assert.Contains(t, out, "report.pdf, 3")
	assert.Contains(t, out, "page three text")
}
