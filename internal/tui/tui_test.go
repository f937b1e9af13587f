package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"coderag/internal/chunker"
	"coderag/internal/llm"
	"coderag/internal/store"
	"coderag/internal/walker"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "2.0 KB", FormatSize(2048))
	assert.Equal(t, "1.5 MB", FormatSize(1536*1024))
	assert.Equal(t, "3.0 GB", FormatSize(3*1024*1024*1024))
}

func TestExtensionTable(t *testing.T) {
	out := ExtensionTable(walker.Stats{
		Files:       4,
		ByExtension: map[string]int{".py": 3, ".ts": 1},
	})
	assert.Contains(t, out, "Extension")
	assert.Contains(t, out, ".py")
	assert.Contains(t, out, ".ts")
	assert.Less(t, strings.Index(out, ".py"), strings.Index(out, ".ts"), "most common first")
}

func TestResultsMarkdown(t *testing.T) {
	md := ResultsMarkdown([]store.SearchResult{{
		Chunk: chunker.Chunk{
			FilePath:  "auth.py",
			Content:   "def login():\n    pass",
			StartLine: 3,
			EndLine:   4,
			Kind:      chunker.KindFunction,
			Name:      "login",
		},
		Distance: 0.25,
	}}, func(string) string { return "python" })

	assert.Contains(t, md, "### 1. `auth.py` lines 3-4")
	assert.Contains(t, md, "*function:login* · distance 0.2500")
	assert.Contains(t, md, "```python\ndef login():\n    pass\n```")
}

func TestIndexingModel(t *testing.T) {
	var m tea.Model = newIndexingModel("Indexing")

	m, _ = m.Update(indexProgressMsg{phase: "Embedding chunks", done: 3, total: 10})
	view := m.View()
	assert.Contains(t, view, "Embedding chunks")
	assert.Contains(t, view, "3/10")

	m, cmd := m.Update(indexDoneMsg{})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, msgs []llm.Message) (string, error) {
	return "echo: " + msgs[len(msgs)-1].Content, nil
}

func (echoGenerator) Model() string { return "echo" }

func TestChatModel_Flow(t *testing.T) {
	var m tea.Model = newChatModel(context.Background(), ChatConfig{Generator: echoGenerator{}, K: 3})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	cm := m.(chatModel)
	cm.input.SetValue("where is login?")
	m, cmd := cm.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	cm = m.(chatModel)
	assert.Equal(t, chatSearching, cm.state)
	assert.Empty(t, cm.history)
	assert.Equal(t, "where is login?", cm.pending)

	results := []store.SearchResult{{Chunk: chunker.Chunk{FilePath: "auth.py", Content: "def login(): pass", StartLine: 1, EndLine: 1, Kind: chunker.KindFunction, Name: "login"}}}
	m, cmd = cm.Update(retrievedMsg{question: "where is login?", results: results})
	cm = m.(chatModel)
	assert.Equal(t, chatGenerating, cm.state)
	require.NotNil(t, cmd)

	m, _ = cm.Update(cmd())
	cm = m.(chatModel)
	assert.Equal(t, chatIdle, cm.state)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "where is login?"},
		{Role: llm.RoleAssistant, Content: "echo: where is login?"},
	}, cm.history)
	assert.Empty(t, cm.pending)
}

// recordingGenerator remembers the messages of its last call and fails
// while err is set.
type recordingGenerator struct {
	last []llm.Message
	err  error
}

func (g *recordingGenerator) Generate(_ context.Context, msgs []llm.Message) (string, error) {
	g.last = msgs
	if g.err != nil {
		return "", g.err
	}
	return "answer", nil
}

func (g *recordingGenerator) Model() string { return "recording" }

func TestChatModel_FailedTurnsStayOutOfHistory(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("model offline")}
	var m tea.Model = newChatModel(context.Background(), ChatConfig{Generator: gen, K: 3})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	results := []store.SearchResult{{Chunk: chunker.Chunk{FilePath: "auth.py", Content: "def login(): pass", StartLine: 1, EndLine: 1, Kind: chunker.KindFunction, Name: "login"}}}

	ask := func(m tea.Model, question string) tea.Model {
		cm := m.(chatModel)
		cm.input.SetValue(question)
		m, _ = cm.Update(tea.KeyMsg{Type: tea.KeyEnter})
		return m
	}

	m = ask(m, "retrieval fails")
	m, _ = m.Update(retrievedMsg{err: errors.New("retrieval error: store locked")})
	assert.Empty(t, m.(chatModel).history)

	m = ask(m, "nothing matches")
	m, _ = m.Update(retrievedMsg{question: "nothing matches"})
	assert.Empty(t, m.(chatModel).history)

	m = ask(m, "generation fails")
	m, cmd := m.Update(retrievedMsg{question: "generation fails", results: results})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	assert.Empty(t, m.(chatModel).history)

	gen.err = nil
	m = ask(m, "where is login?")
	m, cmd = m.Update(retrievedMsg{question: "where is login?", results: results})
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())

	for _, msg := range gen.last {
		assert.NotContains(t, []string{"retrieval fails", "nothing matches", "generation fails"}, msg.Content)
	}
	require.NotEmpty(t, gen.last)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "where is login?"}, gen.last[len(gen.last)-1])
	assert.Len(t, m.(chatModel).history, 2)
}

func TestChatModel_NoResults(t *testing.T) {
	var m tea.Model = newChatModel(context.Background(), ChatConfig{Generator: echoGenerator{}})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	cm := m.(chatModel)
	cm.input.SetValue("anything")
	m, _ = cm.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m, cmd := m.Update(retrievedMsg{question: "anything"})
	assert.Nil(t, cmd)

	cm = m.(chatModel)
	assert.Equal(t, chatIdle, cm.state)
	require.NotEmpty(t, cm.messages)
	assert.Equal(t, "error", cm.messages[len(cm.messages)-1].role)
}

func TestChatModel_SlashCommands(t *testing.T) {
	var m tea.Model = newChatModel(context.Background(), ChatConfig{Generator: echoGenerator{}})
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	cm := m.(chatModel)
	cm.input.SetValue("/help")
	m, _ = cm.Update(tea.KeyMsg{Type: tea.KeyEnter})
	cm = m.(chatModel)
	require.Len(t, cm.messages, 1)
	assert.Equal(t, "system", cm.messages[0].role)

	cm.input.SetValue("/clear")
	m, _ = cm.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.(chatModel).messages)

	cm = m.(chatModel)
	cm.input.SetValue("/exit")
	_, cmd := cm.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
