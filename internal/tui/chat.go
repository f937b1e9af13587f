package tui

import (
	"context"
	"fmt"
	"strings"

	"coderag/internal/llm"
	"coderag/internal/rag"
	"coderag/internal/store"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// maxHistory bounds the conversation turns sent with each question.
const maxHistory = 20

type chatState int

const (
	chatIdle chatState = iota
	chatSearching
	chatGenerating
)

// ChatConfig wires the chat screen to retrieval and generation.
type ChatConfig struct {
	Retriever *rag.Retriever
	Generator llm.Generator
	K         int
}

type chatModel struct {
	ctx         context.Context
	cfg         ChatConfig
	viewport    viewport.Model
	input       textinput.Model
	spinner     spinner.Model
	renderer    *glamour.TermRenderer
	messages    []chatMessage
	history     []llm.Message
	pending     string // question awaiting an answer
	state       chatState
	width       int
	height      int
	initialized bool
}

type chatMessage struct {
	role    string
	content string
}

// retrievedMsg is sent when retrieval for a question completes.
type retrievedMsg struct {
	question string
	results  []store.SearchResult
	err      error
}

// answerMsg is sent when generation completes.
type answerMsg struct {
	answer string
	err    error
}

func newChatModel(ctx context.Context, cfg ChatConfig) chatModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	ti := textinput.New()
	ti.Placeholder = "Ask a question about your codebase..."
	ti.CharLimit = 2000
	ti.Focus()

	return chatModel{
		ctx:     ctx,
		cfg:     cfg,
		spinner: sp,
		input:   ti,
		state:   chatIdle,
	}
}

func (m *chatModel) initViewport(width, height int) {
	m.width = width
	m.height = height

	// Layout: viewport + status bar (1 line) + input (1 line) + gap (1 line).
	vpHeight := max(height-3, 5)
	m.viewport = viewport.New(width, vpHeight)
	m.viewport.SetContent(dimStyle.Render("Ask a question about your codebase.\n\nCommands: /help, /clear, /exit"))

	m.input.Width = width - 4

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err == nil {
		m.renderer = r
	}

	m.initialized = true
}

func retrieve(ctx context.Context, r *rag.Retriever, question string, k int) tea.Cmd {
	return func() tea.Msg {
		results, err := r.Search(ctx, question, k)
		if err != nil {
			return retrievedMsg{err: fmt.Errorf("retrieval error: %w", err)}
		}
		return retrievedMsg{question: question, results: results}
	}
}

func generate(ctx context.Context, gen llm.Generator, msgs []llm.Message) tea.Cmd {
	return func() tea.Msg {
		answer, err := gen.Generate(ctx, msgs)
		if err != nil {
			return answerMsg{err: fmt.Errorf("generation error: %w", err)}
		}
		return answerMsg{answer: answer}
	}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.initViewport(msg.Width, msg.Height)
		m.refresh()
		return m, nil

	case retrievedMsg:
		if msg.err != nil {
			m.state = chatIdle
			m.pending = ""
			m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
			m.refresh()
			return m, nil
		}
		if len(msg.results) == 0 {
			m.state = chatIdle
			m.pending = ""
			m.messages = append(m.messages, chatMessage{role: "error", content: rag.ErrNoContext.Error()})
			m.refresh()
			return m, nil
		}
		m.state = chatGenerating
		m.refresh()
		return m, generate(m.ctx, m.cfg.Generator, rag.BuildMessages(msg.results, m.history, msg.question))

	case answerMsg:
		m.state = chatIdle
		if msg.err != nil {
			m.messages = append(m.messages, chatMessage{role: "error", content: msg.err.Error()})
		} else {
			m.messages = append(m.messages, chatMessage{role: llm.RoleAssistant, content: msg.answer})
			m.history = append(m.history,
				llm.Message{Role: llm.RoleUser, Content: m.pending},
				llm.Message{Role: llm.RoleAssistant, Content: msg.answer},
			)
			if len(m.history) > maxHistory {
				m.history = m.history[len(m.history)-maxHistory:]
			}
		}
		m.pending = ""
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if m.state != chatIdle {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refresh()
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}
		if m.state != chatIdle {
			return m, nil
		}
		if msg.Type == tea.KeyEnter {
			question := strings.TrimSpace(m.input.Value())
			if question == "" {
				return m, nil
			}
			m.input.Reset()

			switch question {
			case "/exit", "/quit":
				return m, tea.Quit
			case "/clear":
				m.messages = nil
				m.history = nil
				m.viewport.SetContent(dimStyle.Render("Conversation cleared."))
				return m, nil
			case "/help":
				helpText := "Commands:\n  /clear  - clear conversation history\n  /exit   - quit\n  /help   - show this help"
				m.messages = append(m.messages, chatMessage{role: "system", content: helpText})
				m.refresh()
				return m, nil
			}

			m.messages = append(m.messages, chatMessage{role: llm.RoleUser, content: question})
			m.pending = question
			m.state = chatSearching
			m.refresh()

			return m, tea.Batch(
				m.spinner.Tick,
				retrieve(m.ctx, m.cfg.Retriever, question, m.cfg.K),
			)
		}
	}

	if m.state == chatIdle {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *chatModel) refresh() {
	if !m.initialized {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m chatModel) renderMarkdown(content string) string {
	if m.renderer == nil {
		return assistantMsgStyle.Render(content)
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return assistantMsgStyle.Render(content)
	}
	return strings.TrimRight(rendered, "\n")
}

func (m chatModel) renderMessages() string {
	var sb strings.Builder
	for _, msg := range m.messages {
		switch msg.role {
		case llm.RoleUser:
			sb.WriteString(userMsgStyle.Render("You: ") + msg.content + "\n\n")
		case llm.RoleAssistant:
			sb.WriteString(m.renderMarkdown(msg.content) + "\n\n")
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+msg.content) + "\n\n")
		case "system":
			sb.WriteString(dimStyle.Render(msg.content) + "\n\n")
		}
	}

	if m.state != chatIdle {
		label := "Searching..."
		if m.state == chatGenerating {
			label = "Generating..."
		}
		sb.WriteString(m.spinner.View() + " " + dimStyle.Render(label) + "\n")
	}

	return sb.String()
}

func (m chatModel) View() string {
	if !m.initialized {
		return ""
	}

	statusText := "idle"
	switch m.state {
	case chatSearching:
		statusText = "searching..."
	case chatGenerating:
		statusText = "generating..."
	}
	statusBar := statusBarStyle.
		Width(m.width).
		Render(fmt.Sprintf(" coderag chat • %s • %s", m.cfg.Generator.Model(), statusText))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.viewport.View(),
		statusBar,
		m.input.View(),
	)
}

// RunChat starts the full-screen chat.
func RunChat(ctx context.Context, cfg ChatConfig) error {
	p := tea.NewProgram(newChatModel(ctx, cfg), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
