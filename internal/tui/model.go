package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"chatpdf/internal/domain"
	"chatpdf/internal/textutil"
)

// Asker is the TUI-facing subset of the session.
type Asker interface {
	Ask(ctx context.Context, question string) (*domain.Answer, error)
}

type turn struct {
	question string
	answer   strings.Builder
	sources  domain.RetrievalResult
	err      error
}

// Model is the Bubble Tea model for the chat loop.
type Model struct {
	asker    Asker
	input    textinput.Model
	viewport viewport.Model
	turns    []*turn
	summary  string
	status   string
	ready    bool

	showSources bool
	cursor      int

	busy    bool
	cancel  context.CancelFunc
	updates chan tea.Msg
}

// New creates a new TUI model. summary is shown under the header.
func New(asker Asker, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{asker: asker, input: ti, viewport: vp, summary: summary, status: "Ready. Tab toggles sources, Ctrl+C stops an answer or quits."}
}

type sourcesMsg struct{ sources domain.RetrievalResult }

type fragmentMsg struct{ text string }

type doneMsg struct{ err error }

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header and summary, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.refresh()
		return m, nil
	case sourcesMsg:
		m.current().sources = msg.sources
		m.cursor = 0
		m.refresh()
		return m, m.next()
	case fragmentMsg:
		m.current().answer.WriteString(msg.text)
		m.refresh()
		return m, m.next()
	case doneMsg:
		t := m.current()
		switch {
		case errors.Is(msg.err, context.Canceled):
			m.status = "Answer stopped."
		case msg.err != nil:
			t.err = msg.err
			m.status = "Error: " + msg.err.Error()
		default:
			m.status = fmt.Sprintf("Answered from %d passages.", len(t.sources))
		}
		m.busy, m.cancel, m.updates = false, nil, nil
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.busy {
				m.cancel()
				m.status = "Stopping..."
				return m, nil
			}
			return m, tea.Quit
		}
		if msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.busy {
				return m, nil
			}
			m.input.SetValue("")
			cmd := m.ask(q)
			return m, cmd
		case "tab":
			m.showSources = !m.showSources
			m.refresh()
			return m, nil
		case "down":
			if n := m.sourceCount(); m.showSources && n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.refresh()
				return m, nil
			}
		case "up":
			if n := m.sourceCount(); m.showSources && n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.refresh()
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// ask starts answering q in the background. Events arrive on m.updates
// and are pulled one at a time by next.
func (m *Model) ask(q string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan tea.Msg, 16)
	m.turns = append(m.turns, &turn{question: q})
	m.busy, m.cancel, m.updates = true, cancel, updates
	m.status = "Thinking..."
	m.refresh()

	asker := m.asker
	go func() {
		defer cancel()
		ans, err := asker.Ask(ctx, q)
		if err != nil {
			updates <- doneMsg{err: err}
			return
		}
		updates <- sourcesMsg{sources: ans.Sources}
		for frag, err := range ans.Fragments() {
			if err != nil {
				updates <- doneMsg{err: err}
				return
			}
			if ctx.Err() != nil {
				updates <- doneMsg{err: ctx.Err()}
				return
			}
			updates <- fragmentMsg{text: frag}
		}
		updates <- doneMsg{}
	}()
	return m.next()
}

func (m Model) next() tea.Cmd {
	updates := m.updates
	if updates == nil {
		return nil
	}
	return func() tea.Msg { return <-updates }
}

func (m Model) current() *turn {
	if len(m.turns) == 0 {
		return &turn{}
	}
	return m.turns[len(m.turns)-1]
}

func (m Model) sourceCount() int {
	if len(m.turns) == 0 {
		return 0
	}
	return len(m.current().sources)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Chat with PDF")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if len(m.turns) == 0 {
		return "No questions yet."
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("You: " + t.question))
		b.WriteString("\n")
		switch {
		case t.err != nil:
			b.WriteString(errorStyle.Render(t.err.Error()))
		case t.answer.Len() == 0:
			b.WriteString("...")
		default:
			b.WriteString(t.answer.String())
		}
	}
	if m.showSources {
		b.WriteString("\n\n")
		b.WriteString(m.renderSource())
	}
	return b.String()
}

func (m Model) renderSource() string {
	t := m.current()
	if len(t.sources) == 0 {
		return "No sources."
	}
	r := t.sources[m.cursor]
	title := fmt.Sprintf("Source %d/%d  page=%d  score=%.3f", m.cursor+1, len(t.sources), r.Chunk.Source.Page, r.Score)
	return title + "\n" + highlightBestSentence(r.Chunk.Text, t.question)
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
)

// highlightBestSentence emphasizes the sentence sharing the most distinct
// tokens with query. The first sentence wins ties.
func highlightBestSentence(text, query string) string {
	sentences := textutil.Sentences(text)
	if len(sentences) == 0 {
		return text
	}
	qTokens := textutil.TokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		score := 0
		for tok := range textutil.TokenSet(s) {
			if _, ok := qTokens[tok]; ok {
				score++
			}
		}
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	out := make([]string, len(sentences))
	copy(out, sentences)
	out[bestIdx] = highlightStyle.Render(out[bestIdx])
	return strings.Join(out, " ")
}
