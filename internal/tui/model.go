package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragqa/internal/chat"
	"ragqa/internal/domain"
	"ragqa/internal/service"
)

type retrievedMsg struct {
	results []domain.RetrievalResult
	err     error
}

type answeredMsg struct {
	answer *service.Answer
	err    error
}

// Model is the Bubble Tea model for the question loop.
type Model struct {
	ctx      context.Context
	session  *chat.Session
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	results  []domain.RetrievalResult
	answer   string
	summary  string
	status   string
	cursor   int
	ready    bool
	query    string
}

// New creates a new TUI model instance. summary is shown under the title.
func New(ctx context.Context, session *chat.Session, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		ctx:      ctx,
		session:  session,
		input:    ti,
		viewport: vp,
		spinner:  sp,
		summary:  summary,
		status:   "Chatbot ready! Esc to exit.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) busy() bool {
	s := m.session.State()
	return s == chat.Retrieving || s == chat.Generating
}

// Update handles key, window and pipeline events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-rh)
		m.viewport.SetContent(m.render())
		return m, nil

	case retrievedMsg:
		if msg.err != nil {
			return m.failed(msg.err)
		}
		m.results = msg.results
		m.cursor = 0
		m.status = "Generating answer..."
		m.viewport.SetContent(m.render())
		return m, m.generate()

	case answeredMsg:
		if msg.err != nil {
			return m.failed(msg.err)
		}
		m.answer = msg.answer.Text
		m.status = fmt.Sprintf("Answered %q", m.query)
		m.viewport.SetContent(m.render())
		if err := m.session.Displayed(); err != nil {
			m.status = "Error: " + err.Error()
		}
		if m.session.State() == chat.Terminated {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC, tea.KeyCtrlD:
			if m.session.RequestExit() == chat.Terminated {
				return m, tea.Quit
			}
			m.status = "Exiting after the current answer..."
			return m, nil
		case tea.KeyEnter:
			if m.busy() {
				return m, nil
			}
			q := strings.TrimSpace(m.input.Value())
			if q == "" {
				return m, nil
			}
			if err := m.session.Begin(q); err != nil {
				m.status = "Error: " + err.Error()
				return m, nil
			}
			m.query = q
			m.answer = ""
			m.results = nil
			m.input.SetValue("")
			m.status = "Retrieving documents..."
			m.viewport.SetContent(m.render())
			return m, tea.Batch(m.retrieve(), m.spinner.Tick)
		case tea.KeyDown:
			if len(m.results) > 0 {
				m.cursor = (m.cursor + 1) % len(m.results)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		case tea.KeyUp:
			if len(m.results) > 0 {
				m.cursor = (m.cursor - 1 + len(m.results)) % len(m.results)
				m.viewport.SetContent(m.render())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) retrieve() tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		res, err := s.Retrieve(ctx)
		return retrievedMsg{results: res, err: err}
	}
}

func (m Model) generate() tea.Cmd {
	ctx, s := m.ctx, m.session
	return func() tea.Msg {
		ans, err := s.Generate(ctx)
		return answeredMsg{answer: ans, err: err}
	}
}

func (m Model) failed(err error) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(err, domain.ErrProviderUnavailable):
		m.status = "Model backend unavailable: " + err.Error()
	default:
		m.status = "Error: " + err.Error()
	}
	m.viewport.SetContent(m.render())
	if m.session.State() == chat.Terminated {
		return m, tea.Quit
	}
	return m, nil
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Question Answering")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := m.status
	if m.busy() {
		status = m.spinner.View() + " " + status
	}
	status = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) render() string {
	if len(m.results) == 0 {
		if m.query == "" {
			return "No question yet."
		}
		if m.answer == "" {
			return "No documents retrieved."
		}
	}
	var b strings.Builder
	if len(m.results) > 0 {
		r := m.results[m.cursor]
		fmt.Fprintf(&b, "Retrieved Document Index: %d  (%d/%d, distance=%.3f)\n\n",
			r.Document.Position, m.cursor+1, len(m.results), r.Distance)
		b.WriteString(highlightBestSentence(r.Document.Text, m.query))
		b.WriteString("\n\n")
	}
	if m.answer != "" {
		b.WriteString(answerStyle.Render("[FINAL CHATBOT ANSWER]:"))
		b.WriteString(" ")
		b.WriteString(m.answer)
	}
	return b.String()
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`[^.!?]+(?:[.!?]+|\z)`)
)

// highlightBestSentence emphasises the sentence sharing most words with the query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx, bestScore := 0, -1
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore, bestIdx = score, i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sent = highlightStyle.Render(sent)
		}
		sentences[i] = sent
	}
	return strings.Join(sentences, " ")
}

// splitSentences keeps a trailing fragment without a terminator as its own
// sentence.
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
