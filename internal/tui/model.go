// Package tui is an interactive terminal client for asking the knowledge base.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/starford/askwiki/internal/kbservice"
)

// Asker is the TUI-facing subset of the knowledge base service.
type Asker interface {
	Ask(ctx context.Context, question string, threshold *float64) (*kbservice.Answer, error)
	Search(ctx context.Context, query string, limit int) ([]kbservice.SearchHit, error)
	GetEntry(ctx context.Context, id int) (*kbservice.EntryDetail, error)
}

const candidateLimit = 10

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service  Asker
	input    textinput.Model
	viewport viewport.Model
	answer   *kbservice.Answer
	hits     []kbservice.SearchHit
	terms    map[string]struct{}
	summary  string
	status   string
	cursor   int
	ready    bool
}

// New creates a new TUI model instance. summary is shown under the header.
func New(service Asker, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "? "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{service: service, input: ti, viewport: vp, summary: summary, status: "Ready. Type a question."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 2 // header + summary
		totalFooterLines := 1 // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m = m.ask(q)
				m.viewport.SetContent(m.renderCurrent())
				m.viewport.GotoTop()
				return m, nil
			}
		case "down":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor + 1) % len(m.hits)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "up":
			if len(m.hits) > 0 {
				m.cursor = (m.cursor - 1 + len(m.hits)) % len(m.hits)
				m.viewport.SetContent(m.renderCurrent())
				return m, nil
			}
		case "pgdown", "pgup":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) ask(q string) Model {
	ctx := context.Background()
	answer, err := m.service.Ask(ctx, q, nil)
	if err != nil {
		m.status = "Error: " + err.Error()
		m.answer, m.hits = nil, nil
		return m
	}
	hits, err := m.service.Search(ctx, q, candidateLimit)
	if err != nil {
		hits = nil
	}
	m.answer = answer
	m.hits = hits
	m.cursor = 0
	m.terms = termSet(answer.Terms)
	if answer.Found {
		for i, h := range hits {
			if h.EntryID == answer.EntryID {
				m.cursor = i
				break
			}
		}
	}
	if answer.Found {
		m.status = fmt.Sprintf("Answer: entry %d, score %.3f (%d candidates)", answer.EntryID, answer.Score, len(hits))
	} else {
		m.status = fmt.Sprintf("No answer above threshold (%d candidates)", len(hits))
	}
	return m
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("askwiki")
	summary := lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderCurrent() string {
	if m.answer == nil {
		return "No question yet."
	}
	if len(m.hits) == 0 {
		return m.answer.Reply
	}
	h := m.hits[m.cursor]
	marker := ""
	if m.answer.Found && h.EntryID == m.answer.EntryID {
		marker = "  " + answerStyle.Render("[answer]")
	}
	title := fmt.Sprintf("Candidate %d/%d  score=%.3f  overlap=%d%s", m.cursor+1, len(m.hits), h.Score, h.Overlap, marker)

	body := h.Excerpt
	if e, err := m.service.GetEntry(context.Background(), h.EntryID); err == nil {
		body = e.Body
	}
	return title + "\n\n" + titleStyle.Render(h.Title) + "\n\n" + highlightTerms(body, m.terms)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	titleStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	wordRe         = regexp.MustCompile(`[\p{L}\p{N}]+`)
	yoFolder       = strings.NewReplacer("ё", "е")
)

func termSet(terms []string) map[string]struct{} {
	out := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		out[t] = struct{}{}
	}
	return out
}

// highlightTerms renders every word of text whose folded form is in terms.
func highlightTerms(text string, terms map[string]struct{}) string {
	if len(terms) == 0 {
		return text
	}
	return wordRe.ReplaceAllStringFunc(text, func(w string) string {
		if _, ok := terms[yoFolder.Replace(strings.ToLower(w))]; ok {
			return highlightStyle.Render(w)
		}
		return w
	})
}
