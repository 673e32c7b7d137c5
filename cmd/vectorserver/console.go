package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/vectorserver/client"
	"github.com/a-h/vectorserver/models"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

type ConsoleCommand struct {
	ServerURL string `help:"The URL of the vector server." env:"VECTOR_SERVER_URL" default:"http://localhost:8000"`
	APIKey    string `help:"The API key for the vector server." env:"VECTOR_SERVER_API_KEY" default:""`
	K         int    `help:"The number of results to show for each search." default:"5"`
}

func (c ConsoleCommand) Run(ctx context.Context) (err error) {
	cl := client.New(c.ServerURL, c.APIKey)
	search := func(ctx context.Context, text string) (models.SearchPostResponse, error) {
		k := c.K
		return cl.Search(ctx, models.SearchPostRequest{Text: text, K: &k})
	}
	insights := func(ctx context.Context, content string) (models.KeyInsightsPostResponse, error) {
		return cl.KeyInsights(ctx, models.KeyInsightsPostRequest{Content: content})
	}
	p := tea.NewProgram(newConsoleModel(ctx, search, insights))
	if _, err = p.Run(); err != nil {
		return err
	}
	return nil
}

// Dracula color scheme.
var (
	CurrentLine = lipgloss.Color("#44475a")
	Foreground  = lipgloss.Color("#f8f8f2")
	Comment     = lipgloss.Color("#6272a4")
	Cyan        = lipgloss.Color("#8be9fd")
	Green       = lipgloss.Color("#50fa7b")
	Pink        = lipgloss.Color("#ff79c6")
	Purple      = lipgloss.Color("#bd93f9")
	Red         = lipgloss.Color("#ff5555")
)

var (
	titleStyle   = lipgloss.NewStyle().Background(CurrentLine).Foreground(Purple).Bold(true).Padding(0, 1)
	queryStyle   = lipgloss.NewStyle().Margin(1, 1, 0).Foreground(Pink).Bold(true)
	resultStyle  = lipgloss.NewStyle().MarginLeft(3).Foreground(Foreground)
	scoreStyle   = lipgloss.NewStyle().Foreground(Green)
	idStyle      = lipgloss.NewStyle().Foreground(Cyan)
	insightStyle = lipgloss.NewStyle().MarginLeft(3).Foreground(Cyan)
	noteStyle    = lipgloss.NewStyle().MarginLeft(3).Foreground(Comment).Italic(true)
	errorStyle   = lipgloss.NewStyle().MarginLeft(3).Foreground(Red)
)

const insightsPrefix = ":insights "

const usage = "Type text to search for similar entries, or " + insightsPrefix + "<text> to extract key insights."

type searchFunc func(ctx context.Context, text string) (models.SearchPostResponse, error)

type insightsFunc func(ctx context.Context, content string) (models.KeyInsightsPostResponse, error)

type consoleEntry struct {
	query      string
	isInsights bool
	pending    bool
	results    []models.SearchResult
	insights   []models.KeyInsight
	err        error
}

type searchDoneMsg struct {
	index int
	resp  models.SearchPostResponse
	err   error
}

type insightsDoneMsg struct {
	index int
	resp  models.KeyInsightsPostResponse
	err   error
}

type consoleModel struct {
	ctx      context.Context
	viewport viewport.Model
	textarea textarea.Model
	width    int

	search   searchFunc
	insights insightsFunc
	entries  []consoleEntry
}

func newConsoleModel(ctx context.Context, search searchFunc, insights insightsFunc) consoleModel {
	ta := textarea.New()
	ta.Placeholder = "Search..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 2000
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	m := consoleModel{
		ctx:      ctx,
		viewport: viewport.New(80, 20),
		textarea: ta,
		width:    80,
		search:   search,
		insights: insights,
	}
	m.render()
	return m
}

func (m consoleModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m *consoleModel) submit(text string) tea.Cmd {
	ctx, search, insights := m.ctx, m.search, m.insights
	index := len(m.entries)
	if content, ok := strings.CutPrefix(text, insightsPrefix); ok {
		m.entries = append(m.entries, consoleEntry{query: content, isInsights: true, pending: true})
		return func() tea.Msg {
			resp, err := insights(ctx, content)
			return insightsDoneMsg{index: index, resp: resp, err: err}
		}
	}
	m.entries = append(m.entries, consoleEntry{query: text, pending: true})
	return func() tea.Msg {
		resp, err := search(ctx, text)
		return searchDoneMsg{index: index, resp: resp, err: err}
	}
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case searchDoneMsg:
		e := &m.entries[msg.index]
		e.pending, e.err, e.results = false, msg.err, msg.resp.Results
		m.render()
		return m, nil
	case insightsDoneMsg:
		e := &m.entries[msg.index]
		e.pending, e.err, e.insights = false, msg.err, msg.resp.KeyInsights
		m.render()
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - m.textarea.Height() - 3
		m.textarea.SetWidth(msg.Width)
		m.render()
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "enter":
			v := strings.TrimSpace(m.textarea.Value())
			if v == "" {
				return m, nil
			}
			m.textarea.Reset()
			// Copy the entries so earlier models are not modified.
			m.entries = append([]consoleEntry(nil), m.entries...)
			cmd := m.submit(v)
			m.render()
			return m, cmd
		default:
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(msg)
			return m, cmd
		}
	case cursor.BlinkMsg:
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *consoleModel) render() {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("vectorserver"))
	sb.WriteString("\n")
	sb.WriteString(noteStyle.Render(usage))
	sb.WriteString("\n")
	for _, e := range m.entries {
		sb.WriteString(formatEntry(e, m.width))
	}
	m.viewport.SetContent(sb.String())
	m.viewport.GotoBottom()
}

func formatEntry(e consoleEntry, width int) string {
	wrapAt := max(width-6, 20)
	var sb strings.Builder
	icon := "🔎"
	if e.isInsights {
		icon = "💡"
	}
	sb.WriteString(queryStyle.Render(wordwrap.String(icon+" "+e.query, wrapAt)))
	sb.WriteString("\n")
	switch {
	case e.pending:
		sb.WriteString(noteStyle.Render("..."))
		sb.WriteString("\n")
	case e.err != nil:
		sb.WriteString(errorStyle.Render(wordwrap.String(e.err.Error(), wrapAt)))
		sb.WriteString("\n")
	case e.isInsights && len(e.insights) == 0:
		sb.WriteString(noteStyle.Render("no insights"))
		sb.WriteString("\n")
	case e.isInsights:
		for _, ki := range e.insights {
			sb.WriteString(insightStyle.Render(wordwrap.String("• "+ki.Text, wrapAt)))
			sb.WriteString("\n")
		}
	case len(e.results) == 0:
		sb.WriteString(noteStyle.Render("no results"))
		sb.WriteString("\n")
	default:
		for _, r := range e.results {
			sb.WriteString(resultStyle.Render(formatResult(r, wrapAt)))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func formatResult(r models.SearchResult, wrapAt int) string {
	line := scoreStyle.Render(fmt.Sprintf("%.4f", r.Score)) + " " + idStyle.Render(r.ID)
	if text, ok := r.Metadata["text"].(string); ok && text != "" {
		line += "\n" + wordwrap.String(text, wrapAt)
	}
	return line
}

func (m consoleModel) View() string {
	return fmt.Sprintf("%s\n\n%s",
		m.viewport.View(),
		m.textarea.View(),
	) + "\n\n"
}
