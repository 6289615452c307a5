package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ctfe/internal/scenario"
)

type progressModel struct {
	title   string
	events  <-chan scenario.Event
	spinner spinner.Model
	prog    progress.Model
	items   []fileItem
	index   map[string]int
	width   int
	done    bool
}

type fileItem struct {
	path   string
	status scenario.Status
	passed int
	total  int
}

type eventMsg scenario.Event
type doneMsg struct{}

// NewProgressModel returns a Bubble Tea model that follows scenario runs
// until events is closed.
func NewProgressModel(title string, files []string, events <-chan scenario.Event) tea.Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 76

	items := make([]fileItem, 0, len(files))
	index := make(map[string]int, len(files))
	for i, file := range files {
		items = append(items, fileItem{path: file})
		index[file] = i
	}
	return &progressModel{
		title:   title,
		events:  events,
		spinner: sp,
		prog:    prog,
		items:   items,
		index:   index,
		width:   80,
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForEvent())
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := m.applyEvent(scenario.Event(msg))
		return m, tea.Batch(cmd, m.listenForEvent())
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		if msg.Width > 0 {
			m.width = msg.Width
			m.prog.Width = msg.Width - 4
		}
		return m, nil
	case progress.FrameMsg:
		pm, cmd := m.prog.Update(msg)
		m.prog = pm.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	if len(m.items) == 0 {
		return ""
	}
	header := fmt.Sprintf("%s %s", m.spinner.View(), m.title)
	if m.done {
		header = "done: " + m.title
	}

	var b strings.Builder
	b.WriteString(styleFor("title").Render(header))
	b.WriteString("\n\n")

	const statusWidth = 8
	nameWidth := max(m.width-statusWidth-14, 20)
	for _, item := range m.items {
		status := item.status.String()
		line := fmt.Sprintf("  %s %s", styleFor(statusKind(item.status)).Render(fmt.Sprintf("%*s", statusWidth, status)), truncate(filepath.Base(item.path), nameWidth))
		if item.status == scenario.StatusPassed || item.status == scenario.StatusFailed {
			line += fmt.Sprintf("  %d/%d", item.passed, item.total)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteByte('\n')
	if m.done {
		b.WriteString(m.prog.ViewAs(1.0))
	} else {
		b.WriteString(m.prog.View())
	}
	b.WriteByte('\n')
	return b.String()
}

func (m *progressModel) listenForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return eventMsg(ev)
	}
}

func (m *progressModel) applyEvent(ev scenario.Event) tea.Cmd {
	idx, ok := m.index[ev.Path]
	if !ok {
		return nil
	}
	item := &m.items[idx]
	item.status = ev.Status
	item.passed, item.total = ev.Passed, ev.Total
	return m.prog.SetPercent(m.fraction())
}

// fraction weighs loaded and running files as partly done.
func (m *progressModel) fraction() float64 {
	if len(m.items) == 0 {
		return 0
	}
	total := 0.0
	for _, item := range m.items {
		switch {
		case item.status.Finished():
			total += 1
		case item.status == scenario.StatusRunning:
			total += 0.5
		case item.status == scenario.StatusLoading:
			total += 0.2
		}
	}
	return total / float64(len(m.items))
}

func statusKind(s scenario.Status) string {
	switch s {
	case scenario.StatusPassed:
		return "pass"
	case scenario.StatusFailed, scenario.StatusError:
		return "fail"
	case scenario.StatusLoading, scenario.StatusRunning:
		return "info"
	default:
		return ""
	}
}
