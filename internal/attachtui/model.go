// Package attachtui is the read-only live viewer for an agent session: it
// mirrors the session's pane into a scrollable viewport without ever writing
// to the agent's stdin. Supervision keystrokes stay on the agentmux side.
package attachtui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// maxScrollback bounds the line buffer; the oldest lines fall off.
const maxScrollback = 5000

// DataMsg carries a raw output chunk from the session's PTY.
type DataMsg struct {
	Chunk []byte
}

// ExitMsg signals that the session's child process exited.
type ExitMsg struct{}

// KeyMap defines the viewer key bindings.
type KeyMap struct {
	Quit   key.Binding
	Follow key.Binding
	Top    key.Binding
	Bottom key.Binding
}

// DefaultKeyMap returns the default viewer key map.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
		Follow: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "follow"),
		),
		Top: key.NewBinding(
			key.WithKeys("g", "home"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("G", "end"),
			key.WithHelp("G", "bottom"),
		),
	}
}

// Model is the bubbletea model for the attach viewer.
type Model struct {
	session string
	runtime string

	viewport viewport.Model
	keys     KeyMap
	lines    []string
	partial  string
	follow   bool
	exited   bool
	ready    bool
	width    int
	height   int

	eventCh <-chan tea.Msg
}

// NewModel returns a viewer for the named session. Events arrive on eventCh;
// snapshot is the initial pane content shown before live data flows.
func NewModel(session, runtime, snapshot string, eventCh <-chan tea.Msg) Model {
	m := Model{
		session: session,
		runtime: runtime,
		keys:    DefaultKeyMap(),
		follow:  true,
		eventCh: eventCh,
	}
	if snapshot != "" {
		m.appendChunk([]byte(snapshot))
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// waitForEvent blocks on the event channel and re-arms after every message.
func (m Model) waitForEvent() tea.Cmd {
	ch := m.eventCh
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return ExitMsg{}
		}
		return msg
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vh := msg.Height - 2 // header + status bar
		if vh < 1 {
			vh = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vh)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vh
		}
		m.refreshContent()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Follow):
			m.follow = !m.follow
			if m.follow {
				m.viewport.GotoBottom()
			}
			return m, nil
		case key.Matches(msg, m.keys.Top):
			m.follow = false
			m.viewport.GotoTop()
			return m, nil
		case key.Matches(msg, m.keys.Bottom):
			m.follow = true
			m.viewport.GotoBottom()
			return m, nil
		}
		// Manual scrolling disengages follow mode.
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		m.follow = m.viewport.AtBottom()
		return m, cmd

	case DataMsg:
		m.appendChunk(msg.Chunk)
		m.refreshContent()
		return m, m.waitForEvent()

	case ExitMsg:
		m.exited = true
		m.refreshContent()
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// appendChunk folds a PTY chunk into the line buffer. Escape sequences are
// stripped and carriage returns collapse into line rewrites, which matches
// how spinners and progress bars repaint.
func (m *Model) appendChunk(chunk []byte) {
	text := ansi.Strip(string(chunk))
	text = strings.ReplaceAll(text, "\r\n", "\n")

	buf := m.partial + text
	parts := strings.Split(buf, "\n")
	m.partial = parts[len(parts)-1]
	for _, line := range parts[:len(parts)-1] {
		// A bare \r means the line was redrawn; keep the final paint.
		if i := strings.LastIndexByte(line, '\r'); i >= 0 {
			line = line[i+1:]
		}
		m.lines = append(m.lines, line)
	}
	if len(m.lines) > maxScrollback {
		m.lines = m.lines[len(m.lines)-maxScrollback:]
	}
}

func (m *Model) refreshContent() {
	if !m.ready {
		return
	}
	content := strings.Join(m.lines, "\n")
	if m.partial != "" {
		if i := strings.LastIndexByte(m.partial, '\r'); i >= 0 {
			content += "\n" + m.partial[i+1:]
		} else {
			content += "\n" + m.partial
		}
	}
	m.viewport.SetContent(content)
	if m.follow {
		m.viewport.GotoBottom()
	}
}

func (m Model) View() string {
	if !m.ready {
		return "attaching..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.statusView(),
	)
}

func (m Model) headerView() string {
	title := fmt.Sprintf(" %s (%s) ", m.session, m.runtime)
	if m.exited {
		title += exitedBadgeStyle.Render(" exited ")
	}
	return headerStyle.Width(m.width).Render(title)
}

func (m Model) statusView() string {
	mode := "follow"
	if !m.follow {
		mode = fmt.Sprintf("scroll %d%%", int(m.viewport.ScrollPercent()*100))
	}
	left := statusKeyStyle.Render(" "+mode+" ") +
		statusValueStyle.Render(fmt.Sprintf(" %d lines ", len(m.lines)))
	help := statusValueStyle.Render(" f follow  g/G top/bottom  q quit ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(help)
	if gap < 0 {
		gap = 0
	}
	filler := statusBarStyle.Render(strings.Repeat(" ", gap))
	return left + filler + help
}
