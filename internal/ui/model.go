// ABOUTME: Bubbletea model for the session monitor
// ABOUTME: Shows connection, peers, sessions and group volumes with keyboard control
package ui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Resonate-Protocol/resonate-sessions/pkg/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const volumeStep = 0.05

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	listStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	cursorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	faintStyle  = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	title string

	// Connection
	connected  bool
	serverName string
	peers      []string

	// Registry
	sessions []session.SessionInfo
	groups   map[string]float64

	// Selection
	groupIdx   int
	sessionIdx int

	showDebug bool
	quitting  bool

	width  int
	height int

	ctrl *VolumeControl
}

// NewModel creates a new TUI model; ctrl may be nil
func NewModel(title string, ctrl *VolumeControl) Model {
	return Model{
		title:  title,
		groups: map[string]float64{session.DefaultGroup: session.DefaultVolume},
		ctrl:   ctrl,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// groupNames returns group names in display order
func (m Model) groupNames() []string {
	names := make([]string, 0, len(m.groups))
	for g := range m.groups {
		names = append(names, g)
	}
	slices.Sort(names)
	return names
}

// SelectedGroup returns the group the volume keys act on
func (m Model) SelectedGroup() string {
	names := m.groupNames()
	if len(names) == 0 {
		return session.DefaultGroup
	}
	return names[m.groupIdx%len(names)]
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(m.title))
	b.WriteString("\n\n")

	b.WriteString(m.renderHeader())
	b.WriteString(m.renderGroups())
	b.WriteString(m.renderSessions())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString("\n")
	b.WriteString(faintStyle.Render("←/→:Group  ↑/↓:Volume  j/k:Select  x:Stop  d:Debug  q:Quit"))

	return b.String()
}

func (m Model) renderHeader() string {
	status := "Disconnected"
	if m.connected {
		status = "Connected"
		if m.serverName != "" {
			status = fmt.Sprintf("Connected to %s", m.serverName)
		}
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("Status: "))
	b.WriteString(valueStyle.Render(status))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Peers: "))
	if len(m.peers) == 0 {
		b.WriteString(valueStyle.Render("none"))
	} else {
		b.WriteString(valueStyle.Render(strings.Join(m.peers, ", ")))
	}
	b.WriteString("\n\n")
	return b.String()
}

func (m Model) renderGroups() string {
	var b strings.Builder
	b.WriteString(listStyle.Render("Groups"))
	b.WriteString("\n")

	selected := m.SelectedGroup()
	for _, g := range m.groupNames() {
		cursor := "  "
		if g == selected {
			cursor = cursorStyle.Render("> ")
		}
		v := m.groups[g]
		b.WriteString(fmt.Sprintf("%s%-12s [%s] %.2f\n", cursor, truncate(g, 12), renderBar(v, 1, 10), v))
	}
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderSessions() string {
	var b strings.Builder
	b.WriteString(listStyle.Render(fmt.Sprintf("Sessions (%d)", len(m.sessions))))
	b.WriteString("\n")

	if len(m.sessions) == 0 {
		b.WriteString(valueStyle.Render("  No active sessions"))
		b.WriteString("\n")
		return b.String()
	}

	for i, s := range m.sessions {
		cursor := "  "
		if i == m.sessionIdx {
			cursor = cursorStyle.Render("> ")
		}
		flags := ""
		if s.Replicates {
			flags += " persistent"
		}
		if s.Looped {
			flags += " looped"
		}
		if !s.Local {
			flags += " remote"
		}
		b.WriteString(fmt.Sprintf("%s%s", cursor, truncate(s.ID, 32)))
		b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s, %s, vol %.2f%s)", truncate(s.Resource, 24), s.Group, s.Volume, flags)))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderDebug() string {
	return fmt.Sprintf("\nDEBUG: %dx%d  groups=%d  sessions=%d\n", m.width, m.height, len(m.groups), len(m.sessions))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.ctrl != nil {
			select {
			case m.ctrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "left", "h":
		if n := len(m.groups); n > 0 {
			m.groupIdx = (m.groupIdx + n - 1) % n
		}
	case "right", "l", "tab":
		if n := len(m.groups); n > 0 {
			m.groupIdx = (m.groupIdx + 1) % n
		}
	case "up":
		m.nudgeVolume(volumeStep)
	case "down":
		m.nudgeVolume(-volumeStep)
	case "j":
		if m.sessionIdx < len(m.sessions)-1 {
			m.sessionIdx++
		}
	case "k":
		if m.sessionIdx > 0 {
			m.sessionIdx--
		}
	case "x":
		if m.sessionIdx < len(m.sessions) && m.ctrl != nil {
			select {
			case m.ctrl.Stops <- m.sessions[m.sessionIdx].ID:
			default:
			}
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// nudgeVolume changes the selected group's volume and reports it
func (m *Model) nudgeVolume(delta float64) {
	group := m.SelectedGroup()
	v := m.groups[group] + delta
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}

	groups := make(map[string]float64, len(m.groups))
	for g, gv := range m.groups {
		groups[g] = gv
	}
	groups[group] = v
	m.groups = groups

	if m.ctrl != nil {
		select {
		case m.ctrl.Changes <- VolumeChangeMsg{Group: group, Volume: v}:
		default:
		}
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.Peers != nil {
		m.peers = msg.Peers
	}
	if msg.Sessions != nil {
		m.sessions = msg.Sessions
		if m.sessionIdx >= len(m.sessions) {
			m.sessionIdx = max(0, len(m.sessions)-1)
		}
	}
	if msg.Groups != nil {
		selected := m.SelectedGroup()
		m.groups = msg.Groups
		m.groupIdx = max(0, slices.Index(m.groupNames(), selected))
	}
}

// StatusMsg updates TUI state; nil fields are left unchanged
type StatusMsg struct {
	Connected  *bool
	ServerName string
	Peers      []string
	Sessions   []session.SessionInfo
	Groups     map[string]float64
}

func renderBar(value, full float64, width int) string {
	filled := int(value / full * float64(width))
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
