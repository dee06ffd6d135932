// ABOUTME: Bubbletea model for the capture server TUI
// ABOUTME: Defines application state and update logic
package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/CaptureKit/capturekit-go/pkg/capture"
)

// Model represents the TUI state
type Model struct {
	session *capture.Session
	name    string

	// Last stats snapshot
	stats capture.SessionStats

	// Dimensions
	width  int
	height int

	showDebug bool
}

// tickMsg drives periodic stats refresh
type tickMsg time.Time

const refreshInterval = 500 * time.Millisecond

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.stats = m.session.Stats()
		return m, tick()
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderStream()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders the session state line
func (m Model) renderHeader() string {
	return fmt.Sprintf(`┌─ %s ─────────────────────────────────────┐
│ State: %-45s │
├──────────────────────────────────────────────────────┤
`, truncate(m.name, 40), m.stats.State)
}

// renderStream renders the negotiated format and output count
func (m Model) renderStream() string {
	format := "not negotiated"
	if m.stats.Format.SampleRate > 0 {
		format = m.stats.Format.String()
	}

	return fmt.Sprintf("│ Format:  %-43s │\n│ Outputs: %-43d │\n", truncate(format, 43), m.stats.SinkCount)
}

// renderStats renders capture and queue statistics
func (m Model) renderStats() string {
	uptime := time.Duration(0)
	if !m.stats.StartedAt.IsZero() && m.stats.State == capture.StateActive {
		uptime = time.Since(m.stats.StartedAt).Round(time.Second)
	}

	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Buffers: %-10d Frames: %-16d     │
│ Queue:   %d/%d peak  Dropped: %-8d (%.1f%%)      │
│ Uptime:  %-43s │
`, m.stats.BuffersCaptured, m.stats.FramesCaptured,
		m.stats.Queue.Len, m.stats.Queue.PeakLen, m.stats.Queue.Dropped,
		m.stats.Queue.DropRate()*100, uptime)
}

// renderDebug renders raw queue counters
func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Enqueued: %-10d Dequeued: %-10d       │
`, m.stats.Queue.TotalEnqueued, m.stats.Queue.TotalDequeued)
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ p:Pause/Resume  s:Start/Stop  d:Debug  q:Quit        │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "p":
		switch m.session.State() {
		case capture.StateActive:
			m.session.Pause()
		case capture.StatePaused:
			m.session.Resume()
		}
	case "s":
		switch m.session.State() {
		case capture.StateActive, capture.StatePaused:
			go m.session.Stop()
		case capture.StateIdle, capture.StateStopped, capture.StateError:
			go m.session.Start()
		}
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
