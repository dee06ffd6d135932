// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the capture server
package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/CaptureKit/capturekit-go/pkg/capture"
)

// NewModel creates a TUI model bound to the session
func NewModel(name string, session *capture.Session) Model {
	return Model{
		session: session,
		name:    name,
		stats:   session.Stats(),
	}
}

// Run starts the TUI and blocks until the user quits
func Run(name string, session *capture.Session) error {
	p := tea.NewProgram(NewModel(name, session), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
