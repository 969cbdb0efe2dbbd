// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and its control channels
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// VolumeChangeMsg reports a group volume change made in the TUI
type VolumeChangeMsg struct {
	Group  string
	Volume float64
}

// QuitMsg reports that the user asked to quit
type QuitMsg struct{}

// VolumeControl holds channels for communication from the TUI to the app
type VolumeControl struct {
	Changes chan VolumeChangeMsg
	Stops   chan string
	Quit    chan QuitMsg
}

// NewVolumeControl creates a new control handler
func NewVolumeControl() *VolumeControl {
	return &VolumeControl{
		Changes: make(chan VolumeChangeMsg, 10),
		Stops:   make(chan string, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// Monitor runs the session monitor
type Monitor struct {
	program *tea.Program
	updates chan StatusMsg
	ctrl    *VolumeControl
}

// NewMonitor creates a monitor titled title
func NewMonitor(title string) *Monitor {
	ctrl := NewVolumeControl()
	return &Monitor{
		program: tea.NewProgram(NewModel(title, ctrl), tea.WithAltScreen()),
		updates: make(chan StatusMsg, 10),
		ctrl:    ctrl,
	}
}

// Control returns the channels fed by keyboard input
func (t *Monitor) Control() *VolumeControl {
	return t.ctrl
}

// Run blocks until the user quits or Stop is called
func (t *Monitor) Run() error {
	go func() {
		for status := range t.updates {
			t.program.Send(status)
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update without blocking
func (t *Monitor) Update(status StatusMsg) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop quits the program
func (t *Monitor) Stop() {
	t.program.Quit()
}
