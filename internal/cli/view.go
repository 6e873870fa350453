package cli

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// ViewID identifies each type of view in the TUI.
type ViewID int

const (
	ViewHome ViewID = iota
	ViewLogin
	ViewLoading
	ViewWorkflow
	ViewResults
	ViewForm
)

// View is the interface that all TUI views must implement.
// It extends tea.Model with navigation and help metadata.
type View interface {
	tea.Model
	ID() ViewID
	ShortHelp() []key.Binding // key hints shown in the bottom bar
	Title() string            // breadcrumb segment for this view
}

// leaver is implemented by views that hold resources released when they
// are popped or replaced.
type leaver interface {
	onLeave()
}

// inputCapturer is implemented by views that need every key, including
// the global q and esc.
type inputCapturer interface {
	capturesInput() bool
}

func viewCapturesInput(v View) bool {
	c, ok := v.(inputCapturer)
	return ok && c.capturesInput()
}
