package cli

import (
	"github.com/alexanderramin/studygen/internal/domain"
	tea "github.com/charmbracelet/bubbletea"
)

// Navigation messages used by views to request view transitions.
// The appModel handles these in its Update method.

// pushViewMsg pushes a new view onto the navigation stack.
type pushViewMsg struct {
	view View
}

// popViewMsg pops the current view off the navigation stack,
// returning to the previous view.
type popViewMsg struct{}

// replaceViewMsg replaces the current top view with a new one.
type replaceViewMsg struct {
	view View
}

// gatedTarget is a view that may only be opened by a session holding one
// of the required roles. build is called once access is granted.
type gatedTarget struct {
	title    string
	required []domain.Role
	build    func() View
}

// openGatedMsg asks the appModel to run the access gate for target and
// then show the target, a loading view or the login view.
type openGatedMsg struct {
	target  gatedTarget
	replace bool
}

// flashMsg shows a one-line notice under the header until the next key press.
type flashMsg struct {
	text string
}

// wizardCompleteMsg is sent when a wizard form completes or is cancelled.
// The appModel handles it atomically: pop the wizard view, then run nextCmd.
type wizardCompleteMsg struct {
	nextCmd tea.Cmd
}

// quitMsg ends the shell.
type quitMsg struct{}

// pushView returns a tea.Cmd that pushes a view onto the stack.
func pushView(v View) tea.Cmd {
	return func() tea.Msg { return pushViewMsg{view: v} }
}

// popView returns a tea.Cmd that pops the current view.
func popView() tea.Cmd {
	return func() tea.Msg { return popViewMsg{} }
}

// replaceView returns a tea.Cmd that replaces the top view.
func replaceView(v View) tea.Cmd {
	return func() tea.Msg { return replaceViewMsg{view: v} }
}

// openGated returns a tea.Cmd that pushes target through the access gate.
func openGated(target gatedTarget) tea.Cmd {
	return func() tea.Msg { return openGatedMsg{target: target} }
}

// replaceGated is openGated for a view that takes the place of the current one.
func replaceGated(target gatedTarget) tea.Cmd {
	return func() tea.Msg { return openGatedMsg{target: target, replace: true} }
}

func flash(text string) tea.Cmd {
	return func() tea.Msg { return flashMsg{text: text} }
}
