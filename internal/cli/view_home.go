package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/studygen/internal/access"
	"github.com/alexanderramin/studygen/internal/cli/formatter"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

type homeAction int

const (
	actionNewTest homeAction = iota
	actionResults
	actionLogin
	actionLogout
	actionQuit
)

type homeItem struct {
	label  string
	hint   string
	action homeAction
}

// logoutDoneMsg reports the end of a logout started from the home view.
type logoutDoneMsg struct {
	err error
}

// homeView is the shell's start page: a menu of what the user can do.
type homeView struct {
	state  *SharedState
	cursor int
}

func newHomeView(state *SharedState) *homeView {
	return &homeView{state: state}
}

func (v *homeView) ID() ViewID    { return ViewHome }
func (v *homeView) Title() string { return "" }

func (v *homeView) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("up", "down"), key.WithHelp("↑↓", "move")),
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	}
}

func (v *homeView) Init() tea.Cmd {
	if !v.state.App.Sessions.Current().Resolved {
		return refreshSession(v.state.Ctx, v.state.App)
	}
	return nil
}

func (v *homeView) items() []homeItem {
	items := []homeItem{
		{label: "Generate a test", hint: "upload a study file and answer generated questions", action: actionNewTest},
		{label: "Results", hint: "your submitted tests and scores", action: actionResults},
	}
	if v.state.App.Sessions.Current().Session.Authenticated() {
		items = append(items, homeItem{label: "Log out", action: actionLogout})
	} else {
		items = append(items, homeItem{label: "Log in", action: actionLogin})
	}
	return append(items, homeItem{label: "Quit", action: actionQuit})
}

func (v *homeView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionResolvedMsg:
		v.clampCursor()
		return v, nil

	case logoutDoneMsg:
		v.clampCursor()
		if msg.err != nil {
			return v, flash(formatter.StyleRed.Render(describeError(msg.err)))
		}
		return v, flash("Logged out.")

	case tea.KeyMsg:
		items := v.items()
		switch msg.String() {
		case "up", "k":
			if v.cursor > 0 {
				v.cursor--
			}
		case "down", "j":
			if v.cursor < len(items)-1 {
				v.cursor++
			}
		case "enter":
			if v.cursor < len(items) {
				return v, v.run(items[v.cursor].action)
			}
		}
	}
	return v, nil
}

func (v *homeView) clampCursor() {
	if n := len(v.items()); v.cursor >= n {
		v.cursor = n - 1
	}
}

func (v *homeView) run(a homeAction) tea.Cmd {
	switch a {
	case actionNewTest:
		return openGated(workflowTarget(v.state))
	case actionResults:
		return openGated(resultsTarget(v.state))
	case actionLogin:
		return pushView(newLoginView(v.state, nil))
	case actionLogout:
		return logoutCmd(v.state.Ctx, v.state.App)
	case actionQuit:
		return func() tea.Msg { return quitMsg{} }
	}
	return nil
}

func logoutCmd(ctx context.Context, app *App) tea.Cmd {
	return func() tea.Msg {
		return logoutDoneMsg{err: app.Sessions.Logout(ctx)}
	}
}

// workflowTarget opens a fresh workflow for members.
func workflowTarget(state *SharedState) gatedTarget {
	return gatedTarget{
		title:    "New test",
		required: access.Members,
		build:    func() View { return newWorkflowView(state) },
	}
}

// resultsTarget opens the results history for members.
func resultsTarget(state *SharedState) gatedTarget {
	return gatedTarget{
		title:    "Results",
		required: access.Members,
		build:    func() View { return newResultsView(state) },
	}
}

func (v *homeView) View() string {
	var b strings.Builder
	b.WriteString("\n")
	snap := v.state.App.Sessions.Current()
	if snap.Resolved {
		b.WriteString("  " + formatter.FormatSession(snap.Session) + "\n\n")
	}
	for i, it := range v.items() {
		cursor := "  "
		style := formatter.StyleFg
		if i == v.cursor {
			cursor = formatter.StyleGreen.Render("▸ ")
			style = formatter.StyleBold
		}
		line := fmt.Sprintf("  %s%s", cursor, style.Render(it.label))
		if it.hint != "" {
			line += "  " + formatter.Dim(it.hint)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}
