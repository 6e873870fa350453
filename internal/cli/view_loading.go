package cli

import (
	"context"

	"github.com/alexanderramin/studygen/internal/cli/formatter"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// sessionResolvedMsg reports that a session refresh settled.
type sessionResolvedMsg struct {
	err error
}

func refreshSession(ctx context.Context, app *App) tea.Cmd {
	return func() tea.Msg {
		_, err := app.Sessions.Refresh(ctx)
		return sessionResolvedMsg{err: err}
	}
}

// loadingView stands in for a gated view while the session is unresolved.
// Once the refresh settles the target goes through the gate again.
type loadingView struct {
	state  *SharedState
	target gatedTarget
	spin   spinner.Model
	err    error
}

func newLoadingView(state *SharedState, target gatedTarget) *loadingView {
	return &loadingView{
		state:  state,
		target: target,
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(formatter.StylePurple)),
	}
}

func (v *loadingView) ID() ViewID    { return ViewLoading }
func (v *loadingView) Title() string { return v.target.title }

func (v *loadingView) ShortHelp() []key.Binding {
	if v.err == nil {
		return nil
	}
	return []key.Binding{key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry"))}
}

func (v *loadingView) Init() tea.Cmd {
	return tea.Batch(v.spin.Tick, refreshSession(v.state.Ctx, v.state.App))
}

func (v *loadingView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionResolvedMsg:
		// A cancelled refresh leaves the session unresolved; asking the
		// gate again would only show this view again.
		if msg.err != nil && gateway.KindOf(msg.err) == gateway.KindCancelled {
			v.err = msg.err
			return v, nil
		}
		return v, replaceGated(v.target)

	case spinner.TickMsg:
		if v.err != nil {
			return v, nil
		}
		var cmd tea.Cmd
		v.spin, cmd = v.spin.Update(msg)
		return v, cmd

	case tea.KeyMsg:
		if msg.String() == "r" && v.err != nil {
			v.err = nil
			return v, v.Init()
		}
	}
	return v, nil
}

func (v *loadingView) View() string {
	if v.err != nil {
		return "\n  " + formatter.StyleRed.Render("Could not check your session: "+v.err.Error())
	}
	return "\n  " + v.spin.View() + " " + formatter.Dim("Checking your session...")
}
