package cli

import (
	"context"
	"strings"

	"github.com/alexanderramin/studygen/internal/cli/formatter"
	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/validate"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// loginResultMsg carries the outcome of a login attempt.
type loginResultMsg struct {
	session domain.Session
	err     error
}

// loginView asks for credentials. When it was opened in place of a gated
// view, that view is opened again through the gate after a successful login.
type loginView struct {
	state *SharedState
	then  *gatedTarget

	input *LoginInput
	form  *huh.Form
	spin  spinner.Model
	busy  bool
	err   error
}

func newLoginView(state *SharedState, then *gatedTarget) *loginView {
	v := &loginView{
		state: state,
		then:  then,
		spin:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(formatter.StylePurple)),
	}
	v.resetForm("")
	return v
}

func (v *loginView) resetForm(email string) {
	v.input = &LoginInput{Email: email}
	v.form = wizardLogin(v.input)
}

func (v *loginView) ID() ViewID    { return ViewLogin }
func (v *loginView) Title() string { return "Log in" }

func (v *loginView) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "next")),
		key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
	}
}

func (v *loginView) capturesInput() bool { return true }

func (v *loginView) Init() tea.Cmd {
	return v.form.Init()
}

func (v *loginView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loginResultMsg:
		v.busy = false
		if msg.err != nil {
			v.err = msg.err
			v.resetForm(v.input.Email)
			return v, v.form.Init()
		}
		return v, v.afterLogin(msg.session)

	case spinner.TickMsg:
		if !v.busy {
			return v, nil
		}
		var cmd tea.Cmd
		v.spin, cmd = v.spin.Update(msg)
		return v, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return v, popView()
		}
		if v.busy {
			return v, nil
		}
	}

	form, cmd := v.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		v.form = f
	}
	if v.form.State == huh.StateCompleted && !v.busy {
		v.busy = true
		v.err = nil
		return v, tea.Batch(cmd, v.spin.Tick, v.submit(*v.input))
	}
	return v, cmd
}

func (v *loginView) submit(in LoginInput) tea.Cmd {
	app, ctx := v.state.App, v.state.Ctx
	return func() tea.Msg {
		return applyLogin(ctx, app, in)
	}
}

// applyLogin validates the credentials and logs in.
func applyLogin(ctx context.Context, app *App, in LoginInput) tea.Msg {
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Struct(in); err != nil {
		return loginResultMsg{err: err}
	}
	sess, err := app.Sessions.Login(ctx, in.Email, in.Password)
	return loginResultMsg{session: sess, err: err}
}

func (v *loginView) afterLogin(sess domain.Session) tea.Cmd {
	welcome := flash(formatter.StyleGreen.Render("Logged in as ") + formatter.SessionTag(sess, true))
	if v.then != nil {
		return tea.Batch(replaceGated(*v.then), welcome)
	}
	return tea.Batch(popView(), welcome)
}

func (v *loginView) View() string {
	var b strings.Builder
	b.WriteString("\n")
	if v.then != nil {
		b.WriteString("  " + formatter.Dim("Log in to open "+v.then.title+".") + "\n\n")
	}
	if v.err != nil {
		b.WriteString("  " + formatter.StyleRed.Render(describeError(v.err)) + "\n\n")
	}
	if v.busy {
		b.WriteString("  " + v.spin.View() + " " + formatter.Dim("Logging in...") + "\n")
		return b.String()
	}
	b.WriteString(v.form.View())
	return b.String()
}
