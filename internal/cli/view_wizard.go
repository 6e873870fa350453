package cli

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

var wizardKeys = []key.Binding{
	key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "next")),
	key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
}

// wizardView hosts one huh form (upload, generation, export) on the view
// stack. Finishing or cancelling it pops the wizard via wizardCompleteMsg;
// onSubmit's cmd then runs against whatever view is underneath.
type wizardView struct {
	state    *SharedState
	title    string
	form     *huh.Form
	onSubmit func() tea.Cmd
}

func startWizardCmd(state *SharedState, title string, form *huh.Form, onSubmit func() tea.Cmd) tea.Cmd {
	return pushView(&wizardView{state: state, title: title, form: form, onSubmit: onSubmit})
}

func finishWizard(next tea.Cmd) tea.Cmd {
	return func() tea.Msg { return wizardCompleteMsg{nextCmd: next} }
}

func (v *wizardView) Init() tea.Cmd { return v.form.Init() }

func (v *wizardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.Type == tea.KeyEsc {
		return v, finishWizard(flash("Cancelled."))
	}

	model, cmd := v.form.Update(msg)
	if f, ok := model.(*huh.Form); ok {
		v.form = f
	}
	if v.form.State != huh.StateCompleted {
		return v, cmd
	}

	var next tea.Cmd
	if v.onSubmit != nil {
		next = v.onSubmit()
	}
	return v, finishWizard(tea.Batch(cmd, next))
}

func (v *wizardView) View() string { return "\n" + v.form.View() }

func (v *wizardView) ID() ViewID               { return ViewForm }
func (v *wizardView) Title() string            { return v.title }
func (v *wizardView) ShortHelp() []key.Binding { return wizardKeys }
func (v *wizardView) capturesInput() bool      { return true }
