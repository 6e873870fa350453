package cli

import (
	"context"
	"testing"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubView struct {
	id         ViewID
	title      string
	viewText   string
	capture    bool
	left       int
	initCmd    tea.Cmd
	updateCmd  tea.Cmd
	updateSeen []tea.Msg
}

func (v *stubView) Init() tea.Cmd { return v.initCmd }

func (v *stubView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	v.updateSeen = append(v.updateSeen, msg)
	return v, v.updateCmd
}

func (v *stubView) View() string             { return v.viewText }
func (v *stubView) ID() ViewID               { return v.id }
func (v *stubView) ShortHelp() []key.Binding { return nil }
func (v *stubView) Title() string            { return v.title }
func (v *stubView) capturesInput() bool      { return v.capture }
func (v *stubView) onLeave()                 { v.left++ }

func newStubView(id ViewID, title, text string) *stubView {
	return &stubView{id: id, title: title, viewText: text}
}

func TestNewAppModelStartsAtHome(t *testing.T) {
	m := newAppModel(context.Background(), testApp(t).app)

	require.Len(t, m.viewStack, 1)
	assert.Equal(t, ViewHome, m.activeView().ID())
}

func TestAppModel_NavigationMessages(t *testing.T) {
	m := newAppModel(context.Background(), testApp(t).app)
	v2 := newStubView(ViewWorkflow, "New test", "workflow view")
	v3 := newStubView(ViewResults, "Results", "results view")

	model, cmd := m.Update(pushViewMsg{view: v2})
	m = model.(appModel)
	require.Nil(t, cmd)
	require.Len(t, m.viewStack, 2)
	assert.Equal(t, v2, m.activeView())

	model, cmd = m.Update(replaceViewMsg{view: v3})
	m = model.(appModel)
	require.Nil(t, cmd)
	require.Len(t, m.viewStack, 2)
	assert.Equal(t, v3, m.activeView())
	assert.Equal(t, 1, v2.left, "replaced view is released")

	model, cmd = m.Update(popViewMsg{})
	m = model.(appModel)
	require.Nil(t, cmd)
	require.Len(t, m.viewStack, 1)
	assert.Equal(t, ViewHome, m.activeView().ID())
	assert.Equal(t, 1, v3.left)
}

func TestAppModel_HomeIsNeverPoppedOrReplaced(t *testing.T) {
	m := newAppModel(context.Background(), testApp(t).app)

	model, _ := m.Update(popViewMsg{})
	m = model.(appModel)
	require.Len(t, m.viewStack, 1)

	v := newStubView(ViewResults, "Results", "results")
	model, _ = m.Update(replaceViewMsg{view: v})
	m = model.(appModel)
	require.Len(t, m.viewStack, 2)
	assert.Equal(t, ViewHome, m.viewStack[0].ID())
	assert.Equal(t, v, m.activeView())
}

func TestAppModel_WindowResizeForwardsToActiveView(t *testing.T) {
	m := newAppModel(context.Background(), testApp(t).app)
	v := newStubView(ViewResults, "Results", "results")
	m.viewStack = append(m.viewStack, v)

	model, cmd := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = model.(appModel)
	require.Nil(t, cmd)

	assert.Equal(t, 100, m.state.Width)
	assert.Equal(t, 30, m.state.Height)
	assert.Equal(t, 26, m.state.ContentHeight())
	require.Len(t, v.updateSeen, 1)
	_, ok := v.updateSeen[0].(tea.WindowSizeMsg)
	assert.True(t, ok)
}

func TestAppModel_KeyHandling_GlobalAndCaptured(t *testing.T) {
	t.Run("q quits when active view does not capture input", func(t *testing.T) {
		m := newAppModel(context.Background(), testApp(t).app)
		m.viewStack = append(m.viewStack, newStubView(ViewResults, "Results", "results"))

		model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		m = model.(appModel)
		require.NotNil(t, cmd)
		assert.True(t, m.quitting)
		assert.IsType(t, tea.QuitMsg{}, cmd())
	})

	t.Run("capturing view receives q and esc", func(t *testing.T) {
		m := newAppModel(context.Background(), testApp(t).app)
		v := newStubView(ViewForm, "Upload", "form")
		v.capture = true
		m.viewStack = append(m.viewStack, v)

		model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		m = model.(appModel)
		require.Nil(t, cmd)
		assert.False(t, m.quitting)

		model, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		m = model.(appModel)
		require.Len(t, m.viewStack, 2)
		require.Len(t, v.updateSeen, 2)
		assert.Equal(t, "q", v.updateSeen[0].(tea.KeyMsg).String())
		assert.Equal(t, "esc", v.updateSeen[1].(tea.KeyMsg).String())
	})

	t.Run("esc pops back stack and clears flash", func(t *testing.T) {
		m := newAppModel(context.Background(), testApp(t).app)
		m.viewStack = append(m.viewStack, newStubView(ViewResults, "Results", "results"))
		m.flash = "stale notice"

		model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		m = model.(appModel)
		require.Nil(t, cmd)
		require.Len(t, m.viewStack, 1)
		assert.Empty(t, m.flash)
	})
}

func TestAppModel_WizardCompleteAndFlash(t *testing.T) {
	m := newAppModel(context.Background(), testApp(t).app)
	m.viewStack = append(m.viewStack, newStubView(ViewForm, "Wizard", "wizard"))

	model, cmd := m.Update(wizardCompleteMsg{nextCmd: flash("done")})
	m = model.(appModel)
	require.Len(t, m.viewStack, 1)
	require.NotNil(t, cmd)

	msg := cmd()
	require.IsType(t, flashMsg{}, msg)

	model, cmd = m.Update(msg)
	m = model.(appModel)
	require.Nil(t, cmd)
	assert.Contains(t, m.View(), "done")

	// Pushing a view clears the notice.
	model, _ = m.Update(pushViewMsg{view: newStubView(ViewResults, "Results", "results")})
	m = model.(appModel)
	assert.NotContains(t, m.View(), "done")
}

func TestAppModel_HeaderShowsBreadcrumbs(t *testing.T) {
	m := newAppModel(context.Background(), testApp(t).app)
	m.viewStack = append(m.viewStack,
		newStubView(ViewWorkflow, "New test", "workflow"),
		newStubView(ViewResults, "Results", "results"),
	)

	view := m.View()
	assert.Contains(t, view, "studygen")
	assert.Contains(t, view, "New test › Results")
	assert.Contains(t, view, "checking session...")
}

func TestViewCapturesInput(t *testing.T) {
	assert.False(t, viewCapturesInput(nil))
	assert.False(t, viewCapturesInput(newStubView(ViewResults, "Results", "")))
	assert.True(t, viewCapturesInput(&stubView{capture: true}))
	assert.True(t, viewCapturesInput(newLoginView(&SharedState{}, nil)))
	assert.False(t, viewCapturesInput(newHomeView(&SharedState{})))
}

func TestAppModel_StageResultReachesCoveredWorkflowView(t *testing.T) {
	m := newAppModel(context.Background(), testApp(t).app)
	wv := newWorkflowView(m.state)
	wv.busy = true
	top := newStubView(ViewResults, "Results", "results")
	m.viewStack = append(m.viewStack, wv, top)

	model, _ := m.Update(stageDoneMsg{instanceID: wv.orch.ID()})
	m = model.(appModel)

	assert.False(t, wv.busy, "workflow view underneath settles its stage")
	assert.Empty(t, top.updateSeen)
	assert.Equal(t, top, m.activeView())
}

func TestAppModel_StageResultForDepartedWorkflowIsDropped(t *testing.T) {
	m := newAppModel(context.Background(), testApp(t).app)
	top := newStubView(ViewResults, "Results", "results")
	m.viewStack = append(m.viewStack, top)

	_, cmd := m.Update(stageDoneMsg{instanceID: "gone"})

	assert.Nil(t, cmd)
	assert.Empty(t, top.updateSeen)
}
