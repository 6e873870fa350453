package cli

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alexanderramin/studygen/internal/teatest"
	"github.com/alexanderramin/studygen/internal/workflow"
	"github.com/stretchr/testify/require"
)

// shellCmdTimeout covers cmds that call the fake backend.
const shellCmdTimeout = 2 * time.Second

// TestDriver wraps teatest.Driver with shell-specific inspection methods.
// It provides access to appModel internals (view stack, shared state,
// the workflow behind the active view) that the generic driver can't see.
type TestDriver struct {
	*teatest.Driver
}

// NewTestDriver creates a TestDriver from a test App.
// It constructs the appModel, sets terminal size, and drains Init()
// (which resolves the session against the fake backend).
func NewTestDriver(t *testing.T, app *App) *TestDriver {
	t.Helper()
	d := newUndrainedDriver(t, app)
	d.DrainInit()
	return d
}

// newUndrainedDriver is NewTestDriver without Init, for tests that need the
// session to stay unresolved.
func newUndrainedDriver(t *testing.T, app *App) *TestDriver {
	t.Helper()
	m := newAppModel(context.Background(), app)
	d := teatest.New(t, m, teatest.WithCmdTimeout(shellCmdTimeout), teatest.WithSize(120, 40))
	return &TestDriver{Driver: d}
}

// ── Shell-specific inspection ────────────────────────────────────────────────

func (d *TestDriver) appModel() appModel {
	return d.Model.(appModel)
}

// ActiveViewID returns the ViewID of the top view on the stack.
func (d *TestDriver) ActiveViewID() ViewID {
	m := d.appModel()
	v := m.activeView()
	if v == nil {
		return ViewID(-1)
	}
	return v.ID()
}

// ViewStackIDs returns the ViewIDs of all views on the stack, bottom to top.
func (d *TestDriver) ViewStackIDs() []ViewID {
	m := d.appModel()
	ids := make([]ViewID, len(m.viewStack))
	for i, v := range m.viewStack {
		ids[i] = v.ID()
	}
	return ids
}

// State returns the shared state for inspection.
func (d *TestDriver) State() *SharedState {
	return d.appModel().state
}

// Flash returns the notice currently shown under the header.
func (d *TestDriver) Flash() string {
	return d.appModel().flash
}

// IsQuitting returns whether the app has signaled a quit.
func (d *TestDriver) IsQuitting() bool {
	return d.appModel().quitting || d.Quitting
}

// Workflow returns the workflow view on top of the stack, failing the test
// when another view is active.
func (d *TestDriver) Workflow() *workflowView {
	d.T.Helper()
	m := d.appModel()
	v, ok := m.activeView().(*workflowView)
	require.True(d.T, ok, "active view is %v, not the workflow", d.ActiveViewID())
	return v
}

// WorkflowState returns the state of the workflow view on top of the stack.
func (d *TestDriver) WorkflowState() workflow.State {
	d.T.Helper()
	return d.Workflow().orch.State()
}

// ── High-level helpers ───────────────────────────────────────────────────────

// ChooseFile answers the workflow's upload form with path.
func (d *TestDriver) ChooseFile(path string) {
	d.T.Helper()
	d.Send(fileChosenMsg{instanceID: d.Workflow().orch.ID(), path: path})
}

// ChooseParams answers the workflow's generation form.
func (d *TestDriver) ChooseParams(topic, difficulty string, count int) {
	d.T.Helper()
	fields := generationFields{prompt: topic, difficulty: difficulty, count: strconv.Itoa(count)}
	d.Send(paramsChosenMsg{instanceID: d.Workflow().orch.ID(), fields: fields})
}

// Login completes the login view as if its form had been submitted.
func (d *TestDriver) Login(email, password string) {
	d.T.Helper()
	d.Send(applyLogin(context.Background(), d.State().App, LoginInput{Email: email, Password: password}))
}
