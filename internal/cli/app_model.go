package cli

import (
	"context"
	"io"
	"strings"

	"github.com/alexanderramin/studygen/internal/access"
	"github.com/alexanderramin/studygen/internal/cli/formatter"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// appModel is the root bubbletea Model for the shell. It manages a view
// stack; every gated view is opened through the access gate.
type appModel struct {
	state     *SharedState
	viewStack []View
	quitting  bool

	// One-line notice shown under the header until the next key press.
	flash string
}

func newAppModel(ctx context.Context, app *App) appModel {
	if ctx == nil {
		ctx = context.Background()
	}
	state := &SharedState{App: app, Ctx: ctx}
	return appModel{
		state:     state,
		viewStack: []View{newHomeView(state)},
	}
}

// newShellProgram wires the app model into a full-screen bubbletea program.
func newShellProgram(ctx context.Context, app *App, in io.Reader, out io.Writer) *tea.Program {
	return tea.NewProgram(
		newAppModel(ctx, app),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
}

// activeView returns the top view on the stack, or nil.
func (m *appModel) activeView() View {
	if len(m.viewStack) == 0 {
		return nil
	}
	return m.viewStack[len(m.viewStack)-1]
}

// setActiveView replaces the top of the view stack.
// If the stack is empty, this is a no-op.
func (m *appModel) setActiveView(v View) {
	if len(m.viewStack) > 0 {
		m.viewStack[len(m.viewStack)-1] = v
	}
}

// ownedMsg is addressed to the view owning a particular workflow instance.
type ownedMsg interface {
	tea.Msg
	owner() string
}

type instanceOwner interface {
	owns(instanceID string) bool
}

// deliverOwned hands msg to its owning view. A message whose owner has
// left the stack is dropped.
func (m appModel) deliverOwned(msg ownedMsg) (tea.Model, tea.Cmd) {
	for i := len(m.viewStack) - 1; i >= 0; i-- {
		o, ok := m.viewStack[i].(instanceOwner)
		if !ok || !o.owns(msg.owner()) {
			continue
		}
		updated, cmd := m.viewStack[i].Update(msg)
		m.viewStack[i] = updated.(View)
		return m, cmd
	}
	return m, nil
}

// pop removes the top view, releasing what it holds. The home view stays.
func (m *appModel) pop() {
	if len(m.viewStack) <= 1 {
		return
	}
	leave(m.activeView())
	m.viewStack = m.viewStack[:len(m.viewStack)-1]
}

func leave(v View) {
	if l, ok := v.(leaver); ok {
		l.onLeave()
	}
}

// ── bubbletea interface ──────────────────────────────────────────────────────

func (m appModel) Init() tea.Cmd {
	if v := m.activeView(); v != nil {
		return v.Init()
	}
	return nil
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.state.Width = msg.Width
		m.state.Height = msg.Height
		if v := m.activeView(); v != nil {
			updated, cmd := v.Update(msg)
			m.setActiveView(updated.(View))
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case pushViewMsg:
		m.flash = ""
		m.viewStack = append(m.viewStack, msg.view)
		return m, msg.view.Init()

	case popViewMsg:
		m.pop()
		return m, nil

	case replaceViewMsg:
		if len(m.viewStack) > 1 {
			leave(m.activeView())
			m.viewStack[len(m.viewStack)-1] = msg.view
		} else {
			m.viewStack = append(m.viewStack, msg.view)
		}
		return m, msg.view.Init()

	case openGatedMsg:
		next := m.gate(msg.target)
		if msg.replace {
			return m.Update(replaceViewMsg{view: next})
		}
		return m.Update(pushViewMsg{view: next})

	case flashMsg:
		m.flash = msg.text
		return m, nil

	case wizardCompleteMsg:
		// Atomically pop the wizard view and execute the follow-up command.
		m.pop()
		return m, msg.nextCmd

	case quitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	// Results of background work go to the view that started it, wherever
	// it sits in the stack.
	if om, ok := msg.(ownedMsg); ok {
		return m.deliverOwned(om)
	}

	// Forward everything else to the active view.
	if v := m.activeView(); v != nil {
		updated, cmd := v.Update(msg)
		m.setActiveView(updated.(View))
		return m, cmd
	}

	return m, nil
}

// gate picks the view to show for target: the target itself when the
// session is allowed, a loading view while the session is unresolved and
// the login view when access is denied.
func (m *appModel) gate(target gatedTarget) View {
	switch m.state.App.Gate.Authorize(target.required...) {
	case access.Allowed:
		return target.build()
	case access.Pending:
		return newLoadingView(m.state, target)
	default:
		return newLoginView(m.state, &target)
	}
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global quit
	if msg.Type == tea.KeyCtrlC {
		m.quitting = true
		return m, tea.Quit
	}
	m.flash = ""

	// Views with their own text input get every key.
	if v := m.activeView(); v != nil && viewCapturesInput(v) {
		updated, cmd := v.Update(msg)
		m.setActiveView(updated.(View))
		return m, cmd
	}

	switch {
	case msg.String() == "q":
		m.quitting = true
		return m, tea.Quit

	case msg.Type == tea.KeyEsc:
		m.pop()
		return m, nil
	}

	if v := m.activeView(); v != nil {
		updated, cmd := v.Update(msg)
		m.setActiveView(updated.(View))
		return m, cmd
	}

	return m, nil
}

func (m appModel) View() string {
	if m.quitting {
		return ""
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	if m.flash != "" {
		sections = append(sections, "  "+m.flash)
	}
	if v := m.activeView(); v != nil {
		sections = append(sections, v.View())
	}
	sections = append(sections, m.renderStatusBar())

	result := strings.Join(sections, "\n")

	// Pad to terminal height to prevent stale line artifacts from
	// bubbletea's line-diff renderer in alt-screen mode.
	if m.state.Height > 0 {
		lines := strings.Count(result, "\n") + 1
		if lines < m.state.Height {
			result += strings.Repeat("\n", m.state.Height-lines)
		}
	}

	return result
}

// ── rendering helpers ────────────────────────────────────────────────────────

func (m *appModel) renderHeader() string {
	title := formatter.StylePurple.Render("studygen")

	var crumbs []string
	for _, v := range m.viewStack {
		if t := v.Title(); t != "" {
			crumbs = append(crumbs, t)
		}
	}
	breadcrumb := ""
	if len(crumbs) > 0 {
		breadcrumb = " " + formatter.Dim("›") + " " + formatter.Dim(strings.Join(crumbs, " › "))
	}

	snap := m.state.App.Sessions.Current()
	header := title + breadcrumb + "  " + formatter.Dim("[") +
		formatter.SessionTag(snap.Session, snap.Resolved) + formatter.Dim("]")

	sep := formatter.Dim(strings.Repeat("─", max(m.state.Width, 20)))
	return header + "\n" + sep
}

func (m *appModel) renderStatusBar() string {
	var hints []string
	capturing := false
	if v := m.activeView(); v != nil {
		for _, b := range v.ShortHelp() {
			hints = append(hints, formatter.Dim(b.Help().Key+": "+b.Help().Desc))
		}
		capturing = viewCapturesInput(v)
	}
	if !capturing {
		if len(m.viewStack) > 1 {
			hints = append(hints, formatter.Dim("esc: back"))
		}
		hints = append(hints, formatter.Dim("q: quit"))
	}

	sepStyle := lipgloss.NewStyle().Foreground(formatter.ColorDim)
	sep := sepStyle.Render(strings.Repeat("─", max(m.state.Width, 20)))
	return sep + "\n" + strings.Join(hints, "  ")
}
