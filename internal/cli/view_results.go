package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alexanderramin/studygen/internal/access"
	"github.com/alexanderramin/studygen/internal/cli/formatter"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/alexanderramin/studygen/internal/service"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
)

// historyLoadedMsg carries a results history for the results view.
type historyLoadedMsg struct {
	history *service.History
	err     error
}

// exportPathMsg is sent by the export form with the chosen file name.
type exportPathMsg struct {
	path string
}

// resultsView lists the member's submitted tests.
type resultsView struct {
	state   *SharedState
	history *service.History
	loading bool
	err     error
	vp      viewport.Model
}

func newResultsView(state *SharedState) *resultsView {
	return &resultsView{state: state, loading: true, vp: viewport.New(0, 0)}
}

func (v *resultsView) ID() ViewID    { return ViewResults }
func (v *resultsView) Title() string { return "Results" }

func (v *resultsView) ShortHelp() []key.Binding {
	return []key.Binding{
		key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "export .xlsx")),
	}
}

func (v *resultsView) Init() tea.Cmd {
	return loadHistoryCmd(v.state.Ctx, v.state.App)
}

func loadHistoryCmd(ctx context.Context, app *App) tea.Cmd {
	return func() tea.Msg {
		h, err := app.Results.History(ctx)
		return historyLoadedMsg{history: h, err: err}
	}
}

func (v *resultsView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case historyLoadedMsg:
		v.loading = false
		v.err = msg.err
		if msg.err == nil {
			v.history = msg.history
		}
		v.refreshContent()
		if errors.Is(msg.err, access.ErrDenied) || gateway.KindOf(msg.err) == gateway.KindUnauthorized {
			return v, replaceGated(resultsTarget(v.state))
		}
		return v, nil

	case exportPathMsg:
		return v, exportHistoryCmd(v.state.Ctx, v.state.App, v.history, msg.path)

	case tea.WindowSizeMsg:
		v.refreshContent()
		return v, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "r":
			v.loading = true
			return v, loadHistoryCmd(v.state.Ctx, v.state.App)
		case "e":
			if v.history == nil {
				return v, nil
			}
			return v, v.chooseExportPath()
		}
		var cmd tea.Cmd
		v.vp, cmd = v.vp.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *resultsView) refreshContent() {
	v.vp.Width = v.state.Width
	v.vp.Height = v.state.ContentHeight()
	if v.history != nil {
		v.vp.SetContent(indent(formatter.FormatHistory(v.history, v.state.App.now())))
	}
}

func (v *resultsView) chooseExportPath() tea.Cmd {
	path := "results.xlsx"
	form := newForm(huh.NewGroup(
		huh.NewInput().
			Title("Export to").
			Value(&path).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("enter a file name")
				}
				return nil
			}),
	))
	return startWizardCmd(v.state, "Export", form, func() tea.Cmd {
		return func() tea.Msg { return exportPathMsg{path: path} }
	})
}

func exportHistoryCmd(ctx context.Context, app *App, h *service.History, path string) tea.Cmd {
	return func() tea.Msg {
		path = strings.TrimSpace(path)
		if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
			path += ".xlsx"
		}
		if err := exportHistory(ctx, app, h, path); err != nil {
			return flashMsg{text: formatter.Error(err)}
		}
		return flashMsg{text: formatter.StyleGreen.Render(fmt.Sprintf("Exported %d results to %s", len(h.Results), path))}
	}
}

func exportHistory(ctx context.Context, app *App, h *service.History, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := app.Results.Export(ctx, h, f); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("exporting results: %w", err)
	}
	return f.Close()
}

func (v *resultsView) View() string {
	if v.loading && v.history == nil {
		return "\n  " + formatter.Dim("Loading results...")
	}
	var b strings.Builder
	b.WriteString("\n")
	if v.err != nil {
		b.WriteString("  " + formatter.StyleRed.Render(describeError(v.err)) + "\n")
	}
	if v.history != nil {
		if v.state.Height > 0 {
			b.WriteString(v.vp.View())
		} else {
			b.WriteString(indent(formatter.FormatHistory(v.history, v.state.App.now())))
		}
	}
	return b.String()
}
