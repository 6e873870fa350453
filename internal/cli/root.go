package cli

import (
	"context"
	"io"
	"time"

	"github.com/alexanderramin/studygen/internal/access"
	"github.com/alexanderramin/studygen/internal/domain"
	"github.com/alexanderramin/studygen/internal/service"
	"github.com/alexanderramin/studygen/internal/session"
	"github.com/alexanderramin/studygen/internal/workflow"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// SessionManager is the session store as seen by commands and views.
type SessionManager interface {
	Current() session.Snapshot
	Refresh(ctx context.Context) (domain.Session, error)
	Login(ctx context.Context, email, password string) (domain.Session, error)
	Logout(ctx context.Context) error
}

// Gatekeeper decides access to gated commands and views.
type Gatekeeper interface {
	Authorize(required ...domain.Role) access.Decision
	Require(ctx context.Context, required ...domain.Role) (domain.Session, error)
}

// App holds the collaborators used by CLI commands and the shell.
type App struct {
	Sessions SessionManager
	Gate     Gatekeeper
	Backend  workflow.Backend
	Results  service.ResultsService
	Workflow workflow.Config
	Logger   zerolog.Logger

	// IsInteractive reports whether stdin is a terminal. Prompts, spinners
	// and the shell are only used when it returns true.
	IsInteractive func() bool

	// Now defaults to time.Now.
	Now func() time.Time
}

func (a *App) interactive() bool {
	return a.IsInteractive != nil && a.IsInteractive()
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// newWorkflow creates an orchestrator owned by the calling command or view.
func (a *App) newWorkflow() *workflow.Orchestrator {
	return workflow.New(a.Backend, a.Gate, a.Workflow, a.Logger)
}

// NewRootCmd creates the top-level "studygen" command and registers all
// subcommands against the provided App. Without arguments on a terminal it
// opens the interactive shell.
func NewRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "studygen",
		Short:         "Generate practice tests from your study files",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.interactive() {
				return runShell(cmd.Context(), app, cmd.InOrStdin(), cmd.OutOrStdout())
			}
			return cmd.Help()
		},
	}

	root.AddCommand(
		newLoginCmd(app),
		newLogoutCmd(app),
		newWhoamiCmd(app),
		newRunCmd(app),
		newResultsCmd(app),
		newShellCmd(app),
	)

	return root
}

func newShellCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open the interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd.Context(), app, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// runShell runs the bubbletea shell until the user quits.
func runShell(ctx context.Context, app *App, in io.Reader, out io.Writer) error {
	p := newShellProgram(ctx, app, in, out)
	_, err := p.Run()
	return err
}
