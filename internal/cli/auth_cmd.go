package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/alexanderramin/studygen/internal/cli/formatter"
	"github.com/alexanderramin/studygen/internal/gateway"
	"github.com/alexanderramin/studygen/internal/validate"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	var in LoginInput

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the study service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Email = strings.TrimSpace(in.Email)
			if (in.Email == "" || in.Password == "") && app.interactive() {
				if err := runForm(cmd, wizardLogin(&in)); err != nil {
					return err
				}
				in.Email = strings.TrimSpace(in.Email)
			}
			if err := validate.Struct(in); err != nil {
				return userError(err)
			}

			stop := formatter.StartSpinner(cmd.ErrOrStderr(), "Logging in...", app.interactive())
			sess, err := app.Sessions.Login(cmd.Context(), in.Email, in.Password)
			stop()
			if err != nil {
				return userError(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged in as "+formatter.FormatSession(sess))
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "Account password (prompted when omitted)")

	return cmd
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Sessions.Logout(cmd.Context()); err != nil {
				return userError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.Sessions.Refresh(cmd.Context())
			if err != nil && !errors.Is(err, gateway.ErrUnauthorized) {
				return userError(fmt.Errorf("checking session: %w", err))
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatSession(sess))
			return nil
		},
	}
}

// runForm runs a huh form on the command's streams.
func runForm(cmd *cobra.Command, form *huh.Form) error {
	err := form.
		WithInput(cmd.InOrStdin()).
		WithOutput(cmd.ErrOrStderr()).
		RunWithContext(cmd.Context())
	if errors.Is(err, huh.ErrUserAborted) {
		return errors.New("cancelled")
	}
	return err
}
