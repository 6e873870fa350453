package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/alexanderramin/studygen/internal/cli/formatter"
	"github.com/alexanderramin/studygen/internal/repository"
	"github.com/alexanderramin/studygen/internal/service"
	"github.com/spf13/cobra"
)

func newResultsCmd(app *App) *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show your submitted tests and scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := loadHistory(cmd.Context(), app, cached)
			if err != nil {
				return err
			}
			if h.Stale && h.FetchErr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), formatter.StyleYellow.Render("Could not reach the server, showing the offline copy."))
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatHistory(h, app.now()))
			return nil
		},
	}

	cmd.PersistentFlags().BoolVar(&cached, "cached", false, "Use the offline copy instead of asking the server")
	cmd.AddCommand(newResultsExportCmd(app, &cached))

	return cmd
}

func newResultsExportCmd(app *App, cached *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE.xlsx",
		Short: "Export your results to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.EqualFold(filepath.Ext(path), ".xlsx") {
				path += ".xlsx"
			}

			h, err := loadHistory(cmd.Context(), app, *cached)
			if err != nil {
				return err
			}

			if err := exportHistory(cmd.Context(), app, h, path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d results to %s\n", len(h.Results), path)
			return nil
		},
	}
}

func loadHistory(ctx context.Context, app *App, cached bool) (*service.History, error) {
	if cached {
		h, err := app.Results.Cached(ctx)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errors.New("no offline copy yet: run `studygen results` while online first")
		}
		return h, userError(err)
	}
	h, err := app.Results.History(ctx)
	return h, userError(err)
}
