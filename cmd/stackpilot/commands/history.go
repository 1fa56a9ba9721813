package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit    int
		offset   int
		showLogs bool
	)

	cmd := &cobra.Command{
		Use:   "history [session-id]",
		Short: "Show persisted deployment history",
		Long: `List past deployments, or show one session in detail.

Requires the database to be enabled in the configuration.`,
		Example: `  # List the most recent deployments
  stackpilot history

  # Show one session, including its transcript
  stackpilot history sess-42 --logs`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			if app.store == nil {
				return fmt.Errorf("deployment history requires database.enabled in the configuration")
			}

			if len(args) == 1 {
				return showDeployment(cmd, app, args[0], showLogs)
			}

			deployments, err := app.store.ListDeployments(ctx, limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(deployments)
			}

			for _, d := range deployments {
				url := ""
				if d.SiteURL != nil {
					url = *d.SiteURL
				}
				fmt.Printf("%-36s  %-12s  %-10s  %8s  %s\n",
					d.SessionID,
					d.StackType,
					d.Status,
					(time.Duration(d.DurationMs) * time.Millisecond).String(),
					url,
				)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of deployments to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of deployments to skip")
	cmd.Flags().BoolVar(&showLogs, "logs", false, "include the transcript when showing one session")

	return cmd
}

func showDeployment(cmd *cobra.Command, app *app, sessionID string, showLogs bool) error {
	ctx := cmd.Context()

	d, err := app.store.GetDeployment(ctx, sessionID)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}

	fmt.Printf("session:  %s\n", d.SessionID)
	fmt.Printf("stack:    %s\n", d.StackType)
	fmt.Printf("status:   %s\n", d.Status)
	if d.SiteURL != nil {
		fmt.Printf("site url: %s\n", *d.SiteURL)
	}
	fmt.Printf("started:  %s\n", d.StartedAt.Format(time.RFC3339))
	fmt.Printf("duration: %s\n", time.Duration(d.DurationMs)*time.Millisecond)
	fmt.Printf("outputs:  %s\n", d.Outputs)
	fmt.Printf("errors:   %s\n", d.Errors)

	if showLogs {
		lines, err := app.store.GetLogs(ctx, sessionID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			fmt.Println(line)
		}
	}
	return nil
}
