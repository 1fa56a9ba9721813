package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/pkg/engine"
)

func newDestroyCommand() *cobra.Command {
	var (
		sessionID    string
		workspaceDir string
		timeout      time.Duration
		showLogs     bool
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Tear down a session's resources",
		Long: `Destroy all provisioned resources for a session's workspace with one
auto-approved destroy run. No partial-teardown recovery is attempted.`,
		Example: `  # Tear down a session
  stackpilot destroy --session sess-42 --workspace ./ws/42

  # Bound the destroy subprocess
  stackpilot destroy --session sess-42 --workspace ./ws/42 --timeout 10m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			rec, err := app.engine.Destroy(ctx, engine.DestroyRequest{
				SessionID:    sessionID,
				WorkspaceDir: workspaceDir,
				Timeout:      timeout,
			})
			if rec != nil {
				printRecord(rec, showLogs)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id")
	cmd.Flags().StringVar(&workspaceDir, "workspace", "", "session workspace directory")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "optional destroy subprocess timeout")
	cmd.Flags().BoolVar(&showLogs, "logs", false, "print the full subprocess transcript")
	_ = cmd.MarkFlagRequired("session")
	_ = cmd.MarkFlagRequired("workspace")

	return cmd
}
