package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/pkg/engine"
)

func newDeployCommand() *cobra.Command {
	var (
		sessionID    string
		stackType    string
		workspaceDir string
		artifactDir  string
		showLogs     bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a session's workspace and artifacts",
		Long: `Run the full deployment lifecycle for one session.

The workspace directory must contain the provisioning configuration and
variables file; the artifact directory must contain the built files to
publish. Both are prepared before this command runs.`,
		Example: `  # Deploy a static site
  stackpilot deploy --stack static-site --workspace ./ws/abc --artifacts ./sites/abc

  # Deploy a React app under an explicit session id
  stackpilot deploy --session sess-42 --stack react-app --workspace ./ws/42 --artifacts ./builds/42/dist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if sessionID == "" {
				sessionID = uuid.New().String()
			}

			app, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			rec, err := app.engine.Deploy(ctx, engine.DeployRequest{
				SessionID:    sessionID,
				StackType:    engine.StackType(stackType),
				WorkspaceDir: workspaceDir,
				ArtifactDir:  artifactDir,
			})
			if rec != nil {
				printRecord(rec, showLogs)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id (generated when omitted)")
	cmd.Flags().StringVar(&stackType, "stack", string(engine.StackTypeStaticSite), "stack type (static-site, react-app)")
	cmd.Flags().StringVar(&workspaceDir, "workspace", "", "prepared workspace directory")
	cmd.Flags().StringVar(&artifactDir, "artifacts", "", "artifact directory to publish")
	cmd.Flags().BoolVar(&showLogs, "logs", false, "print the full subprocess transcript")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("artifacts")

	return cmd
}

// printRecord writes a deployment record to stdout, honoring --json.
func printRecord(rec *engine.Record, showLogs bool) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rec); err != nil {
			log.Warn().Err(err).Msg("failed to encode record")
		}
		return
	}

	fmt.Printf("session:  %s\n", rec.SessionID)
	fmt.Printf("status:   %s\n", rec.Status)
	if rec.SiteURL != "" {
		fmt.Printf("site url: %s\n", rec.SiteURL)
	}
	fmt.Printf("duration: %s\n", rec.Duration.Round(0))
	for _, msg := range rec.Errors {
		fmt.Printf("error:    %s\n", msg)
	}
	if showLogs {
		for _, line := range rec.Logs {
			fmt.Println(line)
		}
	}
}
