package commands

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/stackpilot/stackpilot/pkg/engine"
	"github.com/stackpilot/stackpilot/pkg/publish"
	"github.com/stackpilot/stackpilot/pkg/runner"
)

func newWatchCommand() *cobra.Command {
	var (
		sessionID    string
		stackType    string
		workspaceDir string
		artifactDir  string
		debounce     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Deploy once, then republish on artifact changes",
		Long: `Development loop: run a full deployment, then watch the artifact
directory and re-run publish and cache invalidation whenever files
change. Provisioning phases are not re-run; the session's bucket and
distribution come from the initial deployment's outputs.`,
		Example: `  # Iterate on a static site
  stackpilot watch --stack static-site --workspace ./ws/dev --artifacts ./site`,
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
			if err != nil {
				if rec != nil {
					printRecord(rec, false)
				}
				return err
			}
			printRecord(rec, false)

			return watchArtifacts(ctx, app, rec, artifactDir, debounce)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session id (generated when omitted)")
	cmd.Flags().StringVar(&stackType, "stack", string(engine.StackTypeStaticSite), "stack type (static-site, react-app)")
	cmd.Flags().StringVar(&workspaceDir, "workspace", "", "prepared workspace directory")
	cmd.Flags().StringVar(&artifactDir, "artifacts", "", "artifact directory to watch and publish")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "quiet period before republishing")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("artifacts")

	return cmd
}

// watchArtifacts republishes the artifact directory after each quiet
// period following a change. It blocks until the context is cancelled.
func watchArtifacts(ctx context.Context, app *app, rec *engine.Record, artifactDir string, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(artifactDir); err != nil {
		return err
	}

	log.Info().
		Str("session_id", rec.SessionID).
		Str("artifact_dir", artifactDir).
		Msg("watching artifacts for changes")

	r := runner.NewExecRunner()
	publisher := publish.NewS3Publisher(app.cfg.AWS.Bin, r)
	invalidator := publish.NewCloudFrontInvalidator(app.cfg.AWS.Bin, r, app.metrics)

	var timer *time.Timer
	var timerCh <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerCh = timer.C
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watch error")
		case <-timerCh:
			timer = nil
			timerCh = nil
			log.Info().Str("session_id", rec.SessionID).Msg("artifacts changed, republishing")
			if err := publisher.Publish(ctx, rec, artifactDir); err != nil {
				log.Error().Err(err).Msg("republish failed")
				continue
			}
			_ = invalidator.Invalidate(ctx, rec)
		}
	}
}
