package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cargoledger/internal/bootstrap"
	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/domain/manifest"
	"cargoledger/internal/errs"
	"cargoledger/internal/infrastructure/spreadsheet"
	"cargoledger/internal/infrastructure/watcher"
	"cargoledger/internal/usecase/ingest"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest manifests dropped into a directory",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		kindRaw, _ := cmd.Flags().GetString("kind")
		dir, _ := cmd.Flags().GetString("dir")
		glob, _ := cmd.Flags().GetString("glob")

		kind, err := manifest.ParseKind(kindRaw)
		if err != nil {
			return err
		}
		if strings.TrimSpace(glob) == "" {
			glob = app.Config.Watch.Glob
		}
		if err := requireSchema(ctx, app); err != nil {
			return err
		}

		w, err := watcher.New(watcher.Options{
			Dir:      dir,
			Glob:     glob,
			Debounce: app.Config.Watch.Debounce,
		}, ingestWatchedFile(cmd, svc, kind))
		if err != nil {
			return err
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "watching %s for %s manifests (%s)\n", dir, kind, glob); err != nil {
			return errs.Wrap(err, "write watch output")
		}
		return w.Run(ctx)
	}),
}

func ingestWatchedFile(cmd *cobra.Command, svc *ingest.Service, kind manifest.Kind) watcher.Handler {
	return func(ctx context.Context, path string) error {
		if !spreadsheet.IsSupported(path) {
			return nil
		}
		payload, err := os.ReadFile(path)
		if err != nil {
			return errs.Wrapf(err, "read %s", path)
		}

		result, err := svc.IngestFile(ctx, ingest.IngestFileInput{
			Kind:     kind,
			Filename: filepath.Base(path),
			Payload:  payload,
		})
		var partial *ingest.PartialWriteError
		if err != nil && !errors.As(err, &partial) {
			return err
		}

		if _, writeErr := fmt.Fprintf(
			cmd.OutOrStdout(),
			"ingested %s: upload=%s added=%d updated=%d new=%d removed=%d released=%d\n",
			filepath.Base(path),
			result.Upload.ID,
			result.ItemsAdded,
			result.ItemsUpdated,
			result.Comparison.NewItems,
			result.Comparison.RemovedItems,
			result.Comparison.NewlyReleased,
		); writeErr != nil {
			return errs.Wrap(writeErr, "write watch output")
		}
		return err
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().String("kind", "", "Manifest kind: ocean|air")
	watchCmd.Flags().String("dir", "", "Directory to watch")
	watchCmd.Flags().String("glob", "", "File name pattern (default: watch.glob from config)")
	_ = watchCmd.MarkFlagRequired("kind")
	_ = watchCmd.MarkFlagRequired("dir")
}
