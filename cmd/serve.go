package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cargoledger/internal/api"
	"cargoledger/internal/bootstrap"
	"cargoledger/internal/bootstrap/logging"
	"cargoledger/internal/errs"
	"cargoledger/internal/usecase/ingest"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the upload and master list HTTP API",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, svc *ingest.Service) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = app.Config.HTTP.Addr
		}
		if err := requireSchema(ctx, app); err != nil {
			return err
		}

		handler := api.NewHandler(svc, app.Config.HTTP.MaxUploadMB).AllowOrigins(app.Config.HTTP.CORSOrigins...)
		server := &http.Server{
			Addr:              addr,
			Handler:           handler.Routes(ctx),
			ReadHeaderTimeout: 10 * time.Second,
		}

		group, groupCtx := errgroup.WithContext(ctx)
		group.Go(func() error {
			logging.Info(ctx, "http server started", slog.String("addr", addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Error(ctx, "http server failed", slog.Any("err", errs.Loggable(err)))
				return errs.Wrap(err, "serve http")
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return errs.Wrap(err, "shutdown http server")
			}
			logging.Info(ctx, "http server stopped")
			return nil
		})
		return group.Wait()
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: http.addr from config)")
}
