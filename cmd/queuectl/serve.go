package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/queuectl/api"
	"github.com/xraph/queuectl/engine"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		workers int
		origins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, optionally running workers in-process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				handler := api.New(eng,
					api.WithLogger(a.logger),
					api.WithConfig(a.cfg),
					api.WithConfigStore(a.file),
					api.WithCORSOrigins(origins...),
				).Handler()
				return serve(ctx, a.logger, eng, handler, addr, workers)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":3000", "listen address")
	cmd.Flags().IntVar(&workers, "workers", 0, "workers to start with the server")
	cmd.Flags().StringSliceVar(&origins, "cors-origin",
		[]string{"http://localhost:5173", "http://127.0.0.1:5173"}, "allowed CORS origins")
	return cmd
}

// serve runs the HTTP server until SIGINT or SIGTERM, then shuts the
// server down and drains any workers.
func serve(ctx context.Context, logger *slog.Logger, eng *engine.Engine, h http.Handler, addr string, workers int) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if workers > 0 {
		if _, err := eng.ReapWorkers(ctx); err != nil {
			logger.Warn("reap stale workers", slog.String("error", err.Error()))
		}
		if err := eng.StartWorkers(ctx, workers); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eng.Config().ShutdownTimeout)
		defer cancel()

		logger.Info("shutting down")
		err := srv.Shutdown(shutdownCtx)
		if eng.Running() {
			err = errors.Join(err, eng.StopWorkers(shutdownCtx))
		}
		return err
	})
	return g.Wait()
}
