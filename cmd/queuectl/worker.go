package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/engine"
)

func newWorkerCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run or stop workers",
	}
	cmd.AddCommand(newWorkerStartCmd(a), newWorkerStopCmd(a))
	return cmd
}

func newWorkerStartCmd(a *app) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run workers in the foreground until interrupted or drained",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				return runWorkers(ctx, a.logger, eng, count)
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "number of workers")
	return cmd
}

// runWorkers starts count workers and blocks until SIGINT, SIGTERM, or
// the pool stopping on its own after a drain request.
func runWorkers(ctx context.Context, logger *slog.Logger, eng *engine.Engine, count int) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := eng.ReapWorkers(ctx); err != nil {
		logger.Warn("reap stale workers", slog.String("error", err.Error()))
	}
	if err := eng.StartWorkers(ctx, count); err != nil {
		return err
	}
	logger.Info("workers running, press Ctrl+C to stop", slog.Int("count", count))

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested, draining in-flight jobs")
	case <-eng.Done():
		logger.Info("workers drained")
		return nil
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eng.Config().ShutdownTimeout)
	defer cancel()
	if err := eng.StopWorkers(stopCtx); err != nil && !errors.Is(err, queuectl.ErrWorkersNotRunning) {
		return err
	}
	return nil
}

func newWorkerStopCmd(a *app) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask every running worker to finish its job and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				n, err := eng.DrainWorkers(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "marked %d worker(s) draining\n", n)
				if !wait || n == 0 {
					return nil
				}

				waitCtx, cancel := context.WithTimeout(ctx, eng.Config().ShutdownTimeout)
				defer cancel()
				if err := waitForDrain(waitCtx, eng, 250*time.Millisecond); err != nil {
					return fmt.Errorf("workers still running: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all workers stopped")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait until the workers have exited")
	return cmd
}

// waitForDrain polls until no live worker records remain.
func waitForDrain(ctx context.Context, eng *engine.Engine, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		rep, err := eng.Report(ctx)
		if err != nil {
			return err
		}
		live := 0
		for _, w := range rep.Workers {
			if !w.Stale {
				live++
			}
		}
		if live == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%d worker(s) after timeout", live)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
