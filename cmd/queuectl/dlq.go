package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl/engine"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

func newDLQCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and revive dead jobs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List dead jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				jobs, err := eng.ListDead(ctx, job.ListOpts{})
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "dead letter queue is empty")
					return nil
				}
				return printJobs(cmd.OutOrStdout(), jobs)
			})
		},
	}

	retry := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Move a dead job back to pending with attempts reset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := id.ParseJobID(args[0])
			if err != nil {
				return fmt.Errorf("invalid job id: %w", err)
			}
			return a.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				j, err := eng.RetryFromDLQ(ctx, jobID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "requeued %s\n", j.ID)
				return nil
			})
		},
	}

	cmd.AddCommand(list, retry)
	return cmd
}
