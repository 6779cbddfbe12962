package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl/engine"
	"github.com/xraph/queuectl/job"
	"github.com/xraph/queuectl/status"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts and worker records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				rep, err := eng.Report(ctx)
				if err != nil {
					return err
				}
				return printReport(cmd.OutOrStdout(), rep, time.Now())
			})
		},
	}
}

func printReport(w io.Writer, rep *status.Report, now time.Time) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tJOBS")
	for _, st := range job.States {
		fmt.Fprintf(tw, "%s\t%d\n", st, rep.Counts[st])
	}
	fmt.Fprintf(tw, "total\t%d\n", rep.Total)
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nworkers: %d active, %d recorded\n", rep.ActiveWorkers(), len(rep.Workers))
	if len(rep.Workers) == 0 {
		return nil
	}

	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKER\tHOST\tPID\tSTATE\tLAST SEEN")
	for _, ws := range rep.Workers {
		state := string(ws.State)
		if ws.Stale {
			state += " (stale)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s ago\n",
			ws.ID, ws.Hostname, ws.PID, state,
			now.Sub(ws.LastSeen).Truncate(time.Second),
		)
	}
	return tw.Flush()
}
