package main

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl/engine"
	"github.com/xraph/queuectl/job"
)

func newListCmd(a *app) *cobra.Command {
	var (
		state  string
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in one state, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := job.ParseState(state)
			if err != nil {
				return err
			}
			return a.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				n, err := writeJobs(cmd.OutOrStdout(), eng.Jobs(ctx, job.QueryOpts{
					ListOpts: job.ListOpts{Limit: limit, Offset: offset},
					State:    st,
					Order:    job.OrderDesc,
				}))
				if err != nil {
					return err
				}
				if n == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "no %s jobs\n", st)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&state, "state", string(job.StatePending), "job state to list")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of jobs (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of jobs to skip")
	return cmd
}

func printJobs(w io.Writer, jobs []*job.Job) error {
	_, err := writeJobs(w, func(yield func(*job.Job, error) bool) {
		for _, j := range jobs {
			if !yield(j, nil) {
				return
			}
		}
	})
	return err
}

// writeJobs prints seq as a table and reports how many rows it wrote.
// Nothing is written for an empty sequence.
func writeJobs(w io.Writer, seq iter.Seq2[*job.Job, error]) (int, error) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	n := 0
	for j, err := range seq {
		if err != nil {
			return n, err
		}
		if n == 0 {
			fmt.Fprintln(tw, "ID\tSTATE\tATTEMPTS\tCOMMAND\tUPDATED\tNEXT RUN\tLAST ERROR")
		}
		n++

		next := "-"
		if j.NextRunAt != nil {
			next = j.NextRunAt.Local().Format(time.DateTime)
		}
		lastErr := "-"
		if j.LastError != nil {
			lastErr = *j.LastError
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\t%s\t%s\t%s\n",
			j.ID, j.State, j.Attempts, j.MaxRetries+1,
			truncate(j.Command, 40),
			j.UpdatedAt.Local().Format(time.DateTime),
			next, truncate(lastErr, 40),
		)
	}
	return n, tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
