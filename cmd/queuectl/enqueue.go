package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl"
	"github.com/xraph/queuectl/engine"
	"github.com/xraph/queuectl/id"
	"github.com/xraph/queuectl/job"
)

// enqueueSpec is the JSON form accepted by enqueue.
type enqueueSpec struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	MaxRetries int    `json:"max_retries"`
}

func newEnqueueCmd(a *app) *cobra.Command {
	var maxRetries int

	cmd := &cobra.Command{
		Use:   "enqueue <json|command>",
		Short: "Add a job to the queue",
		Long: `Add a job to the queue. The argument is either a JSON object
{"id": "...", "command": "...", "max_retries": N} or plain command text.`,
		Example: `  queuectl enqueue 'echo hello'
  queuectl enqueue '{"command":"sleep 2","max_retries":5}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := parseEnqueueArg(strings.Join(args, " "))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-retries") {
				spec.MaxRetries = maxRetries
			}
			opts, err := spec.options()
			if err != nil {
				return err
			}

			return a.withEngine(cmd, func(ctx context.Context, eng *engine.Engine) error {
				j, err := eng.Enqueue(ctx, spec.Command, opts...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (max_retries=%d)\n", j.ID, j.MaxRetries)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "retry cap for this job (default from config)")
	return cmd
}

// parseEnqueueArg treats an argument starting with '{' as a JSON spec
// and anything else as the command itself.
func parseEnqueueArg(arg string) (enqueueSpec, error) {
	trimmed := strings.TrimSpace(arg)
	if !strings.HasPrefix(trimmed, "{") {
		return enqueueSpec{Command: trimmed}, nil
	}

	var spec enqueueSpec
	if err := json.Unmarshal([]byte(trimmed), &spec); err != nil {
		return enqueueSpec{}, fmt.Errorf("invalid job JSON: %w", err)
	}
	return spec, nil
}

func (s enqueueSpec) options() ([]job.Option, error) {
	var opts []job.Option
	if s.ID != "" {
		jobID, err := id.ParseJobID(s.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", queuectl.ErrInvalidJobID, err)
		}
		opts = append(opts, job.WithID(jobID))
	}
	if s.MaxRetries != 0 {
		opts = append(opts, job.WithMaxRetries(s.MaxRetries))
	}
	return opts, nil
}
