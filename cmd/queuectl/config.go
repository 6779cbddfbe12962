package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/xraph/queuectl/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Read and write configuration",
	}

	get := &cobra.Command{
		Use:   "get [key]",
		Short: "Show the effective value of one or every key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				key := args[0]
				if _, ok := config.Default(key); !ok {
					return config.Validate(key, "")
				}
				fmt.Fprintln(cmd.OutOrStdout(), config.Lookup(a.cfg, key))
				return nil
			}

			snap := config.Snapshot(a.cfg)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, key := range config.Keys() {
				fmt.Fprintf(tw, "%s\t%s\n", key, snap[key])
			}
			return tw.Flush()
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Persist a value to the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.file.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := a.file.Save(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (%s)\n", args[0], args[1], a.file.Path())
			return nil
		},
	}

	cmd.AddCommand(get, set)
	return cmd
}
