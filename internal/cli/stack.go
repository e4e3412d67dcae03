package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/devdash/internal/domain"
)

// stackCommand opens the orchestrator, runs fn and releases it.
func stackCommand(fn func(cmd *cobra.Command, ops operations, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ops, closeFn, err := openStack()
		if err != nil {
			return err
		}
		defer closeFn()
		return fn(cmd, ops, args)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newStatusCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which services are running",
		Args:  cobra.NoArgs,
		RunE: stackCommand(func(cmd *cobra.Command, ops operations, args []string) error {
			snap := ops.Status(commandContext(cmd))
			if asJSON {
				return printJSON(cmd.OutOrStdout(), snap)
			}
			return printSnapshot(cmd.OutOrStdout(), snap)
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the snapshot as JSON")
	return cmd
}

func printSnapshot(w io.Writer, snap domain.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tSTATE\tSOURCE")
	for _, st := range snap.Details {
		state := "stopped"
		if st.Running {
			state = "running"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", st.Name, state, st.Source)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if snap.AllRunning {
		_, err := fmt.Fprintln(w, "\nall services running")
		return err
	}
	return nil
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Bring the stack up and wait until the API answers",
		Args:  cobra.NoArgs,
		RunE: stackCommand(func(cmd *cobra.Command, ops operations, args []string) error {
			out, err := ops.StartAll(commandContext(cmd))
			fmt.Fprintf(cmd.OutOrStdout(), "%s after %s (container polls: %d, api probes: %d)\n",
				out.State, out.Elapsed(), out.ContainerAttempts, out.APIAttempts)
			if len(out.Down) > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "not running: %v\n", out.Down)
			}
			return err
		}),
	}
}

func newDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Tear the whole stack down",
		Args:  cobra.NoArgs,
		RunE: stackCommand(func(cmd *cobra.Command, ops operations, args []string) error {
			if err := ops.DownAll(commandContext(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "stack down")
			return nil
		}),
	}
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <service>",
		Short: "Start one service",
		Args:  cobra.ExactArgs(1),
		RunE: stackCommand(func(cmd *cobra.Command, ops operations, args []string) error {
			if err := ops.StartOne(commandContext(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s started\n", args[0])
			return nil
		}),
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop <service>",
		Short: "Stop one service",
		Args:  cobra.ExactArgs(1),
		RunE: stackCommand(func(cmd *cobra.Command, ops operations, args []string) error {
			if err := ops.StopOne(commandContext(cmd), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s stopped\n", args[0])
			return nil
		}),
	}
}

func newStopAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop-all",
		Short: "Stop every controllable service, continuing past failures",
		Args:  cobra.NoArgs,
		RunE: stackCommand(func(cmd *cobra.Command, ops operations, args []string) error {
			report, err := ops.StopAll(commandContext(cmd))
			for _, n := range report.Stopped {
				fmt.Fprintf(cmd.OutOrStdout(), "%s stopped\n", n)
			}
			for _, n := range report.Attempted {
				if msg, failed := report.Failed[n]; failed {
					fmt.Fprintf(cmd.OutOrStdout(), "%s failed: %s\n", n, msg)
				}
			}
			return err
		}),
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Run the database seed command",
		Args:  cobra.NoArgs,
		RunE: stackCommand(func(cmd *cobra.Command, ops operations, args []string) error {
			res, err := ops.Seed(commandContext(cmd))
			if res.Output != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.Output)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seed finished in %dms\n", res.DurationMs)
			return nil
		}),
	}
}
