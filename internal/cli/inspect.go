package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/griddispatch/failure"
	"github.com/xraph/griddispatch/id"
)

func newFailuresCmd() *cobra.Command {
	var (
		taskFlag   string
		limit      int
		offset     int
		purgeOlder time.Duration
	)

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List or purge job submission failures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := failure.ListOpts{Limit: limit, Offset: offset}
			if taskFlag != "" {
				taskID, err := id.ParseTaskID(taskFlag)
				if err != nil {
					return fmt.Errorf("--task: %w", err)
				}
				opts.TaskID = taskID
			}

			b, err := openBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			eng, err := buildEngine(cfg, b, logger)
			if err != nil {
				return err
			}
			store := eng.FailureService().Store()
			out := cmd.OutOrStdout()

			if purgeOlder > 0 {
				n, err := store.PurgeFailures(cmd.Context(), time.Now().UTC().Add(-purgeOlder))
				if err != nil {
					return fmt.Errorf("purge failures: %w", err)
				}
				fmt.Fprintf(out, "purged %d failure records\n", n)
				return nil
			}

			records, err := store.ListFailures(cmd.Context(), opts)
			if err != nil {
				return fmt.Errorf("list failures: %w", err)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No failures found.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TASK\tJOB\tNAME\tFAILED AT\tMESSAGE")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.TaskID, r.JobID, r.JobName, r.FailedAt.Format(time.RFC3339), r.Message)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&taskFlag, "task", "", "Only failures of this task")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum records to show (0 for all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Records to skip")
	cmd.Flags().DurationVar(&purgeOlder, "purge-older-than", 0, "Delete records older than this instead of listing")
	return cmd
}

func newNodesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes",
		Short: "Show cluster members, queue length, and free capacity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer b.Close()

			eng, err := buildEngine(cfg, b, logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			nodes, err := eng.Topology(ctx)
			if err != nil {
				return fmt.Errorf("topology: %w", err)
			}
			queued, err := eng.QueueLen(ctx)
			if err != nil {
				return fmt.Errorf("queue length: %w", err)
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NODE\tHOST\tSTATE\tCAPACITY\tACTIVE\tLAST SEEN")
			active := 0
			for _, n := range nodes {
				// The local placeholder has never heartbeated.
				if n.ID.String() == eng.Node().ID().String() && n.LastSeen.IsZero() {
					continue
				}
				active += n.ActiveJobs
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
					n.ID, n.Hostname, n.State, n.Capacity, n.ActiveJobs, n.LastSeen.Format(time.RFC3339))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nqueued: %d  active: %d  free at pool size %d: %d\n",
				queued, active, cfg.Node.PoolSize, cfg.Node.PoolSize-active)
			return nil
		},
	}
}
