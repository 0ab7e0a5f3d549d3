package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xraph/griddispatch/id"
)

func newEnqueueCmd() *cobra.Command {
	var (
		taskFlag    string
		payloadFlag string
	)

	cmd := &cobra.Command{
		Use:   "enqueue <job-name>",
		Short: "Append a job to the shared queue",
		Long:  "enqueue appends one job to the shared queue. Any running node may claim it. Without --task a new task id is generated.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := id.NewTaskID()
			if taskFlag != "" {
				var err error
				if taskID, err = id.ParseTaskID(taskFlag); err != nil {
					return fmt.Errorf("--task: %w", err)
				}
			}

			var payload []byte
			if payloadFlag != "" {
				if !json.Valid([]byte(payloadFlag)) {
					return errors.New("--payload is not valid JSON")
				}
				payload = []byte(payloadFlag)
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
			j, err := eng.EnqueueRaw(cmd.Context(), args[0], taskID, payload)
			if err != nil {
				return fmt.Errorf("enqueue: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "job %s enqueued for task %s\n", j.ID, j.TaskID)
			return nil
		},
	}
	cmd.Flags().StringVar(&taskFlag, "task", "", "Task id the job belongs to")
	cmd.Flags().StringVar(&payloadFlag, "payload", "", "JSON payload")
	return cmd
}
