package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewSnapshotCmd создаёт группу команд для управления снапшотами.
func NewSnapshotCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage snapshots",
	}

	cmd.AddCommand(
		newSnapshotListCmd(clientFn, outputFn),
		newSnapshotStartCmd(clientFn, outputFn),
		newSnapshotShowCmd(clientFn, outputFn),
		newSnapshotCancelCmd(clientFn, outputFn),
	)

	return cmd
}

func newSnapshotListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			snaps, err := client.ListSnapshots(ListSnapshotsOpts{
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "ALGORITHM", "VERSION", "STATUS", "CREATED"}
			rows := make([][]string, len(snaps))
			for i, s := range snaps {
				rows[i] = []string{s.ID, s.Preset.Key, s.Preset.Version, s.Status, s.CreatedAt}
			}

			out.Print(headers, rows, snaps)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (queued, running, completed, failed, cancelled)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newSnapshotStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var version string
	var inputs []string
	var typescriptQueue, pythonQueue string

	cmd := &cobra.Command{
		Use:   "start ALGORITHM_KEY",
		Short: "Create and enqueue a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateSnapshotRequest{
				AlgorithmKey: args[0],
				Version:      version,
			}

			// Порядок флагов --input сохраняется в пресете
			for _, kv := range inputs {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
				}
				req.Inputs = append(req.Inputs, InputParam{Key: parts[0], Value: parts[1]})
			}

			if typescriptQueue != "" || pythonQueue != "" {
				req.QueueOverrides = &QueueOverrides{
					Typescript: typescriptQueue,
					Python:     pythonQueue,
				}
			}

			snap, err := client.CreateSnapshot(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Snapshot created: %s", snap.ID))
			out.Print(
				[]string{"ID", "ALGORITHM", "VERSION", "STATUS", "CREATED"},
				[][]string{{snap.ID, snap.Preset.Key, snap.Preset.Version, snap.Status, snap.CreatedAt}},
				snap,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "", "Algorithm version (latest if not specified)")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&typescriptQueue, "typescript-queue", "", "Override the TypeScript compute queue for this snapshot")
	cmd.Flags().StringVar(&pythonQueue, "python-queue", "", "Override the Python compute queue for this snapshot")

	return cmd
}

func newSnapshotShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show snapshot details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			snap, err := client.GetSnapshot(args[0])
			if err != nil {
				return err
			}

			failure := ""
			if snap.Failure != nil {
				failure = snap.Failure.Kind + ": " + snap.Failure.Message
			}

			out.Print(
				[]string{"ID", "ALGORITHM", "VERSION", "STATUS", "FAILURE", "CREATED"},
				[][]string{{snap.ID, snap.Preset.Key, snap.Preset.Version, snap.Status, failure, snap.CreatedAt}},
				snap,
			)
			return nil
		},
	}
}

func newSnapshotCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Request snapshot cancellation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			snap, err := client.CancelSnapshot(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Cancellation requested: %s", snap.ID))
			return nil
		},
	}
}
