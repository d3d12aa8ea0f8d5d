package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewAlgorithmCmd создаёт группу команд для управления алгоритмами.
func NewAlgorithmCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "algorithm",
		Short: "Manage algorithm definitions",
	}

	cmd.AddCommand(
		newAlgorithmListCmd(clientFn, outputFn),
		newAlgorithmVersionsCmd(clientFn, outputFn),
		newAlgorithmShowCmd(clientFn, outputFn),
		newAlgorithmPublishCmd(clientFn, outputFn),
	)

	return cmd
}

func newAlgorithmListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all published algorithm versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			defs, err := client.ListAlgorithms()
			if err != nil {
				return err
			}

			headers := []string{"KEY", "VERSION", "RUNTIME", "IDEMPOTENT", "DEPS", "PUBLISHED"}
			rows := make([][]string, len(defs))
			for i, d := range defs {
				rows[i] = []string{
					d.Key, d.Version, d.Runtime,
					strconv.FormatBool(d.Idempotent),
					strings.Join(d.Dependencies, ","),
					d.PublishedAt,
				}
			}

			out.Print(headers, rows, defs)
			return nil
		},
	}
}

func newAlgorithmVersionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "versions KEY",
		Short: "List versions of an algorithm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			defs, err := client.ListAlgorithmVersions(args[0])
			if err != nil {
				return err
			}

			headers := []string{"KEY", "VERSION", "RUNTIME", "PUBLISHED"}
			rows := make([][]string, len(defs))
			for i, d := range defs {
				rows[i] = []string{d.Key, d.Version, d.Runtime, d.PublishedAt}
			}

			out.Print(headers, rows, defs)
			return nil
		},
	}
}

func newAlgorithmShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var version string

	cmd := &cobra.Command{
		Use:   "show KEY",
		Short: "Show algorithm definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			def, err := client.GetAlgorithm(args[0], version)
			if err != nil {
				return err
			}

			out.Print(
				[]string{"KEY", "VERSION", "RUNTIME", "IDEMPOTENT", "DESCRIPTION"},
				[][]string{{def.Key, def.Version, def.Runtime, strconv.FormatBool(def.Idempotent), def.Description}},
				def,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&version, "version", "latest", "Exact version (latest if not specified)")

	return cmd
}

func newAlgorithmPublishCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var defFile string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a new algorithm version from definition file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(defFile)
			if err != nil {
				return fmt.Errorf("failed to read definition file: %w", err)
			}

			// Валидируем что это валидный JSON
			if !json.Valid(data) {
				return fmt.Errorf("definition file is not valid JSON")
			}

			def, err := client.PublishAlgorithm(json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Published %s@%s", def.Key, def.Version))
			out.Print(
				[]string{"KEY", "VERSION", "RUNTIME", "PUBLISHED"},
				[][]string{{def.Key, def.Version, def.Runtime, def.PublishedAt}},
				def,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&defFile, "file", "", "Path to definition JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}
