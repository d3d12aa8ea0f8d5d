// Reputa CLI — инструмент командной строки для публикации алгоритмов
// и управления снапшотами через HTTP API.
//
// Использование:
//
//	reputa [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	algorithm  Управление определениями алгоритмов
//	snapshot   Управление снапшотами
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/savichev/reputa/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "reputa",
		Short:         "Reputa CLI — reputation snapshot tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewAlgorithmCmd(clientFn, outputFn),
		cli.NewSnapshotCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
