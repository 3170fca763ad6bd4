// Package main provides historyctl, an offline viewer for analysis history
// exports.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	src := &source{}
	rootCmd := &cobra.Command{
		Use:   "historyctl",
		Short: "Inspect analysis histories",
		Long: `historyctl reads one user's analysis history, either from a JSON export
file or from a running service, and prints metrics, filtered views or
re-serialized exports.

Commands:
  metrics   Summary metrics over complete runs
  list      Filtered and sorted table of runs
  export    Write the selected view as CSV or JSON`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetOut(out)

	rootCmd.PersistentFlags().StringVarP(&src.file, "file", "f", "", "JSON export file to read")
	rootCmd.PersistentFlags().StringVar(&src.url, "url", "", "base URL of a running service, e.g. http://localhost:9080")
	rootCmd.PersistentFlags().StringVarP(&src.user, "user", "u", "", "user id to fetch from --url")
	rootCmd.PersistentFlags().DurationVar(&src.timeout, "timeout", defaultFetchTimeout, "HTTP timeout for --url")

	rootCmd.AddCommand(newMetricsCmd(src))
	rootCmd.AddCommand(newListCmd(src))
	rootCmd.AddCommand(newExportCmd(src))
	rootCmd.AddCommand(versionCmd())
	return rootCmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "historyctl %s\n", version)
		},
	}
}
