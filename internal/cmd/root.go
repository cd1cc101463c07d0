// Package cmd implements the petrel command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/petrelhq/petrel/internal/observability"
)

// versionInfo holds build metadata injected at link time.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var rootLogLevel string

var rootCmd = &cobra.Command{
	Use:   "petrel",
	Short: "Resumable distributed analytics job controller",
	Long: `Petrel controls long-running distributed analytics jobs: it tracks
multi-phase progress, decides where a restarted job must resume, persists
durable progress checkpoints, and coordinates terminal states with the
cluster task registry.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		observability.InitCLILogger(rootLogLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "info",
		"Log level (debug|info|warn|error)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("petrel %s (commit %s, built %s)\n",
				versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate)
		},
	})
}

// Execute runs the CLI and exits the process with the command's exit code.
func Execute() {
	err := rootCmd.Execute()
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCodeOf(err))
	}
}
