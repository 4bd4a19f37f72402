package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	sinkPath    string
	archivePath string
	verbose     bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Incident-governance core CLI",
	Long: `sentinel drives the incident-governance core from the command line.

Commands:
  demo    Run a full workflow scenario end to end
  verify  Verify the hash-chain integrity of an exported artifact file
  export  Run the demo scenario and write its compliance export`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sinkPath, "sink", "", "Path to the external audit log document (default $AUDIT_SINK_PATH or audit-log.md)")
	rootCmd.PersistentFlags().StringVar(&archivePath, "archive", "", "Sqlite archive path for terminated workflows (default $AUDIT_ARCHIVE_PATH or audit-archive.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	Execute()
}
