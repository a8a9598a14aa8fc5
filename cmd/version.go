package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "unknown"
	commit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s (commit %s)\n", app, version, commit)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
