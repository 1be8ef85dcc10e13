package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, buildDate, gitCommit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display legacyscan version and build information.`,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "legacyscan v%s\n", version)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "commit %s, built %s, %s %s/%s\n",
				gitCommit, buildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
