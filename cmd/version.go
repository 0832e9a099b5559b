package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/tisannai/ringer/pkg/ringer"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Prints the ringer version",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "ringer %s (%s, %s/%s)\n", ringer.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		return err
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
