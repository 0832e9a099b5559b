package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tisannai/ringer/pkg"
)

var installToolsCmd = &cobra.Command{
	Use:   "install-tools",
	Short: "Installs Go CLI tools",
	Long: `Installs the tools listed in tools.go into the workspace .tools directory.
If you have direnv enabled, they will be available in your PATH.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := pkg.GetProjectRoot()
		if err != nil {
			return err
		}

		pkg.PrintTask("Installing tools")
		return pkg.InstallTools(cmd.Context(), root)
	},
}

func init() {
	rootCmd.AddCommand(installToolsCmd)
}
