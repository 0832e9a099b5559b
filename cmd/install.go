package cmd

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tisannai/ringer/pkg"
	"github.com/tisannai/ringer/pkg/ringer"
)

type installItem struct {
	Src     string
	DestDir string
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Copies the released library and header into the install directories",
	Long: `Copies build/release/libringer.so.<version> into the library directory and
build/release/ringer.h into the include directory. The directories default to
<prefix>/lib and <prefix>/include (see ringer.toml).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := pkg.GetProjectRoot()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("prefix") {
			cfg.Install.Prefix, _ = flags.GetString("prefix")
			cfg.Install.LibDir = ""
			cfg.Install.IncludeDir = ""
		}
		if flags.Changed("lib-dir") {
			cfg.Install.LibDir, _ = flags.GetString("lib-dir")
		}
		if flags.Changed("include-dir") {
			cfg.Install.IncludeDir, _ = flags.GetString("include-dir")
		}

		err = cfg.ApplyDefaults()
		if err != nil {
			return err
		}

		releaseDir := filepath.Join(root, cfg.Build.Dir, "release")
		items := []installItem{
			{Src: filepath.Join(releaseDir, "libringer.so."+ringer.Version), DestDir: cfg.Install.LibDir},
			{Src: filepath.Join(releaseDir, "ringer.h"), DestDir: cfg.Install.IncludeDir},
		}

		pkg.PrintTask("Installing ringer " + ringer.Version)
		err = installFiles(items)
		if err != nil {
			return err
		}

		pkg.PrintTask("Done")
		return nil
	},
}

func getProgressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

func installFiles(items []installItem) error {
	for _, item := range items {
		info, err := os.Stat(item.Src)
		if err != nil {
			return eris.Wrapf(err, "missing %s, run the release task first", item.Src)
		}

		err = os.MkdirAll(item.DestDir, 0o755)
		if err != nil {
			return eris.Wrapf(err, "failed to create %s", item.DestDir)
		}

		dest := filepath.Join(item.DestDir, filepath.Base(item.Src))
		pkg.PrintSubtask(dest)

		bar := getProgressBar(info.Size(), "     copy")
		err = pkg.CopyFile(item.Src, dest, bar)
		if err != nil {
			return err
		}
		bar.Finish()
	}

	return nil
}

func init() {
	installCmd.Flags().String("prefix", "", "installation prefix (overrides install.prefix)")
	installCmd.Flags().String("lib-dir", "", "library directory (overrides install.lib_dir)")
	installCmd.Flags().String("include-dir", "", "header directory (overrides install.include_dir)")

	rootCmd.AddCommand(installCmd)
}
