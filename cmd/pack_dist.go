package cmd

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tisannai/ringer/pkg"
)

var packDistCmd = &cobra.Command{
	Use:   "pack-dist archive_name content_directory",
	Short: "Recursively packs the content of the passed directory into a compressed tarball",
	Long: `Pass the name of the archive that should be generated and a directory with
the intended contents. The suffix selects the compression: .tar.xz, .tar.br or .tar.
All entries are placed below a folder named after the content directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) != 2 {
			return eris.New("expected 2 arguments")
		}

		list, err := cmd.Flags().GetBool("list")
		if err != nil {
			return err
		}

		err = packDist(args[0], args[1])
		if err != nil {
			os.Remove(args[0])
			return err
		}

		if list {
			entries, err := pkg.ReadDist(args[0])
			if err != nil {
				return err
			}

			for _, entry := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%10d %s\n", entry.Size, entry.Name)
			}
		}

		return nil
	},
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += info.Size()
		}
		return nil
	})

	return total, eris.Wrapf(err, "failed to scan %s", dir)
}

func packDist(archive, dir string) error {
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return eris.Wrapf(err, "failed to open dir %s", dir)
	}

	if !info.IsDir() {
		return eris.Errorf("%s is not a directory", dir)
	}

	total, err := dirSize(dir)
	if err != nil {
		return err
	}

	writer, err := pkg.NewDistWriter(archive)
	if err != nil {
		return err
	}

	bar := getProgressBar(total, "     pack")
	prefix := filepath.Base(dir)

	err = distWalkDirectory(writer, dir, prefix, bar)
	if err != nil {
		writer.Close()
		return err
	}
	bar.Finish()

	return writer.Close()
}

func distWalkDirectory(writer *pkg.DistWriter, dir, prefix string, bar *progressbar.ProgressBar) error {
	info, err := os.Stat(dir)
	if err != nil {
		return eris.Wrapf(err, "failed to stat dir %s", dir)
	}

	err = writer.WriteDirectory(prefix, info)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return eris.Wrapf(err, "failed to read dir %s", dir)
	}

	for _, entry := range entries {
		itemPath := filepath.Join(dir, entry.Name())
		itemName := path.Join(prefix, entry.Name())

		if entry.IsDir() {
			err = distWalkDirectory(writer, itemPath, itemName, bar)
			if err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}

		f, err := os.Open(itemPath)
		if err != nil {
			return eris.Wrapf(err, "failed to open file %s", itemPath)
		}

		err = writer.WriteFile(itemName, f, bar)
		f.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func init() {
	packDistCmd.Flags().BoolP("list", "l", false, "list the archive content after packing")

	rootCmd.AddCommand(packDistCmd)
}
