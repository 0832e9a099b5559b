package cmd

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tisannai/ringer/pkg"
)

// expandArgs resolves glob patterns on Windows since there's no shell doing it for us
func expandArgs(args []string, allowEmpty bool) ([]string, error) {
	if runtime.GOOS != "windows" {
		return args, nil
	}

	items := []string{}
	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to resolve pattern %s", arg)
		}

		if matches == nil {
			if allowEmpty {
				continue
			}
			return nil, eris.Errorf("pattern %s produced no matches", arg)
		}

		items = append(items, matches...)
	}

	return items, nil
}

// resolveDest returns the final path for item; existing directories receive the item, anything else is replaced
func resolveDest(item, dest string, destIsDir bool) string {
	if destIsDir {
		return filepath.Join(dest, filepath.Base(item))
	}
	return dest
}

// checkDest verifies dest for a copy or move of count items and reports whether it is an existing directory
func checkDest(dest string, count int) (bool, error) {
	destParent := filepath.Dir(dest)
	info, err := os.Stat(destParent)
	if err != nil {
		return false, eris.Wrapf(err, "could not find destination directory %s", destParent)
	}

	if !info.IsDir() {
		return false, eris.Errorf("%s is not a directory", destParent)
	}

	info, err = os.Stat(dest)
	if err != nil && !eris.Is(err, os.ErrNotExist) {
		return false, eris.Wrapf(err, "failed to retrieve info about destination %s", dest)
	}

	destIsDir := err == nil && info.IsDir()
	if count > 1 && !destIsDir {
		return false, eris.Errorf("can't place multiple items in %s because it is not a directory", dest)
	}

	return destIsDir, nil
}

var mvCmd = &cobra.Command{
	Use:   "mv source... dest",
	Short: "Cross-platform implementation of the POSIX mv command",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return eris.New("not enough parameters")
		}

		items, err := expandArgs(args[:len(args)-1], false)
		if err != nil {
			return err
		}

		dest := filepath.Clean(args[len(args)-1])
		destIsDir, err := checkDest(dest, len(items))
		if err != nil {
			return err
		}

		for _, item := range items {
			itemDest := resolveDest(item, dest, destIsDir)
			err = os.Rename(item, itemDest)
			if err != nil {
				return eris.Wrapf(err, "failed to move %s to %s", item, itemDest)
			}
		}

		return nil
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp source... dest",
	Short: "Cross-platform implementation of the POSIX cp command",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			return eris.New("not enough parameters")
		}

		recursive, err := cmd.Flags().GetBool("recursive")
		if err != nil {
			return err
		}

		items, err := expandArgs(args[:len(args)-1], false)
		if err != nil {
			return err
		}

		dest := filepath.Clean(args[len(args)-1])
		destIsDir, err := checkDest(dest, len(items))
		if err != nil {
			return err
		}

		for _, item := range items {
			info, err := os.Stat(item)
			if err != nil {
				return eris.Wrapf(err, "could not stat %s", item)
			}

			itemDest := resolveDest(item, dest, destIsDir)
			if info.IsDir() {
				if !recursive {
					return eris.Errorf("%s is a directory but -r wasn't passed", item)
				}
				err = pkg.CopyTree(item, itemDest)
			} else {
				err = pkg.CopyFile(item, itemDest, nil)
			}

			if err != nil {
				return err
			}
		}

		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm path...",
	Short: "A cross-platform implementation of the POSIX rm command",
	RunE: func(cmd *cobra.Command, args []string) error {
		recursive, err := cmd.Flags().GetBool("recursive")
		if err != nil {
			return err
		}

		force, err := cmd.Flags().GetBool("force")
		if err != nil {
			return err
		}

		items, err := expandArgs(args, force)
		if err != nil {
			return err
		}

		existing := make([]string, 0, len(items))
		for _, item := range items {
			info, err := os.Stat(item)
			if err != nil {
				if force && eris.Is(err, os.ErrNotExist) {
					continue
				}
				return eris.Wrapf(err, "could not stat %s", item)
			}

			if info.IsDir() && !recursive {
				return eris.Errorf("%s is a directory but -r wasn't passed", item)
			}
			existing = append(existing, item)
		}

		for _, item := range existing {
			err := os.RemoveAll(item)
			if err != nil && (!force || !eris.Is(err, os.ErrNotExist)) {
				return eris.Wrapf(err, "could not delete %s", item)
			}
		}

		return nil
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir path...",
	Short: "A cross-platform implementation of the POSIX mkdir command",
	RunE: func(cmd *cobra.Command, args []string) error {
		makeParents, err := cmd.Flags().GetBool("parents")
		if err != nil {
			return err
		}

		for _, item := range args {
			if makeParents {
				err = os.MkdirAll(item, 0o770)
			} else {
				err = os.Mkdir(item, 0o770)
			}

			if err != nil {
				return eris.Wrapf(err, "failed to create %s", item)
			}
		}

		return nil
	},
}

func init() {
	rmCmd.Flags().BoolP("recursive", "r", false, "recursively delete directories")
	rmCmd.Flags().BoolP("force", "f", false, "suppresses errors caused by missing files/folders")
	cpCmd.Flags().BoolP("recursive", "r", false, "recursively copy directories")
	mkdirCmd.Flags().BoolP("parents", "p", false, "create parent directories as needed")

	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mkdirCmd)
}
