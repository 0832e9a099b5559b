package pkg

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// CopyFile copies src to dest and keeps the permission bits. Progress receives a copy of the data if it's not nil.
func CopyFile(src, dest string, progress io.Writer) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return eris.Wrapf(err, "failed to stat %s", src)
	}

	if info.IsDir() {
		return eris.Errorf("%s is a directory", src)
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", dest)
	}

	var writer io.Writer = out
	if progress != nil {
		writer = io.MultiWriter(out, progress)
	}

	_, err = io.Copy(writer, in)
	if err != nil {
		out.Close()
		return eris.Wrapf(err, "failed to copy %s to %s", src, dest)
	}

	err = out.Close()
	if err != nil {
		return eris.Wrapf(err, "failed to write %s", dest)
	}

	// OpenFile doesn't touch the mode of an existing file
	return eris.Wrapf(os.Chmod(dest, info.Mode().Perm()), "failed to update permissions of %s", dest)
}

// CopyTree recursively copies the directory src to dest
func CopyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return eris.Wrapf(err, "failed to read %s", path)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return eris.Wrapf(err, "failed to stat %s", path)
			}

			return eris.Wrapf(os.MkdirAll(target, info.Mode().Perm()|0o700), "failed to create %s", target)
		}

		return CopyFile(path, target, nil)
	})
}
