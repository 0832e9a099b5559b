package pkg

import (
	"os"
	"path/filepath"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

// TaskFile marks the project root
const TaskFile = "tasks.star"

// FindUpwards returns the first path named name in start or one of its parents
func FindUpwards(start, name string) (string, error) {
	path, err := filepath.Abs(start)
	if err != nil {
		return "", eris.Wrapf(err, "failed to resolve %s", start)
	}

	for {
		candidate := filepath.Join(path, name)
		_, err := os.Stat(candidate)
		if err == nil {
			return candidate, nil
		}

		if !eris.Is(err, os.ErrNotExist) {
			return "", eris.Wrapf(err, "failed to check %s", candidate)
		}

		parent := filepath.Dir(path)
		if parent == path {
			return "", eris.Errorf("no %s file found", name)
		}
		path = parent
	}
}

// GetProjectRoot returns the closest directory containing a tasks.star file, starting at the working directory
func GetProjectRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", eris.Wrap(err, "failed to retrieve the current working directory")
	}

	taskFile, err := FindUpwards(wd, TaskFile)
	if err != nil {
		return "", eris.Wrap(err, "project root not found")
	}

	return filepath.Dir(taskFile), nil
}

func PrintTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}
