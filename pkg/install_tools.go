package pkg

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// ToolImports returns the import paths listed in the given tools.go file
func ToolImports(toolsFile string) ([]string, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, toolsFile, nil, parser.ImportsOnly)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", toolsFile)
	}

	result := make([]string, 0, len(f.Imports))
	for _, path := range f.Imports {
		result = append(result, strings.Trim(path.Path.Value, `"`))
	}

	return result, nil
}

// InstallTools installs the tools imported by tools.go into the project's .tools directory
func InstallTools(ctx context.Context, projectRoot string) error {
	binPath := filepath.Join(projectRoot, ".tools")
	toolsFile := filepath.Join(projectRoot, "tools.go")

	deps, err := ToolImports(toolsFile)
	if err != nil {
		return err
	}

	for _, dep := range deps {
		PrintSubtask("go install " + dep)

		cmd := exec.CommandContext(ctx, "go", "install", dep)
		cmd.Dir = projectRoot
		cmd.Env = append(os.Environ(), fmt.Sprintf("GOBIN=%s", binPath))
		cmd.Stderr = os.Stderr
		cmd.Stdout = os.Stdout
		err := cmd.Run()
		if err != nil {
			return eris.Wrapf(err, "failed to install %s", dep)
		}
	}

	return nil
}
