package buildsys

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const runnerScript = `
def configure():
    task(
        "build",
        inputs = ["in.txt"],
        outputs = ["out.txt"],
        cmds = ["echo built > out.txt", "echo build >> log.txt"],
    )

    task(
        "all",
        deps = ["build"],
        cmds = [
            "echo all >> log.txt",
            task(cmds = ["echo nested >> log.txt"]),
        ],
    )

    task(
        "env",
        env = {"GREETING": "hi"},
        cmds = ["echo $GREETING > env.txt"],
    )

    task("seeded", skip_if_exists = ["seed.txt"], cmds = ["echo seeded >> log.txt"])
    task("loop-a", deps = ["loop-b"])
    task("loop-b", deps = ["loop-a"])
    task("broken", cmds = ["false", "echo unreachable > broken.txt"])
    task("stdout", cmds = [("echo", "to stdout")])
    task("missing-dep", deps = ["nope"])
`

func readFile(t *testing.T, path string) string {
	t.Helper()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func parseRunnerScript(t *testing.T) (string, TaskList) {
	t.Helper()

	dir, script := setupProject(t, runnerScript)
	tasks, err := Parse(context.Background(), script, dir, nil)
	require.NoError(t, err)
	return dir, tasks
}

func TestRunTaskWithDeps(t *testing.T) {
	dir, tasks := parseRunnerScript(t)

	err := RunTask(context.Background(), dir, "all", tasks, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, "built\n", readFile(t, filepath.Join(dir, "out.txt")))
	assert.Equal(t, "build\nall\nnested\n", readFile(t, filepath.Join(dir, "log.txt")))
}

func TestRunTaskDryRun(t *testing.T) {
	dir, tasks := parseRunnerScript(t)

	err := RunTask(context.Background(), dir, "all", tasks, RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "out.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "log.txt"))
}

func TestRunTaskSkipsUpToDateOutputs(t *testing.T) {
	dir, tasks := parseRunnerScript(t)
	outPath := filepath.Join(dir, "out.txt")

	require.NoError(t, RunTask(context.Background(), dir, "build", tasks, RunOptions{}))

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "in.txt"), past, past))
	require.NoError(t, os.WriteFile(outPath, []byte("stale\n"), 0o644))

	require.NoError(t, RunTask(context.Background(), dir, "build", tasks, RunOptions{}))
	assert.Equal(t, "stale\n", readFile(t, outPath))

	require.NoError(t, RunTask(context.Background(), dir, "build", tasks, RunOptions{Force: true}))
	assert.Equal(t, "built\n", readFile(t, outPath))
}

func TestRunTaskRebuildsOnNewerInput(t *testing.T) {
	dir, tasks := parseRunnerScript(t)
	outPath := filepath.Join(dir, "out.txt")

	require.NoError(t, os.WriteFile(outPath, []byte("stale\n"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(outPath, past, past))

	require.NoError(t, RunTask(context.Background(), dir, "build", tasks, RunOptions{}))
	assert.Equal(t, "built\n", readFile(t, outPath))
}

func TestRunTaskSkipIfExists(t *testing.T) {
	dir, tasks := parseRunnerScript(t)

	require.NoError(t, RunTask(context.Background(), dir, "seeded", tasks, RunOptions{}))
	assert.Equal(t, "seeded\n", readFile(t, filepath.Join(dir, "log.txt")))

	writeFile(t, dir, "seed.txt", "")
	require.NoError(t, RunTask(context.Background(), dir, "seeded", tasks, RunOptions{}))
	assert.Equal(t, "seeded\n", readFile(t, filepath.Join(dir, "log.txt")))
}

func TestRunTaskEnv(t *testing.T) {
	dir, tasks := parseRunnerScript(t)

	require.NoError(t, RunTask(context.Background(), dir, "env", tasks, RunOptions{}))
	assert.Equal(t, "hi\n", readFile(t, filepath.Join(dir, "env.txt")))
}

func TestRunTaskOutput(t *testing.T) {
	dir, tasks := parseRunnerScript(t)
	var stdout bytes.Buffer

	require.NoError(t, RunTask(context.Background(), dir, "stdout", tasks, RunOptions{Stdout: &stdout}))
	assert.Equal(t, "to stdout\n", stdout.String())
}

func TestRunTaskErrors(t *testing.T) {
	dir, tasks := parseRunnerScript(t)

	err := RunTask(context.Background(), dir, "loop-a", tasks, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursively")

	err = RunTask(context.Background(), dir, "broken", tasks, RunOptions{})
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "broken.txt"))

	err = RunTask(context.Background(), dir, "missing-dep", tasks, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task nope not found")

	err = RunTask(context.Background(), dir, "unknown", tasks, RunOptions{})
	require.Error(t, err)
}

func TestRunTaskCancelled(t *testing.T) {
	dir, tasks := parseRunnerScript(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunTask(ctx, dir, "build", tasks, RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, "out.txt"))
}

func TestExpandPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "src/a.go", "")
	writeFile(t, dir, "src/nested/b.go", "")
	writeFile(t, dir, "src/c.txt", "")

	matches, err := expandPatterns(dir, dir, []string{"//src/**/*.go", "src/*.txt", "none/*.c"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		filepath.ToSlash(filepath.Join(dir, "src", "a.go")),
		filepath.ToSlash(filepath.Join(dir, "src", "nested", "b.go")),
		filepath.ToSlash(filepath.Join(dir, "src", "c.txt")),
	}, matches)
}

func TestToolPath(t *testing.T) {
	old := ToolPath
	defer func() { ToolPath = old }()

	ToolPath = ""
	exe, err := os.Executable()
	require.NoError(t, err)
	assert.Equal(t, exe, toolPath())

	ToolPath = "/opt/ringer/bin/tool"
	assert.Equal(t, "/opt/ringer/bin/tool", toolPath())
}

func TestRunTaskRoutesHelperCommands(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("the stand-in tool is a shell script")
	}

	dir, script := setupProject(t, `
def configure():
    task("helpers", cmds = ["mkdir -p x", "cp a b"])
`)
	logFile := filepath.Join(dir, "tool.log")
	tool := writeFile(t, dir, "bin/tool", "#!/bin/sh\necho \"$*\" >> '"+logFile+"'\n")
	require.NoError(t, os.Chmod(tool, 0o755))

	old := ToolPath
	defer func() { ToolPath = old }()
	ToolPath = tool

	tasks, err := Parse(context.Background(), script, dir, nil)
	require.NoError(t, err)
	require.NoError(t, RunTask(context.Background(), dir, "helpers", tasks, RunOptions{}))

	lines := strings.Split(strings.TrimSpace(readFile(t, logFile)), "\n")
	assert.Equal(t, []string{"mkdir -p x", "cp a b"}, lines)

	// the system mkdir never ran
	assert.NoDirExists(t, filepath.Join(dir, "x"))
}
