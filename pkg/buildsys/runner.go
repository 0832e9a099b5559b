package buildsys

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// HelperCommands are routed to the tool binary instead of the system's implementation so that task commands behave
// the same on every platform.
var HelperCommands = map[string]bool{
	"cp":    true,
	"mv":    true,
	"rm":    true,
	"mkdir": true,
}

// ToolPath is the binary handling HelperCommands. Defaults to the running executable.
var ToolPath = ""

// outputSpread is how far apart outputs of one task may be before we warn about a partial rebuild
const outputSpread = 10 * time.Minute

// RunOptions controls the behaviour of RunTask
type RunOptions struct {
	DryRun bool
	Force  bool
	Stdout io.Writer
	Stderr io.Writer
}

type taskState int

const (
	taskPending taskState = iota
	taskRunning
	taskDone
)

// taskRunner tracks a single RunTask invocation; each task runs at most once
type taskRunner struct {
	tasks       TaskList
	projectRoot string
	opts        RunOptions
	state       map[string]taskState
	parser      *syntax.Parser
	printer     *syntax.Printer
}

func toolPath() string {
	if ToolPath != "" {
		return ToolPath
	}

	if exe, err := os.Executable(); err == nil {
		return exe
	}
	return "tool"
}

var (
	defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)
	defaultOpenHandler = interp.DefaultOpenHandler()
)

func execHandler(ctx context.Context, args []string) error {
	if len(args) > 0 && HelperCommands[args[0]] {
		args = append([]string{toolPath()}, args...)
	}

	return defaultExecHandler(ctx, args)
}

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	// scripts are written for POSIX shells
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}

// expandPatterns resolves glob patterns (including **) relative to base. Patterns that match nothing are dropped.
func expandPatterns(projectRoot, base string, patterns []string) ([]string, error) {
	cfg := &expand.Config{
		ReadDir:  shellReadDir,
		GlobStar: true,
	}
	state := &scriptState{
		filename:    filepath.Join(base, "tasks.star"),
		projectRoot: projectRoot,
	}
	parser := syntax.NewParser()

	result := []string{}
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(state.resolve(pattern))

		var words []*syntax.Word
		err := parser.Words(strings.NewReader(pattern), func(w *syntax.Word) bool {
			words = append(words, w)
			return true
		})
		if err != nil {
			return nil, eris.Wrapf(err, "failed to parse pattern %s", pattern)
		}

		fields, err := expand.Fields(cfg, words...)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to expand pattern %s", pattern)
		}

		for _, field := range fields {
			// unmatched globs are returned verbatim
			if !strings.ContainsAny(field, "*?[") {
				result = append(result, field)
			}
		}
	}

	return result, nil
}

func modTimes(paths []string) ([]time.Time, error) {
	times := make([]time.Time, len(paths))
	for idx, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		times[idx] = info.ModTime()
	}

	return times, nil
}

func timeBounds(times []time.Time) (oldest, newest time.Time) {
	for idx, t := range times {
		if idx == 0 || t.Before(oldest) {
			oldest = t
		}
		if t.After(newest) {
			newest = t
		}
	}
	return
}

// upToDate reports whether the newest output is newer than the newest input. Tasks without inputs or outputs and
// tasks with missing outputs are never up to date.
func (r *taskRunner) upToDate(ctx context.Context, task *Task) (bool, error) {
	if len(task.Inputs) == 0 || len(task.Outputs) == 0 {
		return false, nil
	}

	inputs, err := expandPatterns(r.projectRoot, task.Base, task.Inputs)
	if err != nil {
		return false, eris.Wrap(err, "inputs")
	}

	outputs, err := expandPatterns(r.projectRoot, task.Base, task.Outputs)
	if err != nil {
		return false, eris.Wrap(err, "outputs")
	}

	if len(inputs) == 0 || len(outputs) == 0 {
		return false, nil
	}

	inputTimes, err := modTimes(inputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to check inputs")
	}

	outputTimes, err := modTimes(outputs)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, eris.Wrap(err, "failed to check outputs")
	}

	_, newestInput := timeBounds(inputTimes)
	oldestOutput, newestOutput := timeBounds(outputTimes)

	if spread := newestOutput.Sub(oldestOutput); spread > outputSpread {
		log(ctx).Warn().
			Str("task", task.Short).
			Msgf("outputs were written %.1f minutes apart, the last build might have been incomplete", spread.Minutes())
	}

	if !newestOutput.After(newestInput) {
		return false, nil
	}

	log(ctx).Info().
		Str("task", task.Short).
		Msgf("up to date (outputs are %.1f seconds newer than the inputs)", newestOutput.Sub(newestInput).Seconds())
	return true, nil
}

// skipFilesExist reports whether every skip_if_exists entry is present
func (r *taskRunner) skipFilesExist(task *Task) (bool, error) {
	if len(task.SkipIfExists) == 0 {
		return false, nil
	}

	paths, err := expandPatterns(r.projectRoot, task.Base, task.SkipIfExists)
	if err != nil {
		return false, eris.Wrap(err, "skip_if_exists")
	}

	if len(paths) == 0 {
		return false, nil
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if eris.Is(err, os.ErrNotExist) {
				return false, nil
			}
			return false, eris.Wrapf(err, "failed to check %s", path)
		}
	}

	return true, nil
}

func (r *taskRunner) canSkip(ctx context.Context, task *Task) (bool, error) {
	exists, err := r.skipFilesExist(task)
	if err != nil || exists {
		if exists {
			log(ctx).Info().Str("task", task.Short).Msg("skipped, all skip_if_exists files are present")
		}
		return exists, err
	}

	return r.upToDate(ctx, task)
}

func (r *taskRunner) newShell(task *Task) (*interp.Runner, error) {
	env := os.Environ()
	for name, value := range task.Env {
		env = append(env, name+"="+value)
	}

	return interp.New(
		interp.Params("-e"),
		interp.Dir(task.Base),
		interp.Env(expand.ListEnviron(env...)),
		interp.StdIO(nil, r.opts.Stdout, r.opts.Stderr),
		interp.ExecHandler(execHandler),
		interp.OpenHandler(openHandler),
	)
}

// runCmds executes the task's commands in order. An explicit exit in a script ends the task successfully.
func (r *taskRunner) runCmds(ctx context.Context, task *Task, force bool) error {
	shell, err := r.newShell(task)
	if err != nil {
		return eris.Wrap(err, "failed to set up the shell")
	}

	var line strings.Builder
	for _, cmd := range task.Cmds {
		if err := ctx.Err(); err != nil {
			return err
		}

		if sub := cmd.Subtask(); sub != nil {
			if err := r.run(ctx, sub, force); err != nil {
				return err
			}
			continue
		}

		stmts, err := cmd.Statements(r.parser)
		if err != nil {
			return err
		}

		for _, stmt := range stmts {
			line.Reset()
			if err := r.printer.Print(&line, stmt); err != nil {
				return eris.Wrap(err, "failed to print command")
			}

			log(ctx).Info().Str("task", task.Short).Bool("command", true).Msg(line.String())
			if r.opts.DryRun {
				continue
			}

			if err := shell.Run(ctx, stmt); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				return eris.Wrapf(err, "task %s failed", task.Short)
			}

			if shell.Exited() {
				return nil
			}
		}
	}

	return nil
}

func (r *taskRunner) run(ctx context.Context, task *Task, force bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch r.state[task.Short] {
	case taskDone:
		log(ctx).Debug().Str("task", task.Short).Msg("already done")
		return nil
	case taskRunning:
		return eris.Errorf("task %s was called recursively", task.Short)
	}
	r.state[task.Short] = taskRunning

	for _, name := range task.Deps {
		dep, found := r.tasks[name]
		if !found {
			return eris.Errorf("task %s not found (dependency of %s)", name, task.Short)
		}

		// force only applies to the requested tasks, dependencies are still checked
		if err := r.run(ctx, dep, false); err != nil {
			if eris.Is(err, context.Canceled) {
				return err
			}
			return eris.Wrapf(err, "dependency %s of task %s failed", name, task.Short)
		}
	}

	if !force {
		skip, err := r.canSkip(ctx, task)
		if err != nil {
			return eris.Wrapf(err, "task %s", task.Short)
		}

		if skip {
			r.state[task.Short] = taskDone
			return nil
		}
	}

	if err := r.runCmds(ctx, task, force); err != nil {
		return err
	}

	r.state[task.Short] = taskDone
	return nil
}

// RunTask runs the named task after its dependencies
func RunTask(ctx context.Context, projectRoot, name string, tasks TaskList, opts RunOptions) error {
	task, found := tasks[name]
	if !found {
		return eris.Errorf("task %s not found", name)
	}

	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	r := &taskRunner{
		tasks:       tasks,
		projectRoot: projectRoot,
		opts:        opts,
		state:       map[string]taskState{},
		parser:      syntax.NewParser(),
		printer:     syntax.NewPrinter(syntax.Minify(true)),
	}

	return r.run(ctx, task, opts.Force)
}
