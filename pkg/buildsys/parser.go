package buildsys

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	"mvdan.cc/sh/v3/syntax"
)

const (
	anonPrefix = "auto#"
	stateKey   = "buildsys.state"
)

// scriptState is shared by all builtins during one RunScript call
type scriptState struct {
	ctx          context.Context
	filename     string
	projectRoot  string
	options      map[string]ScriptOption
	optionValues map[string]string
	envOverrides map[string]string
	yamlDocs     map[string]interface{}
	readFiles    []string
	tasks        []*Task
	configuring  bool
}

func stateOf(thread *starlark.Thread) *scriptState {
	return thread.Local(stateKey).(*scriptState)
}

// stringList converts an optional list argument of strings or paths
func stringList(list *starlark.List, field string) ([]string, error) {
	if list == nil {
		return []string{}, nil
	}

	result := make([]string, list.Len())
	for idx := range result {
		item := list.Index(idx)
		value, ok := pathString(item)
		if !ok {
			return nil, eris.Errorf("%s[%d]: got %s, want string or path", field, idx, item.Type())
		}
		result[idx] = value
	}

	return result, nil
}

// shellReadDir lists directories for glob expansion
func shellReadDir(path string) ([]os.FileInfo, error) {
	if path == "" {
		path = "."
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	infos := make([]os.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			// removed since ReadDir returned
			if eris.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		infos = append(infos, info)
	}

	return infos, nil
}

var dblQuoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")

// shellWord quotes value as a single literal shell word
func shellWord(value string) *syntax.Word {
	var part syntax.WordPart
	switch {
	case strings.Contains(value, "'"):
		part = &syntax.DblQuoted{Parts: []syntax.WordPart{&syntax.Lit{Value: dblQuoteEscaper.Replace(value)}}}
	case value == "" || strings.ContainsAny(value, " \t\n$\"*?[;&|<>()`\\#~"):
		part = &syntax.SglQuoted{Value: value}
	default:
		part = &syntax.Lit{Value: value}
	}

	return &syntax.Word{Parts: []syntax.WordPart{part}}
}

// argvCall builds a call from an argv tuple. Leading NAME=value entries are turned into assignments that only apply
// to this call. Path arguments are made relative to base.
func argvCall(argv starlark.Tuple, base string) (*syntax.CallExpr, error) {
	call := new(syntax.CallExpr)

	idx := 0
	for ; idx < len(argv); idx++ {
		value, ok := argv[idx].(starlark.String)
		if !ok {
			break
		}

		name, assigned, found := strings.Cut(value.GoString(), "=")
		if !found || !syntax.ValidName(name) {
			break
		}

		call.Assigns = append(call.Assigns, &syntax.Assign{
			Name:  &syntax.Lit{Value: name},
			Value: shellWord(assigned),
		})
	}

	if idx == len(argv) {
		return nil, eris.New("command contains no program to run")
	}

	for ; idx < len(argv); idx++ {
		var arg string

		switch value := argv[idx].(type) {
		case starlark.String:
			arg = value.GoString()
		case Path:
			arg = string(value)
			if rel, err := filepath.Rel(base, arg); err == nil && filepath.IsAbs(arg) {
				arg = rel
			}
			arg = filepath.ToSlash(arg)
		default:
			return nil, eris.Errorf("argument %d: got %s, want string or path", idx, argv[idx].Type())
		}

		call.Args = append(call.Args, shellWord(arg))
	}

	return call, nil
}

// addCmd appends one cmds entry to task. argv entries are printed back into a script so the cache only ever stores
// strings.
func addCmd(task *Task, item starlark.Value, printer *syntax.Printer) error {
	idx := len(task.Cmds)

	var argv starlark.Tuple
	switch value := item.(type) {
	case starlark.String:
		task.Cmds = append(task.Cmds, ShellCmd{Task: task.Short, Index: idx, Script: value.GoString()})
		return nil
	case *Task:
		task.Cmds = append(task.Cmds, SubtaskCmd{Task: value})
		return nil
	case starlark.Tuple:
		argv = value
	case *starlark.List:
		argv = make(starlark.Tuple, value.Len())
		for i := range argv {
			argv[i] = value.Index(i)
		}
	default:
		return eris.Errorf("cmds[%d]: got %s, want string, tuple, list or task", idx, item.Type())
	}

	call, err := argvCall(argv, task.Base)
	if err != nil {
		return eris.Wrapf(err, "cmds[%d]", idx)
	}

	var script strings.Builder
	if err := printer.Print(&script, call); err != nil {
		return eris.Wrapf(err, "cmds[%d]", idx)
	}

	task.Cmds = append(task.Cmds, ShellCmd{Task: task.Short, Index: idx, Script: script.String()})
	return nil
}

func declareTask(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	state := stateOf(thread)
	if !state.configuring {
		return nil, eris.New("tasks can only be declared inside configure()")
	}

	var (
		deps, skipIfExists, inputs, outputs, cmds *starlark.List
		env                                       *starlark.Dict
	)
	task := &Task{Env: map[string]string{}}

	err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"short??", &task.Short,
		"hidden?", &task.Hidden,
		"desc?", &task.Desc,
		"deps?", &deps,
		"base?", &task.Base,
		"skip_if_exists?", &skipIfExists,
		"inputs?", &inputs,
		"outputs?", &outputs,
		"env?", &env,
		"cmds?", &cmds,
	)
	if err != nil {
		return nil, err
	}

	anonymous := task.Short == ""
	switch {
	case anonymous:
		task.Short = anonPrefix + nanoid.New()
		task.Hidden = true
	case task.Short == "configure":
		return nil, eris.New(`"configure" is reserved and can't be used as a task name`)
	}

	task.Base = state.resolve(task.Base)

	lists := []struct {
		field string
		src   *starlark.List
		dest  *[]string
	}{
		{"deps", deps, &task.Deps},
		{"skip_if_exists", skipIfExists, &task.SkipIfExists},
		{"inputs", inputs, &task.Inputs},
		{"outputs", outputs, &task.Outputs},
	}
	for _, list := range lists {
		*list.dest, err = stringList(list.src, list.field)
		if err != nil {
			return nil, err
		}
	}

	if env != nil {
		for _, pair := range env.Items() {
			key, keyOk := pair[0].(starlark.String)
			value, valueOk := pair[1].(starlark.String)
			if !keyOk || !valueOk {
				return nil, eris.Errorf("env: got %s: %s, want string: string", pair[0].Type(), pair[1].Type())
			}
			task.Env[key.GoString()] = value.GoString()
		}
	}

	task.Cmds = []TaskCmd{}
	if cmds != nil {
		printer := syntax.NewPrinter(syntax.Minify(true))
		for idx := 0; idx < cmds.Len(); idx++ {
			if err := addCmd(task, cmds.Index(idx), printer); err != nil {
				return nil, eris.Wrapf(err, "task %s", task.Short)
			}
		}
	}

	if len(task.Inputs) > 0 && len(task.Outputs) == 0 {
		state.logf(thread, true, "task %s has inputs but no outputs, it will always run", task.Short)
	}

	// anonymous tasks are only reachable through the task that embeds them
	if !anonymous {
		state.tasks = append(state.tasks, task)
	}
	return task, nil
}

func builtins() starlark.StringDict {
	funcs := map[string]func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error){
		"info":         starInfo,
		"warn":         starWarn,
		"error":        starError,
		"resolve_path": resolvePath,
		"option":       declareOption,
		"getenv":       getenv,
		"setenv":       setenv,
		"prepend_path": prependPath,
		"read_yaml":    readYaml,
		"isdir":        statBuiltin(func(info os.FileInfo) bool { return info.IsDir() }),
		"isfile":       statBuiltin(func(info os.FileInfo) bool { return info.Mode().IsRegular() }),
		"execute":      execute,
		"task":         declareTask,
	}

	result := starlark.StringDict{
		"OS":   starlark.String(runtime.GOOS),
		"ARCH": starlark.String(runtime.GOARCH),
	}
	for name, fn := range funcs {
		result[name] = starlark.NewBuiltin(name, fn)
	}

	return result
}

// scriptError keeps the Starlark backtrace, which is far more useful than the bare message
func scriptError(err error, format string, args ...interface{}) error {
	if evalErr, ok := err.(*starlark.EvalError); ok {
		return eris.Errorf(format+":\n%s", append(args, evalErr.Backtrace())...)
	}

	return eris.Wrapf(err, format, args...)
}

// RunScript evaluates the task script and returns the declared options. With doConfigure set, configure() is
// called as well and the declared tasks are returned.
func RunScript(ctx context.Context, filename, projectRoot string, options map[string]string, doConfigure bool) (TaskList, map[string]ScriptOption, error) {
	tasks, state, err := runScript(ctx, filename, projectRoot, options, doConfigure)
	if err != nil {
		return nil, nil, err
	}

	return tasks, state.options, nil
}

func runScript(ctx context.Context, filename, projectRoot string, options map[string]string, doConfigure bool) (TaskList, *scriptState, error) {
	var err error
	if projectRoot, err = filepath.Abs(projectRoot); err != nil {
		return nil, nil, eris.Wrap(err, "invalid project root")
	}
	if filename, err = filepath.Abs(filename); err != nil {
		return nil, nil, eris.Wrap(err, "invalid script path")
	}
	if options == nil {
		options = map[string]string{}
	}

	state := &scriptState{
		ctx:          ctx,
		filename:     filename,
		projectRoot:  projectRoot,
		options:      map[string]ScriptOption{},
		optionValues: options,
		envOverrides: map[string]string{},
		yamlDocs:     map[string]interface{}{},
	}

	thread := &starlark.Thread{
		Name: "tasks",
		Print: func(_ *starlark.Thread, msg string) {
			log(ctx).Info().Msg(msg)
		},
	}
	thread.SetLocal(stateKey, state)

	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "failed to read %s", filename)
	}

	shortName := state.shortPath(filename)
	globals, err := starlark.ExecFile(thread, shortName, source, builtins())
	if err != nil {
		return nil, nil, scriptError(err, "failed to execute %s", shortName)
	}

	tasks := TaskList{}
	if !doConfigure {
		return tasks, state, nil
	}

	value, found := globals["configure"]
	if !found {
		return nil, nil, eris.Errorf("%s has no configure function", shortName)
	}

	configure, ok := value.(starlark.Callable)
	if !ok {
		return nil, nil, eris.Errorf("%s: configure is a %s, not a function", shortName, value.Type())
	}

	state.configuring = true
	if _, err = starlark.Call(thread, configure, nil, nil); err != nil {
		return nil, nil, scriptError(err, "configure() failed in %s", shortName)
	}

	for _, task := range state.tasks {
		if _, dup := tasks[task.Short]; dup {
			log(ctx).Warn().Str("task", task.Short).Msg("declared more than once, the last declaration wins")
		}
		tasks[task.Short] = task

		// setenv() applies to every task unless the task sets the variable itself
		for name, value := range state.envOverrides {
			if _, present := task.Env[name]; !present {
				task.Env[name] = value
			}
		}
	}

	return tasks, state, nil
}

// Parse evaluates the task script with the given option values and returns the declared tasks
func Parse(ctx context.Context, filename, projectRoot string, options map[string]string) (TaskList, error) {
	tasks, _, err := RunScript(ctx, filename, projectRoot, options, true)
	return tasks, err
}

// parseWithSources is Parse plus the list of files the script read besides itself
func parseWithSources(ctx context.Context, filename, projectRoot string, options map[string]string) (TaskList, []string, error) {
	tasks, state, err := runScript(ctx, filename, projectRoot, options, true)
	if err != nil {
		return nil, nil, err
	}

	return tasks, state.readFiles, nil
}
