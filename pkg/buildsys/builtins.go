package buildsys

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

type builtinFunc = func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error)

// logf prefixes msg with the script position of the calling Starlark code
func (s *scriptState) logf(thread *starlark.Thread, warning bool, msg string, args ...interface{}) {
	pos := thread.CallFrame(1).Pos
	event := log(s.ctx).Info()
	if warning {
		event = log(s.ctx).Warn()
	}

	event.Msgf("%s:%d:%d: %s", s.shortPath(s.filename), pos.Line, pos.Col, fmt.Sprintf(msg, args...))
}

func messageBuiltin(warning bool) builtinFunc {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var message string
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message); err != nil {
			return nil, err
		}

		stateOf(thread).logf(thread, warning, "%s", message)
		return starlark.None, nil
	}
}

var (
	starInfo = messageBuiltin(false)
	starWarn = messageBuiltin(true)
)

// starError aborts the script with the given message
func starError(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message); err != nil {
		return nil, err
	}

	return nil, eris.New(message)
}

// resolvePath implements resolve_path(*parts, base=None)
func resolvePath(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	state := stateOf(thread)

	var baseValue starlark.Value = starlark.None
	if err := starlark.UnpackArgs(fn.Name(), nil, kwargs, "base?", &baseValue); err != nil {
		return nil, err
	}

	if len(args) == 0 {
		return nil, eris.Errorf("%s: expected at least one path", fn.Name())
	}

	parts := make([]string, len(args))
	for idx, arg := range args {
		part, ok := pathString(arg)
		if !ok {
			return nil, eris.Errorf("%s: argument %d: got %s, want string or path", fn.Name(), idx+1, arg.Type())
		}
		parts[idx] = part
	}

	result := state.resolve(parts...)
	if baseValue != starlark.None {
		base, ok := pathString(baseValue)
		if !ok {
			return nil, eris.Errorf("%s: base: got %s, want string or path", fn.Name(), baseValue.Type())
		}

		rel, err := filepath.Rel(state.resolve(base), result)
		if err != nil {
			return nil, eris.Wrapf(err, "%s", fn.Name())
		}
		result = rel
	}

	return Path(result), nil
}

// declareOption implements option(name, default="", help=""). Options are only available in the global scope since
// their values have to be known before configure() runs.
func declareOption(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var opt ScriptOption

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &opt.DefaultValue, "help?", &opt.Help)
	if err != nil {
		return nil, err
	}

	state := stateOf(thread)
	if state.configuring {
		return nil, eris.Errorf("%s(%q): options can only be declared in the init phase (global scope)", fn.Name(), name)
	}

	state.options[name] = opt
	if value, ok := state.optionValues[name]; ok {
		return starlark.String(value), nil
	}

	return starlark.String(opt.DefaultValue), nil
}

func getenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key, fallback string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &key, &fallback); err != nil {
		return nil, err
	}

	if value, ok := stateOf(thread).envOverrides[key]; ok {
		return starlark.String(value), nil
	}

	if value, ok := os.LookupEnv(key); ok {
		return starlark.String(value), nil
	}

	return starlark.String(fallback), nil
}

// setenv changes the environment of execute() calls and of every task declared by the script
func setenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key, value string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &key, &value); err != nil {
		return nil, err
	}

	stateOf(thread).envOverrides[key] = value
	return starlark.True, nil
}

func prependPath(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 || len(kwargs) != 0 {
		return nil, eris.Errorf("%s: expected exactly one positional argument", fn.Name())
	}

	dir, ok := pathString(args[0])
	if !ok {
		return nil, eris.Errorf("%s: got %s, want string or path", fn.Name(), args[0].Type())
	}

	state := stateOf(thread)
	current, ok := state.envOverrides["PATH"]
	if !ok {
		current = os.Getenv("PATH")
	}

	state.envOverrides["PATH"] = state.resolve(dir) + string(os.PathListSeparator) + current
	return starlark.String(state.envOverrides["PATH"]), nil
}

// lookupYamlKey walks a dotted key (i.e. "release.version" or "targets.0") through a decoded document
func lookupYamlKey(doc interface{}, yamlKey string) (interface{}, error) {
	value := reflect.ValueOf(doc)
	for _, key := range strings.Split(yamlKey, ".") {
		if value.Kind() == reflect.Interface {
			value = value.Elem()
		}

		switch value.Kind() {
		case reflect.Map:
			value = value.MapIndex(reflect.ValueOf(key))
		case reflect.Slice:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= value.Len() {
				return nil, nil
			}
			value = value.Index(idx)
		case reflect.Invalid:
			return nil, nil
		default:
			return nil, eris.Errorf("encountered unexpected value of kind %v in YAML document", value.Kind())
		}
	}

	if !value.IsValid() {
		return nil, nil
	}

	return value.Interface(), nil
}

// readYaml implements read_yaml(file, key, default=None). Documents are parsed once per script run.
func readYaml(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var filename, key string
	var fallback starlark.Value = starlark.None

	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &filename, &key, &fallback); err != nil {
		return nil, err
	}

	state := stateOf(thread)
	filename = state.resolve(filename)

	doc, cached := state.yamlDocs[filename]
	if !cached {
		content, err := os.ReadFile(filename)
		if err != nil {
			return nil, eris.Wrapf(err, "failed to read %s", filename)
		}

		if err = yaml.Unmarshal(content, &doc); err != nil {
			return nil, eris.Wrapf(err, "failed to parse %s", filename)
		}
		state.yamlDocs[filename] = doc
		state.readFiles = append(state.readFiles, filename)
	}

	value, err := lookupYamlKey(doc, key)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: %s", state.shortPath(filename), key)
	}

	switch value.(type) {
	case nil:
		return fallback, nil
	case string, int, bool, float64:
		return toStarlark(value)
	}

	return nil, eris.Errorf("%s: %s is a %T, only scalar values can be read", state.shortPath(filename), key, value)
}

// statBuiltin builds isdir() and isfile()
func statBuiltin(check func(os.FileInfo) bool) builtinFunc {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var path string
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path); err != nil {
			return nil, err
		}

		info, err := os.Stat(stateOf(thread).resolve(path))
		return starlark.Bool(err == nil && check(info)), nil
	}
}

func commandNodes(command starlark.Value, parser *syntax.Parser, base string) ([]syntax.Node, error) {
	switch command := command.(type) {
	case starlark.String:
		stmts, err := ShellCmd{Task: "execute", Script: command.GoString()}.Statements(parser)
		if err != nil {
			return nil, err
		}

		nodes := make([]syntax.Node, len(stmts))
		for idx, stmt := range stmts {
			nodes[idx] = stmt
		}
		return nodes, nil

	case starlark.Tuple:
		call, err := argvCall(command, base)
		if err != nil {
			return nil, err
		}
		return []syntax.Node{call}, nil
	}

	return nil, eris.Errorf("got %s, want string or tuple", command.Type())
}

// execute implements execute(command, format="text", show_error=False). The command runs while the script is
// evaluated; a failing command returns False instead of aborting the script.
func execute(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var command starlark.Value
	format := "text"
	showError := false

	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "command", &command, "format?", &format, "show_error?", &showError)
	if err != nil {
		return nil, err
	}

	if format != "text" && format != "json" {
		return nil, eris.Errorf("%s: unsupported format %q", fn.Name(), format)
	}

	state := stateOf(thread)
	base := filepath.Dir(state.filename)

	nodes, err := commandNodes(command, syntax.NewParser(), base)
	if err != nil {
		return nil, eris.Wrap(err, fn.Name())
	}

	var stdout strings.Builder
	var stderr io.Writer = io.Discard
	if showError {
		stderr = os.Stderr
	}

	runner, err := interp.New(
		interp.Params("-e"),
		interp.Dir(base),
		interp.Env(expand.ListEnviron(state.environ()...)),
		interp.StdIO(nil, &stdout, stderr),
		interp.ExecHandler(execHandler),
		interp.OpenHandler(openHandler),
	)
	if err != nil {
		return nil, eris.Wrap(err, "failed to set up the shell")
	}

	for _, node := range nodes {
		if err := runner.Run(state.ctx, node); err != nil {
			if showError {
				log(state.ctx).Error().Err(err).Msg("command failed")
			}
			return starlark.False, nil
		}
	}

	if format == "text" {
		return starlark.String(stdout.String()), nil
	}

	var decoded interface{}
	if err := json.Unmarshal([]byte(stdout.String()), &decoded); err != nil {
		return nil, eris.Wrap(err, "failed to decode command output")
	}

	return toStarlark(decoded)
}
