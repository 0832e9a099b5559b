package buildsys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	starsyntax "go.starlark.net/syntax"
	"mvdan.cc/sh/v3/syntax"
)

// TaskCmd is one entry of a task's cmds list
type TaskCmd interface {
	// Subtask returns the embedded task or nil for shell commands
	Subtask() *Task
	// Statements parses the command; subtasks return no statements
	Statements(*syntax.Parser) ([]*syntax.Stmt, error)
}

// ShellCmd is a shell snippet. Index is the position inside the task's cmds and only used in error messages.
type ShellCmd struct {
	Task   string
	Script string
	Index  int
}

func (c ShellCmd) Subtask() *Task {
	return nil
}

func (c ShellCmd) Statements(parser *syntax.Parser) ([]*syntax.Stmt, error) {
	file, err := parser.Parse(strings.NewReader(c.Script), fmt.Sprintf("%s:%d", c.Task, c.Index))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse command %q", c.Script)
	}

	return file.Stmts, nil
}

// SubtaskCmd runs a task value (usually anonymous) at this point of the parent task
type SubtaskCmd struct {
	Task *Task
}

func (c SubtaskCmd) Subtask() *Task {
	return c.Task
}

func (c SubtaskCmd) Statements(*syntax.Parser) ([]*syntax.Stmt, error) {
	return nil, nil
}

// Task holds everything task() received after validation. Paths in Inputs, Outputs and SkipIfExists are still
// relative to Base.
type Task struct {
	Short        string
	Desc         string
	Hidden       bool
	Base         string
	Deps         []string
	SkipIfExists []string
	Inputs       []string
	Outputs      []string
	Env          map[string]string
	Cmds         []TaskCmd
}

// TaskList indexes tasks by their short name
type TaskList map[string]*Task

// Visible returns the sorted names of all tasks that aren't hidden
func (l TaskList) Visible() []string {
	names := make([]string, 0, len(l))
	for name, task := range l {
		if !task.Hidden {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names
}

// ScriptOption describes an option() call
type ScriptOption struct {
	DefaultValue string
	Help         string
}

var (
	_ starlark.Value     = (*Task)(nil)
	_ starlark.Sliceable = Path("")
)

func (t *Task) String() string {
	return fmt.Sprintf("<task %s>", t.Short)
}

func (t *Task) Type() string { return "task" }

// Freeze is a no-op, task values are immutable once task() returns.
func (t *Task) Freeze() {}

func (t *Task) Truth() starlark.Bool { return starlark.True }

func (t *Task) Hash() (uint32, error) {
	return 0, eris.New("unhashable type: task")
}

// Path is the value returned by resolve_path(). It behaves like a string in scripts but keeps commands from
// mangling it: argv entries of this type are made relative to the task base.
type Path string

func (p Path) String() string { return starlark.String(p).String() }

func (p Path) Type() string { return "path" }

func (p Path) Freeze() {}

func (p Path) Truth() starlark.Bool { return p != "" }

func (p Path) Hash() (uint32, error) { return starlark.String(p).Hash() }

func (p Path) CompareSameType(op starsyntax.Token, other starlark.Value, depth int) (bool, error) {
	return starlark.String(p).CompareSameType(op, starlark.String(other.(Path)), depth)
}

func (p Path) Index(i int) starlark.Value { return starlark.String(p[i]) }

func (p Path) Len() int { return len(p) }

func (p Path) Slice(start, end, step int) starlark.Value {
	return starlark.String(p).Slice(start, end, step)
}

// pathString accepts both strings and paths wherever scripts pass file names
func pathString(value starlark.Value) (string, bool) {
	switch value := value.(type) {
	case starlark.String:
		return value.GoString(), true
	case Path:
		return string(value), true
	}

	return "", false
}
