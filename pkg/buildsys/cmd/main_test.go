package cmd

import (
	"bytes"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tisannai/ringer/pkg/buildsys"
)

func TestSplitArgs(t *testing.T) {
	tasks, options := splitArgs([]string{"test", "prefix=/opt", "release", "empty="})

	assert.Equal(t, []string{"test", "release"}, tasks)
	assert.Equal(t, map[string]string{"prefix": "/opt", "empty": ""}, options)
}

func TestPrintTaskList(t *testing.T) {
	var out bytes.Buffer
	printTaskList(&out, buildsys.TaskList{
		"test":    {Short: "test", Desc: "runs the tests"},
		"release": {Short: "release", Desc: "builds the library"},
		"secret":  {Short: "secret", Hidden: true},
	}, map[string]buildsys.ScriptOption{
		"prefix": {DefaultValue: "build", Help: "output directory"},
	})

	expected := `Available tasks:
 * release:   builds the library
 * test:      runs the tests

Options:
 * prefix=build
     output directory
`
	assert.Equal(t, expected, out.String())
}

func TestConsoleWriter(t *testing.T) {
	var out bytes.Buffer
	t.Setenv("BUILDSYS_DEBUG", "")

	logger := zerolog.New(NewConsoleWriter(&out))
	logger.Info().Str("task", "release").Bool("command", true).Msg("go build")
	assert.Contains(t, out.String(), "release: ")
	assert.Contains(t, out.String(), "$ go build")

	out.Reset()
	logger.Error().Err(eris.New("disk full")).Msg("write failed")
	assert.Contains(t, out.String(), "Error: write failed")
	assert.Contains(t, out.String(), "disk full")
}

func TestNewLoggerJSON(t *testing.T) {
	var out bytes.Buffer

	logger := NewLogger(&out, true, zerolog.WarnLevel)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	require.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"message":"shown"`)
}
