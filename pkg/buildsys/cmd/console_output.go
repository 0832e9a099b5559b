package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ConsoleWriter turns zerolog's JSON events into short colored lines
type ConsoleWriter struct {
	out    io.Writer
	buffer strings.Builder
	lock   sync.Mutex
	debug  bool
}

func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{
		out:   out,
		debug: os.Getenv("BUILDSYS_DEBUG") != "",
	}
}

func levelColor(level interface{}) string {
	switch level {
	case "fatal", "panic", "error":
		return "[red]"
	case "warn":
		return "[yellow]"
	case "debug", "trace":
		return "[blue]"
	default:
		return "[green]"
	}
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return n, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	w.buffer.Reset()
	w.buffer.WriteString(levelColor(evt["level"]))

	if task, ok := evt["task"].(string); ok {
		w.buffer.WriteString(task + ": ")
	}

	if evt["level"] == "error" || evt["level"] == "fatal" {
		w.buffer.WriteString("Error: ")
	}

	if isCmd, _ := evt["command"].(bool); isCmd {
		w.buffer.WriteString("[bold]$ ")
	}

	msg, _ := evt["message"].(string)
	if path, ok := evt["path"].(string); ok {
		relPath, err := filepath.Rel(".", path)
		if err == nil {
			msg = strings.ReplaceAll(msg, path, relPath)
		}
	}

	w.buffer.WriteString(msg)

	if errorDetails, ok := evt["error"].(string); ok {
		w.buffer.WriteString("\n")
		w.buffer.WriteString(errorDetails)
	}

	if w.debug {
		w.buffer.WriteString("\n")
		keys := make([]string, 0, len(evt))
		for name := range evt {
			keys = append(keys, name)
		}
		sort.Strings(keys)

		for _, name := range keys {
			w.buffer.WriteString(fmt.Sprintf("  %s: %+v\n", name, evt[name]))
		}
	}

	w.buffer.WriteString("[reset]\n")
	_, err = colorstring.Fprint(w.out, w.buffer.String())
	if err != nil {
		return 0, err
	}

	return len(p), nil
}

// NewLogger returns the logger used by the CLI. JSON output bypasses the ConsoleWriter.
func NewLogger(out io.Writer, jsonOutput bool, level zerolog.Level) zerolog.Logger {
	if jsonOutput {
		return zerolog.New(out).Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(NewConsoleWriter(out)).Level(level)
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, os.Getenv("BUILDSYS_DEBUG") != "")
	}
}
