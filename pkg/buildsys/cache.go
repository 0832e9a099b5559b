package buildsys

import (
	"context"
	"encoding/gob"
	"maps"
	"os"

	"github.com/rotisserie/eris"
)

// CacheName is the file name used by LoadTasks, placed next to the task script
const CacheName = ".tasks.cache"

func init() {
	gob.Register(TaskList{})
	gob.Register(Task{})
	gob.Register(ShellCmd{})
	gob.Register(SubtaskCmd{})
}

// WriteCache stores the option values, the files the script read and the resulting task list in file
func WriteCache(file string, options map[string]string, sources []string, list TaskList) error {
	handle, err := os.Create(file)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", file)
	}
	defer handle.Close()

	encoder := gob.NewEncoder(handle)
	err = encoder.Encode(options)
	if err != nil {
		return eris.Wrap(err, "failed to encode options")
	}

	if sources == nil {
		sources = []string{}
	}
	err = encoder.Encode(sources)
	if err != nil {
		return eris.Wrap(err, "failed to encode sources")
	}

	err = encoder.Encode(list)
	if err != nil {
		return eris.Wrap(err, "failed to encode tasks")
	}

	return nil
}

// ReadCache loads the option values, sources and task list written by WriteCache
func ReadCache(file string) (map[string]string, []string, TaskList, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, nil, nil, err
	}
	defer handle.Close()

	decoder := gob.NewDecoder(handle)

	var options map[string]string
	err = decoder.Decode(&options)
	if err != nil {
		return nil, nil, nil, eris.Wrapf(err, "failed to decode options from %s", file)
	}

	var sources []string
	err = decoder.Decode(&sources)
	if err != nil {
		return options, nil, nil, eris.Wrapf(err, "failed to decode sources from %s", file)
	}

	var result TaskList
	err = decoder.Decode(&result)
	if err != nil {
		return options, sources, nil, eris.Wrapf(err, "failed to decode tasks from %s", file)
	}

	return options, sources, result, nil
}

// cacheIsFresh reports whether cacheFile is newer than every source. A missing source makes the cache stale.
func cacheIsFresh(cacheFile string, sources ...string) bool {
	cacheInfo, err := os.Stat(cacheFile)
	if err != nil {
		return false
	}

	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil || !cacheInfo.ModTime().After(info.ModTime()) {
			return false
		}
	}

	return true
}

// LoadTasks returns the tasks declared in filename. The parsed list is cached in cacheFile and reused as long as
// neither the script nor any file it read (read_yaml) has changed and the same options were passed. An empty
// cacheFile disables the cache.
func LoadTasks(ctx context.Context, filename, projectRoot, cacheFile string, options map[string]string) (TaskList, error) {
	if options == nil {
		options = map[string]string{}
	}

	if cacheFile != "" && cacheIsFresh(cacheFile, filename) {
		cachedOptions, sources, tasks, err := ReadCache(cacheFile)
		switch {
		case err != nil:
			log(ctx).Warn().Err(err).Msg("ignoring broken task cache")
		case !maps.Equal(cachedOptions, options):
			log(ctx).Debug().Str("path", cacheFile).Msg("options changed since the task cache was written")
		case !cacheIsFresh(cacheFile, sources...):
			log(ctx).Debug().Str("path", cacheFile).Msg("a file read by the task script changed")
		default:
			log(ctx).Debug().Str("path", cacheFile).Msg("loaded tasks from cache")
			return tasks, nil
		}
	}

	tasks, sources, err := parseWithSources(ctx, filename, projectRoot, options)
	if err != nil {
		return nil, err
	}

	if cacheFile != "" {
		err = WriteCache(cacheFile, options, sources, tasks)
		if err != nil {
			log(ctx).Warn().Err(err).Msg("failed to write task cache")
		}
	}

	return tasks, nil
}
