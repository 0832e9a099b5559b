package buildsys

import (
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
)

// resolve joins paths onto the directory of the task script. "//" restarts at the project root, absolute paths
// replace everything before them.
func (s *scriptState) resolve(paths ...string) string {
	result := filepath.Dir(s.filename)

	for _, item := range paths {
		switch {
		case strings.HasPrefix(item, "//"):
			result = filepath.Join(s.projectRoot, item[2:])
		case strings.HasPrefix(item, "/"):
			// keep the drive letter on Windows
			result = filepath.Join(filepath.VolumeName(result), item)
		case filepath.IsAbs(item):
			result = item
		default:
			result = filepath.Join(result, item)
		}
	}

	return filepath.Clean(result)
}

// shortPath is the inverse of resolve for paths below the project root; used in messages
func (s *scriptState) shortPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}

	rel, err := filepath.Rel(s.projectRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}

	return "//" + filepath.ToSlash(rel)
}

// environ returns the process environment with setenv() overrides applied
func (s *scriptState) environ() []string {
	env := make(map[string]string)
	for _, item := range os.Environ() {
		key, value, _ := strings.Cut(item, "=")
		if runtime.GOOS == "windows" {
			key = strings.ToUpper(key)
		}
		env[key] = value
	}

	for key, value := range s.envOverrides {
		env[key] = value
	}

	result := make([]string, 0, len(env))
	for key, value := range env {
		result = append(result, key+"="+value)
	}
	sort.Strings(result)

	return result
}

// toStarlark converts decoded YAML or JSON data
func toStarlark(value interface{}) (starlark.Value, error) {
	switch value := value.(type) {
	case nil:
		return starlark.None, nil
	case bool:
		return starlark.Bool(value), nil
	case string:
		return starlark.String(value), nil
	case int:
		return starlark.MakeInt(value), nil
	case int64:
		return starlark.MakeInt64(value), nil
	case float64:
		return starlark.Float(value), nil
	}

	ref := reflect.ValueOf(value)
	switch ref.Kind() {
	case reflect.Slice, reflect.Array:
		items := make(starlark.Tuple, 0, ref.Len())
		for i := 0; i < ref.Len(); i++ {
			item, err := toStarlark(ref.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil

	case reflect.Map:
		dict := starlark.NewDict(ref.Len())
		for _, key := range ref.MapKeys() {
			starKey, err := toStarlark(key.Interface())
			if err != nil {
				return nil, err
			}

			starValue, err := toStarlark(ref.MapIndex(key).Interface())
			if err != nil {
				return nil, err
			}

			if err := dict.SetKey(starKey, starValue); err != nil {
				return nil, eris.Wrapf(err, "invalid key %v", key.Interface())
			}
		}
		return dict, nil
	}

	return nil, eris.Errorf("can't convert values of type %T", value)
}
