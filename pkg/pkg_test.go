package pkg

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFindUpwards(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, TaskFile), "")
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	found, err := FindUpwards(deep, TaskFile)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, TaskFile), found)

	_, err = FindUpwards(deep, "surely-not-present.marker")
	require.Error(t, err)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.sh")
	writeFile(t, src, "#!/bin/sh\necho hi\n")
	require.NoError(t, os.Chmod(src, 0o755))

	dest := filepath.Join(dir, "dest.sh")
	writeFile(t, dest, "old content that is longer than the new one\n")

	var progress countingWriter
	require.NoError(t, CopyFile(src, dest, &progress))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho hi\n", string(content))
	assert.Equal(t, len(content), int(progress))

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	require.Error(t, CopyFile(dir, filepath.Join(dir, "nope"), nil))
	require.Error(t, CopyFile(filepath.Join(dir, "missing"), dest, nil))
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(src, "sub", "b.txt"), "b")

	dest := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, CopyTree(src, dest))

	content, err := os.ReadFile(filepath.Join(dest, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(content))
	assert.FileExists(t, filepath.Join(dest, "a.txt"))
}

type countingWriter int

func (w *countingWriter) Write(p []byte) (int, error) {
	*w += countingWriter(len(p))
	return len(p), nil
}

func TestDistRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "libringer.so.0.0.1"), "binary data")
	writeFile(t, filepath.Join(src, "ringer.h"), "#pragma once\n")

	for _, ext := range []string{".tar.xz", ".tar.br", ".tar"} {
		t.Run(ext, func(t *testing.T) {
			archive := filepath.Join(t.TempDir(), "ringer"+ext)
			w, err := NewDistWriter(archive)
			require.NoError(t, err)

			info, err := os.Stat(src)
			require.NoError(t, err)
			require.NoError(t, w.WriteDirectory("ringer", info))

			for _, name := range []string{"libringer.so.0.0.1", "ringer.h"} {
				f, err := os.Open(filepath.Join(src, name))
				require.NoError(t, err)
				require.NoError(t, w.WriteFile("ringer/"+name, f, nil))
				f.Close()
			}
			require.NoError(t, w.Close())

			entries, err := ReadDist(archive)
			require.NoError(t, err)
			sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

			expected := []DistEntry{
				{Name: "ringer/", IsDir: true},
				{Name: "ringer/libringer.so.0.0.1", Size: 11},
				{Name: "ringer/ringer.h", Size: 13},
			}
			if diff := cmp.Diff(expected, entries); diff != "" {
				t.Errorf("archive content differs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDistWriterRejectsUnknownSuffix(t *testing.T) {
	_, err := NewDistWriter(filepath.Join(t.TempDir(), "ringer.zip"))
	require.Error(t, err)
	assert.False(t, IsDistName("ringer.tar.gz"))
	assert.True(t, IsDistName("ringer.tar.br"))
}

func TestToolImports(t *testing.T) {
	toolsFile := filepath.Join(t.TempDir(), "tools.go")
	writeFile(t, toolsFile, "//go:build tools\n\npackage main\n\nimport (\n\t_ \"github.com/cortesi/modd/cmd/modd\"\n)\n")

	imports, err := ToolImports(toolsFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"github.com/cortesi/modd/cmd/modd"}, imports)
}
