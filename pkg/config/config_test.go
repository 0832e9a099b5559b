package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, "build", cfg.Build.Dir)
	assert.Equal(t, filepath.Join("/home/tester", "usr"), cfg.Install.Prefix)
	assert.Equal(t, filepath.Join("/home/tester", "usr", "lib"), cfg.Install.LibDir)
	assert.Equal(t, filepath.Join("/home/tester", "usr", "include"), cfg.Install.IncludeDir)
	assert.Equal(t, 7, cfg.Stress.Range)
	assert.Equal(t, int64(1234), cfg.Stress.Seed)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[log]
level = "debug"

[install]
prefix = "/opt/ringer"
include_dir = "/opt/headers"

[stress]
range = 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
	assert.Equal(t, "/opt/ringer", cfg.Install.Prefix)
	assert.Equal(t, filepath.Join("/opt/ringer", "lib"), cfg.Install.LibDir)
	assert.Equal(t, "/opt/headers", cfg.Install.IncludeDir)
	assert.Equal(t, 3, cfg.Stress.Range)
	assert.Equal(t, int64(1234), cfg.Stress.Seed)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("RINGER_LOG_LEVEL", "warn")
	t.Setenv("RINGER_STRESS_SEED", "99")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, zerolog.WarnLevel, cfg.LogLevel())
	assert.Equal(t, int64(99), cfg.Stress.Seed)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(cfg *Config)
		errMsg string
	}{
		{"unknown level", func(cfg *Config) { cfg.Log.Level = "loud" }, "Level"},
		{"range too small", func(cfg *Config) { cfg.Stress.Range = 0 }, "Range"},
		{"range too large", func(cfg *Config) { cfg.Stress.Range = 100 }, "Range"},
		{"empty build dir", func(cfg *Config) { cfg.Build.Dir = "" }, "Dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(t.TempDir())
			require.NoError(t, err)

			tt.modify(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
