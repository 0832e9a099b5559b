package config

import (
	"os"
	"path/filepath"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigtoml"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// FileName is the optional config file looked up in the project root
const FileName = "ringer.toml"

// Config describes all configuration options
type Config struct {
	Log struct {
		Level string `default:"info" toml:"level" validate:"oneof=trace debug info warn warning error fatal" usage:"Minimum level of printed messages"`
		JSON  bool   `default:"false" toml:"json" usage:"Output JSONND instead of pretty console messages"`
	} `toml:"log"`
	Build struct {
		Dir string `default:"build" toml:"dir" validate:"required" usage:"Directory for build products, relative to the project root"`
	} `toml:"build"`
	Install struct {
		Prefix     string `toml:"prefix" usage:"Installation prefix (defaults to $HOME/usr)"`
		LibDir     string `toml:"lib_dir" usage:"Library directory (defaults to <prefix>/lib)"`
		IncludeDir string `toml:"include_dir" usage:"Header directory (defaults to <prefix>/include)"`
	} `toml:"install"`
	Stress struct {
		Range int   `default:"7" toml:"range" validate:"min=1,max=64" usage:"Number of ring sizes exercised by the stress command"`
		Seed  int64 `default:"1234" toml:"seed" usage:"Random seed for the stress command"`
	} `toml:"stress"`
}

var logLevels = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

// Loader initializes an empty config object and returns a new Loader for this object.
// Flags are left to the CLI; values come from the defaults, the given files and RINGER_* env vars.
func Loader(files ...string) (*Config, *aconfig.Loader) {
	cfg := Config{}
	return &cfg, aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix:  "RINGER",
		FlagPrefix: "cfg",
		SkipFlags:  true,
		// RINGER_* is also used by task scripts
		AllowUnknownEnvs: true,
		Files:            files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".toml": aconfigtoml.New(),
		},
	})
}

// Load reads the config for the project in projectRoot, fills in derived defaults and validates the result
func Load(projectRoot string) (*Config, error) {
	files := []string{}
	if projectRoot != "" {
		path := filepath.Join(projectRoot, FileName)
		if _, err := os.Stat(path); err == nil {
			files = append(files, path)
		}
	}

	cfg, loader := Loader(files...)
	if err := loader.Load(); err != nil {
		return nil, eris.Wrap(err, "failed to load config")
	}

	if err := cfg.ApplyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills in the install paths that depend on other values
func (cfg *Config) ApplyDefaults() error {
	if cfg.Install.Prefix == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return eris.Wrap(err, "failed to determine the home directory for install.prefix")
		}
		cfg.Install.Prefix = filepath.Join(home, "usr")
	}

	if cfg.Install.LibDir == "" {
		cfg.Install.LibDir = filepath.Join(cfg.Install.Prefix, "lib")
	}

	if cfg.Install.IncludeDir == "" {
		cfg.Install.IncludeDir = filepath.Join(cfg.Install.Prefix, "include")
	}

	return nil
}

// Validate verifies that all config fields have valid values
func (cfg *Config) Validate() error {
	err := validator.New().Struct(cfg)
	if err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return eris.Errorf("invalid value for %s: %v (%s)", fe.Namespace(), fe.Value(), fe.Tag())
		}
		return eris.Wrap(err, "invalid config")
	}

	_, ok := logLevels[cfg.Log.Level]
	if !ok {
		return eris.Errorf("invalid value for log.level: %s", cfg.Log.Level)
	}

	return nil
}

// LogLevel converts the .Log.Level field to a zerolog.Level
func (cfg *Config) LogLevel() zerolog.Level {
	return logLevels[cfg.Log.Level]
}
