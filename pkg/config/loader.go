package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml/v2"

	"github.com/supac/supac/pkg/engine"
)

const envPrefix = "SUPAC_"

// envKey maps SUPAC_LOG__LEVEL to log.level and SUPAC_CARGO_USE_BINSTALL to
// cargo_use_binstall.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".")
}

// Load reads the settings: built-in defaults, then config.toml when it
// exists, then SUPAC_* environment variables. The result is validated and
// relative paths are resolved against the config directory.
func Load(paths Paths) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load default settings: %w", err)
	}

	settingsFile := paths.SettingsFile()
	if _, err := os.Stat(settingsFile); err == nil {
		if err := k.Load(file.Provider(settingsFile), toml.Parser()); err != nil {
			return nil, engine.NewConfigError(fmt.Sprintf("failed to load %s", settingsFile), err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment settings: %w", err)
	}

	var cfg Settings
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, engine.NewConfigError("failed to decode settings", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	cfg.resolvePaths(paths)
	return &cfg, nil
}

// Validate checks the settings against their validation tags.
func Validate(cfg *Settings) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return engine.NewConfigError("invalid settings", err)
	}
	report := &engine.Report{}
	for _, fe := range verrs {
		report.Add(engine.NewConfigError(
			fmt.Sprintf("setting %s failed the %q check", fe.Namespace(), fe.Tag()), nil,
		).WithCode(engine.ErrCodeValidation).WithDetail("field", fe.Namespace()))
	}
	return report.ErrorOrNil()
}

func (s *Settings) resolvePaths(paths Paths) {
	if s.History.Path == "" {
		s.History.Path = DefaultHistoryFile()
	}
	if s.Policy.Dir == "" {
		s.Policy.Dir = paths.PoliciesDir()
	}
	for _, p := range []*string{&s.History.Path, &s.Policy.Dir, &s.Metrics.File, &s.Log.File} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(paths.Dir, *p)
		}
	}
}

// EnsureSettingsFile writes the default config.toml when it does not exist.
// It reports whether a file was created.
func EnsureSettingsFile(paths Paths) (bool, error) {
	path := paths.SettingsFile()
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if err := WriteDefaultSettings(path); err != nil {
		return false, err
	}
	return true, nil
}

// WriteDefaultSettings writes the built-in settings as TOML, creating parent
// directories as needed.
func WriteDefaultSettings(path string) error {
	data, err := gotoml.Marshal(defaults())
	if err != nil {
		return fmt.Errorf("failed to encode default settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
