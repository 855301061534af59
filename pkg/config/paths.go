package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (
	toolDirName      = "supac"
	settingsFileName = "config.toml"
	specFileName     = "package.star"
	policiesDirName  = "policies"
	historyFileName  = "history.db"
)

// ErrNoConfigDir is returned when no environment variable locates a config directory.
var ErrNoConfigDir = errors.New("unable to determine config directory: set SUPAC_HOME, XDG_CONFIG or HOME")

// Paths locates the files of one supac configuration directory.
type Paths struct {
	Dir string
}

// ResolvePaths finds the configuration directory.
//
// An explicit dir is used as-is. Otherwise the first of $SUPAC_HOME,
// $XDG_CONFIG, the XDG config home and /home/$USER/.config is joined with
// "supac".
func ResolvePaths(dir string) (Paths, error) {
	if dir != "" {
		return Paths{Dir: dir}, nil
	}
	base, err := baseDir()
	if err != nil {
		return Paths{}, err
	}
	return Paths{Dir: filepath.Join(base, toolDirName)}, nil
}

func baseDir() (string, error) {
	for _, name := range []string{"SUPAC_HOME", "XDG_CONFIG"} {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	if xdg.ConfigHome != "" {
		return xdg.ConfigHome, nil
	}
	if user := os.Getenv("USER"); user != "" {
		return filepath.Join("/home", user, ".config"), nil
	}
	return "", ErrNoConfigDir
}

// SettingsFile is the TOML settings file.
func (p Paths) SettingsFile() string {
	return filepath.Join(p.Dir, settingsFileName)
}

// SpecFile is the Starlark package declaration.
func (p Paths) SpecFile() string {
	return filepath.Join(p.Dir, specFileName)
}

// PoliciesDir is the default directory for user policies.
func (p Paths) PoliciesDir() string {
	return filepath.Join(p.Dir, policiesDirName)
}

// DefaultHistoryFile is the default run history database.
func DefaultHistoryFile() string {
	return filepath.Join(xdg.StateHome, toolDirName, historyFileName)
}
