package cargo

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/jsonlog"
)

// binstallRecord is one entry of cargo-binstall's crates-v1.json log.
type binstallRecord struct {
	Name string   `json:"name"`
	Bins []string `json:"bins"`
}

// Home returns $CARGO_HOME, defaulting to ~/.cargo.
func Home() (string, error) {
	if home := os.Getenv("CARGO_HOME"); home != "" {
		return home, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", engine.NewProbeError("cannot locate the cargo home", err)
	}
	return filepath.Join(home, ".cargo"), nil
}

// installed returns the crates recorded by cargo install and, when binstall
// is enabled, by cargo-binstall.
func (b *Backend) installed() (engine.Installed, error) {
	home, err := Home()
	if err != nil {
		return engine.Installed{}, err
	}
	explicit, err := readCrates2(filepath.Join(home, ".crates2.json"))
	if err != nil {
		return engine.Installed{}, err
	}
	if b.binstall {
		binstalled, err := readBinstall(filepath.Join(home, "binstall", "crates-v1.json"), filepath.Join(home, "bin"))
		if err != nil {
			return engine.Installed{}, err
		}
		explicit.Union(binstalled)
	}
	return engine.Installed{Explicit: explicit, Dependencies: engine.NewSet()}, nil
}

// readCrates2 reads the crate names from cargo's install tracking file,
// whose "installs" keys have the form "name version (source)". A missing
// file means nothing is installed.
func readCrates2(path string) (*engine.Set, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return engine.NewSet(), nil
	}
	if err != nil {
		return nil, engine.NewProbeError("failed to read "+path, err)
	}

	var doc struct {
		Installs map[string]json.RawMessage `json:"installs"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, engine.NewProbeError("malformed "+path, err)
	}
	if doc.Installs == nil {
		return nil, engine.NewProbeError(path+" has no installs table", nil)
	}

	names := make([]string, 0, len(doc.Installs))
	for key := range doc.Installs {
		if name, _, ok := strings.Cut(key, " "); ok {
			names = append(names, name)
		}
	}
	// map order is random
	sort.Strings(names)
	return engine.NewSet(names...), nil
}

// readBinstall reads cargo-binstall's log. A crate counts as installed only
// when every binary it recorded still exists in binDir.
func readBinstall(path, binDir string) (*engine.Set, error) {
	records, err := jsonlog.DecodeFile[binstallRecord](path)
	if err != nil {
		return nil, err
	}
	out := engine.NewSet()
	for _, r := range records {
		if r.Name == "" {
			return nil, engine.NewMalformedLog("binstall record without a name", nil).WithDetail("path", path)
		}
		if allExist(binDir, r.Bins) {
			out.Add(r.Name)
		}
	}
	return out, nil
}

func allExist(dir string, bins []string) bool {
	for _, bin := range bins {
		if _, err := os.Stat(filepath.Join(dir, bin)); err != nil {
			return false
		}
	}
	return true
}
