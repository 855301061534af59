package flatpak

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/spec"
)

const (
	remotesKey    = "remotes"
	pinnedKey     = "pinned"
	packagesKey   = "packages"
	packageKey    = "package"
	nameKey       = "name"
	urlKey        = "url"
	remoteKey     = "remote"
	systemwideKey = "systemwide"
	branchKey     = "branch"
	archKey       = "arch"
	hookKey       = "post_hook"
)

// Scopes lists the installation roots in the order they are reconciled.
var Scopes = []engine.Scope{engine.ScopeUser, engine.ScopeSystem}

// RemoteSpec is a configured flatpak remote.
type RemoteSpec struct {
	Name  string       `validate:"required"`
	URL   string       `validate:"required,url"`
	Scope engine.Scope `validate:"oneof=user system"`
}

// PinSpec is a configured runtime pin. It matches an installed pin whose id
// starts with ID and whose arch and branch equal the configured ones, when set.
type PinSpec struct {
	ID     string `validate:"required"`
	Branch string
	Arch   string
	Scope  engine.Scope `validate:"oneof=user system"`
	Hook   engine.HookRef
}

// Pattern renders the pin as flatpak expects it: id[/arch[/branch]].
func (p PinSpec) Pattern() string {
	switch {
	case p.Branch != "":
		return p.ID + "/" + p.Arch + "/" + p.Branch
	case p.Arch != "":
		return p.ID + "/" + p.Arch
	}
	return p.ID
}

// PackageSpec is a configured application or runtime.
type PackageSpec struct {
	Name   string `validate:"required"`
	Remote string
	Scope  engine.Scope `validate:"oneof=user system"`
	Hook   engine.HookRef
}

// Spec is the parsed flatpak configuration.
type Spec struct {
	Remotes  []RemoteSpec
	Pins     []PinSpec
	Packages []PackageSpec
}

// PinsIn returns the pins configured for scope.
func (s *Spec) PinsIn(scope engine.Scope) []PinSpec {
	var out []PinSpec
	for _, p := range s.Pins {
		if p.Scope == scope {
			out = append(out, p)
		}
	}
	return out
}

// PackagesIn returns the packages configured for scope.
func (s *Spec) PackagesIn(scope engine.Scope) []PackageSpec {
	var out []PackageSpec
	for _, p := range s.Packages {
		if p.Scope == scope {
			out = append(out, p)
		}
	}
	return out
}

// RemotesIn returns the remotes configured for scope.
func (s *Spec) RemotesIn(scope engine.Scope) []RemoteSpec {
	var out []RemoteSpec
	for _, r := range s.Remotes {
		if r.Scope == scope {
			out = append(out, r)
		}
	}
	return out
}

func scopeOf(systemwide bool) engine.Scope {
	if systemwide {
		return engine.ScopeSystem
	}
	return engine.ScopeUser
}

// Parse converts the flatpak record. Packages are strict: a malformed entry
// fails the backend. Remotes and pins are best-effort: malformed entries are
// logged and skipped.
func Parse(value any, defaultSystemwide bool, logger zerolog.Logger) (*Spec, error) {
	rec, err := spec.AsRecord(value, BackendName, BackendName)
	if err != nil {
		return nil, err
	}
	out := &Spec{}

	remotes, _, err := rec.List(remotesKey, BackendName)
	if err != nil {
		return nil, err
	}
	for i, entry := range remotes {
		r, err := parseRemote(entry, i, defaultSystemwide)
		if err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("ignoring malformed remote")
			continue
		}
		out.Remotes = append(out.Remotes, r)
	}

	pins, _, err := rec.List(pinnedKey, BackendName)
	if err != nil {
		return nil, err
	}
	for i, entry := range pins {
		p, err := parsePin(entry, i, defaultSystemwide, logger)
		if err != nil {
			logger.Warn().Err(err).Int("index", i).Msg("ignoring malformed pin")
			continue
		}
		out.Pins = append(out.Pins, p)
	}

	packages, ok, err := rec.List(packagesKey, BackendName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, spec.MissingField(packagesKey, BackendName)
	}
	seen := make(map[string]bool, len(packages))
	for i, entry := range packages {
		p, err := parsePackage(entry, i, defaultSystemwide, logger)
		if err != nil {
			return nil, err
		}
		key := string(p.Scope) + "/" + p.Name
		if seen[key] {
			logger.Warn().Str("package", p.Name).Msg("duplicate package entry, keeping the first")
			continue
		}
		seen[key] = true
		out.Packages = append(out.Packages, p)
	}
	return out, nil
}

func systemwide(rec spec.Record, item string, def bool) (engine.Scope, error) {
	sw, err := rec.Bool(systemwideKey, item, def)
	if err != nil {
		return "", err
	}
	return scopeOf(sw), nil
}

// parseRemote reads a remote entry. The name is taken from "name", or from
// "package" when "name" is absent.
func parseRemote(entry any, index int, defaultSystemwide bool) (RemoteSpec, error) {
	item := fmt.Sprintf("%s[%d]", remotesKey, index)
	rec, err := spec.AsRecord(entry, remotesKey, item)
	if err != nil {
		return RemoteSpec{}, err
	}
	name, ok, err := rec.String(nameKey, item)
	if err != nil {
		return RemoteSpec{}, err
	}
	if !ok {
		if name, ok, err = rec.String(packageKey, item); err != nil {
			return RemoteSpec{}, err
		}
		if !ok {
			return RemoteSpec{}, spec.MissingField(nameKey, item)
		}
	}
	url, err := rec.RequiredString(urlKey, name)
	if err != nil {
		return RemoteSpec{}, err
	}
	scope, err := systemwide(rec, name, defaultSystemwide)
	if err != nil {
		return RemoteSpec{}, err
	}
	r := RemoteSpec{Name: name, URL: url, Scope: scope}
	return r, spec.Validate(r, name)
}

func parsePin(entry any, index int, defaultSystemwide bool, logger zerolog.Logger) (PinSpec, error) {
	item := fmt.Sprintf("%s[%d]", pinnedKey, index)
	rec, err := spec.AsRecord(entry, pinnedKey, item)
	if err != nil {
		return PinSpec{}, err
	}
	id, err := rec.RequiredString(packageKey, item)
	if err != nil {
		return PinSpec{}, err
	}
	p := PinSpec{ID: id}
	if p.Branch, _, err = rec.String(branchKey, id); err != nil {
		return PinSpec{}, err
	}
	if p.Arch, _, err = rec.String(archKey, id); err != nil {
		return PinSpec{}, err
	}
	if p.Scope, err = systemwide(rec, id, defaultSystemwide); err != nil {
		return PinSpec{}, err
	}
	if p.Hook, err = rec.Hook(hookKey, id, logger); err != nil {
		return PinSpec{}, err
	}
	return p, spec.Validate(p, id)
}

func parsePackage(entry any, index int, defaultSystemwide bool, logger zerolog.Logger) (PackageSpec, error) {
	item := fmt.Sprintf("%s[%d]", packagesKey, index)
	rec, err := spec.AsRecord(entry, packagesKey, item)
	if err != nil {
		return PackageSpec{}, err
	}
	name, err := rec.RequiredString(packageKey, item)
	if err != nil {
		return PackageSpec{}, err
	}
	p := PackageSpec{Name: name}
	if p.Remote, _, err = rec.String(remoteKey, name); err != nil {
		return PackageSpec{}, err
	}
	if p.Scope, err = systemwide(rec, name, defaultSystemwide); err != nil {
		return PackageSpec{}, err
	}
	if p.Hook, err = rec.Hook(hookKey, name, logger); err != nil {
		return PackageSpec{}, err
	}
	return p, spec.Validate(p, name)
}

// InstalledPin is one line of `flatpak pin` output.
type InstalledPin struct {
	// Raw is the pattern as flatpak printed it.
	Raw    string
	ID     string
	Arch   string
	Branch string
}

// ParsePin parses a pin pattern of the form [runtime/]id[/arch[/branch]].
func ParsePin(line string) InstalledPin {
	raw := strings.TrimSpace(line)
	parts := strings.Split(strings.TrimPrefix(raw, "runtime/"), "/")
	pin := InstalledPin{Raw: raw, ID: parts[0]}
	if len(parts) > 1 {
		pin.Arch = parts[1]
	}
	if len(parts) > 2 {
		pin.Branch = parts[2]
	}
	return pin
}

// MatchPin reports whether an installed pin satisfies a configured one: the
// installed id starts with the configured id, and the configured arch and
// branch, when set, are equal.
func MatchPin(want PinSpec, have InstalledPin) bool {
	if !strings.HasPrefix(have.ID, want.ID) {
		return false
	}
	if want.Arch != "" && want.Arch != have.Arch {
		return false
	}
	if want.Branch != "" && want.Branch != have.Branch {
		return false
	}
	return true
}
