package cargo

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/spec"
)

const (
	packagesKey          = "packages"
	packageKey           = "package"
	allFeaturesKey       = "all_features"
	noDefaultFeaturesKey = "no_default_features"
	featuresKey          = "features"
	gitRemoteKey         = "git_remote"
	hookKey              = "post_hook"
)

// PackageSpec is one configured crate.
type PackageSpec struct {
	Name              string `validate:"required"`
	Features          []string
	AllFeatures       bool
	NoDefaultFeatures bool
	GitRemote         string `validate:"omitempty,url"`
	Hook              engine.HookRef
}

// Spec is the parsed cargo configuration.
type Spec struct {
	Packages []PackageSpec
}

// Has reports whether name is configured.
func (s *Spec) Has(name string) bool {
	for _, p := range s.Packages {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Parse converts the cargo record. Every entry is a record with at least a
// package name; any malformed entry fails the whole backend.
func Parse(value any, logger zerolog.Logger) (*Spec, error) {
	rec, err := spec.AsRecord(value, BackendName, BackendName)
	if err != nil {
		return nil, err
	}
	list, ok, err := rec.List(packagesKey, BackendName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, spec.MissingField(packagesKey, BackendName)
	}

	out := &Spec{}
	for i, entry := range list {
		pkg, err := parsePackage(entry, i, logger)
		if err != nil {
			return nil, err
		}
		if out.Has(pkg.Name) {
			logger.Warn().Str("package", pkg.Name).Msg("duplicate package entry, keeping the first")
			continue
		}
		out.Packages = append(out.Packages, pkg)
	}
	return out, nil
}

func parsePackage(entry any, index int, logger zerolog.Logger) (PackageSpec, error) {
	rec, err := spec.AsRecord(entry, fmt.Sprintf("%s[%d]", packagesKey, index), BackendName)
	if err != nil {
		return PackageSpec{}, err
	}
	name, err := rec.RequiredString(packageKey, fmt.Sprintf("%s[%d]", packagesKey, index))
	if err != nil {
		return PackageSpec{}, err
	}

	pkg := PackageSpec{Name: name}
	if pkg.AllFeatures, err = rec.Bool(allFeaturesKey, name, false); err != nil {
		return PackageSpec{}, err
	}
	if pkg.NoDefaultFeatures, err = rec.Bool(noDefaultFeaturesKey, name, false); err != nil {
		return PackageSpec{}, err
	}
	if pkg.Features, err = rec.StringList(featuresKey, name); err != nil {
		return PackageSpec{}, err
	}
	if pkg.GitRemote, _, err = rec.String(gitRemoteKey, name); err != nil {
		return PackageSpec{}, err
	}
	if pkg.Hook, err = rec.Hook(hookKey, name, logger); err != nil {
		return PackageSpec{}, err
	}

	// --all-features already turns every feature on, and cargo rejects it
	// together with --no-default-features.
	if pkg.AllFeatures {
		pkg.NoDefaultFeatures = false
	}
	if pkg.AllFeatures || pkg.NoDefaultFeatures {
		if len(pkg.Features) > 0 {
			logger.Debug().Str("package", name).Msg("ignoring explicit features")
		}
		pkg.Features = nil
	}

	if err := spec.Validate(pkg, name); err != nil {
		return PackageSpec{}, err
	}
	return pkg, nil
}
