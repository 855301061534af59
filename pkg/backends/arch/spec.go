package arch

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/spec"
)

const packagesKey = "packages"

// PackageSpec is one configured package or group.
type PackageSpec struct {
	Name string `validate:"required"`
	Hook engine.HookRef
}

// Spec is the parsed arch configuration.
type Spec struct {
	Packages []PackageSpec
}

// Names returns the configured names in order.
func (s *Spec) Names() []string {
	names := make([]string, len(s.Packages))
	for i, p := range s.Packages {
		names[i] = p.Name
	}
	return names
}

// Parse converts the arch record. Entries are either a package name or a
// list holding a name and an optional hook. Any malformed entry fails the
// whole backend.
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
	seen := make(map[string]bool, len(list))
	for i, entry := range list {
		pkg, err := parseEntry(entry, i, logger)
		if err != nil {
			return nil, err
		}
		if seen[pkg.Name] {
			logger.Warn().Str("package", pkg.Name).Msg("duplicate package entry, keeping the first")
			continue
		}
		seen[pkg.Name] = true
		out.Packages = append(out.Packages, pkg)
	}
	return out, nil
}

func parseEntry(entry any, index int, logger zerolog.Logger) (PackageSpec, error) {
	item := fmt.Sprintf("%s[%d]", packagesKey, index)
	switch v := entry.(type) {
	case string:
		pkg := PackageSpec{Name: v}
		return pkg, spec.Validate(pkg, item)
	case []any:
		if len(v) == 0 {
			return PackageSpec{}, spec.MissingField("name", item)
		}
		if len(v) > 2 {
			return PackageSpec{}, engine.NewConfigError(
				"an entry can only contain two elements: a package and a post-install hook", nil,
			).WithCode(engine.ErrCodeTooManyElements).WithItem(item)
		}
		name, ok := v[0].(string)
		if !ok {
			return PackageSpec{}, spec.TypeMismatch("name", item, "string", v[0])
		}
		pkg := PackageSpec{Name: name}
		if err := spec.Validate(pkg, item); err != nil {
			return PackageSpec{}, err
		}
		if len(v) == 2 {
			hook, err := spec.ResolveHook(v[1], "post_hook", name, logger)
			if err != nil {
				return PackageSpec{}, err
			}
			pkg.Hook = hook
		}
		return pkg, nil
	}
	return PackageSpec{}, spec.TypeMismatch(packagesKey, item, "string or list", entry)
}
