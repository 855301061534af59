package rustup

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/spec"
)

const (
	toolchainsKey = "toolchains"
	componentsKey = "components"
	targetsKey    = "targets"
	archKey       = "arch"
	vendorKey     = "vendor"
	osKey         = "os"

	defaultVendor = "unknown"
	defaultOS     = "none"
)

// ToolchainSpec is one configured toolchain.
type ToolchainSpec struct {
	ID         string `validate:"required"`
	Targets    []string
	Components []string
}

// Spec is the parsed rustup configuration, toolchains sorted by id.
type Spec struct {
	Toolchains []ToolchainSpec
}

// Parse converts the rustup record. The toolchains record is required;
// targets and components are best-effort and malformed ones are skipped.
func Parse(value any, logger zerolog.Logger) (*Spec, error) {
	rec, err := spec.AsRecord(value, BackendName, BackendName)
	if err != nil {
		return nil, err
	}
	toolchains, ok, err := rec.Record(toolchainsKey, BackendName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, spec.MissingField(toolchainsKey, BackendName)
	}

	ids := make([]string, 0, len(toolchains))
	for id := range toolchains {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := &Spec{}
	for _, id := range ids {
		tc := ToolchainSpec{ID: id}
		if err := spec.Validate(tc, id); err != nil {
			return nil, err
		}
		fields, err := spec.AsRecord(toolchains[id], id, id)
		if err != nil {
			logger.Warn().Str("toolchain", id).Msg("toolchain settings are not a record, using defaults")
			out.Toolchains = append(out.Toolchains, tc)
			continue
		}
		tc.Targets = parseTargets(fields, id, logger)
		tc.Components = parseComponents(fields, id, logger)
		out.Toolchains = append(out.Toolchains, tc)
	}
	return out, nil
}

func parseComponents(fields spec.Record, id string, logger zerolog.Logger) []string {
	list, ok, err := fields.List(componentsKey, id)
	if err != nil {
		logger.Warn().Err(err).Str("toolchain", id).Msg("ignoring components")
		return nil
	}
	if !ok {
		return nil
	}
	set := engine.NewSet()
	for _, v := range list {
		name, ok := v.(string)
		if !ok || name == "" {
			logger.Warn().Str("toolchain", id).Str("type", spec.TypeName(v)).Msg("ignoring malformed component")
			continue
		}
		set.Add(name)
	}
	return set.Items()
}

func parseTargets(fields spec.Record, id string, logger zerolog.Logger) []string {
	list, ok, err := fields.List(targetsKey, id)
	if err != nil {
		logger.Warn().Err(err).Str("toolchain", id).Msg("ignoring targets")
		return nil
	}
	if !ok {
		return nil
	}
	set := engine.NewSet()
	for _, v := range list {
		target, err := parseTarget(v, id)
		if err != nil {
			logger.Warn().Err(err).Str("toolchain", id).Msg("ignoring malformed target")
			continue
		}
		set.Add(target)
	}
	return set.Items()
}

// parseTarget accepts a target triple string or a record with arch and the
// optional vendor and os, which default to "unknown" and "none".
func parseTarget(v any, id string) (string, error) {
	if s, ok := v.(string); ok && s != "" {
		return s, nil
	}
	rec, err := spec.AsRecord(v, targetsKey, id)
	if err != nil {
		return "", err
	}
	arch, err := rec.RequiredString(archKey, id)
	if err != nil {
		return "", err
	}
	vendor, ok, err := rec.String(vendorKey, id)
	if err != nil {
		return "", err
	}
	if !ok {
		vendor = defaultVendor
	}
	system, ok, err := rec.String(osKey, id)
	if err != nil {
		return "", err
	}
	if !ok {
		system = defaultOS
	}
	return NormalizeTarget(arch, vendor, system), nil
}

// NormalizeTarget joins a target triple, filling in empty parts.
func NormalizeTarget(arch, vendor, system string) string {
	if vendor == "" {
		vendor = defaultVendor
	}
	if system == "" {
		system = defaultOS
	}
	return strings.Join([]string{arch, vendor, system}, "-")
}

// MatchToolchain reports whether an installed toolchain, as printed by
// `rustup toolchain list`, belongs to a configured toolchain id.
func MatchToolchain(installed, id string) bool {
	return strings.HasPrefix(installed, id)
}
