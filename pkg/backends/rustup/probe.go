package rustup

import (
	"context"
	"strings"

	"github.com/supac/supac/pkg/engine"
)

func (b *Backend) query(ctx context.Context, args ...string) (string, error) {
	return b.runner.Output(ctx, engine.Command{Args: append([]string{"rustup"}, args...)})
}

// toolchains lists installed toolchain names, dropping annotations such as
// "(default)".
func (b *Backend) toolchains(ctx context.Context) ([]string, error) {
	out, err := b.query(ctx, "toolchain", "list")
	if err != nil {
		return nil, engine.NewProbeError("failed to list toolchains", err)
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(line, "no installed toolchains") {
			continue
		}
		names = append(names, fields[0])
	}
	return names, nil
}

// toolchainState is what is installed inside one toolchain.
type toolchainState struct {
	host       string
	targets    *engine.Set
	components *engine.Set
}

func (b *Backend) state(ctx context.Context, toolchain string) (*toolchainState, error) {
	targets, err := b.query(ctx, "target", "list", "--installed", "--toolchain", toolchain)
	if err != nil {
		return nil, engine.NewProbeError("failed to list targets", err).WithItem(toolchain)
	}
	components, err := b.query(ctx, "component", "list", "--installed", "--toolchain", toolchain)
	if err != nil {
		return nil, engine.NewProbeError("failed to list components", err).WithItem(toolchain)
	}
	installed := engine.LinesSet(targets)
	lines := engine.LinesSet(components).Items()
	host := hostTriple(toolchain, installed, lines)
	return &toolchainState{
		host:       host,
		targets:    installed,
		components: componentNames(lines, host),
	}, nil
}

// hostTriple finds the host triple: the installed target the rustc
// component is built for. Names such as rustc-dev-<host> also start with
// "rustc-", so a suffix is only accepted when it names a target or ends the
// toolchain name.
func hostTriple(toolchain string, targets *engine.Set, components []string) string {
	var rustc []string
	for _, c := range components {
		if triple, ok := strings.CutPrefix(c, "rustc-"); ok {
			rustc = append(rustc, triple)
		}
	}
	for _, triple := range rustc {
		if targets.Has(triple) {
			return triple
		}
	}
	for _, triple := range rustc {
		if strings.HasSuffix(toolchain, "-"+triple) {
			return triple
		}
	}
	return ""
}

// componentNames strips the host suffix from installed component names.
// rust-std for other targets is managed through targets and left out.
func componentNames(components []string, host string) *engine.Set {
	out := engine.NewSet()
	suffix := "-" + host
	for _, c := range components {
		if strings.HasPrefix(c, "rust-std-") && c != "rust-std"+suffix {
			continue
		}
		if host != "" {
			c = strings.TrimSuffix(c, suffix)
		}
		out.Add(c)
	}
	return out
}
