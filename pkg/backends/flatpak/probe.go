package flatpak

import (
	"context"
	"strings"

	"github.com/supac/supac/pkg/engine"
)

func (b *Backend) query(ctx context.Context, hideStderr bool, args ...string) (string, error) {
	return b.runner.Output(ctx, engine.Command{Args: append([]string{"flatpak"}, args...), HideStderr: hideStderr})
}

// installed lists every installed ref id in scope, applications and runtimes.
func (b *Backend) installed(ctx context.Context, scope engine.Scope) (*engine.Set, error) {
	out, err := b.query(ctx, false, "list", scope.Flag(), "--columns=application")
	if err != nil {
		return nil, engine.NewProbeError("failed to list installed "+string(scope)+" refs", err)
	}
	return engine.LinesSet(out), nil
}

// installedApps lists installed applications in scope, without runtimes.
func (b *Backend) installedApps(ctx context.Context, scope engine.Scope) (*engine.Set, error) {
	out, err := b.query(ctx, false, "list", scope.Flag(), "--app", "--columns=application")
	if err != nil {
		return nil, engine.NewProbeError("failed to list installed "+string(scope)+" applications", err)
	}
	return engine.LinesSet(out), nil
}

// pins lists the runtime pins of scope. flatpak prints a header on stderr
// when there are none.
func (b *Backend) pins(ctx context.Context, scope engine.Scope) ([]InstalledPin, error) {
	out, err := b.query(ctx, true, "pin", scope.Flag())
	if err != nil {
		return nil, engine.NewProbeError("failed to list "+string(scope)+" pins", err)
	}
	var pins []InstalledPin
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		pins = append(pins, ParsePin(line))
	}
	return pins, nil
}

// remotes lists the remote names configured in scope.
func (b *Backend) remotes(ctx context.Context, scope engine.Scope) (*engine.Set, error) {
	out, err := b.query(ctx, false, "remotes", scope.Flag(), "--columns=name")
	if err != nil {
		return nil, engine.NewProbeError("failed to list "+string(scope)+" remotes", err)
	}
	return engine.LinesSet(out), nil
}
