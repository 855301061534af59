package arch

import (
	"context"

	"github.com/supac/supac/pkg/engine"
)

func (b *Backend) query(ctx context.Context, args ...string) (string, error) {
	return b.runner.Output(ctx, engine.Command{Args: append([]string{b.pm}, args...)})
}

// installed returns the explicitly installed packages and those installed
// as dependencies. pacman exits non-zero when a query matches nothing, so a
// failing dependency query means there are none.
func (b *Backend) installed(ctx context.Context) (engine.Installed, error) {
	explicit, err := b.query(ctx, "--query", "--explicit", "--quiet")
	if err != nil {
		return engine.Installed{}, engine.NewProbeError("failed to list explicitly installed packages", err)
	}
	deps, err := b.query(ctx, "--query", "--deps", "--quiet")
	if err != nil {
		b.logger.Debug().Err(err).Msg("dependency query failed, assuming none")
		deps = ""
	}
	return engine.Installed{
		Explicit:     engine.LinesSet(explicit),
		Dependencies: engine.LinesSet(deps),
	}, nil
}

// groups returns the names of every package group in the sync databases.
func (b *Backend) groups(ctx context.Context) (*engine.Set, error) {
	out, err := b.query(ctx, "--sync", "--quiet", "--groups")
	if err != nil {
		return nil, engine.NewProbeError("failed to list package groups", err)
	}
	return engine.LinesSet(out), nil
}

func (b *Backend) groupMembers(ctx context.Context, group string) ([]string, error) {
	out, err := b.query(ctx, "--sync", "--groups", "--quiet", group)
	if err != nil {
		return nil, engine.NewProbeError("failed to list members of group "+group, err).WithItem(group)
	}
	return engine.LinesSet(out).Items(), nil
}

// expand turns the configured names into reconciler input, resolving names
// that match a package group into the group's members.
func (b *Backend) expand(ctx context.Context, s *Spec) ([]engine.Desired, error) {
	groups, err := b.groups(ctx)
	if err != nil {
		return nil, err
	}
	desired := make([]engine.Desired, 0, len(s.Packages))
	for _, p := range s.Packages {
		d := engine.Desired{Name: p.Name, Hook: p.Hook}
		if groups.Has(p.Name) {
			members, err := b.groupMembers(ctx, p.Name)
			if err != nil {
				return nil, err
			}
			if members == nil {
				members = []string{}
			}
			d.Members = members
			b.logger.Debug().Str("group", p.Name).Int("members", len(members)).Msg("expanded group")
		}
		desired = append(desired, d)
	}
	return desired, nil
}
