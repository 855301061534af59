package cargo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supac/supac/pkg/config"
	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/engine/enginetest"
)

const crates2 = `{
  "installs": {
    "ripgrep 14.1.0 (registry+https://github.com/rust-lang/crates.io-index)": {"bins": ["rg"]},
    "bat 0.24.0 (registry+https://github.com/rust-lang/crates.io-index)": {"bins": ["bat"]}
  }
}`

func cargoHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("CARGO_HOME", home)
	return home
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newBackend(runner engine.Runner, binstall bool) *Backend {
	settings := config.Default()
	settings.CargoUseBinstall = binstall
	return New(runner, settings, engine.ExecuteOptions{}, zerolog.Nop())
}

func pkgs(entries ...map[string]any) map[string]any {
	list := make([]any, len(entries))
	for i, e := range entries {
		list[i] = e
	}
	return map[string]any{"packages": list}
}

func TestParseFeaturePrecedence(t *testing.T) {
	s, err := Parse(pkgs(
		map[string]any{"package": "a", "all_features": true, "no_default_features": true, "features": []any{"x"}},
		map[string]any{"package": "b", "no_default_features": true, "features": []any{"x"}},
		map[string]any{"package": "c", "features": []any{"x", "y"}, "git_remote": "https://github.com/example/c"},
	), zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, s.Packages, 3)

	a, b, c := s.Packages[0], s.Packages[1], s.Packages[2]
	assert.True(t, a.AllFeatures)
	assert.False(t, a.NoDefaultFeatures)
	assert.Empty(t, a.Features)

	assert.True(t, b.NoDefaultFeatures)
	assert.Empty(t, b.Features)

	assert.Equal(t, []string{"x", "y"}, c.Features)
	assert.Equal(t, "https://github.com/example/c", c.GitRemote)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		value any
		code  string
	}{
		{"missing packages", map[string]any{}, engine.ErrCodeMissingField},
		{"entry not a record", map[string]any{"packages": []any{"ripgrep"}}, engine.ErrCodeTypeMismatch},
		{"missing name", pkgs(map[string]any{"features": []any{}}), engine.ErrCodeMissingField},
		{"bool of wrong type", pkgs(map[string]any{"package": "a", "all_features": "yes"}), engine.ErrCodeTypeMismatch},
		{"features not strings", pkgs(map[string]any{"package": "a", "features": []any{int64(1)}}), engine.ErrCodeTypeMismatch},
		{"bad git remote", pkgs(map[string]any{"package": "a", "git_remote": "not a url"}), engine.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.value, zerolog.Nop())
			require.Error(t, err)
			assert.ErrorIs(t, err, &engine.EngineError{Kind: engine.KindConfig, Code: tt.code})
		})
	}
}

func TestInstallCommand(t *testing.T) {
	pkg := PackageSpec{Name: "foo", GitRemote: "https://example.com/foo", Features: []string{"a", "b"}}

	assert.Equal(t,
		[]string{"cargo", "install", "--git", "https://example.com/foo", "--features", "a,b", "foo"},
		newBackend(nil, false).InstallCommand(pkg).Argv())
	assert.Equal(t,
		[]string{"cargo", "binstall", "--all-features", "--no-confirm", "bar"},
		newBackend(nil, true).InstallCommand(PackageSpec{Name: "bar", AllFeatures: true}).Argv())
}

func TestPlanSync(t *testing.T) {
	home := cargoHome(t)
	write(t, filepath.Join(home, ".crates2.json"), crates2)
	runner := enginetest.NewFakeRunner()
	b := newBackend(runner, false)
	hook := enginetest.NewHook("def h(): pass")

	plan, err := b.PlanSync(context.Background(), pkgs(
		map[string]any{"package": "ripgrep"},
		map[string]any{"package": "fd-find", "post_hook": hook},
		map[string]any{"package": "tokei"},
	))
	require.NoError(t, err)
	require.Len(t, plan.Operations, 2)
	assert.Equal(t, []string{"cargo", "install", "fd-find"}, plan.Operations[0].Command.Argv())
	assert.Len(t, plan.Operations[0].Hooks, 1)
	assert.Equal(t, []string{"cargo", "install", "tokei"}, plan.Operations[1].Command.Argv())
	assert.Empty(t, plan.Operations[1].Hooks)

	confirmer := &enginetest.Confirmer{Answer: true}
	exec := engine.NewExecutor(runner, engine.ExecuteOptions{}, engine.WithConfirmer(confirmer))
	require.NoError(t, exec.Execute(context.Background(), plan))
	require.Len(t, confirmer.Prompts, 1)
	assert.Equal(t, []string{"fd-find", "tokei"}, confirmer.Prompts[0].Items)
	assert.Equal(t, []string{"cargo install fd-find", "cargo install tokei"}, runner.Executed())
	assert.Equal(t, 1, hook.Runs())
}

func TestPlanSyncDeclined(t *testing.T) {
	cargoHome(t)
	runner := enginetest.NewFakeRunner()
	hook := enginetest.NewHook("def h(): pass")

	plan, err := newBackend(runner, false).PlanSync(context.Background(), pkgs(
		map[string]any{"package": "tokei", "post_hook": hook},
		map[string]any{"package": "fd-find"},
	))
	require.NoError(t, err)

	confirmer := &enginetest.Confirmer{Answer: false}
	exec := engine.NewExecutor(runner, engine.ExecuteOptions{}, engine.WithConfirmer(confirmer))
	require.NoError(t, exec.Execute(context.Background(), plan))
	assert.Len(t, confirmer.Prompts, 1)
	assert.Empty(t, runner.Executed())
	assert.Zero(t, hook.Runs())
}

func TestPlanSyncMissingFiles(t *testing.T) {
	cargoHome(t)
	plan, err := newBackend(enginetest.NewFakeRunner(), true).PlanSync(context.Background(), pkgs(
		map[string]any{"package": "ripgrep"},
	))
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	assert.Equal(t, []string{"cargo", "binstall", "--no-confirm", "ripgrep"}, plan.Operations[0].Command.Argv())
}

func TestBinstallLog(t *testing.T) {
	home := cargoHome(t)
	write(t, filepath.Join(home, "binstall", "crates-v1.json"),
		`{"name":"just","bins":["just"]}{"name":"gone","bins":["gone"]}`+"\n"+`{"name":"zoxide","bins":["zoxide"]}`)
	write(t, filepath.Join(home, "bin", "just"), "")
	write(t, filepath.Join(home, "bin", "zoxide"), "")

	unmanaged, err := newBackend(enginetest.NewFakeRunner(), true).Unmanaged(context.Background(), pkgs(
		map[string]any{"package": "zoxide"},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"just"}, unmanaged)
}

func TestBinstallLogMalformed(t *testing.T) {
	home := cargoHome(t)
	write(t, filepath.Join(home, "binstall", "crates-v1.json"), `{"name":"just","bins":["just"]}{"name":`)

	_, err := newBackend(enginetest.NewFakeRunner(), true).PlanSync(context.Background(), pkgs(
		map[string]any{"package": "just"},
	))
	require.Error(t, err)
	assert.True(t, engine.IsMalformedLog(err))
}

func TestCrates2Malformed(t *testing.T) {
	home := cargoHome(t)
	write(t, filepath.Join(home, ".crates2.json"), `{"v1": {}}`)

	_, err := newBackend(enginetest.NewFakeRunner(), false).PlanSync(context.Background(), pkgs(
		map[string]any{"package": "just"},
	))
	require.Error(t, err)
	assert.True(t, engine.IsProbe(err))
}

func TestPlanClean(t *testing.T) {
	home := cargoHome(t)
	write(t, filepath.Join(home, ".crates2.json"), crates2)

	plan, err := newBackend(enginetest.NewFakeRunner(), false).PlanClean(context.Background(), pkgs(
		map[string]any{"package": "ripgrep"},
	))
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	assert.Equal(t, []string{"cargo", "uninstall", "bat"}, plan.Operations[0].Command.Argv())
	assert.True(t, plan.Operations[0].Prompt)
	assert.Equal(t, string(engine.ActionRemove), plan.Operations[0].Batch)
}

func TestPlanCleanCache(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	plan, err := newBackend(runner, false).PlanCleanCache(context.Background(), pkgs())
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	assert.Equal(t, []string{"cargo", "cache", "--autoclean"}, plan.Operations[0].Command.Argv())

	runner = enginetest.NewFakeRunner().Fail("cargo cache --help")
	plan, err = newBackend(runner, false).PlanCleanCache(context.Background(), pkgs())
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestValidate(t *testing.T) {
	summary, err := newBackend(nil, false).Validate(pkgs(
		map[string]any{"package": "a", "git_remote": "https://example.com/a"},
		map[string]any{"package": "b", "post_hook": enginetest.NewHook("def h(): pass")},
	))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Counts["packages"])
	assert.Equal(t, 1, summary.Counts["git"])
	assert.Equal(t, 1, summary.Hooks)
}
