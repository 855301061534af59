package arch

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supac/supac/pkg/config"
	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/engine/enginetest"
)

func newBackend(t *testing.T, pm string, runner *enginetest.FakeRunner, noConfirm bool) *Backend {
	t.Helper()
	settings := config.Default()
	settings.ArchPackageManager = pm
	return New(runner, settings, engine.ExecuteOptions{NoConfirm: noConfirm}, zerolog.Nop())
}

func scriptInstalled(r *enginetest.FakeRunner, pm, explicit, deps, groups string) {
	r.Respond(pm+" --query --explicit --quiet", explicit).
		Respond(pm+" --query --deps --quiet", deps).
		Respond(pm+" --sync --quiet --groups", groups)
}

func TestParse(t *testing.T) {
	hook := enginetest.NewHook("def h(): pass")
	s, err := Parse(map[string]any{
		"packages": []any{"git", []any{"neovim", hook}, []any{"ripgrep"}, "git"},
	}, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, []string{"git", "neovim", "ripgrep"}, s.Names())
	assert.Nil(t, s.Packages[0].Hook)
	assert.Equal(t, hook, s.Packages[1].Hook)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		value any
		code  string
	}{
		{"missing packages", map[string]any{}, engine.ErrCodeMissingField},
		{"packages not a list", map[string]any{"packages": "git"}, engine.ErrCodeTypeMismatch},
		{"entry of wrong type", map[string]any{"packages": []any{int64(3)}}, engine.ErrCodeTypeMismatch},
		{"too many elements", map[string]any{"packages": []any{[]any{"a", nil, "c"}}}, engine.ErrCodeTooManyElements},
		{"name not a string", map[string]any{"packages": []any{[]any{true}}}, engine.ErrCodeTypeMismatch},
		{"empty name", map[string]any{"packages": []any{""}}, engine.ErrCodeValidation},
		{"hook not a function", map[string]any{"packages": []any{[]any{"a", "echo"}}}, engine.ErrCodeTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.value, zerolog.Nop())
			require.Error(t, err)
			assert.ErrorIs(t, err, &engine.EngineError{Kind: engine.KindConfig, Code: tt.code})
		})
	}
}

func TestPlanSyncScenario(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	scriptInstalled(runner, "paru", "B\nC\n", "", "")
	b := newBackend(t, "paru", runner, false)

	var order []string
	runner.OnRun = func(argv []string) { order = append(order, "run") }
	hook := enginetest.NewHook("def a_hook(): pass").OnRun(func() { order = append(order, "hook") })

	plan, err := b.PlanSync(context.Background(), map[string]any{
		"packages": []any{[]any{"A", hook}, "B"},
	})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	assert.Equal(t, []string{"paru", "--sync", "A"}, plan.Operations[0].Command.Argv())

	exec := engine.NewExecutor(runner, engine.ExecuteOptions{})
	require.NoError(t, exec.Execute(context.Background(), plan))
	assert.Equal(t, 1, hook.Runs())
	assert.Equal(t, []string{"run", "hook"}, order)

	unmanaged, err := b.Unmanaged(context.Background(), map[string]any{"packages": []any{"A", "B"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, unmanaged)
}

func TestPlanSyncHookSkippedWhenInstallFails(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	scriptInstalled(runner, "paru", "", "", "")
	runner.Fail("paru --sync A")
	b := newBackend(t, "paru", runner, false)
	hook := enginetest.NewHook("def h(): pass")

	plan, err := b.PlanSync(context.Background(), map[string]any{"packages": []any{[]any{"A", hook}}})
	require.NoError(t, err)

	err = engine.NewExecutor(runner, engine.ExecuteOptions{}).Execute(context.Background(), plan)
	require.Error(t, err)
	assert.True(t, engine.IsOperationFailed(err))
	assert.Zero(t, hook.Runs())
}

func TestPlanSyncIdempotent(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	scriptInstalled(runner, "paru", "git\nneovim\n", "", "")
	b := newBackend(t, "paru", runner, false)

	plan, err := b.PlanSync(context.Background(), map[string]any{"packages": []any{"git", "neovim"}})
	require.NoError(t, err)
	assert.True(t, plan.Empty())

	require.NoError(t, engine.NewExecutor(runner, engine.ExecuteOptions{}).Execute(context.Background(), plan))
	assert.Empty(t, runner.Executed())
}

func TestPlanSyncGroupExpansion(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	scriptInstalled(runner, "paru", "gcc\n", "", "base-devel\ngnome\n")
	runner.Respond("paru --sync --groups --quiet base-devel", "gcc\nmake\npatch\n")
	b := newBackend(t, "paru", runner, false)
	hook := enginetest.NewHook("def h(): pass")

	plan, err := b.PlanSync(context.Background(), map[string]any{
		"packages": []any{[]any{"base-devel", hook}},
	})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	op := plan.Operations[0]
	assert.Equal(t, []string{"make", "patch"}, op.Items)
	assert.Len(t, op.Hooks, 1, "group hook fires once")
	assert.NotContains(t, op.Items, "base-devel")
}

func TestPlanSyncPromotesDependencies(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	scriptInstalled(runner, "pacman", "", "python\n", "")
	b := newBackend(t, "pacman", runner, true)

	plan, err := b.PlanSync(context.Background(), map[string]any{"packages": []any{"python", "git"}})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 2)
	assert.Equal(t, []string{"sudo", "pacman", "--sync", "--noconfirm", "git"}, plan.Operations[0].Command.Argv())
	assert.Equal(t, []string{"sudo", "pacman", "--database", "--asexplicit", "python"}, plan.Operations[1].Command.Argv())
}

func TestPlanSyncDependencyQueryFailure(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	scriptInstalled(runner, "yay", "git\n", "", "")
	runner.Fail("yay --query --deps --quiet")
	b := newBackend(t, "yay", runner, false)

	plan, err := b.PlanSync(context.Background(), map[string]any{"packages": []any{"git"}})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestPlanSyncProbeFailure(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	runner.Fail("paru --query --explicit --quiet")
	b := newBackend(t, "paru", runner, false)

	_, err := b.PlanSync(context.Background(), map[string]any{"packages": []any{"git"}})
	require.Error(t, err)
	assert.True(t, engine.IsProbe(err))
}

func TestPlanClean(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	scriptInstalled(runner, "pacman", "gcc\nmake\nvim\nhtop\n", "", "base-devel\n")
	runner.Respond("pacman --sync --groups --quiet base-devel", "gcc\nmake\n")
	b := newBackend(t, "pacman", runner, false)

	plan, err := b.PlanClean(context.Background(), map[string]any{"packages": []any{"base-devel", "vim"}})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	assert.Equal(t, []string{"sudo", "pacman", "--remove", "--recursive", "htop"}, plan.Operations[0].Command.Argv())
	assert.True(t, plan.Operations[0].Action.Removes())
}

func TestPlanCleanNothingExtra(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	scriptInstalled(runner, "paru", "git\n", "", "")
	b := newBackend(t, "paru", runner, false)

	plan, err := b.PlanClean(context.Background(), map[string]any{"packages": []any{"git"}})
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestPlanCleanCache(t *testing.T) {
	b := newBackend(t, "paru", enginetest.NewFakeRunner(), true)

	plan, err := b.PlanCleanCache(context.Background(), map[string]any{"packages": []any{}})
	require.NoError(t, err)
	require.Len(t, plan.Operations, 1)
	assert.Equal(t, []string{"paru", "--sync", "--clean", "--noconfirm"}, plan.Operations[0].Command.Argv())
}

func TestDryRunPrintsHook(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	scriptInstalled(runner, "paru", "", "", "")
	b := newBackend(t, "paru", runner, false)
	hook := enginetest.NewHook("def setup():\n    run(\"echo\")")

	plan, err := b.PlanSync(context.Background(), map[string]any{"packages": []any{[]any{"A", hook}}})
	require.NoError(t, err)

	var out bytes.Buffer
	exec := engine.NewExecutor(runner, engine.ExecuteOptions{DryRun: true}, engine.WithPrinter(engine.TextPrinter{Out: &out}))
	require.NoError(t, exec.Execute(context.Background(), plan))

	assert.Empty(t, runner.Executed())
	assert.Zero(t, hook.Runs())
	assert.Contains(t, out.String(), "paru --sync A")
	assert.Contains(t, out.String(), "def setup():")
}

func TestValidate(t *testing.T) {
	b := newBackend(t, "paru", enginetest.NewFakeRunner(), false)
	summary, err := b.Validate(map[string]any{
		"packages": []any{"git", []any{"neovim", enginetest.NewHook("def h(): pass")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "arch", summary.Backend)
	assert.Equal(t, 2, summary.Counts["packages"])
	assert.Equal(t, 1, summary.Hooks)
}
