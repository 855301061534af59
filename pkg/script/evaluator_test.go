package script

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/engine/enginetest"
)

func newTestEvaluator(runner engine.Runner, opts ...Option) *Evaluator {
	return NewEvaluator(runner, zerolog.Nop(), opts...)
}

func TestEvaluator_Globals(t *testing.T) {
	e := newTestEvaluator(enginetest.NewFakeRunner())

	tests := []struct {
		name   string
		script string
		check  func(*testing.T, map[string]any)
	}{
		{
			name:   "scalars",
			script: "n = 2 + 2\nf = 1.5\nb = True\ns = 'x'\nnothing = None\n",
			check: func(t *testing.T, g map[string]any) {
				assert.Equal(t, int64(4), g["n"])
				assert.Equal(t, 1.5, g["f"])
				assert.Equal(t, true, g["b"])
				assert.Equal(t, "x", g["s"])
				assert.Contains(t, g, "nothing")
				assert.Nil(t, g["nothing"])
			},
		},
		{
			name: "nested collections",
			script: `
arch = {
    "packages": ["git", ("vim",), {"k": [1, 2]}],
}
`,
			check: func(t *testing.T, g map[string]any) {
				arch := g["arch"].(map[string]any)
				pkgs := arch["packages"].([]any)
				require.Len(t, pkgs, 3)
				assert.Equal(t, "git", pkgs[0])
				assert.Equal(t, []any{"vim"}, pkgs[1])
				assert.Equal(t, map[string]any{"k": []any{int64(1), int64(2)}}, pkgs[2])
			},
		},
		{
			name:   "struct becomes record",
			script: "s = struct(a = 1, b = 'two')\n",
			check: func(t *testing.T, g map[string]any) {
				assert.Equal(t, map[string]any{"a": int64(1), "b": "two"}, g["s"])
			},
		},
		{
			name:   "private and builtin globals are skipped",
			script: "_hidden = 1\nalias = run\nvisible = 2\n",
			check: func(t *testing.T, g map[string]any) {
				assert.NotContains(t, g, "_hidden")
				assert.NotContains(t, g, "alias")
				assert.Equal(t, int64(2), g["visible"])
			},
		},
		{
			name: "helper functions run at load time",
			script: `
def many(prefix, n):
    return [prefix + str(i) for i in range(n)]

cargo = {"packages": many("tool", 3)}
`,
			check: func(t *testing.T, g map[string]any) {
				cargo := g["cargo"].(map[string]any)
				assert.Equal(t, []any{"tool0", "tool1", "tool2"}, cargo["packages"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			globals, err := e.Evaluate(context.Background(), "package.star", []byte(tt.script))
			require.NoError(t, err)
			tt.check(t, globals)
		})
	}
}

func TestEvaluator_Errors(t *testing.T) {
	e := newTestEvaluator(enginetest.NewFakeRunner())

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"syntax error", "arch = {", "failed to parse"},
		{"undefined name", "arch = missing\n", "failed to parse"},
		{"runtime error", "x = 1 // 0\n", "execution failed"},
		{"non-string dict key", "d = {1: 'a'}\n", "dict key must be string"},
		{"run outside hook", "x = run('true')\n", "only available inside hooks"},
		{"output outside hook", "x = output('uname')\n", "only available inside hooks"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(context.Background(), "package.star", []byte(tt.script))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEvaluator_Hooks(t *testing.T) {
	runner := enginetest.NewFakeRunner()
	e := newTestEvaluator(runner)

	script := `
def setup_neovim():
    run("nvim", "--headless", "+qa")

def make_hook(name):
    def hook():
        run("echo", name)
    return hook

arch = {
    "packages": [
        ["neovim", setup_neovim],
        ["git", lambda: sudo("git", "config", "--system", "init.defaultBranch", "main")],
        ["fish", make_hook("fish")],
    ],
}
`
	globals, err := e.Evaluate(context.Background(), "package.star", []byte(script))
	require.NoError(t, err)

	pkgs := globals["arch"].(map[string]any)["packages"].([]any)
	named := pkgs[0].([]any)[1].(*Hook)
	lambda := pkgs[1].([]any)[1].(*Hook)
	closure := pkgs[2].([]any)[1].(*Hook)

	t.Run("describe returns source text", func(t *testing.T) {
		assert.Equal(t, "def setup_neovim():\n    run(\"nvim\", \"--headless\", \"+qa\")", named.Describe())
		assert.Equal(t, `lambda: sudo("git", "config", "--system", "init.defaultBranch", "main")`, lambda.Describe())
		assert.Equal(t, "setup_neovim", named.Name())
		assert.Equal(t, "lambda", lambda.Name())
	})

	t.Run("closures over locals capture state", func(t *testing.T) {
		assert.False(t, named.CapturesState())
		assert.False(t, lambda.CapturesState())
		assert.True(t, closure.CapturesState())
	})

	t.Run("execute uses the runner", func(t *testing.T) {
		require.NoError(t, named.Execute(context.Background()))
		require.NoError(t, lambda.Execute(context.Background()))
		assert.Equal(t, []string{
			"nvim --headless +qa",
			"sudo git config --system init.defaultBranch main",
		}, runner.Executed())
	})
}

func TestHook_ExecuteFailure(t *testing.T) {
	runner := enginetest.NewFakeRunner().Fail("false")
	e := newTestEvaluator(runner)

	globals, err := e.Evaluate(context.Background(), "package.star", []byte("h = lambda: run('false')\n"))
	require.NoError(t, err)

	err = globals["h"].(*Hook).Execute(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run")
}

func TestHook_Output(t *testing.T) {
	runner := enginetest.NewFakeRunner().Respond("uname -m", "x86_64\n")
	e := newTestEvaluator(runner)

	script := `
def hook():
    arch = output("uname", "-m").strip()
    run("echo", arch)
`
	globals, err := e.Evaluate(context.Background(), "package.star", []byte(script))
	require.NoError(t, err)
	require.NoError(t, globals["hook"].(*Hook).Execute(context.Background()))
	assert.Equal(t, []string{"echo x86_64"}, runner.Executed())
}

func TestHook_ExecuteCancelled(t *testing.T) {
	e := newTestEvaluator(enginetest.NewFakeRunner())
	script := `
def spin():
    total = 0
    for i in range(100000000):
        total += i
`
	globals, err := e.Evaluate(context.Background(), "package.star", []byte(script))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.Error(t, globals["spin"].(*Hook).Execute(ctx))
}

func TestEvaluator_Timeout(t *testing.T) {
	e := newTestEvaluator(enginetest.NewFakeRunner(), WithTimeout(100*time.Millisecond))

	script := `
def slow():
    result = 0
    for i in range(100000000):
        result = result + i
    return result

result = slow()
`
	_, err := e.Evaluate(context.Background(), "package.star", []byte(script))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aborted")
}

func TestEvaluator_PrintAndEnv(t *testing.T) {
	var out bytes.Buffer
	e := newTestEvaluator(enginetest.NewFakeRunner(), WithOutput(&out))
	t.Setenv("SUPAC_TEST_VALUE", "hello")

	script := `
print("loading")
value = env("SUPAC_TEST_VALUE")
fallback = env("SUPAC_TEST_UNSET", "default")
`
	globals, err := e.Evaluate(context.Background(), "package.star", []byte(script))
	require.NoError(t, err)
	assert.Equal(t, "hello", globals["value"])
	assert.Equal(t, "default", globals["fallback"])
	assert.Equal(t, "loading", strings.TrimSpace(out.String()))
}

func TestEvaluator_LoadFile(t *testing.T) {
	e := newTestEvaluator(enginetest.NewFakeRunner())
	path := filepath.Join(t.TempDir(), "package.star")
	require.NoError(t, os.WriteFile(path, []byte("flatpak = {'packages': ['org.gimp.GIMP']}\n"), 0o600))

	globals, err := e.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []any{"org.gimp.GIMP"}, globals["flatpak"].(map[string]any)["packages"])

	_, err = e.LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.star"))
	assert.Error(t, err)
}
