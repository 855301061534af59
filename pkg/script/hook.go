package script

import (
	"context"
	"fmt"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Hook is a Starlark function used as a post-install hook.
// It implements engine.HookRef.
type Hook struct {
	fn       *starlark.Function
	source   string
	captures bool
	eval     *Evaluator
}

// Name returns the function name, "lambda" for anonymous functions.
func (h *Hook) Name() string {
	return h.fn.Name()
}

// Describe returns the source text of the function.
func (h *Hook) Describe() string {
	if h.source != "" {
		return h.source
	}
	return fmt.Sprintf("%s at %s", h.fn.Name(), h.fn.Position())
}

// CapturesState reports whether the function refers to local variables of an
// enclosing function. Module globals are frozen and do not count.
func (h *Hook) CapturesState() bool {
	return h.captures
}

// Execute calls the function with no arguments. The thread is cancelled when
// ctx is done.
func (h *Hook) Execute(ctx context.Context) error {
	thread := h.eval.newThread("hook " + h.fn.Name())
	thread.SetLocal(localContext, ctx)
	thread.SetLocal(localRunner, h.eval.runner)

	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(ctx.Err().Error())
	})
	defer stop()

	if _, err := starlark.Call(thread, h.fn, nil, nil); err != nil {
		if evalErr, ok := err.(*starlark.EvalError); ok {
			return fmt.Errorf("%s", evalErr.Backtrace())
		}
		return err
	}
	return nil
}

// functionInfo is what the resolver knows about a def or lambda.
type functionInfo struct {
	captures bool
	source   string
}

type posKey struct {
	line, col int32
}

// inspectFunctions indexes every def and lambda in file by position.
func inspectFunctions(file *syntax.File, src []byte) map[posKey]functionInfo {
	lines := strings.Split(string(src), "\n")
	out := make(map[posKey]functionInfo)

	record := func(fn interface{}, node syntax.Node) {
		rf, ok := fn.(*resolve.Function)
		if !ok {
			return
		}
		start, end := node.Span()
		out[posKey{rf.Pos.Line, rf.Pos.Col}] = functionInfo{
			captures: len(rf.FreeVars) > 0,
			source:   sourceText(lines, start, end),
		}
	}

	syntax.Walk(file, func(n syntax.Node) bool {
		switch n := n.(type) {
		case *syntax.DefStmt:
			record(n.Function, n)
		case *syntax.LambdaExpr:
			record(n.Function, n)
		}
		return true
	})
	return out
}

// sourceText extracts the text between two positions (1-based, rune columns).
func sourceText(lines []string, start, end syntax.Position) string {
	if start.Line < 1 || int(end.Line) > len(lines) || end.Line < start.Line {
		return ""
	}
	if start.Line == end.Line {
		return runeSlice(lines[start.Line-1], start.Col, end.Col)
	}
	var b strings.Builder
	b.WriteString(runeSlice(lines[start.Line-1], start.Col, 0))
	for l := start.Line + 1; l < end.Line; l++ {
		b.WriteString("\n")
		b.WriteString(lines[l-1])
	}
	b.WriteString("\n")
	b.WriteString(runeSlice(lines[end.Line-1], 1, end.Col))
	return strings.TrimRight(b.String(), " \t")
}

// runeSlice returns the runes of s in columns [from, to). to == 0 means end of line.
func runeSlice(s string, from, to int32) string {
	r := []rune(s)
	lo := int(from) - 1
	hi := len(r)
	if to > 0 && int(to)-1 < hi {
		hi = int(to) - 1
	}
	if lo < 0 {
		lo = 0
	}
	if lo > hi {
		return ""
	}
	return string(r[lo:hi])
}
