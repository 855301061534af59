package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/supac/supac/pkg/engine"
)

// Confirmer asks for confirmation with a huh form. It implements
// engine.Confirmer.
type Confirmer struct {
	// Accessible renders plain prompts for screen readers and dumb terminals.
	Accessible bool
}

// Title is the question asked before op runs.
func Title(op engine.Operation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", op.Backend, op.Action)
	if len(op.Items) > 0 {
		fmt.Fprintf(&b, " %s", strings.Join(op.Items, ", "))
	}
	if op.Scope != "" {
		fmt.Fprintf(&b, " (%s)", op.Scope)
	}
	b.WriteString("?")
	return b.String()
}

// Confirm shows the operation's command and asks whether to run it.
// Interrupting the prompt cancels the run.
func (c Confirmer) Confirm(ctx context.Context, op engine.Operation) (bool, error) {
	ok := true
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(Title(op)).
				Description(op.Command.String()).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithAccessible(c.Accessible).RunWithContext(ctx)
	if errors.Is(err, huh.ErrUserAborted) {
		return false, engine.NewOperationFailed(op.Command.Argv(), err).WithCode(engine.ErrCodeCanceled)
	}
	if err != nil {
		return false, fmt.Errorf("confirmation prompt failed: %w", err)
	}
	return ok, nil
}
