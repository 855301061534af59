package ui

import (
	"fmt"
	"io"

	"github.com/supac/supac/pkg/engine"
)

// Printer renders dry-run output with lipgloss. It implements engine.Printer.
type Printer struct {
	out    io.Writer
	styles Styles
}

// NewPrinter creates a printer writing to out.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out, styles: NewStyles(out)}
}

// PrintCommand writes the command line that would run.
func (p *Printer) PrintCommand(backend string, cmd engine.Command) {
	fmt.Fprintf(p.out, "%s %s\n", p.styles.Backend.Render("["+backend+"]"), p.styles.Command.Render(cmd.String()))
}

// PrintHook writes the source of the hook that would run.
func (p *Printer) PrintHook(backend string, hook engine.HookRef) {
	fmt.Fprintf(p.out, "%s %s\n%s\n",
		p.styles.Backend.Render("["+backend+"]"),
		p.styles.Muted.Render("hook:"),
		p.styles.Hook.Render(hook.Describe()))
}
