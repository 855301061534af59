package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/supac/supac/pkg/engine"
	"github.com/supac/supac/pkg/stores"
)

// Format is a report output format.
type Format string

// Supported report formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// encode writes v as JSON or YAML. It reports false for FormatText.
func encode(w io.Writer, format Format, v any) (bool, error) {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

// Unmanaged is the unmanaged report of one backend.
type Unmanaged struct {
	Backend string   `json:"backend" yaml:"backend"`
	Items   []string `json:"items" yaml:"items"`
}

// UnmanagedReport orders the per-backend results by the given backend order.
func UnmanagedReport(order []string, extras map[string][]string) []Unmanaged {
	var out []Unmanaged
	for _, name := range order {
		items, ok := extras[name]
		if !ok {
			continue
		}
		out = append(out, Unmanaged{Backend: name, Items: append([]string{}, items...)})
	}
	return out
}

// RenderUnmanaged writes the unmanaged report.
func RenderUnmanaged(w io.Writer, format Format, report []Unmanaged) error {
	if done, err := encode(w, format, report); done {
		return err
	}
	s := NewStyles(w)
	for _, u := range report {
		fmt.Fprintln(w, s.Heading.Render(u.Backend))
		if len(u.Items) == 0 {
			fmt.Fprintln(w, s.Success.Render("  nothing unmanaged"))
			continue
		}
		for _, item := range u.Items {
			fmt.Fprintf(w, "  %s\n", item)
		}
	}
	return nil
}

// RenderValidation writes the per-backend summaries of a validate run.
func RenderValidation(w io.Writer, format Format, summaries []engine.Summary) error {
	if done, err := encode(w, format, summaries); done {
		return err
	}
	s := NewStyles(w)
	if len(summaries) == 0 {
		fmt.Fprintln(w, s.Muted.Render("no backends configured"))
		return nil
	}
	for _, summary := range summaries {
		keys := make([]string, 0, len(summary.Counts))
		for k := range summary.Counts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys)+1)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%d %s", summary.Counts[k], k))
		}
		parts = append(parts, fmt.Sprintf("%d hooks", summary.Hooks))
		fmt.Fprintf(w, "%s %s %s\n", s.Success.Render("ok"), s.Backend.Render(summary.Backend), strings.Join(parts, ", "))
	}
	return nil
}

// RenderRun writes the per-backend outcome of sync, clean or clean-cache.
func RenderRun(w io.Writer, summary *engine.RunSummary) {
	s := NewStyles(w)
	for _, o := range summary.Outcomes {
		status := s.Success.Render("ok")
		if o.Err != nil {
			status = s.Error.Render("failed")
		}
		fmt.Fprintf(w, "%s %s %s\n", status, s.Backend.Render(o.Backend),
			s.Muted.Render(fmt.Sprintf("%d operations, %d hooks", o.Operations, o.Hooks)))
	}
}

// RenderError writes the aggregate error report.
func RenderError(w io.Writer, err error) {
	s := NewStyles(w)
	fmt.Fprintf(w, "%s %s\n", s.Error.Render("error:"), err)
}

// RenderRuns writes the run history as a table.
func RenderRuns(w io.Writer, format Format, runs []*stores.Run) error {
	if done, err := encode(w, format, runs); done {
		return err
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "COMMAND", "DRY RUN", "STATUS", "STARTED", "DURATION")
	for _, r := range runs {
		t.Row(r.ID, r.Command, strconv.FormatBool(r.DryRun), string(r.Status),
			r.StartedAt.Local().Format(time.DateTime), r.Duration().Round(time.Millisecond).String())
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// RunDetail is a run with its operations and hooks.
type RunDetail struct {
	Run        *stores.Run               `json:"run" yaml:"run"`
	Operations []*stores.OperationRecord `json:"operations" yaml:"operations"`
	Hooks      []*stores.HookRecord      `json:"hooks" yaml:"hooks"`
}

// RenderRunDetail writes one run with its operations and hooks.
func RenderRunDetail(w io.Writer, format Format, d RunDetail) error {
	if done, err := encode(w, format, d); done {
		return err
	}
	s := NewStyles(w)
	fmt.Fprintf(w, "%s %s (%s, %s)\n", s.Heading.Render("run"), d.Run.ID, d.Run.Command, d.Run.Status)
	if d.Run.Error != nil {
		fmt.Fprintf(w, "%s %s\n", s.Error.Render("error:"), *d.Run.Error)
	}
	for _, op := range d.Operations {
		fmt.Fprintf(w, "%s %s %s %s\n", s.Backend.Render("["+op.Backend+"]"), op.Status, op.Action, strings.Join(op.Items, ", "))
		fmt.Fprintf(w, "  %s\n", s.Muted.Render(strings.Join(op.Argv, " ")))
		if op.Error != nil {
			fmt.Fprintf(w, "  %s %s\n", s.Error.Render("error:"), *op.Error)
		}
	}
	for _, h := range d.Hooks {
		fmt.Fprintf(w, "%s %s hook %s\n", s.Backend.Render("["+h.Backend+"]"), h.Status, h.Hook)
		if h.Error != nil {
			fmt.Fprintf(w, "  %s %s\n", s.Error.Render("error:"), *h.Error)
		}
	}
	return nil
}
