package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/marcus/trellis/internal/customfields"
	"github.com/marcus/trellis/internal/deps"
	"github.com/marcus/trellis/internal/tasks"
)

// styles holds lipgloss styles for command output.
type styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Success lipgloss.Style
	Accent  lipgloss.Style
}

func newStyles() styles {
	return styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Muted:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		Success: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		Accent:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81")),
	}
}

// isInteractive reports whether stdout is a terminal. Override in tests.
var isInteractive = func() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printer renders results as styled text or, with --json, as indented JSON.
type printer struct {
	w    io.Writer
	json bool
	st   styles
}

func newPrinter(cmd *cobra.Command) *printer {
	noColor, _ := cmd.Flags().GetBool("no-color")
	if noColor || os.Getenv("NO_COLOR") != "" || !isInteractive() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	return &printer{w: cmd.OutOrStdout(), json: asJSON, st: newStyles()}
}

func (p *printer) emit(v any, human func()) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	human()
	return nil
}

func (p *printer) created(v any, kind, name, id string) error {
	return p.emit(v, func() {
		fmt.Fprintf(p.w, "%s %s %s %s\n",
			p.st.Success.Render("created"), kind, p.st.Value.Render(name), p.st.Muted.Render(id))
	})
}

func (p *printer) done(format string, args ...any) error {
	return p.emit(map[string]string{"status": "ok"}, func() {
		fmt.Fprintln(p.w, p.st.Success.Render("ok")+" "+fmt.Sprintf(format, args...))
	})
}

func (p *printer) tasks(ts []tasks.Task) error {
	return p.emit(ts, func() {
		if len(ts) == 0 {
			fmt.Fprintln(p.w, p.st.Muted.Render("No tasks match."))
			return
		}
		w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tTITLE\tDUE\tPOS\tASSIGNEES\tTAGS\t")
		for _, t := range ts {
			due := "-"
			if t.DueDate != nil {
				due = t.DueDate.String()
			}
			title := t.Title
			if t.Archived {
				title += " (archived)"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t\n",
				t.ID, title, due, t.OrderPosition, len(t.AssigneeIDs), len(t.TagIDs))
		}
		_ = w.Flush()
		fmt.Fprintln(p.w, p.st.Muted.Render(fmt.Sprintf("%d task(s)", len(ts))))
	})
}

func (p *printer) task(t tasks.Task, values []customfields.StoredValue) error {
	out := struct {
		tasks.Task
		Values []customfields.StoredValue `json:"values"`
	}{t, values}
	return p.emit(out, func() {
		fmt.Fprintln(p.w, p.st.Title.Render(t.Title))
		row := func(label, value string) {
			fmt.Fprintf(p.w, "  %s %s\n", p.st.Label.Render(fmt.Sprintf("%-12s", label)), p.st.Value.Render(value))
		}
		row("id", t.ID)
		row("list", t.ListID)
		if t.Description != "" {
			row("description", t.Description)
		}
		if t.StatusID != nil {
			row("status", *t.StatusID)
		}
		if t.PriorityID != nil {
			row("priority", *t.PriorityID)
		}
		if t.DueDate != nil {
			row("due", t.DueDate.String())
		}
		row("position", fmt.Sprint(t.OrderPosition))
		row("archived", fmt.Sprint(t.Archived))
		if len(t.AssigneeIDs) > 0 {
			row("assignees", strings.Join(t.AssigneeIDs, ", "))
		}
		if len(t.TagIDs) > 0 {
			row("tags", strings.Join(t.TagIDs, ", "))
		}
		for _, v := range values {
			row("field "+v.FieldID[:min(8, len(v.FieldID))], v.Value.String())
		}
	})
}

func (p *printer) lists(ls []tasks.List) error {
	return p.emit(ls, func() {
		if len(ls) == 0 {
			fmt.Fprintln(p.w, p.st.Muted.Render("No lists."))
			return
		}
		w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tCREATED\t")
		for _, l := range ls {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t\n", l.ID, l.Name, l.CreatedAt.Format("2006-01-02 15:04"))
		}
		_ = w.Flush()
	})
}

func (p *printer) fields(fs []customfields.Field) error {
	return p.emit(fs, func() {
		if len(fs) == 0 {
			fmt.Fprintln(p.w, p.st.Muted.Render("No custom fields."))
			return
		}
		w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tTYPE\tOPTIONS\t")
		for _, f := range fs {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", f.ID, f.Name, f.Type, strings.Join(f.Config.Options, ", "))
		}
		_ = w.Flush()
	})
}

func (p *printer) value(sv customfields.StoredValue) error {
	return p.emit(sv, func() {
		fmt.Fprintf(p.w, "%s %s = %s %s\n", p.st.Label.Render(sv.FieldID), p.st.Muted.Render("on "+sv.TaskID),
			p.st.Accent.Render(sv.Value.String()), p.st.Muted.Render("("+sv.ID+")"))
	})
}

func (p *printer) edge(e deps.Edge) error {
	return p.emit(e, func() {
		fmt.Fprintf(p.w, "%s %s %s %s %s\n", p.st.Success.Render("linked"),
			p.st.Value.Render(e.TaskID), p.st.Accent.Render(string(e.Type)), p.st.Value.Render(e.DependsOnTaskID),
			p.st.Muted.Render("("+e.ID+")"))
	})
}

func (p *printer) view(v deps.View) error {
	return p.emit(v, func() {
		fmt.Fprintln(p.w, p.st.Title.Render("Dependencies of "+v.TaskID))
		section := func(title string, edges []deps.Edge, other func(deps.Edge) string) {
			fmt.Fprintln(p.w, p.st.Label.Render(title))
			if len(edges) == 0 {
				fmt.Fprintln(p.w, "  "+p.st.Muted.Render("none"))
				return
			}
			for _, e := range edges {
				fmt.Fprintf(p.w, "  %s %s\n", other(e), p.st.Muted.Render("(edge "+e.ID+")"))
			}
		}
		section("Blocked by", v.BlockedBy, func(e deps.Edge) string { return e.DependencyID })
		section("Blocking", v.Blocking, func(e deps.Edge) string { return e.DependentID })
	})
}
