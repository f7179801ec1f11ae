package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/term"
)

// renderer formats command output the way the teacher's internal/cli/output
// package dispatches on an output mode: styled text for an interactive
// terminal, plain JSON for a pipe or --output json. There is no markdown
// mode here - the teacher's renderer grew one for docs generation, which
// this CLI has no use for.
type renderer struct {
	w     io.Writer
	mode  string
	style styles
}

type styles struct {
	bold    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	errorS  lipgloss.Style
}

func newStyles() styles {
	return styles{
		bold:    lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Faint(true),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		errorS:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

// newRenderer resolves mode "auto" against whether w looks like a terminal.
func newRenderer(w io.Writer, mode string) *renderer {
	if mode == "" || mode == "auto" {
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			mode = "text"
		} else {
			mode = "json"
		}
	}
	return &renderer{w: w, mode: mode, style: newStyles()}
}

func (r *renderer) isJSON() bool { return r.mode == "json" }

func (r *renderer) JSON(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *renderer) Printf(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func (r *renderer) Println(args ...any) {
	fmt.Fprintln(r.w, args...)
}

func (r *renderer) Table(header table.Row, rows []table.Row) {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(header)
	for _, row := range rows {
		t.AppendRow(row)
	}
	t.Render()
}

func (r *renderer) Success(msg string) {
	if r.isJSON() {
		return
	}
	r.Println(r.style.success.Render(msg))
}

func (r *renderer) Error(msg string) {
	if r.isJSON() {
		return
	}
	r.Println(r.style.errorS.Render(msg))
}
