// Package render formats query results for `--format pretty`
// (SPEC_FULL §6.1), styled with charmbracelet/lipgloss the way
// jabafett-quill styles its terminal output. Default JSON rendering lives
// in cmd/rocketindex directly — this package only covers the human-
// readable alternative.
package render

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"

	"github.com/rocket-tycoon/rocketindex/internal/query"
	"github.com/rocket-tycoon/rocketindex/internal/store"
)

var (
	headingColor   = lipgloss.Color("#7B2CBF")
	ambiguousColor = lipgloss.Color("#E6A817")
	notFoundColor  = lipgloss.Color("#E63946")
	foundColor     = lipgloss.Color("#2ECC71")

	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(headingColor)
	styleFound   = lipgloss.NewStyle().Foreground(foundColor).Bold(true)
	styleAmbig   = lipgloss.NewStyle().Foreground(ambiguousColor).Bold(true)
	styleMissing = lipgloss.NewStyle().Foreground(notFoundColor).Bold(true)
)

// Definition renders find_definition's result.
func Definition(w io.Writer, name string, res query.DefinitionResult) {
	switch res.Outcome {
	case query.OutcomeFound:
		fmt.Fprintln(w, styleFound.Render(fmt.Sprintf("%s → %s", name, res.Symbol.QualifiedName)))
		fmt.Fprintf(w, "  kind:       %s\n", res.Symbol.Kind)
		fmt.Fprintf(w, "  visibility: %s\n", res.Symbol.Visibility)
		fmt.Fprintf(w, "  resolved via: %s\n", res.Path)
	case query.OutcomeAmbiguous:
		fmt.Fprintln(w, styleAmbig.Render(fmt.Sprintf("%s is ambiguous (%d candidates)", name, len(res.Candidates))))
		for _, c := range res.Candidates {
			fmt.Fprintf(w, "  - %s (%s)\n", c.QualifiedName, c.Kind)
		}
	default:
		fmt.Fprintln(w, styleMissing.Render(fmt.Sprintf("%s: not found", name)))
	}
}

// References renders find_references' result as aligned location columns.
func References(w io.Writer, refs []*store.Reference, pathOf func(fileID int64) string) {
	fmt.Fprintln(w, styleHeading.Render(fmt.Sprintf("%d reference(s)", len(refs))))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLINE\tCOL")
	for _, r := range refs {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", pathOf(r.FileID), r.StartLine, r.StartCol)
	}
	tw.Flush()
}

// Symbols renders a symbol list (find_callers, symbols, subclasses) as
// aligned columns.
func Symbols(w io.Writer, title string, syms []*store.Symbol, pathOf func(fileID int64) string) {
	fmt.Fprintln(w, styleHeading.Render(fmt.Sprintf("%s (%d)", title, len(syms))))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "QUALIFIED NAME\tKIND\tVISIBILITY\tFILE\tLINE")
	for _, s := range syms {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", s.QualifiedName, s.Kind, s.Visibility, pathOf(s.FileID), s.StartLine)
	}
	tw.Flush()
}

// Spider renders spider's BFS result as an indented tree-free node list
// plus an unresolved call-out, the ambiguity/failure case styled the same
// way Definition styles NotFound.
func Spider(w io.Writer, result query.SpiderResult) {
	fmt.Fprintln(w, styleHeading.Render(fmt.Sprintf("%d node(s)", len(result.Nodes))))
	for _, n := range result.Nodes {
		fmt.Fprintf(w, "  [%d] %s (%s:%d)\n", n.Depth, n.Qualified, n.File, n.Line)
	}
	if len(result.Unresolved) > 0 {
		fmt.Fprintln(w, styleMissing.Render(fmt.Sprintf("%d unresolved reference(s):", len(result.Unresolved))))
		fmt.Fprintln(w, "  "+strings.Join(result.Unresolved, ", "))
	}
}
