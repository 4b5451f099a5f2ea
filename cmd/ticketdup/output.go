package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/fyrsmithlabs/ticketdup/internal/detector"
)

var (
	nameStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	idStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	dupStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// renderReport prints the neighbours, the verdict, and the store outcome.
func renderReport(w io.Writer, r *detector.Report, index, linkBase string) {
	name := r.ID
	if name == "" {
		name = "ticket"
	}
	fmt.Fprintf(w, "Nearest stored tickets for %s:\n", nameStyle.Render(name))

	if len(r.Neighbors) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("  none, the index is empty"))
	}
	for _, n := range r.Neighbors {
		line := fmt.Sprintf("  %s  distance %s", idStyle.Render(n.ID), nameStyle.Render(fmt.Sprintf("%.4f", n.Distance)))
		if n.IsDuplicate {
			line += "  " + dupStyle.Render("duplicate")
		}
		if linkBase != "" {
			line += "  " + linkBase + n.ID
		}
		fmt.Fprintln(w, line)
	}

	switch {
	case r.Duplicate:
		fmt.Fprintf(w, "%s of %s (distance %.4f <= %.4f)\n",
			dupStyle.Render("Duplicate"), idStyle.Render(r.Closest.ID), r.Closest.Distance, r.Threshold)
	default:
		fmt.Fprintln(w, okStyle.Render("Not a duplicate"))
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Results with distance > %.4f are not considered duplicates", r.Threshold)))

	switch {
	case r.StoreErr != nil:
		fmt.Fprintf(w, "%s %v\n", errorStyle.Render("Storing failed:"), r.StoreErr)
	case r.Stored:
		fmt.Fprintf(w, "Stored %s in %s\n", idStyle.Render(r.ID), nameStyle.Render(index))
	}
}
