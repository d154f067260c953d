package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/nilaysetiya/dirsync-go/internal/engine"
	"github.com/nilaysetiya/dirsync-go/internal/record"
)

// Sprint functions for the summary and history output. The color package
// disables itself on non-terminals and under NO_COLOR.
var (
	colGreen  = color.New(color.FgGreen).SprintFunc()
	colRed    = color.New(color.FgRed).SprintFunc()
	colYellow = color.New(color.FgYellow).SprintFunc()
	colDim    = color.New(color.Faint).SprintFunc()
)

// stdoutIsTerminal reports whether stdout is an interactive terminal.
// Non-interactive output (pipes, redirects) gets one machine-friendly line
// per item instead of the decorated layout.
func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// printSummary writes the one-line result of a sync pass.
func printSummary(w io.Writer, s *engine.Summary) {
	if s.Total() == 0 && s.Errors == 0 {
		fmt.Fprintln(w, colDim("already in sync"))
		return
	}

	parts := []string{}

	if s.Copies > 0 {
		parts = append(parts, colGreen(fmt.Sprintf("%d copied", s.Copies)))
	}

	if s.Deletes > 0 {
		parts = append(parts, colRed(fmt.Sprintf("%d deleted", s.Deletes)))
	}

	if s.MtimeRestores > 0 {
		parts = append(parts, fmt.Sprintf("%d mtimes restored", s.MtimeRestores))
	}

	if s.Tombstones > 0 {
		parts = append(parts, fmt.Sprintf("%d tombstoned", s.Tombstones))
	}

	if s.Conflicts > 0 {
		parts = append(parts, colYellow(fmt.Sprintf("%d conflicts resolved", s.Conflicts)))
	}

	if s.Revivals > 0 {
		parts = append(parts, colGreen(fmt.Sprintf("%d revived", s.Revivals)))
	}

	if s.Errors > 0 {
		parts = append(parts, colRed(fmt.Sprintf("%d errors", s.Errors)))
	}

	fmt.Fprintln(w, strings.Join(parts, ", "))
}

// printHistory writes one file's history, newest first.
func printHistory(w io.Writer, name string, h record.History) {
	if stdoutIsTerminal() {
		fmt.Fprintf(w, "%s\n", name)

		for _, e := range h {
			fmt.Fprintf(w, "  %s  %s\n", e.Stamp.String(), formatDigest(e.Digest))
		}

		return
	}

	for _, e := range h {
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, e.Stamp.String(), e.Digest.String())
	}
}

// formatDigest renders a digest for terminal display: short hex, with
// tombstones highlighted.
func formatDigest(d record.Digest) string {
	if d.IsTombstone() {
		return colRed("deleted")
	}

	return colDim(d.Short())
}
