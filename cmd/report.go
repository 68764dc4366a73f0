package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/suprsokr/sidekick/internal/ledger"
	"github.com/suprsokr/sidekick/internal/orchestrator"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// entryLabel renders "group: name [step]".
func entryLabel(group, name, step string) string {
	var b strings.Builder
	if group != "" && group != "." {
		b.WriteString(group)
		b.WriteString(": ")
	}
	b.WriteString(name)
	if step != "" {
		b.WriteString(" [")
		b.WriteString(step)
		b.WriteString("]")
	}
	return b.String()
}

func writeOutcomes(w io.Writer, outcomes []orchestrator.Outcome) {
	for _, o := range outcomes {
		line := fmt.Sprintf("  %-15s %s", o.Status, entryLabel(o.Group, o.Name, o.Step))
		if o.Reason != orchestrator.ReasonNone {
			line += "\n  " + strings.Repeat(" ", 16) + o.Reason.String()
			if o.Detail != "" {
				line += ": " + o.Detail
			}
		}
		fmt.Fprintln(w, line)
	}
}

func summary(c map[orchestrator.Status]int) string {
	return fmt.Sprintf("%d applied, %d already applied, %d skipped, %d failed",
		c[orchestrator.StatusApplied], c[orchestrator.StatusAlreadyApplied],
		c[orchestrator.StatusSkipped], c[orchestrator.StatusFailed])
}

// renderReport writes a run report. Text output has no colour and no
// timings so it stays stable across runs.
func renderReport(w io.Writer, format string, rep *orchestrator.Report) error {
	if format == "json" {
		return writeJSON(w, rep)
	}

	fmt.Fprintf(w, "Run %s\n", rep.RunID)
	if !rep.ToolAvailable {
		fmt.Fprintln(w, "  patch tool unavailable: binary patches skipped")
	}
	fmt.Fprintln(w)
	writeOutcomes(w, rep.Outcomes)
	fmt.Fprintln(w)
	fmt.Fprintln(w, summary(rep.Counts()))
	return nil
}

func renderStatus(w io.Writer, format string, statuses []orchestrator.TargetStatus) error {
	if format == "json" {
		return writeJSON(w, statuses)
	}

	fmt.Fprintf(w, "%-9s %-6s %-8s  %s\n", "STATE", "BACKUP", "CRC32", "ENTRY")
	for _, s := range statuses {
		backup, crc := "-", "-"
		if s.Found {
			backup = "no"
			if s.Backup {
				backup = "yes"
			}
		}
		if s.Fingerprint != "" {
			crc = s.Fingerprint
		}
		fmt.Fprintf(w, "%-9s %-6s %-8s  %s\n", s.State, backup, crc, entryLabel(s.Group, s.Name, ""))
		if s.Target != "" {
			fmt.Fprintf(w, "%-9s %-6s %-8s  -> %s\n", "", "", "", s.Target)
		}
		if s.Detail != "" {
			fmt.Fprintf(w, "%-9s %-6s %-8s  %s\n", "", "", "", s.Detail)
		}
	}
	return nil
}

func renderSums(w io.Writer, format string, sums []fileSum) error {
	if format == "json" {
		return writeJSON(w, sums)
	}
	for _, s := range sums {
		fmt.Fprintf(w, "%s  %s\n", s.CRC32, s.Path)
	}
	return nil
}

func renderRuns(w io.Writer, format string, runs []ledger.Run) error {
	if format == "json" {
		if runs == nil {
			runs = []ledger.Run{}
		}
		return writeJSON(w, runs)
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %s  %s\n",
			r.ID, r.Started.Local().Format(time.DateTime),
			summary(map[orchestrator.Status]int{
				orchestrator.StatusApplied:        r.Applied,
				orchestrator.StatusAlreadyApplied: r.AlreadyApplied,
				orchestrator.StatusSkipped:        r.Skipped,
				orchestrator.StatusFailed:         r.Failed,
			}))
	}
	return nil
}

func renderOutcomes(w io.Writer, format string, outcomes []orchestrator.Outcome) error {
	if format == "json" {
		return writeJSON(w, outcomes)
	}
	writeOutcomes(w, outcomes)
	return nil
}
