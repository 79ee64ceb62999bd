// Package observability provides formatted output for verbose CLI mode and
// Prometheus metrics for pipeline runs.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/resume-optimizer/internal/pipeline"
	"github.com/jonathan/resume-optimizer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for _, line := range lines {
		// Truncate long lines
		if utf8.RuneCountInString(line) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// writeList writes up to maxItemsToShow items under a heading.
func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
	}
	sb.WriteString("\n")
}

// PrintJDAnalysis outputs the requirements extracted from the job description.
func (p *Printer) PrintJDAnalysis(a *types.JDAnalysis) {
	if a == nil {
		return
	}

	var sb strings.Builder
	writeList(&sb, "Hard Skills", a.HardSkills)
	writeList(&sb, "Soft Skills", a.SoftSkills)
	writeList(&sb, "Responsibilities", a.Responsibilities)
	writeList(&sb, "Qualifications", a.Qualifications)

	if len(a.KeywordWeights) > 0 {
		keys := types.SortedWeightKeys(a.KeywordWeights)
		weighted := make([]string, 0, len(keys))
		for _, k := range keys {
			weighted = append(weighted, fmt.Sprintf("%s (%.2f)", k, a.KeywordWeights[k]))
		}
		writeList(&sb, "Top Keywords", weighted)
	}

	p.printBox("JD ANALYSIS", sb.String())
}

// PrintScore outputs the ATS score and its category breakdown.
func (p *Printer) PrintScore(score float64, breakdown types.ScoreBreakdown, attempts int) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Overall:          %.2f\n", score))
	sb.WriteString(fmt.Sprintf("Rewrite attempts: %d\n", attempts))
	sb.WriteString("\n")
	for _, c := range breakdown.Categories() {
		bar := strings.Repeat("█", int(c.Score*20+0.5))
		sb.WriteString(fmt.Sprintf("  %-10s %.2f %s\n", c.Name, c.Score, bar))
	}
	p.printBox("ATS SCORE", sb.String())
}

// PrintOptimizedSections outputs the rewritten bullets per section.
func (p *Printer) PrintOptimizedSections(sections map[string][]string) {
	if len(sections) == 0 {
		return
	}

	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		writeList(&sb, name, sections[name])
	}
	p.printBox("OPTIMIZED SECTIONS", sb.String())
}

// PrintGapReport outputs missing skills with their priority and the
// recommendations.
func (p *Printer) PrintGapReport(g types.GapReport) {
	var sb strings.Builder
	if len(g.MissingSkills) == 0 {
		sb.WriteString("✅ No missing skills found\n\n")
	} else {
		missing := make([]string, 0, len(g.MissingSkills))
		for _, skill := range g.MissingSkills {
			if level, ok := g.Priority[skill]; ok {
				skill = fmt.Sprintf("%s [%s]", skill, level)
			}
			missing = append(missing, skill)
		}
		writeList(&sb, "Missing Skills", missing)
	}
	writeList(&sb, "Recommendations", g.Recommendations)
	writeList(&sb, "Transferable Skills", g.TransferableSkills)
	p.printBox("GAP REPORT", sb.String())
}

// PrintTokenUsage outputs per-stage token counts and the total.
func (p *Printer) PrintTokenUsage(usage map[string]int, total int) {
	names := make([]string, 0, len(usage))
	for name := range usage {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("%-20s %8d\n", name, usage[name]))
	}
	sb.WriteString(fmt.Sprintf("%-20s %8d\n", "total", total))
	p.printBox("TOKEN USAGE", sb.String())
}

// PrintResult outputs every section of a final result.
func (p *Printer) PrintResult(r *types.FinalResult) {
	if r == nil {
		return
	}
	p.PrintJDAnalysis(r.JDAnalysis)
	p.PrintOptimizedSections(r.OptimizedSections)
	p.PrintScore(r.ATSScore, r.ScoreBreakdown, r.RewriteAttempts)
	p.PrintGapReport(r.GapReport)
	p.PrintTokenUsage(r.TokenUsage, r.TotalTokensUsed)
}

// PrintProgress writes a one-line stage event.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintProgress(e pipeline.ProgressEvent) {
	icon := "•"
	switch e.Status {
	case pipeline.StatusCompleted:
		icon = "✓"
	case pipeline.StatusFailed:
		icon = "✗"
	}
	line := fmt.Sprintf("%s %-18s %s", icon, e.Stage, e.Status)
	if e.Attempt > 0 {
		line += fmt.Sprintf(" (attempt %d)", e.Attempt)
	}
	if e.Message != "" {
		line += ": " + e.Message
	}
	fmt.Fprintln(p.out, line)
}
