package main

import (
	"fmt"
	"sort"
	"strings"

	"multipoly/internal/kb"
	"multipoly/internal/metrics"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#8BC34A"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6b7280")).
			Width(18)
	countStyle = lipgloss.NewStyle().
			Bold(true).
			Align(lipgloss.Right).
			Width(8)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2a3850")).
			Padding(0, 1)
)

// reportHeadings are the section titles the tutor emits on their own line.
var reportHeadings = map[string]bool{
	"Strategic Analysis:":        true,
	"Current Position Analysis:": true,
	"Purchase Analysis:":         true,
}

// reportMarkdown turns a plain tutor report into markdown: section titles
// become headings and line breaks inside a paragraph are kept.
func reportMarkdown(report string) string {
	var b strings.Builder
	for _, line := range strings.Split(report, "\n") {
		switch {
		case reportHeadings[line]:
			b.WriteString("### " + strings.TrimSuffix(line, ":") + "\n\n")
		case line == "":
			b.WriteString("\n")
		default:
			b.WriteString(line + "  \n")
		}
	}
	return b.String()
}

func renderReport(report string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	return renderer.Render(reportMarkdown(report))
}

func renderStats(stats kb.Stats, files []string) string {
	var rows []string
	rows = append(rows, titleStyle.Render("Knowledge base"))
	rows = append(rows, labelStyle.Render("backend")+countStyle.Render(stats.Backend))
	rows = append(rows, labelStyle.Render("facts")+countStyle.Render(fmt.Sprint(stats.TotalFacts)))
	rows = append(rows, "")

	preds := make([]string, 0, len(stats.PredicateCounts))
	for p := range stats.PredicateCounts {
		preds = append(preds, p)
	}
	sort.Strings(preds)
	for _, p := range preds {
		rows = append(rows, labelStyle.Render(p)+countStyle.Render(fmt.Sprint(stats.PredicateCounts[p])))
	}

	if len(files) > 0 {
		rows = append(rows, "", titleStyle.Render("Programs"))
		rows = append(rows, files...)
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func renderMetrics(samples []metrics.Sample) string {
	rows := []string{titleStyle.Render("Metrics")}
	if len(samples) == 0 {
		rows = append(rows, "none recorded")
	}
	for _, s := range samples {
		name := strings.TrimPrefix(s.Name, "multipoly_")
		if s.Labels != "" {
			name += "{" + s.Labels + "}"
		}
		rows = append(rows, name+" "+countStyle.Render(fmt.Sprint(s.Value)))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
