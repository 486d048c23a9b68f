package reporting

import (
	"fmt"
	"strings"
	"time"

	"equity-monitor/internal/domain"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	title := r.Title
	if title == "" {
		title = "Equity Rankings"
	}
	sb.WriteString(fmt.Sprintf("# %s\n\n", title))
	sb.WriteString(fmt.Sprintf("As of: %s (%s)\n\n", r.AsOf.Format(domain.DateLayout), r.Source))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Instruments | %d |\n", r.Summary.Instruments))
	sb.WriteString(fmt.Sprintf("| Ranked | %d |\n", r.Summary.Ranked))
	sb.WriteString(fmt.Sprintf("| Missing YTD | %d |\n", r.Summary.Unranked))
	sb.WriteString("\n")
	sb.WriteString("Turnover columns are in millions.\n\n")

	// Rankings
	sb.WriteString("## Rankings\n\n")
	if len(r.Rows) == 0 {
		sb.WriteString("No rows.\n\n")
	} else {
		headers := make([]string, len(rankColumns))
		for i, c := range rankColumns {
			headers[i] = c.header
		}
		writeTableHeader(&sb, headers)
		for _, row := range r.Rows {
			cells := make([]string, len(rankColumns))
			for i, c := range rankColumns {
				cells[i] = c.value(row)
			}
			writeTableRow(&sb, cells)
		}
		sb.WriteString("\n")
	}

	// Leaderboards
	for _, section := range r.Leaderboards {
		sb.WriteString(fmt.Sprintf("## Leaderboard by %s\n\n", section.GroupBy))
		if len(section.Rows) == 0 {
			sb.WriteString("No groups.\n\n")
			continue
		}
		writeTableHeader(&sb, leaderboardHeaders)
		for _, row := range section.Rows {
			writeTableRow(&sb, leaderboardRecord(row))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func writeTableHeader(sb *strings.Builder, headers []string) {
	writeTableRow(sb, headers)
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}
	writeTableRow(sb, sep)
}

func writeTableRow(sb *strings.Builder, cells []string) {
	sb.WriteString("|")
	for _, c := range cells {
		sb.WriteString(" ")
		sb.WriteString(strings.ReplaceAll(c, "|", "\\|"))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}
