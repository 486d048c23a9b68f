package reporting

import (
	"encoding/csv"
	"io"
	"strings"

	"equity-monitor/internal/ranking"
)

// WriteCSV writes the ranked rows of r as CSV with a header line.
// Undefined numbers are written as empty fields.
func WriteCSV(w io.Writer, r *Report) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(rankColumns))
	for i, c := range rankColumns {
		header[i] = c.header
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range r.Rows {
		record := make([]string, len(rankColumns))
		for i, c := range rankColumns {
			record[i] = c.value(row)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteLeaderboardCSV writes one leaderboard as CSV.
func WriteLeaderboardCSV(w io.Writer, rows []ranking.LeaderboardRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(leaderboardHeaders); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(leaderboardRecord(row)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderCSV renders the ranked rows of r as a CSV string.
func RenderCSV(r *Report) string {
	var sb strings.Builder
	_ = WriteCSV(&sb, r) // strings.Builder never fails
	return sb.String()
}
