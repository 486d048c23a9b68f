package reporting

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"equity-monitor/internal/domain"
)

// Sheet names of the workbook.
const (
	SheetRankings = "Rankings"
	sheetSummary  = "Summary"
)

// WriteXLSX writes r as a workbook: a summary sheet, the ranked table and one
// sheet per leaderboard. Numeric cells are stored as numbers.
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	summary := [][]any{
		{"as_of", r.AsOf.Format(domain.DateLayout)},
		{"source", r.Source},
		{"instruments", r.Summary.Instruments},
		{"ranked", r.Summary.Ranked},
		{"missing_ytd", r.Summary.Unranked},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}

	headers := make([]string, len(rankColumns))
	for i, c := range rankColumns {
		headers[i] = c.header
	}
	rows := [][]any{toAny(headers)}
	for _, row := range r.Rows {
		cells := make([]string, len(rankColumns))
		for i, c := range rankColumns {
			cells[i] = c.value(row)
		}
		rows = append(rows, cellValues(cells))
	}
	if err := addSheet(f, SheetRankings, rows); err != nil {
		return err
	}

	for _, section := range r.Leaderboards {
		rows := [][]any{toAny(leaderboardHeaders)}
		for _, row := range section.Rows {
			rows = append(rows, cellValues(leaderboardRecord(row)))
		}
		if err := addSheet(f, "By "+string(section.GroupBy), rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func addSheet(f *excelize.File, name string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	if err := writeRows(f, name, rows); err != nil {
		return err
	}
	// Keep the header visible while scrolling.
	return f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

// cellValues converts numeric strings to float64 so spreadsheets can sort
// them. Empty strings stay empty cells.
func cellValues(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		if v, err := strconv.ParseFloat(c, 64); err == nil {
			out[i] = v
			continue
		}
		out[i] = c
	}
	return out
}

func toAny(cells []string) []any {
	out := make([]any, len(cells))
	for i, c := range cells {
		out[i] = c
	}
	return out
}
