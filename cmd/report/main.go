// Package main exports a ranked table as CSV, Markdown or XLSX.
//
// By default the latest saved snapshot is exported; -date selects another
// snapshot and -live recomputes the table from stored observations.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"equity-monitor/internal/app"
	"equity-monitor/internal/config"
	"equity-monitor/internal/orchestrator"
	"equity-monitor/internal/ranking"
	"equity-monitor/internal/reporting"
)

// Output formats.
const (
	formatCSV      = "csv"
	formatMarkdown = "md"
	formatXLSX     = "xlsx"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Parse flags
	date := flag.String("date", "", "Snapshot date (YYYY-MM-DD); default: latest snapshot")
	live := flag.Bool("live", false, "Recompute rankings from stored observations instead of reading a snapshot")
	format := flag.String("format", formatMarkdown, "Output format: csv, md, xlsx")
	out := flag.String("out", "", "Output file (default: stdout; required for xlsx)")
	groups := flag.String("leaderboards", "theme,sector", "Comma-separated leaderboard groupings (theme, sector, industry, sub_industry)")
	backend := flag.String("storage", cfg.Storage.Backend, "Storage backend: memory, bolt, postgres")
	boltPath := flag.String("bolt-path", cfg.Storage.BoltPath, "Bolt database file")
	postgresDSN := flag.String("postgres-dsn", cfg.Storage.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.Storage.ClickhouseDSN, "ClickHouse connection string for observations (optional)")
	flag.Parse()

	cfg.Storage.Backend = *backend
	cfg.Storage.BoltPath = *boltPath
	cfg.Storage.PostgresDSN = *postgresDSN
	cfg.Storage.ClickhouseDSN = *clickhouseDSN
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Validate flags
	var when time.Time
	if *date != "" {
		when, err = time.Parse("2006-01-02", *date)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid -date %q, expected YYYY-MM-DD\n", *date)
			os.Exit(1)
		}
	}
	if *format != formatCSV && *format != formatMarkdown && *format != formatXLSX {
		fmt.Fprintf(os.Stderr, "Error: unknown -format %q\n", *format)
		os.Exit(1)
	}
	if *format == formatXLSX && *out == "" {
		fmt.Fprintln(os.Stderr, "Error: -out is required for xlsx")
		os.Exit(1)
	}
	groupBys, err := parseGroups(*groups)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	stores, cleanup, err := app.OpenStores(ctx, cfg.Storage, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening stores: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	orch := app.NewOrchestrator(cfg, stores, app.OrchestratorOptions{})
	gen := reporting.NewGenerator(orch, groupBys...)

	var report *reporting.Report
	if *live {
		report, err = gen.Live(ctx, when)
	} else {
		report, err = gen.FromSnapshot(ctx, when)
	}
	if errors.Is(err, orchestrator.ErrNoData) {
		fmt.Fprintln(os.Stderr, "No data: run `scan -mode=snapshot` first or choose another date")
		cleanup()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		cleanup()
		os.Exit(1)
	}

	if err := write(*out, *format, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing report: %v\n", err)
		cleanup()
		os.Exit(1)
	}
	if *out != "" {
		fmt.Printf("Report written to %s (%d rows, as of %s)\n", *out, len(report.Rows), report.AsOf.Format("2006-01-02"))
	}
}

// parseGroups parses a comma-separated list of leaderboard groupings.
func parseGroups(s string) ([]ranking.GroupBy, error) {
	var groups []ranking.GroupBy
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		g, err := ranking.ParseGroupBy(part)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// write renders report in format to path, or to stdout when path is empty.
func write(path, format string, report *reporting.Report) error {
	var w io.Writer = os.Stdout
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case formatCSV:
		return reporting.WriteCSV(w, report)
	case formatXLSX:
		return reporting.WriteXLSX(w, report)
	default:
		_, err := io.WriteString(w, reporting.RenderMarkdown(report))
		return err
	}
}
