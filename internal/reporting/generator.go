package reporting

import (
	"context"
	"time"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/ranking"
)

// Source supplies ranked tables. Implemented by *orchestrator.Orchestrator.
type Source interface {
	Rankings(ctx context.Context, asOf time.Time) ([]domain.RankedRow, error)
	Snapshot(ctx context.Context, date time.Time) (*domain.Snapshot, error)
	LatestSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// Generator produces reports from saved snapshots or live computations.
type Generator struct {
	source       Source
	leaderboards []ranking.GroupBy
	now          func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator. Each grouping in
// leaderboards adds a leaderboard section to generated reports.
func NewGenerator(source Source, leaderboards ...ranking.GroupBy) *Generator {
	return &Generator{
		source:       source,
		leaderboards: leaderboards,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// FromSnapshot builds a report from the snapshot saved for date.
// A zero date selects the latest snapshot.
func (g *Generator) FromSnapshot(ctx context.Context, date time.Time) (*Report, error) {
	var (
		snap *domain.Snapshot
		err  error
	)
	if date.IsZero() {
		snap, err = g.source.LatestSnapshot(ctx)
	} else {
		snap, err = g.source.Snapshot(ctx, date)
	}
	if err != nil {
		return nil, err
	}
	return g.build(SourceSnapshot, snap.ScanDate, snap.Rows), nil
}

// Live builds a report from a table recomputed as of asOf.
// A zero asOf means the current day.
func (g *Generator) Live(ctx context.Context, asOf time.Time) (*Report, error) {
	if asOf.IsZero() {
		asOf = g.now()
	}
	asOf = domain.Day(asOf)
	rows, err := g.source.Rankings(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return g.build(SourceLive, asOf, rows), nil
}

func (g *Generator) build(source string, asOf time.Time, rows []domain.RankedRow) *Report {
	report := &Report{
		Title:       "Equity Rankings",
		AsOf:        asOf,
		Source:      source,
		GeneratedAt: g.now(),
		Rows:        rows,
	}

	report.Summary.Instruments = len(rows)
	for _, r := range rows {
		if r.OverallRank != nil {
			report.Summary.Ranked++
		}
		if r.YTDReturnPct == nil {
			report.Summary.Unranked++
		}
	}

	for _, by := range g.leaderboards {
		report.Leaderboards = append(report.Leaderboards, LeaderboardSection{
			GroupBy: by,
			Rows:    ranking.Leaderboard(rows, by),
		})
	}
	return report
}
