package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/observability"
	"equity-monitor/internal/orchestrator"
	"equity-monitor/internal/ranking"
	"equity-monitor/internal/storage"
)

var today = time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)

func intp(v int) *int { return &v }

func floatp(v float64) *float64 { return &v }

type fakeService struct {
	rows      []domain.RankedRow
	snapshots map[time.Time][]domain.RankedRow
	dates     []time.Time
	tags      map[string]domain.Tags
	err       error

	lastAsOf time.Time
}

func (f *fakeService) Rankings(_ context.Context, asOf time.Time) ([]domain.RankedRow, error) {
	f.lastAsOf = asOf
	if f.err != nil {
		return nil, f.err
	}
	if len(f.rows) == 0 {
		return nil, orchestrator.ErrNoData
	}
	return f.rows, nil
}

func (f *fakeService) Leaderboard(ctx context.Context, asOf time.Time, by ranking.GroupBy) ([]ranking.LeaderboardRow, error) {
	rows, err := f.Rankings(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return ranking.Leaderboard(rows, by), nil
}

func (f *fakeService) Snapshot(_ context.Context, date time.Time) (*domain.Snapshot, error) {
	rows, ok := f.snapshots[date]
	if !ok {
		return nil, orchestrator.ErrNoData
	}
	return &domain.Snapshot{ScanDate: date, Rows: rows}, nil
}

func (f *fakeService) LatestSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	if len(f.dates) == 0 {
		return nil, orchestrator.ErrNoData
	}
	return f.Snapshot(ctx, f.dates[0])
}

func (f *fakeService) SnapshotDates(_ context.Context) ([]time.Time, error) {
	return f.dates, f.err
}

func (f *fakeService) SetTags(_ context.Context, instrument string, tags domain.Tags) error {
	if _, ok := f.tags[instrument]; !ok {
		return storage.ErrNotFound
	}
	f.tags[instrument] = tags
	return nil
}

func (f *fakeService) Instrument(_ context.Context, instrument string) (*domain.InstrumentMetadata, error) {
	tags, ok := f.tags[instrument]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &domain.InstrumentMetadata{Instrument: instrument, Tags: tags}, nil
}

func sampleRows() []domain.RankedRow {
	return []domain.RankedRow{
		{
			Instrument: "NVDA", DisplayName: "Nvidia", Tags: domain.Tags{"AI"}, Sector: "Information Technology",
			CurrentPrice: 120, LatestTurnover: 3500.5, AvgTurnover20D: 3000, TurnoverRatio: 1.1668,
			YTDReturnPct: floatp(25), FiveDayReturnPct: 3,
			RankYTD: intp(1), Rank5D: 1, RankTurnoverRatio: 1, RankVolume: 1, OverallRank: intp(1),
		},
		{
			Instrument: "XOM", DisplayName: "ExxonMobil", Sector: "Energy",
			CurrentPrice: 110, TurnoverRatio: math.NaN(),
			Rank5D: 2, RankTurnoverRatio: 2, RankVolume: 2,
		},
	}
}

func newTestHandler(svc Service) (*Handler, *observability.Metrics) {
	m := observability.NewMetrics("test", prometheus.NewRegistry())
	h := NewHandler(Options{
		Service:        svc,
		Metrics:        m,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { io.WriteString(w, "metrics") }),
		Clock:          func() time.Time { return today.Add(10 * time.Hour) },
		Logger:         log.New(io.Discard, "", 0),
	})
	return h, m
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(&fakeService{})
	rec := do(t, h.Routes(), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestHandler(&fakeService{})
	rec := do(t, h.Routes(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "metrics", rec.Body.String())
}

func TestRankings_Live(t *testing.T) {
	svc := &fakeService{rows: sampleRows()}
	h, m := newTestHandler(svc)

	rec := do(t, h.Routes(), http.MethodGet, "/api/v1/rankings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, today, svc.lastAsOf)

	resp := decode[TableResponse](t, rec)
	assert.Equal(t, "2025-06-30", resp.AsOf)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "NVDA", resp.Rows[0].Instrument)
	assert.Equal(t, 3500.5, *resp.Rows[0].LatestTurnover, "turnover is served in millions as computed")
	assert.Nil(t, resp.Rows[1].TurnoverRatio, "NaN is served as null")
	assert.Nil(t, resp.Rows[1].OverallRank)
	assert.Equal(t, []string{}, resp.Rows[1].Tags)

	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequests), "one route/code series recorded")
}

func TestRankings_AsOf(t *testing.T) {
	svc := &fakeService{rows: sampleRows()}
	h, _ := newTestHandler(svc)

	rec := do(t, h.Routes(), http.MethodGet, "/api/v1/rankings?as_of=2025-03-31", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), svc.lastAsOf)

	rec = do(t, h.Routes(), http.MethodGet, "/api/v1/rankings?as_of=31/03/2025", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DATE", decode[ErrorResponse](t, rec).Code)
}

func TestRankings_Errors(t *testing.T) {
	h, _ := newTestHandler(&fakeService{})
	rec := do(t, h.Routes(), http.MethodGet, "/api/v1/rankings", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NO_DATA", decode[ErrorResponse](t, rec).Code)

	h, _ = newTestHandler(&fakeService{err: errors.New("db down")})
	rec = do(t, h.Routes(), http.MethodGet, "/api/v1/rankings", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLeaderboard(t *testing.T) {
	h, _ := newTestHandler(&fakeService{rows: sampleRows()})

	rec := do(t, h.Routes(), http.MethodGet, "/api/v1/leaderboards/sector", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[LeaderboardResponse](t, rec)
	assert.Equal(t, "sector", resp.GroupBy)
	require.Len(t, resp.Rows, 2)
	assert.Equal(t, "Information Technology", resp.Rows[0].Group)

	rec = do(t, h.Routes(), http.MethodGet, "/api/v1/leaderboards/country", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_GROUP", decode[ErrorResponse](t, rec).Code)
}

func TestSnapshots(t *testing.T) {
	prev := today.AddDate(0, 0, -3)
	svc := &fakeService{
		snapshots: map[time.Time][]domain.RankedRow{today: sampleRows(), prev: sampleRows()[:1]},
		dates:     []time.Time{today, prev},
	}
	h, _ := newTestHandler(svc)
	routes := h.Routes()

	rec := do(t, routes, http.MethodGet, "/api/v1/snapshots", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"2025-06-30", "2025-06-27"}, decode[DatesResponse](t, rec).Dates)

	rec = do(t, routes, http.MethodGet, "/api/v1/snapshots/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[TableResponse](t, rec).Rows, 2)

	rec = do(t, routes, http.MethodGet, "/api/v1/snapshots/2025-06-27", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[TableResponse](t, rec)
	assert.Equal(t, "2025-06-27", resp.AsOf)
	assert.Len(t, resp.Rows, 1)

	rec = do(t, routes, http.MethodGet, "/api/v1/snapshots/2025-01-01", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, routes, http.MethodGet, "/api/v1/snapshots/yesterday", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSetTags(t *testing.T) {
	svc := &fakeService{tags: map[string]domain.Tags{"NVDA": {"AI"}}}
	h, _ := newTestHandler(svc)
	routes := h.Routes()

	rec := do(t, routes, http.MethodPut, "/api/v1/instruments/nvda/tags", `{"tags":["AI"," Gaming","AI"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[TagsResponse](t, rec)
	assert.Equal(t, "NVDA", resp.Instrument)
	assert.Equal(t, []string{"AI", "Gaming"}, resp.Tags)

	rec = do(t, routes, http.MethodPut, "/api/v1/instruments/NVDA/tags", `{"tags":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[TagsResponse](t, rec).Tags)

	rec = do(t, routes, http.MethodPut, "/api/v1/instruments/MISSING/tags", `{"tags":["AI"]}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, routes, http.MethodPut, "/api/v1/instruments/NVDA/tags", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, routes, http.MethodPut, "/api/v1/instruments/NVDA/tags", `{"tags":[""]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decode[ErrorResponse](t, rec).Code)
}
