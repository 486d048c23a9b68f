package boltdb

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func obs(inst string, d int, close string, volume int64) domain.Observation {
	return domain.Observation{
		Date:       day(2025, 6, d),
		Instrument: inst,
		Close:      decimal.RequireFromString(close),
		Volume:     volume,
	}
}

func ptr[T any](v T) *T { return &v }

func TestObservationStore_UpsertAndRead(t *testing.T) {
	store := NewObservationStore(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []domain.Observation{
		obs("MSFT", 3, "410.25", 2000),
		obs("AAPL", 10, "191", 1100),
		obs("AAPL", 3, "190.5", 1000),
		obs("AA", 4, "30", 10),
	}))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "AA", all[0].Instrument)
	assert.Equal(t, "AAPL", all[1].Instrument)
	assert.Equal(t, day(2025, 6, 3), all[1].Date)
	assert.Equal(t, day(2025, 6, 10), all[2].Date)
	assert.Equal(t, "MSFT", all[3].Instrument)

	aapl, err := store.ByInstrument(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, aapl, 2, "prefix scan must not pick up other instruments")
	assert.True(t, decimal.RequireFromString("190.5").Equal(aapl[0].Close))

	aa, err := store.ByInstrument(ctx, "AA")
	require.NoError(t, err)
	assert.Len(t, aa, 1)

	insts, err := store.Instruments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AA", "AAPL", "MSFT"}, insts)
}

func TestObservationStore_LastWriteWinsAndWatermark(t *testing.T) {
	store := NewObservationStore(openTestDB(t))
	ctx := context.Background()

	_, ok, err := store.LatestDate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Upsert(ctx, []domain.Observation{obs("AAPL", 9, "100", 10)}))
	require.NoError(t, store.Upsert(ctx, []domain.Observation{obs("AAPL", 9, "101", 12), obs("AAPL", 2, "90", 1)}))

	rows, err := store.ByInstrument(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, decimal.NewFromInt(101).Equal(rows[1].Close))
	assert.Equal(t, int64(12), rows[1].Volume)

	latest, ok, err := store.LatestDate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day(2025, 6, 9), latest, "older writes never move the watermark back")
}

func TestObservationStore_InvalidInput(t *testing.T) {
	store := NewObservationStore(openTestDB(t))
	ctx := context.Background()

	assert.ErrorIs(t, store.Upsert(ctx, []domain.Observation{obs("", 2, "1", 1)}), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Upsert(ctx, []domain.Observation{obs("AAPL", 2, "-1", 1)}), storage.ErrInvalidInput)
	assert.ErrorIs(t, store.Upsert(ctx, []domain.Observation{obs("AAPL", 2, "1", -1)}), storage.ErrInvalidInput)
}

func TestObservationStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.db")
	ctx := context.Background()

	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, NewObservationStore(db).Upsert(ctx, []domain.Observation{obs("AAPL", 2, "1.5", 3)}))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()

	all, err := NewObservationStore(db).All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(3), all[0].Volume)
}

func TestMetadataStore(t *testing.T) {
	store := NewMetadataStore(openTestDB(t))
	ctx := context.Background()
	refreshed := time.Date(2025, 6, 30, 15, 0, 0, 0, time.UTC)

	require.NoError(t, store.ReplaceAll(ctx, []domain.InstrumentMetadata{
		{Instrument: "XOM", Sector: "Energy"},
		{Instrument: "NVDA", DisplayName: "Nvidia", Tags: domain.Tags{"AI", "Semiconductor"}, LastRefreshed: refreshed},
	}))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "NVDA", all[0].Instrument)
	assert.Equal(t, domain.Tags{"AI", "Semiconductor"}, all[0].Tags)
	assert.True(t, refreshed.Equal(all[0].LastRefreshed))

	require.NoError(t, store.SetTags(ctx, "XOM", domain.Tags{"Oil & Gas"}))
	m, err := store.Get(ctx, "XOM")
	require.NoError(t, err)
	assert.Equal(t, domain.Tags{"Oil & Gas"}, m.Tags)
	assert.Equal(t, "Energy", m.Sector)

	_, err = store.Get(ctx, "MISSING")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.SetTags(ctx, "MISSING", nil), storage.ErrNotFound)

	require.NoError(t, store.ReplaceAll(ctx, []domain.InstrumentMetadata{{Instrument: "AAPL"}}))
	all, err = store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "AAPL", all[0].Instrument)
}

func TestSnapshotStore(t *testing.T) {
	store := NewSnapshotStore(openTestDB(t))
	ctx := context.Background()

	_, ok, err := store.LatestDate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	rows := []domain.RankedRow{
		{Instrument: "C", TurnoverRatio: math.NaN()},
		{Instrument: "B", YTDReturnPct: ptr(1.5), RankYTD: ptr(2), OverallRank: ptr(2)},
		{Instrument: "A", YTDReturnPct: ptr(9.0), RankYTD: ptr(1), OverallRank: ptr(1), Tags: domain.Tags{"AI"}},
	}
	require.NoError(t, store.Save(ctx, day(2025, 6, 30), rows))
	require.NoError(t, store.Save(ctx, day(2025, 6, 27), rows[:1]))
	require.NoError(t, store.Save(ctx, day(2025, 6, 28), nil))

	loaded, err := store.Load(ctx, day(2025, 6, 30))
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	assert.Equal(t, "A", loaded[0].Instrument)
	assert.Equal(t, domain.Tags{"AI"}, loaded[0].Tags)
	assert.Equal(t, "B", loaded[1].Instrument)
	assert.Equal(t, "C", loaded[2].Instrument)
	assert.True(t, math.IsNaN(loaded[2].TurnoverRatio))
	assert.Nil(t, loaded[2].OverallRank)

	dates, err := store.ListDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2025, 6, 30), day(2025, 6, 27)}, dates)

	latest, ok, err := store.LatestDate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day(2025, 6, 30), latest)

	empty, err := store.Load(ctx, day(2024, 1, 1))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
