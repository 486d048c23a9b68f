package postgres

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-monitor/internal/domain"
)

func TestSnapshotStore_SaveAndLoad(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()
	d := day(2025, 6, 30)

	rows := []domain.RankedRow{
		{
			Instrument:        "B",
			Tags:              domain.Tags{"Energy"},
			CurrentPrice:      50,
			LatestTurnover:    12.5,
			AvgTurnover20D:    10,
			TurnoverRatio:     1.25,
			YTDReturnPct:      ptr(4.5),
			FiveDayReturnPct:  -1,
			RankYTD:           ptr(2),
			Rank5D:            2,
			RankTurnoverRatio: 1,
			RankVolume:        2,
			OverallRank:       ptr(2),
		},
		{Instrument: "C", CurrentPrice: 5, Rank5D: 3, RankTurnoverRatio: 3, RankVolume: 3},
		{
			Instrument:        "A",
			Tags:              domain.Tags{"AI", "Cloud Computing"},
			CurrentPrice:      100,
			YTDReturnPct:      ptr(9.0),
			RankYTD:           ptr(1),
			Rank5D:            1,
			RankTurnoverRatio: 2,
			RankVolume:        1,
			OverallRank:       ptr(1),
		},
	}
	require.NoError(t, store.Save(ctx, d, rows))

	loaded, err := store.Load(ctx, d)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, "A", loaded[0].Instrument)
	assert.Equal(t, domain.Tags{"AI", "Cloud Computing"}, loaded[0].Tags)
	assert.Equal(t, 1, *loaded[0].OverallRank)

	assert.Equal(t, "B", loaded[1].Instrument)
	assert.InDelta(t, 1.25, loaded[1].TurnoverRatio, 1e-9)
	assert.InDelta(t, 4.5, *loaded[1].YTDReturnPct, 1e-9)

	assert.Equal(t, "C", loaded[2].Instrument, "unranked rows sort last")
	assert.Nil(t, loaded[2].YTDReturnPct)
	assert.Nil(t, loaded[2].RankYTD)
	assert.Nil(t, loaded[2].OverallRank)
}

func TestSnapshotStore_NaNStoredAsNull(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()
	d := day(2025, 6, 30)

	require.NoError(t, store.Save(ctx, d, []domain.RankedRow{{Instrument: "A", TurnoverRatio: math.NaN()}}))

	var isNull bool
	err := pool.QueryRow(ctx, `SELECT turnover_ratio IS NULL FROM snapshots WHERE instrument = 'A'`).Scan(&isNull)
	require.NoError(t, err)
	assert.True(t, isNull)

	loaded, err := store.Load(ctx, d)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.True(t, math.IsNaN(loaded[0].TurnoverRatio))
}

func TestSnapshotStore_UpsertReplaces(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()
	d := day(2025, 6, 30)

	require.NoError(t, store.Save(ctx, d, []domain.RankedRow{{Instrument: "A", CurrentPrice: 1}}))
	require.NoError(t, store.Save(ctx, d, []domain.RankedRow{{Instrument: "A", CurrentPrice: 2}}))

	loaded, err := store.Load(ctx, d)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 2.0, loaded[0].CurrentPrice)
}

func TestSnapshotStore_Dates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	ctx := context.Background()

	_, ok, err := store.LatestDate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, day(2025, 6, 27), []domain.RankedRow{{Instrument: "A"}}))
	require.NoError(t, store.Save(ctx, day(2025, 6, 30), []domain.RankedRow{{Instrument: "A"}, {Instrument: "B"}}))
	require.NoError(t, store.Save(ctx, day(2025, 6, 28), nil))

	dates, err := store.ListDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2025, 6, 30), day(2025, 6, 27)}, dates)

	latest, ok, err := store.LatestDate(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, day(2025, 6, 30), latest)

	empty, err := store.Load(ctx, day(2025, 1, 1))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSnapshotStore_CreatesSchemaOnFirstUse(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	_, err := pool.Exec(ctx, `DROP TABLE snapshots`)
	require.NoError(t, err)

	store := NewSnapshotStore(pool)
	require.NoError(t, store.Save(ctx, day(2025, 6, 30), []domain.RankedRow{{Instrument: "A"}}))

	dates, err := store.ListDates(ctx)
	require.NoError(t, err)
	assert.Len(t, dates, 1)
}
