package app

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-monitor/internal/config"
	"equity-monitor/internal/domain"
	"equity-monitor/internal/observability"
	"equity-monitor/internal/storage"
)

func TestOpenStores_Instrumented(t *testing.T) {
	ctx := context.Background()
	m := observability.NewMetrics("test", prometheus.NewRegistry())

	stores, cleanup, err := OpenStores(ctx, config.StorageConfig{Backend: config.BackendMemory}, m, nil)
	require.NoError(t, err)
	defer cleanup()

	day := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	require.NoError(t, stores.Snapshots.Save(ctx, day, []domain.RankedRow{{Instrument: "AAA"}}))
	rows, err := stores.Snapshots.Load(ctx, day)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = stores.Metadata.Get(ctx, "MISSING")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// save, load and get
	assert.Equal(t, 3, testutil.CollectAndCount(m.DBQueryDuration))
	assert.Equal(t, 0, testutil.CollectAndCount(m.DBQueryErrors), "not found is not a query error")
}
