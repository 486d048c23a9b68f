package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/storage"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func obs(date time.Time, inst, close string, vol int64) domain.Observation {
	return domain.Observation{Date: date, Instrument: inst, Close: decimal.RequireFromString(close), Volume: vol}
}

func TestObservationStore_UpsertAndAll(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	err := store.Upsert(ctx, []domain.Observation{
		obs(day(2025, 1, 3), "MSFT", "410.1", 100),
		obs(day(2025, 1, 2), "MSFT", "405.0", 200),
		obs(day(2025, 1, 2), "AAPL", "190.5", 300),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 observations, got %d", len(all))
	}
	if all[0].Instrument != "AAPL" || all[1].Date != day(2025, 1, 2) || all[2].Date != day(2025, 1, 3) {
		t.Errorf("Expected (instrument, date) order, got %+v", all)
	}
}

func TestObservationStore_ReplaceOnDuplicateKey(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	if err := store.Upsert(ctx, []domain.Observation{obs(day(2025, 1, 2), "X", "10", 1)}); err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	if err := store.Upsert(ctx, []domain.Observation{obs(day(2025, 1, 2), "X", "11", 1)}); err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}

	rows, _ := store.ByInstrument(ctx, "X")
	if len(rows) != 1 {
		t.Fatalf("Expected exactly 1 row for key, got %d", len(rows))
	}
	if !rows[0].Close.Equal(decimal.NewFromInt(11)) {
		t.Errorf("Expected second close 11, got %s", rows[0].Close)
	}
}

func TestObservationStore_IntraBatchLastWins(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	err := store.Upsert(ctx, []domain.Observation{
		obs(day(2025, 1, 2), "X", "10", 1),
		obs(day(2025, 1, 2), "X", "12", 1),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	rows, _ := store.ByInstrument(ctx, "X")
	if len(rows) != 1 || !rows[0].Close.Equal(decimal.NewFromInt(12)) {
		t.Errorf("Expected single row with close 12, got %+v", rows)
	}
}

func TestObservationStore_InvalidInput(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	err := store.Upsert(ctx, []domain.Observation{
		obs(day(2025, 1, 2), "X", "10", 1),
		obs(day(2025, 1, 2), "", "10", 1),
	})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}

	all, _ := store.All(ctx)
	if len(all) != 0 {
		t.Errorf("Expected nothing stored after rejected batch, got %d", len(all))
	}
}

func TestObservationStore_LatestDateAndInstruments(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	if _, ok, _ := store.LatestDate(ctx); ok {
		t.Fatal("Expected no watermark on empty store")
	}

	_ = store.Upsert(ctx, []domain.Observation{
		obs(day(2025, 1, 2), "B", "1", 1),
		obs(day(2025, 1, 6), "A", "1", 1),
		obs(day(2025, 1, 3), "B", "1", 1),
	})

	latest, ok, err := store.LatestDate(ctx)
	if err != nil || !ok {
		t.Fatalf("LatestDate failed: ok=%v err=%v", ok, err)
	}
	if latest != day(2025, 1, 6) {
		t.Errorf("Expected store-wide max 2025-01-06, got %s", latest)
	}

	insts, _ := store.Instruments(ctx)
	if len(insts) != 2 || insts[0] != "A" || insts[1] != "B" {
		t.Errorf("Expected [A B], got %v", insts)
	}
}

func TestObservationStore_NormalizesDate(t *testing.T) {
	store := NewObservationStore()
	ctx := context.Background()

	_ = store.Upsert(ctx, []domain.Observation{
		obs(time.Date(2025, 1, 2, 16, 0, 0, 0, time.UTC), "X", "10", 1),
		obs(time.Date(2025, 1, 2, 20, 0, 0, 0, time.UTC), "X", "11", 1),
	})

	rows, _ := store.ByInstrument(ctx, "X")
	if len(rows) != 1 {
		t.Errorf("Expected intraday timestamps to collapse to one day, got %d rows", len(rows))
	}
}
