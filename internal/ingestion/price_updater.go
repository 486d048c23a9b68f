package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/observability"
	"equity-monitor/internal/storage"
)

// Defaults for the fetch window.
const (
	DefaultHistoryDays = 180
	DefaultOverlapDays = 7
)

// Fetch run outcomes, used as metric labels.
const (
	FetchStatusOK           = "ok"
	FetchStatusUpToDate     = "up_to_date"
	FetchStatusEmpty        = "empty"
	FetchStatusSourceFailed = "source_failed"
	FetchStatusError        = "error"
)

// PriceUpdater incrementally extends the observation store from a PriceSource.
type PriceUpdater struct {
	source      PriceSource
	store       storage.ObservationStore
	historyDays int
	overlapDays int
	now         func() time.Time
	metrics     *observability.Metrics
	logger      *log.Logger
}

// PriceUpdaterOptions contains configuration for creating a PriceUpdater.
type PriceUpdaterOptions struct {
	Source      PriceSource
	Store       storage.ObservationStore
	HistoryDays int              // Default: 180 - initial window for an empty store
	OverlapDays int              // Default: 7 - days re-requested before the new window
	Clock       func() time.Time // Default: time.Now
	Metrics     *observability.Metrics
	Logger      *log.Logger
}

// NewPriceUpdater creates a new PriceUpdater.
func NewPriceUpdater(opts PriceUpdaterOptions) *PriceUpdater {
	historyDays := opts.HistoryDays
	if historyDays <= 0 {
		historyDays = DefaultHistoryDays
	}

	overlapDays := opts.OverlapDays
	if overlapDays <= 0 {
		overlapDays = DefaultOverlapDays
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &PriceUpdater{
		source:      opts.Source,
		store:       opts.Store,
		historyDays: historyDays,
		overlapDays: overlapDays,
		now:         now,
		metrics:     opts.Metrics,
		logger:      logger,
	}
}

// UpdateResult describes one incremental fetch.
type UpdateResult struct {
	Status       string
	Watermark    time.Time // store-wide max date before the update; zero if the store was empty
	Start        time.Time // first day not yet in the store
	FetchStart   time.Time // first day actually requested, including the overlap
	Merged       int       // observations written
	Instruments  int       // instruments that contributed observations
	Skipped      []string  // instruments dropped for invalid payloads
	Backfilled   []string  // instruments without history fetched over the full window
	SourceFailed bool
}

// UpToDate reports whether the store was already current and nothing was fetched.
func (r *UpdateResult) UpToDate() bool {
	return r.Status == FetchStatusUpToDate
}

// Update fetches observations newer than the store watermark for instruments
// and merges them into the store. Provider failures are logged and leave the
// store unchanged; only persistence failures are returned as errors.
func (u *PriceUpdater) Update(ctx context.Context, instruments []string) (*UpdateResult, error) {
	today := domain.Day(u.now())

	watermark, hasData, err := u.store.LatestDate(ctx)
	if err != nil {
		u.metrics.RecordFetch(FetchStatusError, 0)
		return nil, fmt.Errorf("read watermark: %w", err)
	}

	res := &UpdateResult{}
	if hasData {
		res.Watermark = domain.Day(watermark)
		res.Start = res.Watermark.AddDate(0, 0, 1)
	} else {
		res.Start = today.AddDate(0, 0, -u.historyDays)
	}

	if res.Start.After(today) {
		u.logger.Printf("Observations are up to date (watermark %s)", res.Watermark.Format(domain.DateLayout))
		res.Status = FetchStatusUpToDate
		u.metrics.RecordFetch(res.Status, 0)
		return res, nil
	}

	res.FetchStart = res.Start
	if hasData {
		res.FetchStart = res.Start.AddDate(0, 0, -u.overlapDays)
	}

	requested := dedupe(instruments)
	current, missing := requested, []string(nil)
	if hasData {
		current, missing, err = u.splitByHistory(ctx, requested)
		if err != nil {
			u.metrics.RecordFetch(FetchStatusError, 0)
			return nil, err
		}
	}

	batch := make(map[string][]domain.Observation)
	if len(current) > 0 {
		u.logger.Printf("Fetching %d instruments from %s", len(current), res.FetchStart.Format(domain.DateLayout))
		fetched, err := u.source.FetchHistory(ctx, current, res.FetchStart)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			u.logger.Printf("WARN: price fetch failed, store left unchanged: %v", err)
			res.SourceFailed = true
			res.Status = FetchStatusSourceFailed
			u.metrics.RecordFetch(res.Status, 0)
			return res, nil
		}
		for inst, rows := range fetched {
			batch[inst] = rows
		}
	}

	if len(missing) > 0 {
		from := today.AddDate(0, 0, -u.historyDays)
		u.logger.Printf("Backfilling %d instruments without history from %s", len(missing), from.Format(domain.DateLayout))
		fetched, err := u.source.FetchHistory(ctx, missing, from)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			u.logger.Printf("WARN: backfill failed: %v", err)
		default:
			for _, inst := range missing {
				if rows, ok := fetched[inst]; ok {
					batch[inst] = rows
					res.Backfilled = append(res.Backfilled, inst)
				}
			}
		}
	}

	merged := u.collect(requested, batch, res)
	if len(merged) == 0 {
		u.logger.Println("Provider returned no new observations")
		res.Status = FetchStatusEmpty
		u.metrics.RecordFetch(res.Status, 0)
		return res, nil
	}

	if err := u.store.Upsert(ctx, merged); err != nil {
		u.metrics.RecordFetch(FetchStatusError, 0)
		return res, fmt.Errorf("persist observations: %w", err)
	}

	res.Merged = len(merged)
	res.Status = FetchStatusOK
	u.metrics.RecordFetch(res.Status, res.Merged)
	u.logger.Printf("Merged %d observations for %d instruments (%d skipped, %d backfilled)",
		res.Merged, res.Instruments, len(res.Skipped), len(res.Backfilled))
	return res, nil
}

// splitByHistory separates instruments with stored observations from those without.
func (u *PriceUpdater) splitByHistory(ctx context.Context, instruments []string) (current, missing []string, err error) {
	stored, err := u.store.Instruments(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list stored instruments: %w", err)
	}
	have := make(map[string]struct{}, len(stored))
	for _, inst := range stored {
		have[inst] = struct{}{}
	}
	for _, inst := range instruments {
		if _, ok := have[inst]; ok {
			current = append(current, inst)
		} else {
			missing = append(missing, inst)
		}
	}
	return current, missing, nil
}

// collect validates each requested instrument's payload and flattens the
// valid ones. Invalid payloads are skipped as a whole.
func (u *PriceUpdater) collect(requested []string, batch map[string][]domain.Observation, res *UpdateResult) []domain.Observation {
	var merged []domain.Observation
	for _, inst := range requested {
		rows, ok := batch[inst]
		if !ok || len(rows) == 0 {
			continue
		}
		normalized, err := normalizeRows(inst, rows)
		if err != nil {
			u.logger.Printf("WARN: skipping %s: %v", inst, err)
			res.Skipped = append(res.Skipped, inst)
			continue
		}
		merged = append(merged, normalized...)
		res.Instruments++
	}
	u.metrics.RecordSkipped("fetch", len(res.Skipped))
	domain.SortObservations(merged)
	return merged
}

var errPayload = errors.New("invalid provider payload")

func normalizeRows(inst string, rows []domain.Observation) ([]domain.Observation, error) {
	out := make([]domain.Observation, 0, len(rows))
	for _, o := range rows {
		if o.Instrument == "" {
			o.Instrument = inst
		}
		switch {
		case o.Instrument != inst:
			return nil, fmt.Errorf("%w: row for %q", errPayload, o.Instrument)
		case o.Date.IsZero():
			return nil, fmt.Errorf("%w: missing date", errPayload)
		case o.Close.IsNegative():
			return nil, fmt.Errorf("%w: negative close on %s", errPayload, o.Date.Format(domain.DateLayout))
		case o.Volume < 0:
			return nil, fmt.Errorf("%w: negative volume on %s", errPayload, o.Date.Format(domain.DateLayout))
		}
		o.Date = domain.Day(o.Date)
		out = append(out, o)
	}
	return out, nil
}

func dedupe(instruments []string) []string {
	seen := make(map[string]struct{}, len(instruments))
	out := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		if inst == "" {
			continue
		}
		if _, ok := seen[inst]; ok {
			continue
		}
		seen[inst] = struct{}{}
		out = append(out, inst)
	}
	sort.Strings(out)
	return out
}
