// Package yahoo adapts Yahoo Finance to the ingestion sources: daily price
// history through finance-go and company profiles through the quoteSummary
// endpoint.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/observability"
)

// Default configuration values.
const (
	DefaultChartWorkers = 5
	DefaultChartRPS     = 10
	DefaultChartTimeout = 30 * time.Second
)

var (
	// ErrAllFailed is returned when no requested symbol could be fetched.
	ErrAllFailed = errors.New("yahoo: every symbol failed")
	// ErrSourceUnavailable is returned when a symbol fails at the transport
	// level. The fetch is abandoned as a whole rather than merged partially.
	ErrSourceUnavailable = errors.New("yahoo: source unavailable")
)

// StatusError is an HTTP response that signals the service itself is failing
// rather than the symbol being unknown.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("yahoo: upstream status %d", e.Code)
}

// statusTransport turns throttling and server errors into StatusError before
// finance-go collapses them into an untyped remote error.
type statusTransport struct {
	base http.RoundTripper
}

func (t statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return resp, nil
}

// isTransportError reports whether err means the provider could not be
// reached or refused service, as opposed to having no data for a symbol.
func isTransportError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var status *StatusError
	if errors.As(err, &status) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// BarFetcher loads daily bars for one symbol from start through today.
type BarFetcher func(ctx context.Context, symbol string, start time.Time) ([]finance.ChartBar, error)

// PriceSource implements ingestion.PriceSource on top of the chart API.
// The chart endpoint is per symbol, so a bulk request fans out over a
// bounded worker pool.
type PriceSource struct {
	fetch   BarFetcher
	client  chart.Client
	limiter *rate.Limiter
	workers int
	metrics *observability.Metrics
	logger  *log.Logger
}

// PriceOption configures PriceSource.
type PriceOption func(*PriceSource)

// WithBarFetcher replaces the chart API call.
func WithBarFetcher(f BarFetcher) PriceOption {
	return func(s *PriceSource) {
		s.fetch = f
	}
}

// WithChartWorkers sets the number of concurrent symbol requests.
func WithChartWorkers(n int) PriceOption {
	return func(s *PriceSource) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithChartRate limits symbol requests per second.
func WithChartRate(rps float64) PriceOption {
	return func(s *PriceSource) {
		if rps > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithChartEndpoint points the chart API at baseURL with the given request
// timeout.
func WithChartEndpoint(baseURL string, timeout time.Duration) PriceOption {
	return func(s *PriceSource) {
		if baseURL != "" {
			s.client = newChartClient(baseURL, timeout)
		}
	}
}

// WithPriceMetrics records provider latency.
func WithPriceMetrics(m *observability.Metrics) PriceOption {
	return func(s *PriceSource) {
		s.metrics = m
	}
}

// WithPriceLogger sets the logger for per-symbol failures.
func WithPriceLogger(l *log.Logger) PriceOption {
	return func(s *PriceSource) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewPriceSource creates a new PriceSource.
func NewPriceSource(opts ...PriceOption) *PriceSource {
	s := &PriceSource{
		client:  newChartClient(finance.YFinURL, DefaultChartTimeout),
		limiter: rate.NewLimiter(rate.Limit(DefaultChartRPS), 1),
		workers: DefaultChartWorkers,
		logger:  log.Default(),
	}
	s.fetch = s.chartBars
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newChartClient(baseURL string, timeout time.Duration) chart.Client {
	if timeout <= 0 {
		timeout = DefaultChartTimeout
	}
	return chart.Client{B: &finance.BackendConfiguration{
		Type: finance.YFinBackend,
		URL:  baseURL,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: statusTransport{base: http.DefaultTransport},
		},
	}}
}

// FetchHistory returns observations for each instrument from start.
// Symbols the provider has no data for are left out of the map; if every
// symbol fails the call returns ErrAllFailed. A transport failure on any
// symbol (network error, timeout, HTTP 429 or 5xx) cancels the remaining
// requests and fails the whole call with ErrSourceUnavailable.
func (s *PriceSource) FetchHistory(ctx context.Context, instruments []string, start time.Time) (map[string][]domain.Observation, error) {
	var (
		mu       sync.Mutex
		result   = make(map[string][]domain.Observation, len(instruments))
		failures []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, symbol := range instruments {
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, symbol, err)
			}

			began := time.Now()
			bars, err := s.fetch(gctx, symbol, start)
			s.metrics.RecordProviderCall("yahoo", "chart", time.Since(began))

			if err != nil && isTransportError(err) {
				return fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, symbol, err)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, fmt.Errorf("%s: %w", symbol, err))
				return nil
			}
			if obs := toObservations(symbol, bars, start); len(obs) > 0 {
				result[symbol] = obs
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(failures) > 0 {
		sort.Slice(failures, func(i, j int) bool { return failures[i].Error() < failures[j].Error() })
		if len(failures) == len(instruments) {
			return nil, fmt.Errorf("%w: %d symbols, first: %v", ErrAllFailed, len(failures), failures[0])
		}
		for _, err := range failures {
			s.logger.Printf("WARN: chart %v", err)
		}
	}
	return result, nil
}

// toObservations converts bars to observations, preferring the adjusted
// close. Bars before start and bars without a price are dropped.
func toObservations(symbol string, bars []finance.ChartBar, start time.Time) []domain.Observation {
	from := domain.Day(start)
	out := make([]domain.Observation, 0, len(bars))
	for _, b := range bars {
		if b.Timestamp == 0 {
			continue
		}
		date := domain.Day(time.Unix(int64(b.Timestamp), 0).UTC())
		if date.Before(from) {
			continue
		}
		price := b.AdjClose
		if price.IsZero() {
			price = b.Close
		}
		if price.IsZero() {
			continue
		}
		out = append(out, domain.Observation{
			Date:       date,
			Instrument: symbol,
			Close:      price,
			Volume:     int64(b.Volume),
		})
	}
	return out
}

// chartBars is the default BarFetcher.
func (s *PriceSource) chartBars(ctx context.Context, symbol string, start time.Time) ([]finance.ChartBar, error) {
	end := time.Now()
	iter := s.client.Get(&chart.Params{
		Params:   finance.Params{Context: &ctx},
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var bars []finance.ChartBar
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bars = append(bars, *iter.Bar())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return bars, nil
}
