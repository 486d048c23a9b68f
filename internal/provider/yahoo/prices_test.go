package yahoo

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	finance "github.com/piquette/finance-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equity-monitor/internal/domain"
)

var start = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

// bar builds a daily bar at 14:30 UTC (US market open) offset days from start.
func bar(days int, adjClose, close float64, volume int) finance.ChartBar {
	ts := start.AddDate(0, 0, days).Add(14*time.Hour + 30*time.Minute)
	return finance.ChartBar{
		Close:     decimal.NewFromFloat(close),
		AdjClose:  decimal.NewFromFloat(adjClose),
		Volume:    volume,
		Timestamp: int(ts.Unix()),
	}
}

func newTestPriceSource(f BarFetcher) *PriceSource {
	return NewPriceSource(
		WithBarFetcher(f),
		WithChartRate(1000),
		WithChartWorkers(2),
		WithPriceLogger(log.New(io.Discard, "", 0)),
	)
}

func TestPriceSource_FetchHistory(t *testing.T) {
	bars := map[string][]finance.ChartBar{
		"AAPL": {bar(-1, 99, 99, 10), bar(0, 100, 101, 1000), bar(1, 0, 102, 2000), bar(2, 0, 0, 5)},
		"MSFT": {bar(0, 400, 401, 500)},
		"EMPTY": nil,
	}
	src := newTestPriceSource(func(_ context.Context, symbol string, from time.Time) ([]finance.ChartBar, error) {
		assert.True(t, from.Equal(start))
		return bars[symbol], nil
	})

	got, err := src.FetchHistory(context.Background(), []string{"AAPL", "MSFT", "EMPTY"}, start)
	require.NoError(t, err)
	require.Len(t, got, 2)

	aapl := got["AAPL"]
	require.Len(t, aapl, 2, "bars before start and without a price are dropped")
	assert.Equal(t, start, aapl[0].Date)
	assert.Equal(t, "AAPL", aapl[0].Instrument)
	assert.True(t, aapl[0].Close.Equal(decimal.NewFromInt(100)), "adjusted close preferred")
	assert.Equal(t, int64(1000), aapl[0].Volume)
	assert.True(t, aapl[1].Close.Equal(decimal.NewFromInt(102)), "falls back to close")
	assert.Equal(t, domain.Day(start.AddDate(0, 0, 1)), aapl[1].Date)
}

func TestPriceSource_PartialFailure(t *testing.T) {
	src := newTestPriceSource(func(_ context.Context, symbol string, _ time.Time) ([]finance.ChartBar, error) {
		if symbol == "BAD" {
			return nil, errors.New("no data found, symbol may be delisted")
		}
		return []finance.ChartBar{bar(0, 10, 10, 1)}, nil
	})

	got, err := src.FetchHistory(context.Background(), []string{"GOOD", "BAD"}, start)
	require.NoError(t, err)
	assert.Contains(t, got, "GOOD")
	assert.NotContains(t, got, "BAD")
}

func TestPriceSource_AllFailed(t *testing.T) {
	var calls atomic.Int32
	src := newTestPriceSource(func(context.Context, string, time.Time) ([]finance.ChartBar, error) {
		calls.Add(1)
		return nil, errors.New("connection refused")
	})

	got, err := src.FetchHistory(context.Background(), []string{"A", "B", "C"}, start)
	assert.ErrorIs(t, err, ErrAllFailed)
	assert.Nil(t, got)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPriceSource_Cancelled(t *testing.T) {
	src := newTestPriceSource(func(context.Context, string, time.Time) ([]finance.ChartBar, error) {
		return nil, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := src.FetchHistory(ctx, []string{"A"}, start)
	assert.Error(t, err)
}

func TestPriceSource_TransportFailureFailsWholeFetch(t *testing.T) {
	timeout := &net.OpError{Op: "dial", Net: "tcp", Err: &timeoutError{}}
	src := newTestPriceSource(func(_ context.Context, symbol string, _ time.Time) ([]finance.ChartBar, error) {
		if symbol == "S0" {
			return []finance.ChartBar{bar(0, 10, 10, 1)}, nil
		}
		return nil, timeout
	})

	symbols := []string{"S0", "S1", "S2", "S3", "S4", "S5", "S6", "S7", "S8", "S9"}
	got, err := src.FetchHistory(context.Background(), symbols, start)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.NotErrorIs(t, err, ErrAllFailed)
	assert.Nil(t, got, "a partial result is not returned")
}

func TestPriceSource_UpstreamStatus(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		unavailable bool
	}{
		{name: "throttled", status: http.StatusTooManyRequests, unavailable: true},
		{name: "server error", status: http.StatusServiceUnavailable, unavailable: true},
		{name: "unknown symbol", status: http.StatusNotFound, unavailable: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found"}}}`))
			}))
			defer srv.Close()

			src := NewPriceSource(
				WithChartEndpoint(srv.URL, time.Second),
				WithChartRate(1000),
				WithPriceLogger(log.New(io.Discard, "", 0)),
			)

			_, err := src.FetchHistory(context.Background(), []string{"AAA", "BBB"}, start)
			require.Error(t, err)
			if !tt.unavailable {
				assert.ErrorIs(t, err, ErrAllFailed)
				assert.NotErrorIs(t, err, ErrSourceUnavailable)
				return
			}
			assert.ErrorIs(t, err, ErrSourceUnavailable)
			var status *StatusError
			require.ErrorAs(t, err, &status)
			assert.Equal(t, tt.status, status.Code)
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }
func (timeoutError) Temporary() bool { return true }
