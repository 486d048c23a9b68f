package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"equity-monitor/internal/domain"
	"equity-monitor/internal/observability"
)

// Default configuration values for ProfileClient.
const (
	DefaultBaseURL     = "https://query2.finance.yahoo.com"
	DefaultTimeout     = 15 * time.Second
	DefaultMaxRetries  = 2
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 8 * time.Second
	DefaultBackoffMult = 2.0
	DefaultProfileRPS  = 4
	DefaultUserAgent   = "Mozilla/5.0 (compatible; equity-monitor/1.0)"
)

// ErrNoProfile is returned when the provider has no profile for a symbol.
var ErrNoProfile = errors.New("yahoo: no profile")

// ProfileClient fetches company profiles from the quoteSummary endpoint.
// Implements ingestion.ProfileSource.
type ProfileClient struct {
	baseURL     string
	userAgent   string
	client      *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
	metrics     *observability.Metrics
}

// ProfileOption configures ProfileClient.
type ProfileOption func(*ProfileClient)

// WithBaseURL sets the API base URL.
func WithBaseURL(u string) ProfileOption {
	return func(c *ProfileClient) {
		c.baseURL = u
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ProfileOption {
	return func(c *ProfileClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ProfileOption {
	return func(c *ProfileClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ProfileOption {
	return func(c *ProfileClient) {
		c.retryDelay = d
	}
}

// WithRate limits requests per second. Zero or negative disables limiting.
func WithRate(rps float64) ProfileOption {
	return func(c *ProfileClient) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ProfileOption {
	return func(c *ProfileClient) {
		c.client = client
	}
}

// WithProfileMetrics records provider latency.
func WithProfileMetrics(m *observability.Metrics) ProfileOption {
	return func(c *ProfileClient) {
		c.metrics = m
	}
}

// NewProfileClient creates a new ProfileClient.
func NewProfileClient(opts ...ProfileOption) *ProfileClient {
	c := &ProfileClient{
		baseURL:     DefaultBaseURL,
		userAgent:   DefaultUserAgent,
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(rate.Limit(DefaultProfileRPS), 1),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile *struct {
				Industry            string `json:"industry"`
				LongBusinessSummary string `json:"longBusinessSummary"`
			} `json:"assetProfile"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Profile returns the industry and business summary for symbol.
func (c *ProfileClient) Profile(ctx context.Context, symbol string) (*domain.Profile, error) {
	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=assetProfile",
		c.baseURL, url.PathEscape(symbol))

	began := time.Now()
	body, err := c.get(ctx, endpoint)
	c.metrics.RecordProviderCall("yahoo", "quoteSummary", time.Since(began))
	if err != nil {
		return nil, err
	}

	var resp quoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	if e := resp.QuoteSummary.Error; e != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrNoProfile, e.Code, e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 || resp.QuoteSummary.Result[0].AssetProfile == nil {
		return nil, ErrNoProfile
	}

	ap := resp.QuoteSummary.Result[0].AssetProfile
	return &domain.Profile{
		Industry:    ap.Industry,
		Description: ap.LongBusinessSummary,
	}, nil
}

// get performs a GET with retries and exponential backoff.
// 404 is not retried.
func (c *ProfileClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, ErrNoProfile
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		case resp.StatusCode != http.StatusOK:
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body, 200))
			continue
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
