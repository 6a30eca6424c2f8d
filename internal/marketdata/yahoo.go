package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/swingdesk/swingrun/internal/indicators"
	"github.com/swingdesk/swingrun/internal/net/ratelimit"
)

// YahooConfig holds the knobs for the Yahoo Finance chart client.
type YahooConfig struct {
	BaseURL      string        `yaml:"base_url"`      // chart API root, overridable for tests
	Timeout      time.Duration `yaml:"timeout"`       // per-request HTTP timeout
	RPS          float64       `yaml:"rps"`           // sustained requests per second to the host
	Burst        int           `yaml:"burst"`         // rate limiter burst capacity
	MaxRetries   int           `yaml:"max_retries"`   // retries after the first attempt
	RetryBackoff time.Duration `yaml:"retry_backoff"` // initial retry delay, grows exponentially
	UserAgent    string        `yaml:"user_agent"`
}

// DefaultYahooConfig returns conservative settings for the public chart API.
func DefaultYahooConfig() *YahooConfig {
	return &YahooConfig{
		BaseURL:      "https://query1.finance.yahoo.com/v8/finance/chart",
		Timeout:      30 * time.Second,
		RPS:          4.0,
		Burst:        4,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
		UserAgent:    "Mozilla/5.0 (compatible; swingrun/1.0)",
	}
}

// YahooClient fetches daily bars from the Yahoo Finance chart API. Requests
// pass through a per-host rate limiter and a circuit breaker; transient
// failures are retried with exponential backoff.
type YahooClient struct {
	config   *YahooConfig
	client   *http.Client
	limiter  *ratelimit.Limiter
	breaker  *gobreaker.CircuitBreaker
	slowOnce sync.Once
}

// NewYahooClient creates a client. A nil config uses defaults.
func NewYahooClient(config *YahooConfig) *YahooClient {
	if config == nil {
		config = DefaultYahooConfig()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "yahoo",
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Quote provider circuit state changed")
		},
	})

	return &YahooClient{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: ratelimit.NewLimiter(config.RPS, config.Burst),
		breaker: breaker,
	}
}

// Daily fetches up to bars daily OHLCV records for symbol, oldest first.
func (c *YahooClient) Daily(ctx context.Context, symbol string, bars int) (indicators.PriceSeries, error) {
	if bars <= 0 {
		return indicators.PriceSeries{}, fmt.Errorf("bars must be positive, got %d", bars)
	}
	rng := rangeFor(bars)

	var fetched []indicators.Bar
	attempt := func() error {
		res, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetchChart(ctx, symbol, rng)
		})
		if err != nil {
			switch {
			case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
				return backoff.Permanent(fmt.Errorf("quote provider unavailable: %w", err))
			case errors.Is(err, ErrNoData),
				errors.Is(err, context.Canceled),
				errors.Is(err, context.DeadlineExceeded):
				return backoff.Permanent(err)
			}
			return err
		}
		fetched = res.([]indicators.Bar)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.config.RetryBackoff
	err := backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.config.MaxRetries)), ctx))
	if err != nil {
		return indicators.PriceSeries{}, err
	}

	if len(fetched) > bars {
		fetched = fetched[len(fetched)-bars:]
	}
	return indicators.PriceSeries{Symbol: symbol, Bars: fetched}, nil
}

func (c *YahooClient) fetchChart(ctx context.Context, symbol, rng string) ([]indicators.Bar, error) {
	if err := c.limiter.Wait(ctx, hostOf(c.config.BaseURL)); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/%s?interval=1d&range=%s", c.config.BaseURL, url.PathEscape(symbol), rng)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		c.slowDown(resp.Header.Get("Retry-After"))
		return nil, fmt.Errorf("quote host throttled request for %s", symbol)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", symbol, ErrNoData)
	default:
		return nil, fmt.Errorf("quote host returned status %d for %s", resp.StatusCode, symbol)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("failed to decode chart payload: %w", err)
	}

	chartBars, err := chart.dailyBars()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", symbol, err)
	}

	log.Debug().
		Str("symbol", symbol).
		Str("range", rng).
		Int("bars", len(chartBars)).
		Dur("duration", time.Since(start)).
		Msg("Fetched daily history")

	return chartBars, nil
}

// slowDown halves the request rate once per client lifetime. Repeated 429s
// within one run do not keep halving toward zero.
func (c *YahooClient) slowDown(retryAfter string) {
	c.slowOnce.Do(func() {
		half := c.config.RPS / 2
		if half < 0.5 {
			half = 0.5
		}
		c.limiter.SetRPS(half)
		log.Warn().
			Str("retry_after", retryAfter).
			Float64("rps", half).
			Msg("Quote host throttling, halving request rate")
	})
}

// rangeFor picks the smallest chart range that covers the requested number
// of trading days, with slack for holidays (roughly 250 trading days per
// calendar year on the NSE).
func rangeFor(bars int) string {
	switch {
	case bars <= 40:
		return "3mo"
	case bars <= 100:
		return "6mo"
	case bars <= 200:
		return "1y"
	case bars <= 450:
		return "2y"
	case bars <= 1100:
		return "5y"
	default:
		return "10y"
	}
}

func hostOf(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return baseURL
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []quoteBlock `json:"quote"`
	} `json:"indicators"`
}

type quoteBlock struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*float64 `json:"volume"`
}

// dailyBars flattens the chart envelope into bars sorted oldest first. Yahoo
// marks market holidays with null quote entries; those rows are dropped.
func (r *chartResponse) dailyBars() ([]indicators.Bar, error) {
	if r.Chart.Error != nil {
		return nil, fmt.Errorf("chart API error %s (%s): %w", r.Chart.Error.Code, r.Chart.Error.Description, ErrNoData)
	}
	if len(r.Chart.Result) == 0 || len(r.Chart.Result[0].Timestamp) == 0 {
		return nil, ErrNoData
	}
	result := r.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, ErrNoData
	}
	quote := result.Indicators.Quote[0]

	bars := make([]indicators.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) || i >= len(quote.Close) {
			break
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil || quote.Close[i] == nil {
			continue
		}
		var volume float64
		if i < len(quote.Volume) && quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}
		bars = append(bars, indicators.Bar{
			Date:   time.Unix(ts, 0).UTC(),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: volume,
		})
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}
