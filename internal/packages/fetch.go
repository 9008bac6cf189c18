package packages

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/dashworker/internal/infrastructure/resilience"
)

// MaxArchiveSize bounds a downloaded archive.
const MaxArchiveSize = 128 << 20

// FetchConfig tunes archive downloads.
type FetchConfig struct {
	Timeout    time.Duration
	MaxRetries int
	// RPS caps downloads per second across hosts; 0 means unlimited.
	RPS float64
}

// DefaultFetchConfig returns production download settings.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 3,
	}
}

// Fetcher downloads package archives with retries, a per-host circuit
// breaker and an optional global rate limit.
type Fetcher struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	breakers *resilience.Group
}

// NewFetcher creates a fetcher.
func NewFetcher(cfg FetchConfig) *Fetcher {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.MaxRetries
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "dashworker/1.0").
		SetRetryCount(cfg.MaxRetries).
		SetRetryWaitTime(retryClient.RetryWaitMin).
		SetRetryMaxWaitTime(retryClient.RetryWaitMax).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err == nil && r.StatusCode() >= http.StatusInternalServerError
		}).
		SetTransport(retryClient.HTTPClient.Transport)

	limit := rate.Inf
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
	}

	return &Fetcher{
		resty:   restyClient,
		limiter: rate.NewLimiter(limit, 1),
		breakers: resilience.NewGroup(resilience.Settings{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Fetch returns the archive bytes behind u.
func (f *Fetcher) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	if u.Scheme == "file" {
		return readLocal(u.Path)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	return resilience.Call(f.breakers.Get(u.Host), func() ([]byte, error) {
		resp, err := f.resty.R().
			SetContext(ctx).
			Get(u.String())
		if err != nil {
			return nil, fmt.Errorf("download %s: %w", u, err)
		}
		if resp.StatusCode() != http.StatusOK {
			return nil, fmt.Errorf("download %s: %s", u, resp.Status())
		}
		body := resp.Body()
		if len(body) > MaxArchiveSize {
			return nil, fmt.Errorf("download %s: archive exceeds %d bytes", u, MaxArchiveSize)
		}
		return body, nil
	})
}

func readLocal(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > MaxArchiveSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, MaxArchiveSize)
	}
	return os.ReadFile(path)
}
