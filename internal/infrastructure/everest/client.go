// Package everest implements the upstream client for the Everest POS sales
// search API.
package everest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/possync/backend/internal/domain/sync"
)

const (
	// searchPath is the paginated sales search endpoint
	searchPath = "/api/v1/sales/search"
	// maxResponseSize bounds response bodies to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024
	// defaultMaxAttempts bounds retries per offset
	defaultMaxAttempts = 3
	// defaultRetryInterval seeds the exponential backoff
	defaultRetryInterval = 1 * time.Second
	// defaultDateField is the upstream date-filter column selector
	defaultDateField = "shiftDate"
)

// Config holds Everest client configuration.
type Config struct {
	// BaseURL is the API root, e.g. https://api.everestpos.com
	BaseURL string
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration
	// MaxAttempts is the retry budget per offset (including the first try)
	MaxAttempts int
	// RetryInterval is the initial backoff interval
	RetryInterval time.Duration
	// DateField selects which upstream date column the window filters on
	DateField string
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("everest: base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("everest: invalid base URL: %w", err)
	}
	return nil
}

// Client fetches sales pages from the Everest search endpoint with bounded
// retry and backoff. It implements sync.PageFetcher.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an Everest client with the given configuration.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.DateField == "" {
		cfg.DateField = defaultDateField
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// FetchPage issues one paginated search request, retrying transient failures
// up to the configured attempt budget. On 429 it honors a Retry-After hint,
// waiting whichever is longer: the hint or the exponential backoff.
func (c *Client) FetchPage(ctx context.Context, req sync.PageRequest) (*sync.Page, error) {
	pageURL := c.buildURL(req)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.RetryInterval
	bo.MaxInterval = 30 * time.Second
	bo.Reset()

	var lastStatus int

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		status, body, retryAfter, err := c.doRequest(ctx, pageURL, req.Token)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("everest request failed",
				zap.String("url", pageURL),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if attempt == c.cfg.MaxAttempts {
				return nil, fmt.Errorf("%w: %v", sync.ErrUpstreamDown, err)
			}
			if err := sleepCtx(ctx, bo.NextBackOff()); err != nil {
				return nil, err
			}
			continue
		}

		lastStatus = status

		switch {
		case status >= 200 && status < 300:
			items, err := decodeItems(body)
			if err != nil {
				return &sync.Page{RawBody: body, URL: pageURL},
					fmt.Errorf("%w: %v", sync.ErrMalformedResponse, err)
			}
			return &sync.Page{Items: items, RawBody: body, URL: pageURL}, nil

		case status == http.StatusTooManyRequests:
			if attempt == c.cfg.MaxAttempts {
				return &sync.Page{RawBody: body, URL: pageURL},
					fmt.Errorf("%w: rate limited (HTTP 429) after %d attempts at offset %d",
						sync.ErrPageFailed, attempt, req.Offset)
			}
			wait := bo.NextBackOff()
			if retryAfter > wait {
				wait = retryAfter
			}
			c.logger.Warn("everest rate limited, backing off",
				zap.String("url", pageURL),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
			)
			if err := sleepCtx(ctx, wait); err != nil {
				return nil, err
			}

		default:
			if attempt == c.cfg.MaxAttempts {
				if status >= 500 {
					// Fail closed: partial data under server instability is
					// worse than an incomplete run retried wholesale.
					return &sync.Page{RawBody: body, URL: pageURL},
						fmt.Errorf("%w: HTTP %d after %d attempts", sync.ErrUpstreamDown, status, attempt)
				}
				return &sync.Page{RawBody: body, URL: pageURL},
					fmt.Errorf("%w: HTTP %d after %d attempts at offset %d",
						sync.ErrPageFailed, status, attempt, req.Offset)
			}
			c.logger.Warn("everest request returned error status",
				zap.String("url", pageURL),
				zap.Int("status", status),
				zap.Int("attempt", attempt),
			)
			if err := sleepCtx(ctx, bo.NextBackOff()); err != nil {
				return nil, err
			}
		}
	}

	// Unreachable: every branch above returns on the final attempt.
	return nil, fmt.Errorf("%w: HTTP %d", sync.ErrUpstreamDown, lastStatus)
}

// doRequest issues one HTTP GET and returns status, body and any Retry-After
// hint (seconds) carried by the response.
func (c *Client) doRequest(ctx context.Context, pageURL, token string) (int, []byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return 0, nil, 0, fmt.Errorf("everest: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()

	retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, 0, fmt.Errorf("everest: failed to read response: %w", err)
	}
	return resp.StatusCode, body, retryAfter, nil
}

// buildURL renders the search URL for one offset. Window bounds are encoded
// in the business timezone, which is what the upstream expects.
func (c *Client) buildURL(req sync.PageRequest) string {
	loc := sync.BusinessLocation()
	q := url.Values{}
	q.Set("dateField", c.cfg.DateField)
	q.Set("startDate", req.Window.Start.In(loc).Format(time.RFC3339))
	q.Set("endDate", req.Window.End.In(loc).Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(req.Limit))
	q.Set("offset", strconv.Itoa(req.Offset))
	q.Set("storeId", req.StoreID)
	return c.cfg.BaseURL + searchPath + "?" + q.Encode()
}

// decodeItems accepts the payload shapes Everest has shipped over time: a
// bare array, or an object exposing the array under "data" or "items".
// Any other valid JSON is treated as an empty page.
func decodeItems(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &wrapper); err != nil {
		return nil, err
	}
	for _, field := range []string{"data", "items"} {
		raw, ok := wrapper[field]
		if !ok {
			continue
		}
		inner := bytes.TrimSpace(raw)
		if len(inner) == 0 || bytes.Equal(inner, []byte("null")) {
			return nil, nil
		}
		if inner[0] != '[' {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(inner, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	return nil, nil
}

// parseRetryAfter parses a Retry-After header expressed in seconds. The
// HTTP-date form is not used by Everest and is ignored.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ensure Client implements sync.PageFetcher
var _ sync.PageFetcher = (*Client)(nil)
