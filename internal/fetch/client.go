// Package fetch issues rate-limited, retrying requests against the upstream
// listing API: token exchange, realm index, auction snapshots and static
// item metadata.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	appconfig "auctionflow/config"
	"auctionflow/internal/ratelimit"
	"auctionflow/logger"
)

// Client issues one logical request at a time against the upstream API.
// Every attempt passes through the shared rate limiter first; HTTP 429 is
// the only retried status.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	source     appconfig.SourceConfig
	token      string
	log        *logger.Log
}

// NewClient builds a fetch client around the shared limiter. The bearer
// token is supplied later via SetToken once the credential exchange ran.
func NewClient(source appconfig.SourceConfig, limiter *ratelimit.Limiter) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: source.Timeout()},
		limiter:    limiter,
		source:     source,
		log:        logger.GetLogger(),
	}
}

// SetToken installs the bearer credential used on subsequent requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Get fetches url and returns the raw body. Throttle responses are retried
// with a randomized backoff until the attempt budget is spent; any other
// non-2xx status fails immediately with an UpstreamError.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	backoffMin, backoffMax := c.source.Retry.BackoffRange()
	attempts := c.source.Retry.MaxAttempts

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("acquire rate limit slot: %w", err)
		}

		body, status, err := c.do(ctx, url)
		if err != nil {
			return nil, err
		}
		if status >= 200 && status < 300 {
			return body, nil
		}
		if status != http.StatusTooManyRequests {
			return nil, &UpstreamError{URL: url, Status: status}
		}
		if attempt == attempts {
			break
		}

		// Uniform backoff over a multi-second range so competing
		// workers desynchronize instead of stampeding together.
		backoff := backoffMin + time.Duration(rand.Int63n(int64(backoffMax-backoffMin)))
		c.log.WithComponent("fetch").WithFields(logger.Fields{
			"url":     url,
			"attempt": attempt,
			"backoff": backoff.String(),
		}).Warn("throttled by upstream, backing off")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, &RateLimitedError{URL: url, Attempts: attempts}
}

// GetJSON fetches url and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v interface{}) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}
