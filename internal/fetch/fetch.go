// Package fetch wraps remote JSON calls with token-bucket pacing and a
// bounded retry policy for rate-limit responses.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// TransportError is a non-retryable network or API failure.
type TransportError struct {
	URL    string
	Status int // 0 when the request never produced a response
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("request to %s: unexpected status %d", e.URL, e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RateLimitError reports that every retry attempt was answered with a
// rate-limit response.
type RateLimitError struct {
	URL      string
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited on %s after %d attempts", e.URL, e.Attempts)
}

// ParseError is a malformed response body.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing response from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// DelayStrategy yields the wait before retry attempt n (0-based).
type DelayStrategy interface {
	Next(attempt int) time.Duration
}

// FixedDelay waits the same duration between every attempt.
type FixedDelay time.Duration

func (d FixedDelay) Next(int) time.Duration { return time.Duration(d) }

// ExponentialDelay waits Base*2^attempt, capped at Max.
type ExponentialDelay struct {
	Base time.Duration
	Max  time.Duration
}

func (d ExponentialDelay) Next(attempt int) time.Duration {
	if attempt < 0 {
		return d.Base
	}
	if attempt > 30 {
		return d.Max
	}
	backoff := d.Base * time.Duration(1<<attempt)
	if backoff > d.Max {
		return d.Max
	}
	return backoff
}

// RetryPolicy bounds retries on rate-limit responses.
type RetryPolicy struct {
	Attempts int // total tries, including the first
	Delay    DelayStrategy
}

// Client paces and retries JSON GET requests against one API host.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     RetryPolicy
	logger     zerolog.Logger

	// sleep is swapped out in tests to avoid real waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a fetcher pacing requests at rps with the given retry
// policy for 429 responses.
func NewClient(rps float64, policy RetryPolicy, logger zerolog.Logger) *Client {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Delay == nil {
		policy.Delay = FixedDelay(time.Second)
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		policy:  policy,
		logger:  logger,
		sleep:   sleepContext,
	}
}

// GetJSON fetches url and decodes the body into v. Rate-limit responses are
// retried per the policy; any other failure returns immediately.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	for attempt := 0; attempt < c.policy.Attempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{URL: url, Err: err}
		}

		status, err := c.attempt(ctx, url, v)
		if err == nil {
			c.logger.Debug().Str("url", url).Int("attempt", attempt+1).Msg("fetch succeeded")
			return nil
		}

		if status != http.StatusTooManyRequests {
			c.logger.Warn().Str("url", url).Int("attempt", attempt+1).Err(err).Msg("fetch failed")
			return err
		}

		c.logger.Warn().Str("url", url).Int("attempt", attempt+1).Msg("rate limited")

		// No sleep after the final attempt.
		if attempt < c.policy.Attempts-1 {
			if err := c.sleep(ctx, c.policy.Delay.Next(attempt)); err != nil {
				return &TransportError{URL: url, Err: err}
			}
		}
	}

	rlErr := &RateLimitError{URL: url, Attempts: c.policy.Attempts}
	c.logger.Error().Str("url", url).Int("attempts", c.policy.Attempts).Msg("retries exhausted")
	return rlErr
}

// attempt performs one request. The returned status is only meaningful when
// err is non-nil and a response was received.
func (c *Client) attempt(ctx context.Context, url string, v any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, &TransportError{URL: url, Status: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, &TransportError{URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &TransportError{URL: url, Err: err}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return resp.StatusCode, &ParseError{URL: url, Err: err}
	}
	return resp.StatusCode, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
