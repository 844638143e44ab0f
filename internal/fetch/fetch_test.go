package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rateLimitedServer answers 429 for the first n requests, then 200 with body.
func rateLimitedServer(t *testing.T, n int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= int64(n) {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testClient(attempts int, delay DelayStrategy) (*Client, *[]time.Duration) {
	c := NewClient(10000, RetryPolicy{Attempts: attempts, Delay: delay}, zerolog.Nop())

	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestGetJSON_RetriesThenSucceeds(t *testing.T) {
	srv, hits := rateLimitedServer(t, 3, `{"value":42}`)
	c, slept := testClient(5, FixedDelay(time.Second))

	var out struct {
		Value int `json:"value"`
	}
	err := c.GetJSON(context.Background(), srv.URL, &out)

	require.NoError(t, err)
	assert.Equal(t, 42, out.Value)
	assert.EqualValues(t, 4, hits.Load(), "3 rate-limited attempts plus the success")
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, *slept)
}

func TestGetJSON_RateLimitExhausted(t *testing.T) {
	srv, hits := rateLimitedServer(t, 100, `{}`)
	c, slept := testClient(3, FixedDelay(time.Second))

	err := c.GetJSON(context.Background(), srv.URL, &struct{}{})

	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	assert.Equal(t, 3, rlErr.Attempts)
	assert.EqualValues(t, 3, hits.Load())
	assert.Len(t, *slept, 2, "no sleep after the final attempt")
}

func TestGetJSON_TransportErrorNoRetry(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	c, slept := testClient(5, FixedDelay(time.Second))
	err := c.GetJSON(context.Background(), srv.URL, &struct{}{})

	var trErr *TransportError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, http.StatusInternalServerError, trErr.Status)
	assert.EqualValues(t, 1, hits.Load(), "server errors are not retried")
	assert.Empty(t, *slept)
}

func TestGetJSON_ParseError(t *testing.T) {
	srv, _ := rateLimitedServer(t, 0, `{not json`)
	c, _ := testClient(5, FixedDelay(time.Second))

	err := c.GetJSON(context.Background(), srv.URL, &struct{}{})

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestGetJSON_ContextCancelledDuringBackoff(t *testing.T) {
	srv, hits := rateLimitedServer(t, 100, `{}`)

	c := NewClient(10000, RetryPolicy{Attempts: 5, Delay: FixedDelay(time.Minute)}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	err := c.GetJSON(ctx, srv.URL, &struct{}{})

	var trErr *TransportError
	require.ErrorAs(t, err, &trErr)
	assert.EqualValues(t, 1, hits.Load())
}

func TestFixedDelay(t *testing.T) {
	d := FixedDelay(2 * time.Second)
	assert.Equal(t, 2*time.Second, d.Next(0))
	assert.Equal(t, 2*time.Second, d.Next(7))
}

func TestExponentialDelay(t *testing.T) {
	d := ExponentialDelay{Base: time.Second, Max: time.Minute}

	assert.Equal(t, time.Second, d.Next(0))
	assert.Equal(t, 2*time.Second, d.Next(1))
	assert.Equal(t, 8*time.Second, d.Next(3))
	assert.Equal(t, time.Minute, d.Next(6), "capped at max")
	assert.Equal(t, time.Minute, d.Next(40), "large attempt counts stay capped")
	assert.Equal(t, time.Second, d.Next(-1))
}
