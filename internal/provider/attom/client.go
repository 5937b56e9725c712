// Package attom is a thin client for the ATTOM property API.
package attom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MaxPageSize caps the snapshot search page size regardless of what the
// caller asks for.
const MaxPageSize = 100

// Client calls the ATTOM gateway. Authenticated via the apikey header.
type Client struct {
	httpClient *http.Client
	baseURL    string
	key        string
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient creates a Client against the given base URL.
func NewClient(baseURL, key string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		key:        key,
		limiter:    rate.NewLimiter(5, 5),
		maxRetries: 3,
	}
}

// envelope is the common ATTOM response wrapper. Item shapes inside
// property vary by plan tier, so they stay raw for the extractor.
type envelope struct {
	Property []json.RawMessage `json:"property"`
}

// SearchSnapshot runs a radius search around a point and returns the raw
// property items. limit is capped at MaxPageSize.
func (c *Client) SearchSnapshot(ctx context.Context, lat, lng, radiusMiles float64, limit int) ([]json.RawMessage, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%f", lat))
	q.Set("longitude", fmt.Sprintf("%f", lng))
	q.Set("radius", fmt.Sprintf("%g", radiusMiles))
	q.Set("pagesize", fmt.Sprintf("%d", limit))

	env, err := c.get(ctx, "/property/snapshot", q)
	if err != nil {
		return nil, eris.Wrap(err, "attom: snapshot search")
	}
	return env.Property, nil
}

// Detail fetches the full property record for a stable ATTOM identifier.
func (c *Client) Detail(ctx context.Context, attomID string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("attomid", attomID)

	env, err := c.get(ctx, "/property/detail", q)
	if err != nil {
		return nil, eris.Wrapf(err, "attom: detail %s", attomID)
	}
	if len(env.Property) == 0 {
		return nil, eris.Errorf("attom: detail %s: empty response", attomID)
	}
	return env.Property[0], nil
}

// AVM fetches the automated valuation for an address pair.
func (c *Client) AVM(ctx context.Context, address1, address2 string) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("address1", address1)
	q.Set("address2", address2)

	env, err := c.get(ctx, "/avm/detail", q)
	if err != nil {
		return nil, eris.Wrap(err, "attom: avm")
	}
	if len(env.Property) == 0 {
		return nil, eris.New("attom: avm: empty response")
	}
	return env.Property[0], nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) (*envelope, error) {
	reqURL := c.baseURL + path + "?" + q.Encode()

	var lastErr error
	for attempt := range c.maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("apikey", c.key)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			zap.L().Warn("attom request failed, retrying",
				zap.String("path", path),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, path)
			zap.L().Warn("attom server error, retrying",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			backoff(ctx, attempt)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, eris.Wrap(err, "read response")
		}

		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("unexpected status %d from %s", resp.StatusCode, path)
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, eris.Wrap(err, "decode response")
		}
		return &env, nil
	}

	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

func backoff(ctx context.Context, attempt int) {
	base := time.Second
	maxBackoff := 30 * time.Second
	d := time.Duration(float64(base) * math.Pow(2, float64(attempt)))
	if d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(d) / 2))
	d = d + jitter

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
