// Package apify runs hosted actors and collects their dataset output.
package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client calls the Apify v2 API with a bearer token.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient creates a Client. The HTTP timeout is long because
// run-sync-get-dataset-items blocks until the actor finishes.
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		baseURL:    baseURL,
		token:      token,
		limiter:    rate.NewLimiter(2, 2),
		maxRetries: 3,
	}
}

// RunSyncGetDatasetItems starts an actor run with the given input, waits for
// it to finish, and returns the raw dataset items.
func (c *Client) RunSyncGetDatasetItems(ctx context.Context, actorID string, input map[string]any) ([]json.RawMessage, error) {
	payload, err := json.Marshal(input)
	if err != nil {
		return nil, eris.Wrap(err, "apify: marshal actor input")
	}

	reqURL := c.baseURL + "/acts/" + actorID + "/run-sync-get-dataset-items"

	var lastErr error
	for attempt := range c.maxRetries {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "apify: create request")
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			zap.L().Warn("apify request failed, retrying",
				zap.String("actor", actorID),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			backoff(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from actor %s", resp.StatusCode, actorID)
			zap.L().Warn("apify server error, retrying",
				zap.String("actor", actorID),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			backoff(ctx, attempt)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, eris.Wrap(err, "apify: read response")
		}

		// run-sync returns 200 or 201 depending on actor completion mode.
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return nil, eris.Errorf("apify: unexpected status %d from actor %s", resp.StatusCode, actorID)
		}

		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, eris.Wrap(err, "apify: decode dataset items")
		}
		return items, nil
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
