package ingest

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luxkey/listing-ingest/internal/model"
)

// PhotoSource supplies image URLs for a provider record. The ATTOM payload
// itself carries no photos; its implementation lives with the media service
// and is consulted by source id.
type PhotoSource interface {
	Photos(ctx context.Context, sourceID string) ([]string, error)
}

// MediaBuilder turns raw photo URL lists into listing_media rows:
// de-duplicated by URL, capped, optionally liveness-checked.
type MediaBuilder struct {
	ValidateURLs bool
	Concurrency  int
	httpClient   *http.Client
}

// NewMediaBuilder creates a MediaBuilder.
func NewMediaBuilder(validate bool, concurrency int) *MediaBuilder {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &MediaBuilder{
		ValidateURLs: validate,
		Concurrency:  concurrency,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Build normalizes urls into media rows. Order is preserved; the first
// occurrence of a duplicate URL wins. maxPhotos <= 0 means no cap.
func (b *MediaBuilder) Build(ctx context.Context, urls []string, maxPhotos int, alt string) []model.ListingMedia {
	seen := make(map[string]struct{}, len(urls))
	var kept []string
	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, err := url.ParseRequestURI(u); err != nil {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		kept = append(kept, u)
		if maxPhotos > 0 && len(kept) >= maxPhotos {
			break
		}
	}

	if b.ValidateURLs && len(kept) > 0 {
		kept = b.filterLive(ctx, kept)
	}

	media := make([]model.ListingMedia, 0, len(kept))
	for i, u := range kept {
		media = append(media, model.ListingMedia{
			URL:       u,
			Alt:       alt,
			SortOrder: i,
			Kind:      model.MediaKindImage,
		})
	}
	return media
}

// filterLive drops URLs whose HEAD request fails, checking concurrently with
// a bounded group. A validation error keeps the overall build going.
func (b *MediaBuilder) filterLive(ctx context.Context, urls []string) []string {
	alive := make([]bool, len(urls))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.Concurrency)

	for i, u := range urls {
		g.Go(func() error {
			req, err := http.NewRequestWithContext(gctx, http.MethodHead, u, nil)
			if err != nil {
				return nil
			}
			resp, err := b.httpClient.Do(req)
			if err != nil {
				zap.L().Debug("media url check failed", zap.String("url", u), zap.Error(err))
				return nil
			}
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 400 {
				mu.Lock()
				alive[i] = true
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var kept []string
	for i, ok := range alive {
		if ok {
			kept = append(kept, urls[i])
		}
	}
	return kept
}
