// Package source provides tile source adapters.
package source

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jobrunner/tilevault/internal/domain"
)

// HTTPSource implements TileSource for HTTP(S) tile servers.
type HTTPSource struct {
	client      *http.Client
	urlTemplate string
	userAgent   string
	attempts    int
	backoff     time.Duration
}

// HTTPConfig holds HTTP tile source configuration.
type HTTPConfig struct {
	URLTemplate   string // contains {z}, {x}, {y} placeholders
	UserAgent     string
	Timeout       time.Duration
	RetryAttempts int // total attempts per tile, default: 2
	RetryBackoff  time.Duration
}

// NewHTTPSource creates a new HTTP tile source adapter.
func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 2
	}
	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "tilevault/1.0"
	}

	return &HTTPSource{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		urlTemplate: cfg.URLTemplate,
		userAgent:   cfg.UserAgent,
		attempts:    cfg.RetryAttempts,
		backoff:     cfg.RetryBackoff,
	}
}

// URL returns the resolved tile URL for the given coordinate.
func (s *HTTPSource) URL(tile domain.TileCoordinate) string {
	r := strings.NewReplacer(
		"{z}", strconv.Itoa(tile.Z),
		"{x}", strconv.Itoa(tile.X),
		"{y}", strconv.Itoa(tile.Y),
	)
	return r.Replace(s.urlTemplate)
}

// Fetch downloads a single tile, retrying transient failures up to the
// configured attempt count. A canceled context ends the retry loop early.
func (s *HTTPSource) Fetch(ctx context.Context, tile domain.TileCoordinate) ([]byte, error) {
	url := s.URL(tile)

	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoff):
			}
		}

		data, err := s.fetchOnce(ctx, tile, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// fetchOnce performs a single GET for the tile. Success requires HTTP 200
// and a non-empty body.
func (s *HTTPSource) fetchOnce(ctx context.Context, tile domain.TileCoordinate, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Coordinate: tile, URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused across retries.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &domain.FetchError{
			Coordinate: tile,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        domain.ErrSourceUnavailable,
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Coordinate: tile, URL: url, Err: err}
	}
	if len(data) == 0 {
		return nil, &domain.FetchError{
			Coordinate: tile,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        domain.ErrSourceUnavailable,
		}
	}

	return data, nil
}
