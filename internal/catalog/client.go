package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"waxscore/internal/config"
)

const (
	maxAttempts  = 5
	maxSheetSize = 64 << 20
	userAgent    = "waxscore-sheets/1.0"
)

var ErrSheetTooLarge = errors.New("sheet exceeds size limit")

type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseDelay  time.Duration
}

type Download struct {
	Body        []byte
	ContentType string
	ETag        string
	NotModified bool
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.SheetsTimeout()},
		limiter:    NewRateLimiter(cfg.SheetsRateLimitRPS),
		baseDelay:  250 * time.Millisecond,
	}
}

// Fetch downloads url, retrying transport errors and 429/5xx responses with
// exponential backoff. A non-empty etag is sent as If-None-Match; a 304 reply
// comes back as NotModified with no body.
func (c *Client) Fetch(ctx context.Context, url, etag string) (Download, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return Download{}, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return Download{}, err
		}
		req.Header.Set("User-Agent", userAgent)
		if etag != "" {
			req.Header.Set("If-None-Match", etag)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if sleepErr := c.backoff(ctx, attempt, 0); sleepErr != nil {
				return Download{}, sleepErr
			}
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxSheetSize+1))
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusNotModified {
			return Download{ETag: etag, NotModified: true}, nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				lastErr = fmt.Errorf("sheet status %d", resp.StatusCode)
				if sleepErr := c.backoff(ctx, attempt, retryAfter(resp.Header)); sleepErr != nil {
					return Download{}, sleepErr
				}
				continue
			}
			return Download{}, fmt.Errorf("sheet download error: status=%d body=%s", resp.StatusCode, truncate(string(body), 200))
		}
		if readErr != nil {
			lastErr = readErr
			continue
		}
		if len(body) > maxSheetSize {
			return Download{}, ErrSheetTooLarge
		}

		return Download{
			Body:        body,
			ContentType: resp.Header.Get("Content-Type"),
			ETag:        resp.Header.Get("ETag"),
		}, nil
	}

	if lastErr == nil {
		lastErr = errors.New("sheet request failed")
	}
	return Download{}, lastErr
}

func (c *Client) backoff(ctx context.Context, attempt int, floor time.Duration) error {
	delay := c.baseDelay*time.Duration(1<<(attempt-1)) + time.Duration(rand.Intn(100))*time.Millisecond
	if floor > delay {
		delay = floor
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// retryAfter honours a Retry-After header given in seconds, capped at a minute.
func retryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	if secs > 60 {
		secs = 60
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
