package catalog

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"waxscore/internal/config"
	"waxscore/internal/storage"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func response(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body)), Header: header}
}

func testClient(rt roundTripFunc) *Client {
	c := NewClient(config.Config{SheetsRateLimitRPS: 1000, SheetsTimeoutMs: 1000})
	c.httpClient = &http.Client{Transport: rt}
	c.baseDelay = time.Millisecond
	return c
}

func TestFetchRetriesServerErrors(t *testing.T) {
	attempt := 0
	c := testClient(func(r *http.Request) (*http.Response, error) {
		attempt++
		assert.Equal(t, userAgent, r.Header.Get("User-Agent"))
		if attempt == 1 {
			return response(http.StatusServiceUnavailable, "busy", nil), nil
		}
		h := make(http.Header)
		h.Set("Content-Type", "application/pdf")
		h.Set("ETag", `"v2"`)
		return response(http.StatusOK, "%PDF-1.4", h), nil
	})

	dl, err := c.Fetch(context.Background(), "https://vendor.example/tds.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, 2, attempt)
	assert.Equal(t, []byte("%PDF-1.4"), dl.Body)
	assert.Equal(t, `"v2"`, dl.ETag)
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	attempt := 0
	c := testClient(func(r *http.Request) (*http.Response, error) {
		attempt++
		return response(http.StatusNotFound, "gone", nil), nil
	})
	_, err := c.Fetch(context.Background(), "https://vendor.example/tds.pdf", "")
	assert.ErrorContains(t, err, "status=404")
	assert.Equal(t, 1, attempt)
}

func TestFetchNotModified(t *testing.T) {
	c := testClient(func(r *http.Request) (*http.Response, error) {
		assert.Equal(t, `"v1"`, r.Header.Get("If-None-Match"))
		return response(http.StatusNotModified, "", nil), nil
	})
	dl, err := c.Fetch(context.Background(), "https://vendor.example/tds.pdf", `"v1"`)
	require.NoError(t, err)
	assert.True(t, dl.NotModified)
}

func TestRetryAfter(t *testing.T) {
	h := make(http.Header)
	assert.Equal(t, time.Duration(0), retryAfter(h))
	h.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, retryAfter(h))
	h.Set("Retry-After", "3600")
	assert.Equal(t, time.Minute, retryAfter(h))
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`
sheets:
  - name: FT-105
    url: https://vendor.example/sheets/ft105.pdf
  - name: PE wax
    url: https://vendor.example/download?id=7
    file: pe-wax.xlsx
`))
	require.NoError(t, err)
	require.Len(t, m.Sheets, 2)
	assert.Equal(t, "ft105.pdf", m.Sheets[0].fileName(""))
	assert.Equal(t, "pe-wax.xlsx", m.Sheets[1].fileName("text/html"))
	assert.Equal(t, "FT-105.xlsx", Sheet{Name: "FT-105", URL: "https://vendor.example/get"}.fileName("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"))

	_, err = ParseManifest([]byte("sheets:\n  - name: x\n    url: ftp://vendor.example/a.pdf\n"))
	assert.Error(t, err)
	_, err = ParseManifest([]byte("sheets:\n  - name: x\n    url: https://a/b.pdf\n  - name: x\n    url: https://a/c.pdf\n"))
	assert.Error(t, err)
}

func TestSyncDownloadsAndRemembersETag(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	calls := map[string]int{}
	client := testClient(func(r *http.Request) (*http.Response, error) {
		calls[r.URL.Path]++
		switch r.URL.Path {
		case "/ft105.pdf":
			if r.Header.Get("If-None-Match") == `"a1"` {
				return response(http.StatusNotModified, "", nil), nil
			}
			h := make(http.Header)
			h.Set("ETag", `"a1"`)
			return response(http.StatusOK, "Drop point: 108", h), nil
		default:
			return response(http.StatusNotFound, "", nil), nil
		}
	})
	svc := &SyncService{db: db, client: client, inboxDir: filepath.Join(tmp, "inbox"), log: zerolog.Nop()}
	manifest := Manifest{Sheets: []Sheet{
		{Name: "FT-105", URL: "https://vendor.example/ft105.pdf"},
		{Name: "missing", URL: "https://vendor.example/missing.pdf"},
	}}

	res, err := svc.Sync(context.Background(), manifest)
	require.NoError(t, err)
	require.Len(t, res.Downloaded, 1)
	assert.Contains(t, res.Failed, "missing")
	blob, err := os.ReadFile(res.Downloaded[0])
	require.NoError(t, err)
	assert.Equal(t, "Drop point: 108", string(blob))

	res, err = svc.Sync(context.Background(), manifest)
	require.NoError(t, err)
	assert.Empty(t, res.Downloaded)
	assert.Equal(t, []string{"FT-105"}, res.Unchanged)

	last, err := db.GetMetadata(lastSyncKey)
	require.NoError(t, err)
	assert.NotNil(t, last)
}
