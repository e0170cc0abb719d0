package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxPageBytes     = 8 << 20
)

// HTTPFetcher fetches pages with a browser-like identity. It does not run
// scripts; sources that need them should be served by a structured API.
type HTTPFetcher struct {
	Client         *http.Client
	UserAgent      string
	AcceptLanguage string
}

func NewHTTPFetcher(userAgent string, timeout time.Duration) *HTTPFetcher {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &HTTPFetcher{
		Client:         &http.Client{Timeout: timeout},
		UserAgent:      userAgent,
		AcceptLanguage: "ja,en;q=0.8",
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Snapshot{}, errs.NewValidation("scraper.Fetch", "bad url", err)
	}
	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept-Language", f.AcceptLanguage)

	resp, err := f.Client.Do(req)
	if err != nil {
		return Snapshot{}, errs.NewExternal("scraper.Fetch", "http", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Snapshot{}, errs.NewExternal("scraper.Fetch", "http", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return Snapshot{}, errs.NewExternal("scraper.Fetch", "http", "read body", err)
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	return Snapshot{URL: final, HTML: string(body)}, nil
}
