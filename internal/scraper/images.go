package scraper

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// 1x1 transparent PNG written when no image could be fetched.
const placeholderPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNk+A8AAQUBAScY42YAAAAASUVORK5CYII="

const maxImageBytes = 10 << 20

// ImageFetcher saves the first usable result of an image search.
type ImageFetcher struct {
	pages     PageFetcher
	client    *http.Client
	searchURL string
	userAgent string
	limiter   *rate.Limiter
	log       *logging.ComponentLogger
}

func NewImageFetcher(pages PageFetcher, searchURL, userAgent string, timeout, settle time.Duration, logger *logging.Logger) *ImageFetcher {
	if logger == nil {
		logger = logging.Nop()
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if settle > 0 {
		lim = rate.NewLimiter(rate.Every(settle), 1)
	}
	return &ImageFetcher{
		pages:     pages,
		client:    &http.Client{Timeout: timeout},
		searchURL: searchURL,
		userAgent: userAgent,
		limiter:   lim,
		log:       logger.WithComponent("images"),
	}
}

// Save searches for query and writes the image to dest. When nothing usable
// is found a placeholder is written instead and placeholder is true.
func (f *ImageFetcher) Save(ctx context.Context, query, dest string) (placeholder bool, err error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, errs.NewValidation("images.Save", "create image dir", err)
	}

	for _, src := range f.candidates(ctx, query) {
		data, err := f.download(ctx, src)
		if err != nil {
			f.log.Debug("image candidate skipped", logging.String("src", src), logging.Error(err))
			continue
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return false, errs.NewValidation("images.Save", "write image", err)
		}
		return false, nil
	}

	f.log.Warn("no image found, writing placeholder", logging.String("query", query))
	return true, WritePlaceholder(dest)
}

// WritePlaceholder writes the 1x1 fallback PNG.
func WritePlaceholder(dest string) error {
	data, _ := base64.StdEncoding.DecodeString(placeholderPNG)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return errs.NewValidation("images.WritePlaceholder", "write placeholder", err)
	}
	return nil
}

func (f *ImageFetcher) candidates(ctx context.Context, query string) []string {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil
	}
	snap, err := f.pages.Fetch(ctx, f.searchURL+url.QueryEscape(query))
	if err != nil {
		f.log.Warn("image search failed", logging.String("query", query), logging.Error(err))
		return nil
	}
	return ImageCandidates(snap.HTML, 5)
}

// ImageCandidates lists absolute image URLs found on a search result page,
// preferring full-size links over thumbnails.
func ImageCandidates(html string, limit int) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if len(out) >= limit || seen[u] || !strings.HasPrefix(u, "http") {
			return
		}
		seen[u] = true
		out = append(out, u)
	}

	// full-size links carried as JSON in the m attribute
	doc.Find("a.iusc[m]").Each(func(_ int, s *goquery.Selection) {
		var meta struct {
			MURL string `json:"murl"`
		}
		if raw, ok := s.Attr("m"); ok && json.Unmarshal([]byte(raw), &meta) == nil {
			add(meta.MURL)
		}
	})
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"data-src", "src"} {
			if v, ok := s.Attr(attr); ok {
				add(strings.TrimSpace(v))
			}
		}
	})
	return out
}

func (f *ImageFetcher) download(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errs.NewExternal("images.download", "http", resp.Status, nil)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, errs.NewExternal("images.download", "http", "not an image: "+ct, nil)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}
