package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

const venuePage = `<html><body>
<div class="rdheader-rating">
  <b class="c-rating__val rdheader-rating__score-val-dtl">3.58</b>
  <span class="rdheader-rating__review-target"><em class="num">42</em>件</span>
</div>
</body></html>`

func TestScrapeAggregatorPage(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		rating  float64
		reviews int
	}{
		{"header", venuePage, 3.58, 42},
		{"microdata", `<div><meta itemprop="ratingValue" content="4.5"><span itemprop="reviewCount">1,024</span></div>`, 4.5, 1024},
		{"nothing", `<div>closed</div>`, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ScrapeAggregatorPage(tt.html)
			if err != nil {
				t.Fatal(err)
			}
			if tt.rating == 0 {
				if f.Rating != nil || f.Reviews != nil {
					t.Errorf("expected no facts, got %+v", f)
				}
				return
			}
			if f.Rating == nil || *f.Rating != tt.rating {
				t.Errorf("rating = %v, want %v", f.Rating, tt.rating)
			}
			if f.Reviews == nil || *f.Reviews != tt.reviews {
				t.Errorf("reviews = %v, want %d", f.Reviews, tt.reviews)
			}
		})
	}
}

func rssWith(links ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?><rss version="2.0"><channel><title>search</title>`)
	for i, l := range links {
		fmt.Fprintf(&b, `<item><title>result %d 4.9</title><link>%s</link><description>評価 4.9 口コミ 999件</description></item>`, i, l)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func TestAggregatorLookupScrapesVenuePage(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssWith("https://example.com/blog/kura", "https://tabelog.com/tokyo/A1320/A132001/13000001/"))
	}))
	defer srv.Close()

	var fetched string
	pages := pageFunc(func(_ context.Context, u string) (Snapshot, error) {
		fetched = u
		return Snapshot{URL: u, HTML: venuePage}, nil
	})
	src := NewAggregatorSource(AggregatorConfig{Domain: "tabelog.com", SearchFeed: srv.URL + "/?format=rss&q="}, pages, logging.Nop())

	f, err := src.LookupVenue(context.Background(), "珈琲 蔵", "吉祥寺")
	if err != nil {
		t.Fatalf("LookupVenue: %v", err)
	}
	if gotQuery != "site:tabelog.com 珈琲 蔵 吉祥寺" {
		t.Errorf("search query = %q", gotQuery)
	}
	if fetched != "https://tabelog.com/tokyo/A1320/A132001/13000001/" {
		t.Errorf("fetched %q, want the aggregator page", fetched)
	}
	// numbers come from the page, not the 4.9/999 snippet
	if f.Reviews == nil || *f.Reviews != 42 || f.Rating == nil || *f.Rating != 3.58 {
		t.Errorf("facts = %+v", f)
	}
}

func TestAggregatorLookupWithoutDomainHit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, rssWith("https://example.com/a", "https://nottabelog.com/b"))
	}))
	defer srv.Close()

	pages := pageFunc(func(context.Context, string) (Snapshot, error) {
		t.Fatal("no page should be fetched")
		return Snapshot{}, nil
	})
	src := NewAggregatorSource(AggregatorConfig{Domain: "tabelog.com", SearchFeed: srv.URL + "/?q="}, pages, nil)
	if _, err := src.LookupVenue(context.Background(), "x", "y"); !errors.Is(err, ErrNoAggregatorPage) {
		t.Errorf("err = %v, want ErrNoAggregatorPage", err)
	}
}
