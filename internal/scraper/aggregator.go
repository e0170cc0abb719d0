package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/utils"
)

// ErrNoAggregatorPage is returned when the site-restricted search had no hit
// on the aggregator domain.
var ErrNoAggregatorPage = errs.NewBiz("aggregator.Search", "no venue page found", nil)

var (
	ratingSelectors = []string{
		".rdheader-rating__score-val-dtl",
		"[itemprop=ratingValue]",
		".c-rating__val",
	}
	reviewSelectors = []string{
		".rdheader-rating__review-target .num",
		"[itemprop=reviewCount]",
		".rstinfo-table__review-count em",
	}
	reDigits  = regexp.MustCompile(`[\d,]+`)
	reDecimal = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// AggregatorConfig configures an AggregatorSource.
type AggregatorConfig struct {
	Domain      string        // e.g. tabelog.com
	SearchFeed  string        // RSS search endpoint, query is appended escaped
	UserAgent   string
	Timeout     time.Duration
	SettleDelay time.Duration
}

// AggregatorSource finds a venue's dedicated page on a review aggregator
// through a site-restricted RSS search, then scrapes the page itself. Search
// snippets are never trusted for numbers.
type AggregatorSource struct {
	cfg     AggregatorConfig
	parser  *gofeed.Parser
	fetcher PageFetcher
	limiter *rate.Limiter
	log     *logging.ComponentLogger
}

func NewAggregatorSource(cfg AggregatorConfig, fetcher PageFetcher, logger *logging.Logger) *AggregatorSource {
	if logger == nil {
		logger = logging.Nop()
	}
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: cfg.Timeout}
	if cfg.UserAgent != "" {
		parser.UserAgent = cfg.UserAgent
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.SettleDelay > 0 {
		lim = rate.NewLimiter(rate.Every(cfg.SettleDelay), 1)
	}
	return &AggregatorSource{
		cfg:     cfg,
		parser:  parser,
		fetcher: fetcher,
		limiter: lim,
		log:     logger.WithComponent("aggregator"),
	}
}

// SearchQuery is the site-restricted query for a venue.
func (a *AggregatorSource) SearchQuery(name, area string) string {
	return strings.TrimSpace(fmt.Sprintf("site:%s %s %s", a.cfg.Domain, name, area))
}

// LookupVenue returns the rating and review count shown on the venue's page.
func (a *AggregatorSource) LookupVenue(ctx context.Context, name, area string) (ListingFacts, error) {
	page, err := a.findPage(ctx, name, area)
	if err != nil {
		return ListingFacts{}, err
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return ListingFacts{}, err
	}
	snap, err := a.fetcher.Fetch(ctx, page)
	if err != nil {
		return ListingFacts{}, errs.NewExternal("aggregator.Fetch", "aggregator", "venue page", err)
	}

	facts, err := ScrapeAggregatorPage(snap.HTML)
	if err != nil {
		return ListingFacts{}, err
	}
	a.log.Debug("aggregator page scraped", logging.String("url", page), logging.Bool("rating", facts.Rating != nil), logging.Bool("reviews", facts.Reviews != nil))
	return facts, nil
}

func (a *AggregatorSource) findPage(ctx context.Context, name, area string) (string, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}
	feedURL := a.cfg.SearchFeed + url.QueryEscape(a.SearchQuery(name, area))
	feed, err := a.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return "", errs.NewExternal("aggregator.Search", "aggregator", "search feed", err)
	}
	for _, it := range feed.Items {
		link := strings.TrimSpace(it.Link)
		if utils.OnDomain(link, a.cfg.Domain) {
			return link, nil
		}
	}
	return "", ErrNoAggregatorPage
}

// ScrapeAggregatorPage reads rating and review count from a venue page.
func ScrapeAggregatorPage(html string) (ListingFacts, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ListingFacts{}, errs.NewExternal("aggregator.Scrape", "aggregator", "parse page", err)
	}

	var facts ListingFacts
	for _, sel := range ratingSelectors {
		if m := reDecimal.FindString(firstValue(doc, sel)); m != "" {
			if r := parseRating(m); r != nil {
				facts.Rating = r
				break
			}
		}
	}
	for _, sel := range reviewSelectors {
		if m := reDigits.FindString(firstValue(doc, sel)); m != "" {
			if n := parseCount(m); n != nil {
				facts.Reviews = n
				break
			}
		}
	}
	facts.HasBusinessInfo = facts.Rating != nil
	return facts, nil
}

// firstValue prefers a content attribute (microdata) over text.
func firstValue(doc *goquery.Document, selector string) string {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return ""
	}
	if v, ok := sel.Attr("content"); ok && v != "" {
		return v
	}
	return strings.TrimSpace(sel.Text())
}
