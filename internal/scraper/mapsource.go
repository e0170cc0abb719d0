package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/geography"
)

const mapsSearchURL = "https://www.google.co.jp/maps/search/%s?hl=ja"

// BrowserMapSource renders the public map search page for a query and reads
// the facts off it.
type BrowserMapSource struct {
	fetcher   PageFetcher
	extractor Extractor
	searchURL string
}

func NewBrowserMapSource(fetcher PageFetcher, extractor Extractor) *BrowserMapSource {
	if extractor == nil {
		extractor = HTMLExtractor{}
	}
	return &BrowserMapSource{fetcher: fetcher, extractor: extractor, searchURL: mapsSearchURL}
}

// SearchURL builds the map search address for query.
func (s *BrowserMapSource) SearchURL(query string) string {
	// PathEscape keeps spaces as %20 like encodeURIComponent
	return fmt.Sprintf(s.searchURL, url.PathEscape(strings.TrimSpace(query)))
}

func (s *BrowserMapSource) Lookup(ctx context.Context, query string) (ListingFacts, error) {
	snap, err := s.fetcher.Fetch(ctx, s.SearchURL(query))
	if err != nil {
		return ListingFacts{}, err
	}
	return s.extractor.Extract(snap), nil
}

// Locate reads the area center off the map search page for place.
func (s *BrowserMapSource) Locate(ctx context.Context, place string) (*geography.Coordinates, error) {
	facts, err := s.Lookup(ctx, place)
	if err != nil {
		return nil, err
	}
	if facts.Coordinates == nil {
		return nil, ErrNotLocated
	}
	return facts.Coordinates, nil
}
