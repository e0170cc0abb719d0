package scraper

import (
	"context"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/geography"
)

// ErrNotLocated means the place name produced no coordinates.
var ErrNotLocated = errs.NewBiz("scraper.Locate", "place has no coordinates", nil)

// ListingFacts is what a map source could establish about one query.
// Rating and Reviews are nil when the source showed no value.
type ListingFacts struct {
	Rating          *float64
	Reviews         *int
	NotFound        bool
	Ambiguous       bool
	HasBusinessInfo bool
	Coordinates     *geography.Coordinates
}

// HasRating treats a zero rating as absent.
func (f ListingFacts) HasRating() bool {
	return f.Rating != nil && *f.Rating > 0
}

// Snapshot is a rendered page: the URL after redirects plus its markup.
type Snapshot struct {
	URL  string
	HTML string
	Text string
}

// ListingSource looks a venue up on a live map source.
type ListingSource interface {
	Lookup(ctx context.Context, query string) (ListingFacts, error)
}

// Extractor turns a page snapshot into listing facts.
type Extractor interface {
	Extract(s Snapshot) ListingFacts
}

// PageFetcher navigates to a URL and returns what was rendered.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (Snapshot, error)
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int             { return &v }

// Locator resolves an area name to its center point.
type Locator interface {
	Locate(ctx context.Context, place string) (*geography.Coordinates, error)
}
