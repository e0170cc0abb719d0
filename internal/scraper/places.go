package scraper

import (
	"context"
	"strings"

	"googlemaps.github.io/maps"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/constants"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/circuit"
	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/geography"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// placesAPI is the subset of *maps.Client used here.
type placesAPI interface {
	TextSearch(ctx context.Context, r *maps.TextSearchRequest) (maps.PlacesSearchResponse, error)
	PlaceDetails(ctx context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error)
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
}

// PlacesMapSource answers lookups from the Places API instead of the
// rendered search page.
type PlacesMapSource struct {
	client  placesAPI
	breaker *circuit.Breaker
	log     *logging.ComponentLogger
}

func NewPlacesMapSource(apiKey string, logger *logging.Logger) (*PlacesMapSource, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, errs.NewValidation("scraper.NewPlacesMapSource", "maps client", err)
	}
	return newPlacesMapSource(client, logger), nil
}

func newPlacesMapSource(client placesAPI, logger *logging.Logger) *PlacesMapSource {
	if logger == nil {
		logger = logging.Nop()
	}
	return &PlacesMapSource{
		client: client,
		breaker: circuit.New(circuit.Config{
			Name:              "places",
			OperationTimeout:  constants.PlacesOperationTimeout,
			OpenFor:           constants.PlacesOpenFor,
			MaxConsecFailures: constants.CircuitConsecFail,
			FailureRate:       constants.CircuitFailureRate,
		}, logger),
		log: logger.WithComponent("places"),
	}
}

func (s *PlacesMapSource) Lookup(ctx context.Context, query string) (ListingFacts, error) {
	var search maps.PlacesSearchResponse
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		search, err = s.client.TextSearch(ctx, &maps.TextSearchRequest{Query: query, Language: "ja", Region: "jp"})
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return ListingFacts{NotFound: true}, nil
		}
		return ListingFacts{}, errs.NewExternal("places.TextSearch", "maps", "text search failed", err)
	}
	if len(search.Results) == 0 {
		return ListingFacts{NotFound: true}, nil
	}

	top := search.Results[0]
	var details maps.PlaceDetailsResult
	err = s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		details, err = s.client.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
			PlaceID:  top.PlaceID,
			Language: "ja",
			Fields: []maps.PlaceDetailsFieldMask{
				maps.PlaceDetailsFieldMaskName,
				maps.PlaceDetailsFieldMaskRatings,
				maps.PlaceDetailsFieldMaskUserRatingsTotal,
				maps.PlaceDetailsFieldMaskGeometry,
				maps.PlaceDetailsFieldMaskBusinessStatus,
				maps.PlaceDetailsFieldMaskOpeningHours,
				maps.PlaceDetailsFieldMaskFormattedPhoneNumber,
			},
		})
		return err
	})
	if err != nil {
		// the search hit is still usable
		s.log.Warn("place details failed, using search result", logging.String("query", query), logging.Error(err))
		return factsFromSearch(top, len(search.Results) > 1), nil
	}

	facts := factsFromDetails(details)
	facts.Ambiguous = len(search.Results) > 1
	return facts, nil
}

// Locate geocodes an area name to its center.
func (s *PlacesMapSource) Locate(ctx context.Context, place string) (*geography.Coordinates, error) {
	var results []maps.GeocodingResult
	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		var err error
		results, err = s.client.Geocode(ctx, &maps.GeocodingRequest{Address: place, Language: "ja", Region: "jp"})
		return err
	})
	if err != nil && !strings.Contains(err.Error(), "ZERO_RESULTS") {
		return nil, errs.NewExternal("places.Geocode", "maps", "geocode failed", err)
	}
	for _, r := range results {
		if c := located(r.Geometry.Location); c != nil {
			return c, nil
		}
	}
	return nil, ErrNotLocated
}

func factsFromDetails(d maps.PlaceDetailsResult) ListingFacts {
	var f ListingFacts
	if d.Rating > 0 {
		f.Rating = floatPtr(float64(d.Rating))
	}
	if d.UserRatingsTotal > 0 || d.Rating > 0 {
		f.Reviews = intPtr(d.UserRatingsTotal)
	}
	f.HasBusinessInfo = d.BusinessStatus == "OPERATIONAL" || d.OpeningHours != nil || d.FormattedPhoneNumber != ""
	f.Coordinates = located(d.Geometry.Location)
	return f
}

func factsFromSearch(r maps.PlacesSearchResult, ambiguous bool) ListingFacts {
	var f ListingFacts
	if r.Rating > 0 {
		f.Rating = floatPtr(float64(r.Rating))
		f.Reviews = intPtr(r.UserRatingsTotal)
	}
	f.HasBusinessInfo = r.BusinessStatus == "OPERATIONAL" || r.OpeningHours != nil
	f.Ambiguous = ambiguous
	f.Coordinates = located(r.Geometry.Location)
	return f
}

// located treats the zero location as missing geometry.
func located(ll maps.LatLng) *geography.Coordinates {
	c := geography.FromLatLng(ll)
	if (c.Lat == 0 && c.Lng == 0) || !c.Valid() {
		return nil
	}
	return &c
}
