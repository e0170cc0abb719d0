package scraper

import (
	"context"
	"errors"
	"testing"

	"googlemaps.github.io/maps"

	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

type fakePlaces struct {
	search     maps.PlacesSearchResponse
	searchErr  error
	details    maps.PlaceDetailsResult
	detailsErr error
	detailsFor string
	geocode    []maps.GeocodingResult
	geocodeErr error
}

func (f *fakePlaces) Geocode(context.Context, *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	return f.geocode, f.geocodeErr
}

func (f *fakePlaces) TextSearch(context.Context, *maps.TextSearchRequest) (maps.PlacesSearchResponse, error) {
	return f.search, f.searchErr
}

func (f *fakePlaces) PlaceDetails(_ context.Context, r *maps.PlaceDetailsRequest) (maps.PlaceDetailsResult, error) {
	f.detailsFor = r.PlaceID
	return f.details, f.detailsErr
}

func TestPlacesMapSourceLookup(t *testing.T) {
	loc := maps.LatLng{Lat: 35.7033, Lng: 139.5797}

	t.Run("details mapped onto facts", func(t *testing.T) {
		api := &fakePlaces{
			search: maps.PlacesSearchResponse{Results: []maps.PlacesSearchResult{{PlaceID: "p1"}, {PlaceID: "p2"}}},
			details: maps.PlaceDetailsResult{
				Rating:           4.2,
				UserRatingsTotal: 87,
				BusinessStatus:   "OPERATIONAL",
				Geometry:         maps.AddressGeometry{Location: loc},
			},
		}
		f, err := newPlacesMapSource(api, logging.Nop()).Lookup(context.Background(), "珈琲 蔵 吉祥寺")
		if err != nil {
			t.Fatal(err)
		}
		if api.detailsFor != "p1" {
			t.Errorf("details requested for %q, want top result", api.detailsFor)
		}
		if f.Reviews == nil || *f.Reviews != 87 || !f.HasRating() || !f.HasBusinessInfo || !f.Ambiguous {
			t.Errorf("facts = %+v", f)
		}
		if f.Coordinates == nil || f.Coordinates.Lat != loc.Lat {
			t.Errorf("coordinates = %v", f.Coordinates)
		}
	})

	t.Run("no results", func(t *testing.T) {
		f, err := newPlacesMapSource(&fakePlaces{}, logging.Nop()).Lookup(context.Background(), "nowhere")
		if err != nil || !f.NotFound {
			t.Errorf("facts = %+v, err = %v", f, err)
		}
	})

	t.Run("search failure is an error", func(t *testing.T) {
		api := &fakePlaces{searchErr: errors.New("REQUEST_DENIED")}
		if _, err := newPlacesMapSource(api, logging.Nop()).Lookup(context.Background(), "x"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("details failure falls back to search hit", func(t *testing.T) {
		api := &fakePlaces{
			search:     maps.PlacesSearchResponse{Results: []maps.PlacesSearchResult{{PlaceID: "p1", Rating: 3.9, UserRatingsTotal: 12}}},
			detailsErr: errors.New("OVER_QUERY_LIMIT"),
		}
		f, err := newPlacesMapSource(api, logging.Nop()).Lookup(context.Background(), "x")
		if err != nil {
			t.Fatal(err)
		}
		if f.Reviews == nil || *f.Reviews != 12 || f.Coordinates != nil {
			t.Errorf("facts = %+v", f)
		}
	})
}

func TestPlacesMapSourceLocate(t *testing.T) {
	api := &fakePlaces{geocode: []maps.GeocodingResult{
		{Geometry: maps.AddressGeometry{}},
		{Geometry: maps.AddressGeometry{Location: maps.LatLng{Lat: 35.7033, Lng: 139.5797}}},
	}}
	c, err := newPlacesMapSource(api, logging.Nop()).Locate(context.Background(), "吉祥寺")
	if err != nil || c == nil || c.Lng != 139.5797 {
		t.Fatalf("Locate = %v, %v", c, err)
	}

	_, err = newPlacesMapSource(&fakePlaces{geocodeErr: errors.New("maps: ZERO_RESULTS - ")}, logging.Nop()).Locate(context.Background(), "?")
	if !errors.Is(err, ErrNotLocated) {
		t.Errorf("zero results err = %v", err)
	}
}
