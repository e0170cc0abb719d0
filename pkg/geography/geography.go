package geography

import (
	"fmt"
	"math"
	"regexp"
	"strconv"

	"googlemaps.github.io/maps"
)

// EarthRadiusKm is the mean earth radius used by Distance.
const EarthRadiusKm = 6371.0

// Coordinates is a WGS84 latitude/longitude pair in degrees.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Valid reports whether the pair lies inside the latitude/longitude ranges.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// FromLatLng converts a Places API location.
func FromLatLng(ll maps.LatLng) Coordinates {
	return Coordinates{Lat: ll.Lat, Lng: ll.Lng}
}

// Distance returns the great-circle distance in kilometres (haversine).
func Distance(a, b Coordinates) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h a hair past 1 for antipodal points
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Within reports whether b lies within radiusKm of a.
func Within(a, b Coordinates, radiusKm float64) bool {
	return Distance(a, b) <= radiusKm
}

// map URLs carry the viewport centre as /@lat,lng,zoom
var reURLCoords = regexp.MustCompile(`@(-?\d+(?:\.\d+)?),(-?\d+(?:\.\d+)?)`)

// ParseURLCoordinates extracts the first "@lat,lng" pair from a map URL.
func ParseURLCoordinates(u string) (Coordinates, bool) {
	m := reURLCoords.FindStringSubmatch(u)
	if len(m) != 3 {
		return Coordinates{}, false
	}
	lat, err1 := strconv.ParseFloat(m[1], 64)
	lng, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return Coordinates{}, false
	}
	c := Coordinates{Lat: lat, Lng: lng}
	if !c.Valid() {
		return Coordinates{}, false
	}
	return c, true
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
