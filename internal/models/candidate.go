package models

import (
	"fmt"
	"strings"
)

// Candidate is a proposed venue before verification. Rating and Reviews start
// as provisional hints from the proposal source and are overwritten with
// live values when a source confirms them.
type Candidate struct {
	Name     string   `json:"name"`
	Search   string   `json:"search"`
	Category string   `json:"category"`
	Rating   float64  `json:"rating"`
	Reviews  int      `json:"reviews"`
	Price    string   `json:"price"`
	Merits   []string `json:"merits"`
	Demerit  string   `json:"demerit"`
	Secret   string   `json:"secret"`
}

// Query returns the lookup string used against map sources.
func (c Candidate) Query(area string) string {
	return strings.TrimSpace(c.Name + " " + area)
}

// RejectionKind is the fixed audit rejection taxonomy.
type RejectionKind string

const (
	RejectNotFound   RejectionKind = "not found"
	RejectNoBusiness RejectionKind = "no business information"
	RejectFewReviews RejectionKind = "insufficient review evidence (<10)"
	RejectOutOfArea  RejectionKind = "out of area (distance exceeded)"
	RejectFetchError RejectionKind = "fetch error"
)

// Valid reports whether k belongs to the taxonomy.
func (k RejectionKind) Valid() bool {
	switch k {
	case RejectNotFound, RejectNoBusiness, RejectFewReviews, RejectOutOfArea, RejectFetchError:
		return true
	}
	return false
}

// Rejection is why an audit attempt failed.
type Rejection struct {
	Kind   RejectionKind `json:"kind"`
	Detail string        `json:"detail,omitempty"`
}

func (r Rejection) String() string {
	if r.Detail == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Detail)
}

// AuditOutcome is the immutable result of auditing one candidate.
// Reason is set only when Passed is false.
type AuditOutcome struct {
	Passed  bool       `json:"passed"`
	Rating  *float64   `json:"rating"`
	Reviews *int       `json:"reviews"`
	Reason  *Rejection `json:"reason"`
}

// RatingSource names the data source that confirmed a rating.
type RatingSource string

const (
	SourceMap        RatingSource = "map"
	SourceAggregator RatingSource = "aggregator"
)

// VerifiedSpot is a candidate whose rating and review count were confirmed
// live. Source is empty when the map listing had no review count and the
// hint was kept; such spots are reconfirmed during generation.
type VerifiedSpot struct {
	Candidate
	Source RatingSource `json:"source,omitempty"`
}

// Confirmed reports whether the review count came from a live source.
func (v VerifiedSpot) Confirmed() bool { return v.Source != "" }

// RejectedCandidate pairs a candidate with its rejection reason.
type RejectedCandidate struct {
	Candidate Candidate `json:"candidate"`
	Reason    Rejection `json:"reason"`
}
