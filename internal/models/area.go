package models

import (
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/geography"
)

// AreaRecord is one unit of work in the catalog. Generation status is not
// stored here; it is derived from rendered output on disk.
type AreaRecord struct {
	ID             string                 `json:"id"`
	Area           string                 `json:"area"`
	Title          string                 `json:"title"`
	Folder         string                 `json:"folder"`
	Landmark       string                 `json:"landmark"`
	LandmarkSearch string                 `json:"landmark_search"`
	CategoryFocus  string                 `json:"category_focus"`
	Spots          []Candidate            `json:"spots"`
	Center         *geography.Coordinates `json:"center,omitempty"`
}

// Catalog is the on-disk document holding every AreaRecord in order.
type Catalog struct {
	Areas []AreaRecord `json:"areas"`
}

// Find returns the record with the given id.
func (c *Catalog) Find(id string) (AreaRecord, bool) {
	for _, a := range c.Areas {
		if a.ID == id {
			return a, true
		}
	}
	return AreaRecord{}, false
}
