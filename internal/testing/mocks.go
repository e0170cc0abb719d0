package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/domain"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/scraper"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/geography"
)

// MockMapSource implements scraper.ListingSource and scraper.Locator.
// Unknown queries come back as not found.
type MockMapSource struct {
	Mu      sync.Mutex
	Facts   map[string]scraper.ListingFacts
	Err     map[string]error
	Centers map[string]geography.Coordinates
	Calls   []string
}

func NewMockMapSource() *MockMapSource {
	return &MockMapSource{
		Facts:   map[string]scraper.ListingFacts{},
		Err:     map[string]error{},
		Centers: map[string]geography.Coordinates{},
	}
}

// Listed registers a venue with a review count and position.
func (m *MockMapSource) Listed(query string, rating float64, reviews int, at geography.Coordinates) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Facts[query] = scraper.ListingFacts{Rating: &rating, Reviews: &reviews, HasBusinessInfo: true, Coordinates: &at}
}

func (m *MockMapSource) Lookup(_ context.Context, query string) (scraper.ListingFacts, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Calls = append(m.Calls, query)
	if err, ok := m.Err[query]; ok {
		return scraper.ListingFacts{}, err
	}
	if f, ok := m.Facts[query]; ok {
		return f, nil
	}
	return scraper.ListingFacts{NotFound: true}, nil
}

func (m *MockMapSource) Locate(_ context.Context, place string) (*geography.Coordinates, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	c, ok := m.Centers[place]
	if !ok {
		return nil, fmt.Errorf("%s: %w", place, scraper.ErrNotLocated)
	}
	return &c, nil
}

// MockProposer implements domain.Proposer. Refill answers are served from
// the queue in order; an empty queue yields no candidates.
type MockProposer struct {
	Mu       sync.Mutex
	Area     models.AreaRecord
	Refills  [][]models.Candidate
	RefillFn func(req domain.RefillRequest) ([]models.Candidate, error)
	Requests []domain.RefillRequest
}

func (m *MockProposer) Propose(context.Context, domain.ProposalRequest) (models.AreaRecord, error) {
	return m.Area, nil
}

func (m *MockProposer) Refill(_ context.Context, req domain.RefillRequest) ([]models.Candidate, error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Requests = append(m.Requests, req)
	if m.RefillFn != nil {
		return m.RefillFn(req)
	}
	if len(m.Refills) == 0 {
		return nil, nil
	}
	next := m.Refills[0]
	m.Refills = m.Refills[1:]
	return next, nil
}

// MockRunRepository records job outcomes in memory.
type MockRunRepository struct {
	Mu      sync.Mutex
	Batches map[string][]models.JobStatus
	Err     error
}

func (m *MockRunRepository) RecordJobCtx(_ context.Context, batchID string, js models.JobStatus) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.Batches == nil {
		m.Batches = map[string][]models.JobStatus{}
	}
	m.Batches[batchID] = append(m.Batches[batchID], js)
	return nil
}

// Names lists candidate names in order.
func Names(cs []models.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

// Candidates builds bare candidates from names.
func Candidates(names ...string) []models.Candidate {
	out := make([]models.Candidate, len(names))
	for i, n := range names {
		out[i] = models.Candidate{Name: n}
	}
	return out
}
