package domain

import (
	"context"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
)

// ProposalRequest asks for one area and its spots. Blank fields leave the
// choice to the proposal source.
type ProposalRequest struct {
	Location string `json:"location"`
	Theme    string `json:"theme"`
	Custom   string `json:"custom"`
}

// RefillRequest asks for Count replacement candidates. ExclusionNote names
// every rejected venue with its reason.
type RefillRequest struct {
	Area          string `json:"area"`
	Theme         string `json:"theme"`
	ExclusionNote string `json:"exclusion_note"`
	Count         int    `json:"count"`
}

// Proposer is the generative source of areas and candidate venues.
type Proposer interface {
	Propose(ctx context.Context, req ProposalRequest) (models.AreaRecord, error)
	Refill(ctx context.Context, req RefillRequest) ([]models.Candidate, error)
}
