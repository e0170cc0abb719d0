package domain

import (
	"context"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
)

// RunRepository records scheduler job outcomes.
type RunRepository interface {
	RecordJobCtx(ctx context.Context, batchID string, js models.JobStatus) error
}

// NopRunRepository is used when no database is configured.
type NopRunRepository struct{}

func (NopRunRepository) RecordJobCtx(context.Context, string, models.JobStatus) error { return nil }

// CatalogRepository is the append-only AreaRecord store.
type CatalogRepository interface {
	Load() (*models.Catalog, error)
	Find(id string) (models.AreaRecord, error)
	Append(area models.AreaRecord) (models.AreaRecord, error)
}
