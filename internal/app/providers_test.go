package app

import (
	"path/filepath"
	"testing"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/generate"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/refill"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/scraper"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/config"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/container"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		MapSource: "browser",
		Pipeline: config.Pipeline{
			MinReviews:     10,
			RadiusKm:       15,
			TargetSpots:    5,
			MinSpots:       3,
			MaxAuditRounds: 3,
			CatalogPath:    filepath.Join(dir, "batch_areas.json"),
			LibraryDir:     filepath.Join(dir, "library"),
		},
	}
}

func TestRegisterResolvesPipeline(t *testing.T) {
	c := container.New()
	if err := Register(c, testConfig(t), logging.Nop()); err != nil {
		t.Fatal(err)
	}

	var loop *refill.Loop
	if err := c.Resolve(&loop); err != nil {
		t.Fatalf("resolve refill loop: %v", err)
	}
	var job *generate.Job
	if err := c.Resolve(&job); err != nil {
		t.Fatalf("resolve job: %v", err)
	}
	if job.LibraryDir == "" || job.Catalog == nil || job.Prompts == nil {
		t.Errorf("job = %+v", job)
	}

	var ms MapSource
	if err := c.Resolve(&ms); err != nil {
		t.Fatal(err)
	}
	if _, ok := ms.(*scraper.BrowserMapSource); !ok {
		t.Errorf("map source = %T, want browser", ms)
	}
}

func TestRegisterTwiceFails(t *testing.T) {
	c := container.New()
	cfg := testConfig(t)
	if err := Register(c, cfg, logging.Nop()); err != nil {
		t.Fatal(err)
	}
	if err := Register(c, cfg, logging.Nop()); err == nil {
		t.Error("expected duplicate registration error")
	}
}
