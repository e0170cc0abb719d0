// Package app registers the director's components with the container. The
// server and the generate binary share these providers.
package app

import (
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/audit"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/catalog"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/constants"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/generate"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/prompts"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/proposal"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/rating"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/refill"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/render"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/scraper"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/config"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/container"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// MapSource is a live map that can also place an area on the globe.
type MapSource interface {
	scraper.ListingSource
	scraper.Locator
}

// NewLogger builds the process logger. A non-empty output overrides
// LOG_FILE; the generate binary forces stderr so stdout stays parseable.
func NewLogger(cfg *config.Config, output string) (*logging.Logger, error) {
	lc := logging.DefaultLogConfig()
	lc.Level = logging.ParseLevel(cfg.LogLevel)
	if cfg.LogFormat != "" {
		lc.Format = cfg.LogFormat
	}
	switch {
	case output != "":
		lc.Output = output
	case cfg.LogFile != "":
		lc.Output = cfg.LogFile
	}
	return logging.NewLogger(lc)
}

// Register supplies cfg and log and adds providers for everything the
// pipeline needs. Nothing is built until resolved.
func Register(c *container.Container, cfg *config.Config, log *logging.Logger) error {
	if err := c.Supply(cfg); err != nil {
		return err
	}
	if err := c.Supply(log); err != nil {
		return err
	}
	providers := []interface{}{
		func(cfg *config.Config) (*prompts.Manager, error) { return prompts.NewManager(cfg.PromptDir) },
		func(cfg *config.Config) *scraper.HTTPFetcher {
			return scraper.NewHTTPFetcher(cfg.UserAgent, constants.MapFetchTimeout)
		},
		NewMapSource,
		func(cfg *config.Config, f *scraper.HTTPFetcher, log *logging.Logger) *scraper.AggregatorSource {
			p := cfg.Pipeline
			return scraper.NewAggregatorSource(scraper.AggregatorConfig{
				Domain:      p.AggregatorDomain,
				SearchFeed:  p.SearchFeedURL,
				UserAgent:   cfg.UserAgent,
				Timeout:     constants.AggregatorFetchTimeout,
				SettleDelay: p.SettleDelay,
			}, f, log)
		},
		func(cfg *config.Config, f *scraper.HTTPFetcher, log *logging.Logger) *scraper.ImageFetcher {
			return scraper.NewImageFetcher(f, cfg.Pipeline.ImageSearchURL, cfg.UserAgent, constants.ImageFetchTimeout, cfg.Pipeline.SettleDelay, log)
		},
		func(cfg *config.Config, ms MapSource, agg *scraper.AggregatorSource, log *logging.Logger) *rating.Resolver {
			return rating.New(ms, agg, cfg.Pipeline.MinReviews, cfg.Pipeline.SettleDelay, log)
		},
		func(cfg *config.Config, ms MapSource, log *logging.Logger) *audit.Auditor {
			return audit.New(ms, audit.Config{
				MinReviews:  cfg.Pipeline.MinReviews,
				RadiusKm:    cfg.Pipeline.RadiusKm,
				SettleDelay: cfg.Pipeline.SettleDelay,
			}, log)
		},
		func(cfg *config.Config, pm *prompts.Manager, log *logging.Logger) *proposal.OpenAIProposer {
			pc := proposal.DefaultConfig()
			if cfg.OpenAIModel != "" {
				pc.Model = cfg.OpenAIModel
			}
			if cfg.OpenAITemperature > 0 {
				pc.Temperature = float32(cfg.OpenAITemperature)
			}
			if cfg.OpenAITimeout > 0 {
				pc.Timeout = cfg.OpenAITimeout
			}
			pc.SpotCount = cfg.Pipeline.TargetSpots
			return proposal.NewOpenAIProposer(cfg.OpenAIAPIKey, pm, pc, log)
		},
		func(cfg *config.Config, a *audit.Auditor, p *proposal.OpenAIProposer, log *logging.Logger) *refill.Loop {
			return refill.New(a, p, refill.Config{
				Target:      cfg.Pipeline.TargetSpots,
				MaxRounds:   cfg.Pipeline.MaxAuditRounds,
				MinApproved: cfg.Pipeline.MinSpots,
			}, log)
		},
		func(cfg *config.Config, log *logging.Logger) *catalog.Store {
			return catalog.NewStore(cfg.Pipeline.CatalogPath, log)
		},
		func(cfg *config.Config, st *catalog.Store, r *rating.Resolver, img *scraper.ImageFetcher, pm *prompts.Manager, log *logging.Logger) *generate.Job {
			return &generate.Job{
				Catalog:    st,
				Resolver:   r,
				Images:     img,
				Renderer:   render.PNGRenderer{},
				Prompts:    pm,
				LibraryDir: cfg.Pipeline.LibraryDir,
				Log:        log,
			}
		},
	}
	for _, p := range providers {
		if err := c.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

// NewMapSource picks the map backend named by MAP_SOURCE.
func NewMapSource(cfg *config.Config, f *scraper.HTTPFetcher, log *logging.Logger) (MapSource, error) {
	if cfg.MapSource == "places" {
		ps, err := scraper.NewPlacesMapSource(cfg.GoogleMapsAPIKey, log)
		if err != nil {
			return nil, err
		}
		return ps, nil
	}
	return scraper.NewBrowserMapSource(f, nil), nil
}
