package audit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/constants"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/scraper"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/geography"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/metrics"
)

// Config tunes the audit rules.
type Config struct {
	MinReviews  int           // review counts below this are rejected
	RadiusKm    float64       // max distance from the area center
	SettleDelay time.Duration // pause between lookups
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinReviews:  constants.MinReviews,
		RadiusKm:    constants.AuditRadiusKm,
		SettleDelay: constants.SettleDelayDefault,
	}
}

// Result partitions one audit pass. Both slices keep input order.
type Result struct {
	Approved []models.VerifiedSpot      `json:"approved"`
	Rejected []models.RejectedCandidate `json:"rejected"`
}

// Auditor checks proposed venues against a live map source, one lookup at a
// time.
type Auditor struct {
	source  scraper.ListingSource
	cfg     Config
	limiter *rate.Limiter
	log     *logging.ComponentLogger

	mCandidates *metrics.Counter
	mRejections *metrics.Counter
	mLatency    *metrics.Histogram
}

func New(source scraper.ListingSource, cfg Config, logger *logging.Logger) *Auditor {
	if logger == nil {
		logger = logging.Nop()
	}
	if cfg.MinReviews <= 0 {
		cfg.MinReviews = constants.MinReviews
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = constants.AuditRadiusKm
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.SettleDelay > 0 {
		lim = rate.NewLimiter(rate.Every(cfg.SettleDelay), 1)
	}
	return &Auditor{
		source:      source,
		cfg:         cfg,
		limiter:     lim,
		log:         logger.WithComponent("audit"),
		mCandidates: metrics.Default.Counter("audit_candidates_total", "Candidates audited"),
		mRejections: metrics.Default.Counter("audit_rejections_total", "Candidates rejected by the audit"),
		mLatency:    metrics.Default.Histogram("audit_lookup_latency_ms", "Map lookup latency (ms)", []float64{250, 500, 1000, 2500, 5000, 10000, 20000}),
	}
}

// Audit checks every candidate in order. A lookup failure rejects only that
// candidate; the returned error is non-nil only when ctx ends, alongside the
// partial result.
func (a *Auditor) Audit(ctx context.Context, candidates []models.Candidate, area string, center *geography.Coordinates) (Result, error) {
	var res Result
	for _, c := range candidates {
		if err := a.limiter.Wait(ctx); err != nil {
			return res, err
		}

		out := a.Check(ctx, c, area, center)
		a.mCandidates.Inc(1)
		if out.Passed {
			v := approve(c, out)
			res.Approved = append(res.Approved, v)
			a.log.Info("spot approved", logging.String("name", c.Name), logging.Float64("rating", v.Rating), logging.Int("reviews", v.Reviews), logging.Bool("confirmed", v.Confirmed()))
			continue
		}

		a.mRejections.Inc(1)
		res.Rejected = append(res.Rejected, models.RejectedCandidate{Candidate: c, Reason: *out.Reason})
		a.log.Info("spot rejected", logging.String("name", c.Name), logging.String("reason", out.Reason.String()))
	}
	return res, nil
}

// Check looks one candidate up and applies the decision rules.
func (a *Auditor) Check(ctx context.Context, c models.Candidate, area string, center *geography.Coordinates) models.AuditOutcome {
	t := a.mLatency.Start()
	facts, err := a.source.Lookup(ctx, c.Query(area))
	t.ObserveMs()
	if err != nil {
		a.log.Warn("lookup failed", logging.String("name", c.Name), logging.Error(err))
		return reject(models.RejectFetchError, err.Error())
	}
	return Decide(facts, center, a.cfg)
}

// Decide applies the rules in order; the first match wins.
func Decide(f scraper.ListingFacts, center *geography.Coordinates, cfg Config) models.AuditOutcome {
	if f.NotFound {
		return reject(models.RejectNotFound, "")
	}
	if !f.HasBusinessInfo && !f.HasRating() && !f.Ambiguous {
		return reject(models.RejectNoBusiness, "")
	}
	if f.Reviews != nil && *f.Reviews < cfg.MinReviews {
		return reject(models.RejectFewReviews, fmt.Sprintf("%d reviews", *f.Reviews))
	}
	if f.Coordinates != nil && center != nil {
		if d := geography.Distance(*center, *f.Coordinates); d > cfg.RadiusKm {
			return reject(models.RejectOutOfArea, fmt.Sprintf("%.1fkm", d))
		}
	}

	out := models.AuditOutcome{Passed: true, Reviews: f.Reviews}
	if f.HasRating() {
		out.Rating = f.Rating
	}
	return out
}

func reject(kind models.RejectionKind, detail string) models.AuditOutcome {
	return models.AuditOutcome{Reason: &models.Rejection{Kind: kind, Detail: detail}}
}

// approve overwrites the hints with what the source showed. Without a review
// count the hint stays and the spot is left unconfirmed.
func approve(c models.Candidate, out models.AuditOutcome) models.VerifiedSpot {
	v := models.VerifiedSpot{Candidate: c}
	if out.Rating != nil {
		v.Rating = *out.Rating
	}
	if out.Reviews != nil {
		v.Reviews = *out.Reviews
		v.Source = models.SourceMap
	}
	return v
}
