package rating

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/constants"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/scraper"
	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/metrics"
)

// ErrNoConfidentSource means no live source showed enough reviews. Callers
// must not fall back to proposal hints.
var ErrNoConfidentSource = errs.NewBiz("rating.Resolve", "no source met confidence bar", nil)

// StrictSuffix is appended to the reconstructed second map query.
const StrictSuffix = "店舗"

// AggregatorLookup finds a venue on a review aggregator.
type AggregatorLookup interface {
	LookupVenue(ctx context.Context, name, area string) (scraper.ListingFacts, error)
}

// Confirmed is a rating backed by a live source.
type Confirmed struct {
	Rating  float64             `json:"rating"`
	Reviews int                 `json:"reviews"`
	Source  models.RatingSource `json:"source"`
}

// Attempt records one step of the chain for diagnostics.
type Attempt struct {
	Source  models.RatingSource
	Query   string
	Reviews *int
	Err     error
}

// Resolver walks map lookups then the aggregator and stops at the first
// result with at least MinReviews reviews.
type Resolver struct {
	maps       scraper.ListingSource
	aggregator AggregatorLookup
	minReviews int
	limiter    *rate.Limiter
	log        *logging.ComponentLogger

	mResolved *metrics.Counter
	mFailed   *metrics.Counter
}

func New(maps scraper.ListingSource, aggregator AggregatorLookup, minReviews int, settle time.Duration, logger *logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.Nop()
	}
	if minReviews <= 0 {
		minReviews = constants.MinReviews
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if settle > 0 {
		lim = rate.NewLimiter(rate.Every(settle), 1)
	}
	return &Resolver{
		maps:       maps,
		aggregator: aggregator,
		minReviews: minReviews,
		limiter:    lim,
		log:        logger.WithComponent("rating"),
		mResolved:  metrics.Default.Counter("rating_resolved_total", "Ratings confirmed by a live source"),
		mFailed:    metrics.Default.Counter("rating_unconfirmed_total", "Venues with no confident rating source"),
	}
}

// Resolve returns the first confident result for the venue. The error wraps
// ErrNoConfidentSource when the chain is exhausted.
func (r *Resolver) Resolve(ctx context.Context, name, query, area string) (Confirmed, error) {
	c, _, err := r.ResolveWithTrace(ctx, name, query, area)
	return c, err
}

// ResolveWithTrace is Resolve plus the attempts made.
func (r *Resolver) ResolveWithTrace(ctx context.Context, name, query, area string) (Confirmed, []Attempt, error) {
	var trace []Attempt

	queries := []string{strings.TrimSpace(query)}
	if strict := StrictQuery(name, area); strict != queries[0] {
		queries = append(queries, strict)
	}

	for _, q := range queries {
		if err := r.limiter.Wait(ctx); err != nil {
			return Confirmed{}, trace, err
		}
		facts, err := r.maps.Lookup(ctx, q)
		trace = append(trace, Attempt{Source: models.SourceMap, Query: q, Reviews: facts.Reviews, Err: err})
		if c, ok := r.confident(facts, err, models.SourceMap); ok {
			return r.done(name, c, trace)
		}
	}

	if r.aggregator != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return Confirmed{}, trace, err
		}
		facts, err := r.aggregator.LookupVenue(ctx, name, area)
		trace = append(trace, Attempt{Source: models.SourceAggregator, Query: name + " " + area, Reviews: facts.Reviews, Err: err})
		if c, ok := r.confident(facts, err, models.SourceAggregator); ok {
			return r.done(name, c, trace)
		}
	}

	r.mFailed.Inc(1)
	r.log.Warn("no confident rating source", logging.String("name", name), logging.Int("attempts", len(trace)))
	return Confirmed{}, trace, fmt.Errorf("%s: %w", name, ErrNoConfidentSource)
}

// StrictQuery is the reconstructed map query tried second.
func StrictQuery(name, area string) string {
	return strings.TrimSpace(fmt.Sprintf("%s %s %s", name, area, StrictSuffix))
}

func (r *Resolver) confident(f scraper.ListingFacts, err error, src models.RatingSource) (Confirmed, bool) {
	if err != nil {
		r.log.Debug("rating source failed", logging.String("source", string(src)), logging.Error(err))
		return Confirmed{}, false
	}
	if f.Reviews == nil || *f.Reviews < r.minReviews || !f.HasRating() {
		return Confirmed{}, false
	}
	return Confirmed{Rating: *f.Rating, Reviews: *f.Reviews, Source: src}, true
}

func (r *Resolver) done(name string, c Confirmed, trace []Attempt) (Confirmed, []Attempt, error) {
	r.mResolved.Inc(1)
	r.log.Info("rating confirmed", logging.String("name", name), logging.String("source", string(c.Source)), logging.Float64("rating", c.Rating), logging.Int("reviews", c.Reviews))
	return c, trace, nil
}
