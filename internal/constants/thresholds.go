package constants

// Centralized threshold values used across the pipeline.
// These are defaults; pkg/config may override them per deployment.

const (
	// MinReviews is the confidence bar: a rating counts only with at least
	// this many confirmed reviews.
	MinReviews = 10

	// AuditRadiusKm bounds the distance between a listing and the area center.
	AuditRadiusKm = 15.0

	// Refill loop
	TargetSpots    = 5
	MinSpots       = 3
	MaxAuditRounds = 3

	// Slides rendered besides one per spot: cover, landmark, map/summary, outro.
	FixedSlides = 4

	// Catalog ids are zero padded to this width.
	CatalogIDWidth = 3

	// Circuit breaker rate thresholds
	CircuitFailureRate = 0.6
	CircuitConsecFail  = 3
)
