package refill

import (
	"context"
	"fmt"
	"strings"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/audit"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/constants"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/domain"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/events"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/geography"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/metrics"
)

// ErrTooFewApproved means the round budget ran out below the floor.
var ErrTooFewApproved = errs.NewBiz("refill.Run", "too few approved spots", nil)

const (
	StageAudit  = "audit"
	StageRefill = "refill"
)

// SpotAuditor is the audit capability the loop drives.
type SpotAuditor interface {
	Audit(ctx context.Context, candidates []models.Candidate, area string, center *geography.Coordinates) (audit.Result, error)
}

// Config bounds the loop.
type Config struct {
	Target      int
	MaxRounds   int
	MinApproved int
}

func DefaultConfig() Config {
	return Config{
		Target:      constants.TargetSpots,
		MaxRounds:   constants.MaxAuditRounds,
		MinApproved: constants.MinSpots,
	}
}

// Plan identifies the area being filled.
type Plan struct {
	Area   string
	Theme  string
	Center *geography.Coordinates
}

// Outcome is the result of a run. Approved keeps audit order and never
// exceeds the target.
type Outcome struct {
	Approved []models.VerifiedSpot
	Rejected []models.RejectedCandidate
	Rounds   int
	Partial  bool
}

// Loop alternates audit rounds with replacement requests.
type Loop struct {
	auditor  SpotAuditor
	proposer domain.Proposer
	cfg      Config
	log      *logging.ComponentLogger

	mRounds  *metrics.Counter
	mRefills *metrics.Counter
	mFailed  *metrics.Counter
}

func New(auditor SpotAuditor, proposer domain.Proposer, cfg Config, logger *logging.Logger) *Loop {
	if logger == nil {
		logger = logging.Nop()
	}
	def := DefaultConfig()
	if cfg.Target <= 0 {
		cfg.Target = def.Target
	}
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = def.MaxRounds
	}
	if cfg.MinApproved <= 0 {
		cfg.MinApproved = def.MinApproved
	}
	if cfg.MinApproved > cfg.Target {
		cfg.MinApproved = cfg.Target
	}
	return &Loop{
		auditor:  auditor,
		proposer: proposer,
		cfg:      cfg,
		log:      logger.WithComponent("refill"),
		mRounds:  metrics.Default.Counter("refill_rounds_total", "Audit rounds run"),
		mRefills: metrics.Default.Counter("refill_requests_total", "Replacement requests sent"),
		mFailed:  metrics.Default.Counter("refill_exhausted_total", "Runs that ended below the approval floor"),
	}
}

// Run audits initial and keeps asking for replacements until the target is
// met, a round has no rejections, or the round budget is spent. A failed
// replacement request ends the rounds early. Fewer than MinApproved
// approvals returns ErrTooFewApproved with the partial outcome.
func (l *Loop) Run(ctx context.Context, plan Plan, initial []models.Candidate, sink events.Sink) (Outcome, error) {
	if sink == nil {
		sink = events.Discard
	}
	var out Outcome
	remaining := initial
	seen := map[string]bool{}
	for _, c := range initial {
		seen[nameKey(c.Name)] = true
	}

	for len(out.Approved) < l.cfg.Target && out.Rounds < l.cfg.MaxRounds {
		out.Rounds++
		l.mRounds.Inc(1)
		emit(sink, StageAudit, fmt.Sprintf("round %d: auditing %d candidates", out.Rounds, len(remaining)))

		res, err := l.auditor.Audit(ctx, remaining, plan.Area, plan.Center)
		out.Approved = append(out.Approved, res.Approved...)
		out.Rejected = append(out.Rejected, res.Rejected...)
		if err != nil {
			return out, err
		}
		emit(sink, StageAudit, roundSummary(out.Rounds, res))

		if len(res.Rejected) == 0 {
			break
		}
		need := l.cfg.Target - len(out.Approved)
		if need <= 0 || out.Rounds >= l.cfg.MaxRounds {
			break
		}

		note := ExclusionNote(out.Rejected, plan.Area, need)
		emit(sink, StageRefill, fmt.Sprintf("requesting %d replacements", need))
		l.mRefills.Inc(1)
		next, err := l.proposer.Refill(ctx, domain.RefillRequest{Area: plan.Area, Theme: plan.Theme, ExclusionNote: note, Count: need})
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			l.log.Warn("replacement request failed", logging.String("area", plan.Area), logging.Error(err))
			emit(sink, StageRefill, "replacement request failed: "+err.Error())
			break
		}
		remaining = fresh(next, seen)
		if len(remaining) == 0 {
			emit(sink, StageRefill, "no new candidates proposed")
			break
		}
	}

	if len(out.Approved) > l.cfg.Target {
		out.Approved = out.Approved[:l.cfg.Target]
	}

	if len(out.Approved) < l.cfg.MinApproved {
		l.mFailed.Inc(1)
		l.log.Warn("approval floor not reached", logging.String("area", plan.Area), logging.Int("approved", len(out.Approved)), logging.Int("rounds", out.Rounds))
		return out, fmt.Errorf("%s: %d approved after %d rounds: %w", plan.Area, len(out.Approved), out.Rounds, ErrTooFewApproved)
	}
	if len(out.Approved) < l.cfg.Target {
		out.Partial = true
		emit(sink, events.StageWarning, fmt.Sprintf("only %d of %d spots approved, continuing", len(out.Approved), l.cfg.Target))
	}
	l.log.Info("refill finished", logging.String("area", plan.Area), logging.Int("approved", len(out.Approved)), logging.Int("rejected", len(out.Rejected)), logging.Int("rounds", out.Rounds))
	return out, nil
}

// ExclusionNote tells the proposal source which venues failed and why, and
// how many new ones are needed.
func ExclusionNote(rejected []models.RejectedCandidate, area string, need int) string {
	parts := make([]string, 0, len(rejected))
	for _, r := range rejected {
		parts = append(parts, fmt.Sprintf("%s（%s）", r.Candidate.Name, r.Reason.String()))
	}
	return fmt.Sprintf("「%s」は不合格。代わりに%sに実在する別の%d件を必ず追加して。", strings.Join(parts, "、"), area, need)
}

// fresh drops candidates already audited in this run.
func fresh(in []models.Candidate, seen map[string]bool) []models.Candidate {
	var out []models.Candidate
	for _, c := range in {
		k := nameKey(c.Name)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, c)
	}
	return out
}

func nameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), ""))
}

func roundSummary(round int, res audit.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "round %d: %d approved, %d rejected", round, len(res.Approved), len(res.Rejected))
	for _, v := range res.Approved {
		fmt.Fprintf(&b, "\n  ok %s", v.Name)
	}
	for _, r := range res.Rejected {
		fmt.Fprintf(&b, "\n  ng %s (%s)", r.Candidate.Name, r.Reason.String())
	}
	return b.String()
}

func emit(sink events.Sink, stage, msg string) {
	sink.Emit(events.Progress{Type: events.TypeLog, Stage: stage, Message: msg})
}
