package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/domain"
	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/models"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/metrics"
)

// reSlide matches rendered slide files. A folder holding at least one is
// considered generated.
var reSlide = regexp.MustCompile(`^slide_\d+\.png$`)

// JobRunner executes one generation job in isolation.
type JobRunner interface {
	RunJob(ctx context.Context, id string) models.JobStatus
}

// Publisher pushes the built gallery somewhere public.
type Publisher interface {
	Publish(ctx context.Context, ids []string) (string, error)
}

// Options wires the scheduler's collaborators. Gallery and Publisher are
// optional.
type Options struct {
	Catalog    domain.CatalogRepository
	Runner     JobRunner
	LibraryDir string
	Cooldown   time.Duration
	Runs       domain.RunRepository
	Gallery    *Gallery
	Publisher  Publisher
}

// Scheduler picks pending catalog records and runs them one after another.
type Scheduler struct {
	opts Options
	log  *logging.ComponentLogger

	mJobs   *metrics.Counter
	mFailed *metrics.Counter
	mJobDur *metrics.Histogram
}

func New(opts Options, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.Runs == nil {
		opts.Runs = domain.NopRunRepository{}
	}
	if opts.Cooldown < 0 {
		opts.Cooldown = 0
	}
	return &Scheduler{
		opts:    opts,
		log:     logger.WithComponent("scheduler"),
		mJobs:   metrics.Default.Counter("scheduler_jobs_total", "Generation jobs run"),
		mFailed: metrics.Default.Counter("scheduler_jobs_failed_total", "Generation jobs that failed"),
		mJobDur: metrics.Default.Histogram("scheduler_job_duration_ms", "Generation job duration (ms)", []float64{5000, 15000, 30000, 60000, 120000, 300000, 600000}),
	}
}

// Generated reports whether folder under the library holds rendered slides.
func (s *Scheduler) Generated(folder string) bool {
	entries, err := os.ReadDir(filepath.Join(s.opts.LibraryDir, folder))
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() && reSlide.MatchString(e.Name()) {
			return true
		}
	}
	return false
}

// SelectPending returns up to n records without output, in catalog order.
// n <= 0 returns every pending record.
func (s *Scheduler) SelectPending(n int) ([]models.AreaRecord, error) {
	c, err := s.opts.Catalog.Load()
	if err != nil {
		return nil, err
	}
	var pending []models.AreaRecord
	for _, a := range c.Areas {
		if s.Generated(a.Folder) {
			continue
		}
		pending = append(pending, a)
		if n > 0 && len(pending) == n {
			break
		}
	}
	return pending, nil
}

// Run executes the jobs in order with the cool-down between them. A failed
// job is recorded and the batch moves on. The gallery is rebuilt afterwards
// and published when a Publisher is set.
func (s *Scheduler) Run(ctx context.Context, ids []string) models.BatchRunReport {
	report := models.BatchRunReport{StartedAt: time.Now()}
	batchID := uuid.NewString()
	s.log.Info("batch started", logging.String("batch_id", batchID), logging.Strings("ids", ids))

	for i, id := range ids {
		if i > 0 && s.opts.Cooldown > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.opts.Cooldown):
			}
		}
		var js models.JobStatus
		if ctx.Err() != nil {
			js = models.JobStatus{ID: id, Status: models.JobFailed, Result: &models.JobResult{AreaID: id, Error: ctx.Err().Error()}}
		} else {
			js = s.runOne(ctx, id)
		}
		report.Jobs = append(report.Jobs, js)
		if err := s.opts.Runs.RecordJobCtx(context.WithoutCancel(ctx), batchID, js); err != nil {
			s.log.Warn("run history not recorded", logging.String("id", id), logging.Error(err))
		}
	}

	if s.opts.Gallery != nil {
		if entries, err := s.opts.Gallery.Build(); err != nil {
			report.GalleryErr = err.Error()
			s.log.Error("gallery build failed", err)
		} else {
			s.log.Info("gallery built", logging.Int("areas", len(entries)))
		}
	}
	if s.opts.Publisher != nil && report.GalleryErr == "" && ctx.Err() == nil {
		url, err := s.opts.Publisher.Publish(ctx, ids)
		if err != nil {
			s.log.Error("publish failed", err)
		} else {
			report.Published = true
			s.log.Info("gallery published", logging.String("url", url))
		}
	}

	report.FinishedAt = time.Now()
	s.log.Info("batch finished",
		logging.String("batch_id", batchID),
		logging.Int("jobs", len(report.Jobs)),
		logging.Int("failed", report.Failed()),
		logging.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)))
	return report
}

func (s *Scheduler) runOne(ctx context.Context, id string) models.JobStatus {
	s.log.Info("job started", logging.String("id", id))
	t := s.mJobDur.Start()
	js := s.opts.Runner.RunJob(ctx, id)
	t.ObserveMs()
	js.ID = id

	s.mJobs.Inc(1)
	if js.Status != models.JobSuccess {
		s.mFailed.Inc(1)
		msg, code := "", -1
		if js.Result != nil {
			msg = js.Result.Error
		}
		if js.ExitCode != nil {
			code = *js.ExitCode
		}
		s.log.Warn("job failed", logging.String("id", id), logging.Int("exit_code", code), logging.String("error", msg))
		return js
	}
	s.log.Info("job finished", logging.String("id", id))
	return js
}
