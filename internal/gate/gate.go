package gate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/events"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/metrics"
)

// ErrBusy is returned when another run holds the gate.
var ErrBusy = errs.NewBiz("gate.Run", "a run is already in progress", nil)

// BusyMessage is the error event sent to a rejected trigger.
const BusyMessage = "別のタスクが実行中です。完了までお待ちください。"

// Request is what a trigger asks for. Blank fields leave the choice to the
// proposal source.
type Request struct {
	Location string `json:"loc"`
	Theme    string `json:"theme"`
	Custom   string `json:"custom"`
	// Operator is who triggered the run, when the remote page is
	// allowlisted.
	Operator string `json:"operator,omitempty"`
}

// Runner is the work guarded by the gate. It reports progress through em
// and returns the message of the final done event. Terminal events are
// emitted by the gate.
type Runner interface {
	Execute(ctx context.Context, req Request, em *events.Emitter) (string, error)
}

// StageError tags a failure with the stage it happened in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

func stageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// RunInfo describes the active run.
type RunInfo struct {
	RunID   string    `json:"run_id"`
	Request Request   `json:"request"`
	Started time.Time `json:"started"`
}

// Gate lets at most one run execute at a time. The busy flag is a single
// atomic word so acquire and release never interleave.
type Gate struct {
	busy    atomic.Bool
	current atomic.Pointer[RunInfo]

	runner  Runner
	store   events.Store
	timeout time.Duration
	log     *logging.ComponentLogger

	mAccepted *metrics.Counter
	mRejected *metrics.Counter
	mFailed   *metrics.Counter
	mBusy     *metrics.Gauge
}

// Options configures a Gate. Store and Timeout are optional.
type Options struct {
	Store   events.Store
	Timeout time.Duration
}

func New(runner Runner, opts Options, logger *logging.Logger) *Gate {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Gate{
		runner:    runner,
		store:     opts.Store,
		timeout:   opts.Timeout,
		log:       logger.WithComponent("gate"),
		mAccepted: metrics.Default.Counter("gate_runs_accepted_total", "Runs admitted by the gate"),
		mRejected: metrics.Default.Counter("gate_runs_rejected_total", "Triggers rejected while busy"),
		mFailed:   metrics.Default.Counter("gate_runs_failed_total", "Admitted runs that ended in error"),
		mBusy:     metrics.Default.Gauge("gate_busy", "1 while a run holds the gate"),
	}
}

// TryAcquire takes the gate if it is free.
func (g *Gate) TryAcquire() bool {
	if !g.busy.CompareAndSwap(false, true) {
		return false
	}
	g.mBusy.Set(1)
	return true
}

// Release frees the gate.
func (g *Gate) Release() {
	g.current.Store(nil)
	g.busy.Store(false)
	g.mBusy.Set(0)
}

// Busy reports whether a run holds the gate.
func (g *Gate) Busy() bool { return g.busy.Load() }

// Current returns the active run, or nil.
func (g *Gate) Current() *RunInfo { return g.current.Load() }

// Run executes one run when the gate is free, else returns ErrBusy without
// emitting anything. Every admitted run ends with exactly one terminal
// event, panics included, and the gate is released before Run returns.
func (g *Gate) Run(ctx context.Context, req Request, sink events.Sink) (err error) {
	if !g.TryAcquire() {
		g.mRejected.Inc(1)
		g.log.Info("trigger rejected, gate busy")
		return ErrBusy
	}
	defer g.Release()

	runID := uuid.NewString()
	info := &RunInfo{RunID: runID, Request: req, Started: time.Now()}
	g.current.Store(info)
	g.mAccepted.Inc(1)

	sinks := []events.Sink{}
	if sink != nil {
		sinks = append(sinks, sink)
	}
	if g.store != nil {
		sinks = append(sinks, events.StoreSink{
			Store:   g.store,
			Timeout: 5 * time.Second,
			OnErr:   func(err error) { g.log.Warn("event not persisted", logging.String("run_id", runID), logging.Error(err)) },
		})
	}
	em := events.NewEmitter(runID, sinks...)

	ctx = logging.WithRunID(ctx, runID)
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	clog := g.log.Ctx(ctx)
	clog.Info("run started", logging.String("location", req.Location), logging.String("theme", req.Theme), logging.String("operator", req.Operator))

	defer func() {
		if r := recover(); r != nil {
			err = errs.NewBiz("gate.Run", fmt.Sprintf("panic: %v", r), nil)
			g.mFailed.Inc(1)
			clog.Error("run panicked", err)
			em.Fail("panic", fmt.Sprintf("予期せぬエラー: %v", r))
		}
	}()

	summary, err := g.runner.Execute(ctx, req, em)
	if err != nil {
		g.mFailed.Inc(1)
		clog.Error("run failed", err, logging.String("stage", stageOf(err)), logging.Duration("elapsed", time.Since(info.Started)))
		em.Fail(stageOf(err), err.Error())
		return err
	}
	em.Done("done", summary)
	clog.Info("run finished", logging.Duration("elapsed", time.Since(info.Started)))
	return nil
}
