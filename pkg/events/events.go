package events

import (
	"context"
	"sync"
	"time"
)

// Type is the progress event kind delivered to a trigger caller.
type Type string

const (
	TypeLog   Type = "log"
	TypeError Type = "error" // terminal
	TypeDone  Type = "done"  // terminal
)

// Terminal reports whether no further events follow.
func (t Type) Terminal() bool { return t == TypeError || t == TypeDone }

// Progress is one entry of a run's ordered progress stream.
type Progress struct {
	RunID   string    `json:"run_id,omitempty"`
	Seq     int       `json:"seq"`
	Type    Type      `json:"type"`
	Stage   string    `json:"stage,omitempty"`
	Message string    `json:"msg"`
	At      time.Time `json:"at"`
}

// Sink receives progress events in order.
type Sink interface {
	Emit(p Progress)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(p Progress)

func (f SinkFunc) Emit(p Progress) { f(p) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Progress) {})

// Emitter stamps run id, sequence number and time onto events before
// forwarding them. It is safe for concurrent use.
type Emitter struct {
	mu    sync.Mutex
	runID string
	seq   int
	sinks []Sink
	now   func() time.Time
}

func NewEmitter(runID string, sinks ...Sink) *Emitter {
	return &Emitter{runID: runID, sinks: sinks, now: time.Now}
}

func (e *Emitter) Emit(p Progress) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	p.RunID = e.runID
	p.Seq = e.seq
	if p.At.IsZero() {
		p.At = e.now()
	}
	for _, s := range e.sinks {
		s.Emit(p)
	}
}

// Log emits a log event for stage.
func (e *Emitter) Log(stage, msg string) {
	e.Emit(Progress{Type: TypeLog, Stage: stage, Message: msg})
}

// Fail emits the terminal error event.
func (e *Emitter) Fail(stage, msg string) {
	e.Emit(Progress{Type: TypeError, Stage: stage, Message: msg})
}

// Done emits the terminal success event.
func (e *Emitter) Done(stage, msg string) {
	e.Emit(Progress{Type: TypeDone, Stage: stage, Message: msg})
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Progress
}

func (r *Recorder) Emit(p Progress) {
	r.mu.Lock()
	r.events = append(r.events, p)
	r.mu.Unlock()
}

// Events returns a copy of what was recorded.
func (r *Recorder) Events() []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Progress(nil), r.events...)
}

// Store persists progress events of accepted runs.
// Implementations must return events of one run in Seq order.
type Store interface {
	Append(ctx context.Context, evs ...Progress) error
	ListByRun(ctx context.Context, runID string) ([]Progress, error)
	RecentRuns(ctx context.Context, limit int) ([]string, error)
}

// StoreSink forwards events to a Store. Persistence failures go to onErr
// and never block the stream.
type StoreSink struct {
	Store   Store
	Timeout time.Duration
	OnErr   func(error)
}

func (s StoreSink) Emit(p Progress) {
	ctx := context.Background()
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	if err := s.Store.Append(ctx, p); err != nil && s.OnErr != nil {
		s.OnErr(err)
	}
}
