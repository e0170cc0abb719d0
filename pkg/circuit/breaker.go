package circuit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/metrics"
)

// State represents the circuit breaker state
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Config tunes a breaker instance.
type Config struct {
	Name string

	OperationTimeout  time.Duration // per-call timeout, 0 = none
	OpenFor           time.Duration // how long to stay open before a probe
	MaxConsecFailures int           // consecutive failures that open the circuit
	WindowSize        int           // recent calls considered for FailureRate
	FailureRate       float64       // 0..1, 0 disables
}

// ErrOpen is returned while the breaker short-circuits calls.
var ErrOpen = errors.New("circuit open")

// Breaker guards calls to one external system (proposal model, Places API).
type Breaker struct {
	cfg Config
	now func() time.Time

	mu         sync.Mutex
	st         State
	nextProbe  time.Time
	consecFail int
	win        []bool // true = failure
	idx        int
	used       int

	log      *logging.ComponentLogger
	mState   *metrics.Gauge
	mOpens   *metrics.Counter
	mFailure *metrics.Counter
	mLatency *metrics.Histogram
}

func New(cfg Config, log *logging.Logger) *Breaker {
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 20
	}
	if cfg.OpenFor <= 0 {
		cfg.OpenFor = 30 * time.Second
	}
	if log == nil {
		log = logging.Nop()
	}
	prefix := "cb_" + cfg.Name
	return &Breaker{
		cfg:      cfg,
		now:      time.Now,
		win:      make([]bool, cfg.WindowSize),
		log:      log.WithComponent("circuit"),
		mState:   metrics.Default.Gauge(prefix+"_state", "Circuit breaker state (0=closed,1=open,2=half-open)"),
		mOpens:   metrics.Default.Counter(prefix+"_opens_total", "Circuit opened events"),
		mFailure: metrics.Default.Counter(prefix+"_failures_total", "Failed calls through circuit"),
		mLatency: metrics.Default.Histogram(prefix+"_latency_ms", "Latency of calls (ms)", []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}),
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st
}

// Do runs op under the breaker. While open it returns ErrOpen without calling op.
func (b *Breaker) Do(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	if b.st == Open {
		if b.now().Before(b.nextProbe) {
			b.mu.Unlock()
			return ErrOpen
		}
		b.setState(HalfOpen)
	}
	b.mu.Unlock()

	if b.cfg.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.OperationTimeout)
		defer cancel()
	}

	t := b.mLatency.Start()
	err := op(ctx)
	t.ObserveMs()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.record(err != nil)
	if err != nil {
		b.mFailure.Inc(1)
		if b.st == HalfOpen || b.shouldOpen() {
			b.trip()
		}
		return err
	}
	if b.st == HalfOpen {
		b.setState(Closed)
	}
	return nil
}

func (b *Breaker) record(failed bool) {
	if failed {
		b.consecFail++
	} else {
		b.consecFail = 0
	}
	b.win[b.idx] = failed
	b.idx = (b.idx + 1) % len(b.win)
	if b.used < len(b.win) {
		b.used++
	}
}

func (b *Breaker) shouldOpen() bool {
	if b.cfg.MaxConsecFailures > 0 && b.consecFail >= b.cfg.MaxConsecFailures {
		return true
	}
	if b.cfg.FailureRate <= 0 || b.used < len(b.win)/2 {
		return false
	}
	fails := 0
	for i := 0; i < b.used; i++ {
		if b.win[i] {
			fails++
		}
	}
	return float64(fails)/float64(b.used) >= b.cfg.FailureRate
}

func (b *Breaker) trip() {
	b.nextProbe = b.now().Add(b.cfg.OpenFor)
	b.setState(Open)
}

func (b *Breaker) setState(st State) {
	if b.st == st {
		return
	}
	b.st = st
	switch st {
	case Open:
		b.mOpens.Inc(1)
		b.mState.Set(1)
	case HalfOpen:
		b.mState.Set(2)
	default:
		b.mState.Set(0)
	}
	b.log.Info("breaker state change", logging.String("name", b.cfg.Name), logging.String("state", st.String()))
}
