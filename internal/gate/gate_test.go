package gate

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	errs "github.com/taiyoimmt-ops/tiktok-growth-director/pkg/errors"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/events"
)

type funcRunner func(ctx context.Context, req Request, em *events.Emitter) (string, error)

func (f funcRunner) Execute(ctx context.Context, req Request, em *events.Emitter) (string, error) {
	return f(ctx, req, em)
}

func terminals(evs []events.Progress) []events.Progress {
	var out []events.Progress
	for _, p := range evs {
		if p.Type.Terminal() {
			out = append(out, p)
		}
	}
	return out
}

func TestTryAcquireIsExclusive(t *testing.T) {
	g := New(funcRunner(nil), Options{}, nil)
	var won int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.TryAcquire() {
				atomic.AddInt32(&won, 1)
			}
		}()
	}
	close(start)
	wg.Wait()
	if won != 1 {
		t.Fatalf("%d callers acquired the gate", won)
	}
	g.Release()
	if g.Busy() || !g.TryAcquire() {
		t.Fatal("gate not reusable after release")
	}
}

func TestRunRejectsWhileBusy(t *testing.T) {
	entered := make(chan struct{})
	proceed := make(chan struct{})
	g := New(funcRunner(func(ctx context.Context, req Request, em *events.Emitter) (string, error) {
		em.Log("propose", "working")
		close(entered)
		<-proceed
		return "finished", nil
	}), Options{}, nil)

	first := &events.Recorder{}
	done := make(chan error, 1)
	go func() { done <- g.Run(context.Background(), Request{Location: "吉祥寺"}, first) }()
	<-entered

	if cur := g.Current(); cur == nil || cur.Request.Location != "吉祥寺" || cur.RunID == "" {
		t.Fatalf("current = %+v", cur)
	}

	second := &events.Recorder{}
	if err := g.Run(context.Background(), Request{}, second); !errors.Is(err, ErrBusy) {
		t.Fatalf("second trigger err = %v, want ErrBusy", err)
	}
	if n := len(second.Events()); n != 0 {
		t.Errorf("rejected trigger got %d events", n)
	}

	close(proceed)
	if err := <-done; err != nil {
		t.Fatalf("first run: %v", err)
	}
	evs := first.Events()
	term := terminals(evs)
	if len(term) != 1 || term[0].Type != events.TypeDone || term[0].Message != "finished" {
		t.Fatalf("terminals = %+v", term)
	}
	if evs[len(evs)-1] != term[0] {
		t.Error("terminal event must be last")
	}
	for i, p := range evs {
		if p.Seq != i+1 || p.RunID != evs[0].RunID {
			t.Errorf("event %d = %+v", i, p)
		}
	}
	if g.Busy() || g.Current() != nil {
		t.Error("gate still held after run")
	}
}

func TestRunReportsStageOfFailure(t *testing.T) {
	g := New(funcRunner(func(ctx context.Context, req Request, em *events.Emitter) (string, error) {
		return "", &StageError{Stage: "audit", Err: errors.New("2 approved after 3 rounds")}
	}), Options{}, nil)
	rec := &events.Recorder{}
	err := g.Run(context.Background(), Request{}, rec)
	if err == nil {
		t.Fatal("expected error")
	}
	term := terminals(rec.Events())
	if len(term) != 1 || term[0].Type != events.TypeError || term[0].Stage != "audit" {
		t.Fatalf("terminals = %+v", term)
	}
	if term[0].Message != "2 approved after 3 rounds" {
		t.Errorf("message = %q", term[0].Message)
	}
	if g.Busy() {
		t.Error("gate held after failure")
	}
}

func TestRunRecoversFromPanic(t *testing.T) {
	calls := 0
	g := New(funcRunner(func(ctx context.Context, req Request, em *events.Emitter) (string, error) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return "ok", nil
	}), Options{}, nil)

	rec := &events.Recorder{}
	err := g.Run(context.Background(), Request{}, rec)
	if !errs.Is(err, errs.ErrBiz) {
		t.Fatalf("err = %v, want biz error", err)
	}
	term := terminals(rec.Events())
	if len(term) != 1 || term[0].Type != events.TypeError || term[0].Stage != "panic" {
		t.Fatalf("terminals = %+v", term)
	}
	if g.Busy() {
		t.Fatal("gate held after panic")
	}
	if err := g.Run(context.Background(), Request{}, nil); err != nil {
		t.Fatalf("run after panic: %v", err)
	}
}

func TestRunPersistsEvents(t *testing.T) {
	store := events.NewMemoryStore()
	g := New(funcRunner(func(ctx context.Context, req Request, em *events.Emitter) (string, error) {
		em.Log("propose", "a")
		em.Emit(events.Progress{Type: events.TypeLog, Stage: events.StageWarning, Message: "partial"})
		return "done", nil
	}), Options{Store: store}, nil)

	if err := g.Run(context.Background(), Request{}, nil); err != nil {
		t.Fatal(err)
	}
	ids, _ := store.RecentRuns(context.Background(), 1)
	if len(ids) != 1 {
		t.Fatalf("runs = %v", ids)
	}
	sum, err := events.ReplayRun(context.Background(), store, ids[0])
	if err != nil {
		t.Fatal(err)
	}
	if sum.Events != 3 || sum.Outcome != events.TypeDone || sum.Warnings != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunAppliesTimeout(t *testing.T) {
	g := New(funcRunner(func(ctx context.Context, req Request, em *events.Emitter) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), Options{Timeout: 10 * time.Millisecond}, nil)
	if err := g.Run(context.Background(), Request{}, nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}
