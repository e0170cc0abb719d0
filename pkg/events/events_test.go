package events

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestEmitterStampsSequenceAndRunID(t *testing.T) {
	rec := &Recorder{}
	e := NewEmitter("run-1", rec)
	e.Log("proposal", "asking")
	e.Log("audit", "round 1")
	e.Done("schedule", "finished")

	got := rec.Events()
	if len(got) != 3 {
		t.Fatalf("got %d events, want 3", len(got))
	}
	for i, p := range got {
		if p.Seq != i+1 {
			t.Errorf("event %d seq = %d", i, p.Seq)
		}
		if p.RunID != "run-1" {
			t.Errorf("event %d run id = %q", i, p.RunID)
		}
		if p.At.IsZero() {
			t.Errorf("event %d has no timestamp", i)
		}
	}
	if !got[2].Type.Terminal() || got[0].Type.Terminal() {
		t.Errorf("terminal flags wrong: %v %v", got[0].Type, got[2].Type)
	}
}

func TestReplayBuildsSummary(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	evs := []Progress{
		{RunID: "r", Seq: 1, Type: TypeLog, Stage: "proposal", Message: "a", At: start},
		{RunID: "r", Seq: 2, Type: TypeLog, Stage: "audit", Message: "b", At: start.Add(time.Second)},
		{RunID: "r", Seq: 3, Type: TypeLog, Stage: StageWarning, Message: "only 4", At: start.Add(2 * time.Second)},
		{RunID: "r", Seq: 4, Type: TypeLog, Stage: "audit", Message: "c", At: start.Add(3 * time.Second)},
		{RunID: "r", Seq: 5, Type: TypeError, Stage: "catalog", Message: "disk full", At: start.Add(5 * time.Second)},
	}
	s := Replay(evs)
	if s.RunID != "r" || s.Events != 5 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if want := []string{"proposal", "audit", StageWarning, "catalog"}; len(s.Stages) != len(want) {
		t.Errorf("stages = %v, want %v", s.Stages, want)
	}
	if s.Outcome != TypeError || s.Message != "disk full" {
		t.Errorf("outcome = %v %q", s.Outcome, s.Message)
	}
	if s.Warnings != 1 {
		t.Errorf("warnings = %d", s.Warnings)
	}
	if s.Duration != 5*time.Second {
		t.Errorf("duration = %v", s.Duration)
	}
	if !s.Finished() {
		t.Error("expected finished")
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	sink := StoreSink{Store: st}
	NewEmitter("a", sink).Log("x", "1")
	e := NewEmitter("b", sink)
	e.Log("x", "1")
	e.Done("y", "ok")

	evs, err := st.ListByRun(ctx, "b")
	if err != nil || len(evs) != 2 {
		t.Fatalf("ListByRun = %v, %v", evs, err)
	}
	runs, _ := st.RecentRuns(ctx, 10)
	if len(runs) != 2 || runs[0] != "b" {
		t.Errorf("recent runs = %v", runs)
	}
	sum, err := ReplayRun(ctx, st, "b")
	if err != nil || sum.Outcome != TypeDone {
		t.Errorf("replay = %+v, %v", sum, err)
	}
}

type failingStore struct{ MemoryStore }

func (failingStore) Append(context.Context, ...Progress) error { return errors.New("down") }

func TestStoreSinkReportsErrors(t *testing.T) {
	var got error
	sink := StoreSink{Store: &failingStore{}, OnErr: func(err error) { got = err }}
	sink.Emit(Progress{Type: TypeLog})
	if got == nil {
		t.Fatal("expected OnErr to be called")
	}
}
