package events

import (
	"context"
	"time"
)

// RunSummary is the state of one run rebuilt from its events.
type RunSummary struct {
	RunID     string        `json:"run_id"`
	Events    int           `json:"events"`
	Stages    []string      `json:"stages"`
	LastStage string        `json:"last_stage"`
	Outcome   Type          `json:"outcome,omitempty"` // done, error, or empty while running
	Message   string        `json:"message"`           // terminal message
	Warnings  int           `json:"warnings"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Finished reports whether a terminal event was seen.
func (s *RunSummary) Finished() bool { return s.Outcome != "" }

// Replay applies events in order and rebuilds the run state.
func Replay(evs []Progress) *RunSummary {
	st := &RunSummary{}
	seen := map[string]bool{}
	for i, p := range evs {
		if i == 0 {
			st.RunID = p.RunID
			st.StartedAt = p.At
		}
		st.Events++
		if p.Stage != "" {
			st.LastStage = p.Stage
			if !seen[p.Stage] {
				seen[p.Stage] = true
				st.Stages = append(st.Stages, p.Stage)
			}
		}
		if p.Stage == StageWarning {
			st.Warnings++
		}
		if p.Type.Terminal() {
			st.Outcome = p.Type
			st.Message = p.Message
			at := p.At
			st.EndedAt = &at
			st.Duration = at.Sub(st.StartedAt)
		}
	}
	return st
}

// StageWarning tags non-fatal warnings such as a partial spot list.
const StageWarning = "warning"

// ReplayRun loads and replays a single run from a store.
func ReplayRun(ctx context.Context, s Store, runID string) (*RunSummary, error) {
	evs, err := s.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return Replay(evs), nil
}
