package events

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps events in process memory. Used when no database is
// configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	byRun map[string][]Progress
	order []string // run ids, first-seen order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byRun: make(map[string][]Progress)}
}

func (m *MemoryStore) Append(_ context.Context, evs ...Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range evs {
		if _, ok := m.byRun[p.RunID]; !ok {
			m.order = append(m.order, p.RunID)
		}
		m.byRun[p.RunID] = append(m.byRun[p.RunID], p)
	}
	return nil
}

func (m *MemoryStore) ListByRun(_ context.Context, runID string) ([]Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]Progress(nil), m.byRun[runID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// RecentRuns returns run ids newest first.
func (m *MemoryStore) RecentRuns(_ context.Context, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for i := len(m.order) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.order[i])
	}
	return out, nil
}
