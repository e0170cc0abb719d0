package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/auth"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/events"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// Handler exposes the gate over HTTP. /run streams progress as
// server-sent events.
type Handler struct {
	gate  *Gate
	store events.Store
	log   *logging.ComponentLogger
}

func NewHandler(g *Gate, store events.Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Handler{gate: g, store: store, log: logger.WithComponent("gate.http")}
}

// Register mounts the trigger and status routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/run", h.handleRun).Methods(http.MethodGet)
	r.HandleFunc("/api/status", h.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/runs", h.handleRecent).Methods(http.MethodGet)
	r.HandleFunc("/api/runs/{id}", h.handleReplay).Methods(http.MethodGet)
}

// queueSink buffers events without blocking the run. The request goroutine
// drains it.
type queueSink struct {
	mu     sync.Mutex
	queue  []events.Progress
	notify chan struct{}
}

func newQueueSink() *queueSink {
	return &queueSink{notify: make(chan struct{}, 1)}
}

func (q *queueSink) Emit(p events.Progress) {
	q.mu.Lock()
	q.queue = append(q.queue, p)
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queueSink) drain() []events.Progress {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.queue
	q.queue = nil
	return out
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	q := r.URL.Query()
	req := Request{Location: q.Get("loc"), Theme: q.Get("theme"), Custom: q.Get("custom")}
	req.Operator, _ = auth.OperatorFrom(r.Context())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sink := newQueueSink()
	done := make(chan error, 1)
	// A disconnecting client must not abort a run that already holds the gate.
	runCtx := context.WithoutCancel(r.Context())
	go func() { done <- h.gate.Run(runCtx, req, sink) }()

	write := func(evs []events.Progress) bool {
		for _, p := range evs {
			if err := writeEvent(w, p); err != nil {
				return false
			}
		}
		flusher.Flush()
		return true
	}

	for {
		select {
		case <-sink.notify:
			if !write(sink.drain()) {
				return
			}
		case err := <-done:
			write(sink.drain())
			if errors.Is(err, ErrBusy) {
				write([]events.Progress{{Type: events.TypeError, Stage: "busy", Message: BusyMessage}})
			}
			return
		case <-r.Context().Done():
			h.log.Info("client disconnected, run continues in background")
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, p events.Progress) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}

type statusResponse struct {
	Busy    bool     `json:"busy"`
	Current *RunInfo `json:"current,omitempty"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{Busy: h.gate.Busy(), Current: h.gate.Current()})
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusOK, []string{})
		return
	}
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	ids, err := h.store.RecentRuns(r.Context(), limit)
	if err != nil {
		h.log.Error("list runs", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

func (h *Handler) handleReplay(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "run history disabled", http.StatusNotFound)
		return
	}
	id := mux.Vars(r)["id"]
	sum, err := events.ReplayRun(r.Context(), h.store, id)
	if err != nil {
		h.log.Error("replay run", err, logging.String("run_id", id))
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return
	}
	if sum.Events == 0 {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
