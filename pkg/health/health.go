package health

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/logging"
)

// Status of a component or of the whole system.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// ComponentHealth is the latest result of one checker.
type ComponentHealth struct {
	Name        string                 `json:"name"`
	Status      Status                 `json:"status"`
	Message     string                 `json:"message,omitempty"`
	Critical    bool                   `json:"critical"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// SystemHealth aggregates every registered checker.
type SystemHealth struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentHealth `json:"components"`
}

// Checker probes one dependency.
type Checker interface {
	Name() string
	Critical() bool
	Check(ctx context.Context) ComponentHealth
}

// Manager runs checkers and caches their last result.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	last     map[string]ComponentHealth
	started  time.Time
	version  string
	timeout  time.Duration
	log      *logging.ComponentLogger
}

func NewManager(version string, timeout time.Duration, logger *logging.Logger) *Manager {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Manager{
		last:    make(map[string]ComponentHealth),
		started: time.Now(),
		version: version,
		timeout: timeout,
		log:     logger.WithComponent("health"),
	}
}

func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
	m.last[c.Name()] = ComponentHealth{Name: c.Name(), Status: StatusUnknown, Critical: c.Critical()}
	m.log.Info("Registered health checker", logging.String("checker", c.Name()))
}

// CheckAll runs every checker sequentially under the manager timeout.
func (m *Manager) CheckAll(ctx context.Context) SystemHealth {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	results := make(map[string]ComponentHealth, len(checkers))
	for _, c := range checkers {
		start := time.Now()
		res := c.Check(ctx)
		res.Name = c.Name()
		res.Critical = c.Critical()
		res.LastChecked = start
		res.Duration = time.Since(start)
		if res.Status != StatusHealthy {
			m.log.Warn("health check not healthy", logging.String("checker", res.Name), logging.String("status", string(res.Status)), logging.String("error", res.Error))
		}
		results[res.Name] = res
	}

	m.mu.Lock()
	for k, v := range results {
		m.last[k] = v
	}
	m.mu.Unlock()
	return m.snapshot(results)
}

// Cached returns the last results without running checks.
func (m *Manager) Cached() SystemHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make(map[string]ComponentHealth, len(m.last))
	for k, v := range m.last {
		cp[k] = v
	}
	return m.snapshot(cp)
}

func (m *Manager) snapshot(components map[string]ComponentHealth) SystemHealth {
	return SystemHealth{
		Status:     overall(components),
		Timestamp:  time.Now(),
		Version:    m.version,
		Uptime:     time.Since(m.started).Round(time.Second).String(),
		Components: components,
	}
}

// overall is unhealthy when a critical component is unhealthy and degraded
// when anything else is off.
func overall(components map[string]ComponentHealth) Status {
	if len(components) == 0 {
		return StatusUnknown
	}
	st := StatusHealthy
	names := make([]string, 0, len(components))
	for n := range components {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c := components[n]
		switch {
		case c.Status == StatusHealthy:
		case c.Critical && c.Status == StatusUnhealthy:
			return StatusUnhealthy
		default:
			st = StatusDegraded
		}
	}
	return st
}

// RegisterRoutes mounts /health, /health/live and /health/ready under base.
func (m *Manager) RegisterRoutes(r *mux.Router, base string) {
	r.HandleFunc(base, m.handleHealth).Methods(http.MethodGet)
	r.HandleFunc(base+"/live", m.handleLive).Methods(http.MethodGet)
	r.HandleFunc(base+"/ready", m.handleReady).Methods(http.MethodGet)
}

func (m *Manager) handleHealth(w http.ResponseWriter, r *http.Request) {
	sh := m.CheckAll(r.Context())
	code := http.StatusOK
	if sh.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, sh)
}

func (m *Manager) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (m *Manager) handleReady(w http.ResponseWriter, _ *http.Request) {
	sh := m.Cached()
	if sh.Status == StatusUnhealthy {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// PingChecker wraps a connectivity probe such as database.DB.Ping.
type PingChecker struct {
	ComponentName string
	IsCritical    bool
	Ping          func(ctx context.Context) error
}

func (p PingChecker) Name() string   { return p.ComponentName }
func (p PingChecker) Critical() bool { return p.IsCritical }

func (p PingChecker) Check(ctx context.Context) ComponentHealth {
	if err := p.Ping(ctx); err != nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: "ping failed", Error: err.Error()}
	}
	return ComponentHealth{Status: StatusHealthy}
}

// FileChecker verifies a file the pipeline depends on is present and readable.
type FileChecker struct {
	ComponentName string
	Path          string
	IsCritical    bool
}

func (f FileChecker) Name() string   { return f.ComponentName }
func (f FileChecker) Critical() bool { return f.IsCritical }

func (f FileChecker) Check(context.Context) ComponentHealth {
	fi, err := os.Stat(f.Path)
	if err != nil {
		return ComponentHealth{Status: StatusUnhealthy, Message: "cannot stat " + f.Path, Error: err.Error()}
	}
	if fi.IsDir() {
		return ComponentHealth{Status: StatusUnhealthy, Message: f.Path + " is a directory"}
	}
	return ComponentHealth{Status: StatusHealthy, Metadata: map[string]interface{}{"bytes": fi.Size(), "modified": fi.ModTime()}}
}

// CredentialChecker reports degraded when an API key is missing.
type CredentialChecker struct {
	ComponentName string
	Present       bool
}

func (c CredentialChecker) Name() string   { return c.ComponentName }
func (c CredentialChecker) Critical() bool { return false }

func (c CredentialChecker) Check(context.Context) ComponentHealth {
	if !c.Present {
		return ComponentHealth{Status: StatusDegraded, Message: "credential not configured"}
	}
	return ComponentHealth{Status: StatusHealthy}
}

// FuncChecker adapts a function; used for in-process state such as the gate.
type FuncChecker struct {
	ComponentName string
	Fn            func(ctx context.Context) ComponentHealth
}

func (f FuncChecker) Name() string                              { return f.ComponentName }
func (f FuncChecker) Critical() bool                            { return false }
func (f FuncChecker) Check(ctx context.Context) ComponentHealth { return f.Fn(ctx) }
