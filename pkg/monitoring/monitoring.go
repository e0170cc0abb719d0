package monitoring

import (
	"encoding/json"
	"net/http"
	pp "net/http/pprof"
	"runtime"
	"time"

	"github.com/gorilla/mux"

	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/metrics"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the middleware.
func (sw *statusWriter) Flush() {
	if f, ok := sw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request latency and status classes into reg.
// Streaming routes are counted but kept out of the latency histogram.
func Middleware(reg *metrics.Registry, streaming ...string) mux.MiddlewareFunc {
	latency := reg.Histogram("http_request_duration_ms", "HTTP request latency (ms)", []float64{5, 25, 100, 250, 1000, 5000})
	classes := map[int]*metrics.Counter{
		2: reg.Counter("http_responses_2xx_total", "2xx responses"),
		3: reg.Counter("http_responses_3xx_total", "3xx responses"),
		4: reg.Counter("http_responses_4xx_total", "4xx responses"),
		5: reg.Counter("http_responses_5xx_total", "5xx responses"),
	}
	skip := make(map[string]bool, len(streaming))
	for _, p := range streaming {
		skip[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			if c, ok := classes[sw.status/100]; ok {
				c.Inc(1)
			}
			if !skip[r.URL.Path] {
				latency.Observe(float64(time.Since(start)) / float64(time.Millisecond))
			}
		})
	}
}

// RuntimeHandler exposes goroutine and memory stats as JSON.
func RuntimeHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"time":             time.Now().Format(time.RFC3339),
			"goroutines":       runtime.NumGoroutine(),
			"mem_alloc_bytes":  ms.Alloc,
			"heap_inuse_bytes": ms.HeapInuse,
			"gc_num":           ms.NumGC,
		})
	})
}

// AdminRouter builds the admin port handler: metrics, runtime stats and
// optionally pprof.
func AdminRouter(reg *metrics.Registry, metricsPath string, profiling bool) *mux.Router {
	r := mux.NewRouter()
	r.Handle(metricsPath, reg.Handler()).Methods(http.MethodGet)
	r.Handle("/debug/runtime", RuntimeHandler()).Methods(http.MethodGet)
	if profiling {
		RegisterPprof(r)
	}
	return r
}

// RegisterPprof mounts the standard pprof handlers under /debug/pprof/.
func RegisterPprof(r *mux.Router) {
	r.HandleFunc("/debug/pprof/cmdline", pp.Cmdline)
	r.HandleFunc("/debug/pprof/profile", pp.Profile)
	r.HandleFunc("/debug/pprof/symbol", pp.Symbol)
	r.HandleFunc("/debug/pprof/trace", pp.Trace)
	r.PathPrefix("/debug/pprof/").HandlerFunc(pp.Index)
}

// EnableProfiling toggles block and mutex profiling rates.
func EnableProfiling(enabled bool) {
	if enabled {
		runtime.SetBlockProfileRate(1)
		runtime.SetMutexProfileFraction(5)
		return
	}
	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)
}
