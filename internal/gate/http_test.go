package gate

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/taiyoimmt-ops/tiktok-growth-director/internal/auth"
	"github.com/taiyoimmt-ops/tiktok-growth-director/pkg/events"
)

func newServer(t *testing.T, g *Gate, store events.Store) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	NewHandler(g, store, nil).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func readStream(t *testing.T, url string) []events.Progress {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}
	var out []events.Progress
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var p events.Progress
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &p); err != nil {
			t.Fatalf("bad payload %q: %v", line, err)
		}
		out = append(out, p)
	}
	return out
}

func TestRunStreamsProgress(t *testing.T) {
	reqs := make(chan Request, 1)
	g := New(funcRunner(func(ctx context.Context, req Request, em *events.Emitter) (string, error) {
		reqs <- req
		em.Log("propose", "one")
		em.Log("audit", "two")
		return "完了", nil
	}), Options{}, nil)
	srv := newServer(t, g, nil)

	evs := readStream(t, srv.URL+"/run?loc=%E5%90%89%E7%A5%A5%E5%AF%BA&theme=cafe")
	if len(evs) != 3 {
		t.Fatalf("events = %+v", evs)
	}
	if evs[0].Message != "one" || evs[2].Type != events.TypeDone || evs[2].Message != "完了" {
		t.Errorf("events = %+v", evs)
	}
	if got := <-reqs; got.Location != "吉祥寺" || got.Theme != "cafe" {
		t.Errorf("request = %+v", got)
	}
}

func TestRunStreamRejectsWhenBusy(t *testing.T) {
	g := New(funcRunner(func(ctx context.Context, req Request, em *events.Emitter) (string, error) {
		t.Error("runner must not start while busy")
		return "", nil
	}), Options{}, nil)
	srv := newServer(t, g, nil)

	if !g.TryAcquire() {
		t.Fatal("acquire")
	}
	defer g.Release()

	evs := readStream(t, srv.URL+"/run")
	if len(evs) != 1 || evs[0].Type != events.TypeError || evs[0].Message != BusyMessage {
		t.Fatalf("events = %+v", evs)
	}
}

func TestStatusAndReplay(t *testing.T) {
	store := events.NewMemoryStore()
	g := New(funcRunner(func(ctx context.Context, req Request, em *events.Emitter) (string, error) {
		return "ok", nil
	}), Options{Store: store}, nil)
	srv := newServer(t, g, store)

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	var st statusResponse
	_ = json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if st.Busy || st.Current != nil {
		t.Errorf("status = %+v", st)
	}

	readStream(t, srv.URL+"/run")
	ids, _ := store.RecentRuns(context.Background(), 1)
	if len(ids) != 1 {
		t.Fatalf("runs = %v", ids)
	}

	resp, err = http.Get(srv.URL + "/api/runs/" + ids[0])
	if err != nil {
		t.Fatal(err)
	}
	var sum events.RunSummary
	_ = json.NewDecoder(resp.Body).Decode(&sum)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || sum.Outcome != events.TypeDone || sum.Message != "ok" {
		t.Errorf("replay = %d %+v", resp.StatusCode, sum)
	}

	resp, err = http.Get(srv.URL + "/api/runs/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown run status = %d", resp.StatusCode)
	}
}

func TestRunCarriesOperator(t *testing.T) {
	reqs := make(chan Request, 1)
	g := New(funcRunner(func(ctx context.Context, req Request, em *events.Emitter) (string, error) {
		reqs <- req
		return "ok", nil
	}), Options{}, nil)
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithOperator(req.Context(), "taiyo")))
		})
	})
	NewHandler(g, nil, nil).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	readStream(t, srv.URL+"/run?loc=x")
	if got := <-reqs; got.Operator != "taiyo" {
		t.Errorf("operator = %q", got.Operator)
	}
}
