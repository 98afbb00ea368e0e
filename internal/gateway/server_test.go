package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/verlaine-io/oncal/internal/events"
	"github.com/verlaine-io/oncal/internal/scheduler"
)

// waitForEvents polls the bus history until at least n events are present.
func waitForEvents(bus *events.Bus, n int) {
	for i := 0; i < 200; i++ {
		if len(bus.History(100)) >= n {
			return
		}
		runtime.Gosched()
		time.Sleep(time.Millisecond)
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	bus := events.NewBus(64)
	t.Cleanup(func() { bus.Close() })

	sched := scheduler.New(scheduler.Config{Bus: bus})
	sched.Start()
	t.Cleanup(sched.Stop)

	return NewServer(bus, sched, nil, "localhost", 0)
}

func doRequest(srv *Server, method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(w, req)
	return w
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status %q, got %q", "ok", body["status"])
	}
}

func TestHandleNext(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/next?expr=12:34&count=2&from=2026-03-01T00:00:00Z", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Expression  string   `json:"expression"`
		Occurrences []string `json:"occurrences"`
		Exhausted   bool     `json:"exhausted"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	want := []string{"2026-03-01T12:34:00Z", "2026-03-02T12:34:00Z"}
	if len(body.Occurrences) != 2 || body.Occurrences[0] != want[0] || body.Occurrences[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, body.Occurrences)
	}
	if body.Exhausted {
		t.Fatal("expected not exhausted")
	}
}

func TestHandleNext_Exhausted(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/next?expr=2019-01-01&count=3&from=2026-03-01T00:00:00Z", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body struct {
		Occurrences []string `json:"occurrences"`
		Exhausted   bool     `json:"exhausted"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Occurrences) != 0 || !body.Exhausted {
		t.Fatalf("expected exhausted with no occurrences, got %+v", body)
	}
}

func TestHandleNext_BadRequests(t *testing.T) {
	srv := newTestServer(t)

	for _, target := range []string{
		"/api/next",
		"/api/next?expr=123:456",
		"/api/next?expr=12:34&count=0",
		"/api/next?expr=12:34&count=notanumber",
		"/api/next?expr=12:34&from=yesterday",
	} {
		w := doRequest(srv, http.MethodGet, target, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", target, w.Code)
		}
	}
}

func TestHandleSchedules_CRUD(t *testing.T) {
	srv := newTestServer(t)

	// Empty list
	w := doRequest(srv, http.MethodGet, "/api/schedules", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var list []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d items", len(list))
	}

	// Create
	w = doRequest(srv, http.MethodPost, "/api/schedules", `{"title":"nightly","expression":"02:00"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated ID")
	}

	// Get
	w = doRequest(srv, http.MethodGet, "/api/schedules/"+created.ID, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var got struct {
		Title    string `json:"title"`
		NextFire string `json:"next_fire"`
	}
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.Title != "nightly" {
		t.Fatalf("expected title nightly, got %q", got.Title)
	}
	if got.NextFire == "" {
		t.Fatal("expected a next fire time")
	}

	// Delete
	w = doRequest(srv, http.MethodDelete, "/api/schedules/"+created.ID, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", w.Code)
	}

	w = doRequest(srv, http.MethodGet, "/api/schedules/"+created.ID, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", w.Code)
	}
}

func TestHandleCreateSchedule_BadExpression(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/api/schedules", `{"expression":"123:456"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}

	w = doRequest(srv, http.MethodPost, "/api/schedules", `{"title":"no expr"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestHandleEvents_WithHistory(t *testing.T) {
	srv := newTestServer(t)

	srv.bus.Publish(events.NewEvent(events.EventScheduleAdded, events.SourceScheduler, map[string]any{"entry_id": "sched_1"}))
	srv.bus.Publish(events.NewEvent(events.EventScheduleTrigger, events.SourceScheduler, map[string]any{"entry_id": "sched_1"}))

	waitForEvents(srv.bus, 2)

	w := doRequest(srv, http.MethodGet, "/api/events", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) < 2 {
		t.Fatalf("expected at least 2 events, got %d", len(body))
	}
}

func TestHandleEvents_LimitParam(t *testing.T) {
	srv := newTestServer(t)

	for i := 0; i < 10; i++ {
		srv.bus.Publish(events.NewEvent(events.EventScheduleTrigger, events.SourceScheduler, map[string]any{"i": i}))
	}

	waitForEvents(srv.bus, 10)

	w := doRequest(srv, http.MethodGet, "/api/events?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 5 {
		t.Fatalf("expected 5 events with limit=5, got %d", len(body))
	}
}

func TestHandleFirings_NoStore(t *testing.T) {
	srv := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/api/firings", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body []any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body) != 0 {
		t.Fatalf("expected empty array, got %d items", len(body))
	}
}
