// Package gateway exposes the oncal HTTP API.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/verlaine-io/oncal/internal/events"
	"github.com/verlaine-io/oncal/internal/scheduler"
	"github.com/verlaine-io/oncal/oncalendar"
)

// maxPreviewCount bounds the number of occurrences /api/next will compute.
const maxPreviewCount = 1000

// Server is the oncal gateway HTTP server.
type Server struct {
	httpServer *http.Server
	bus        *events.Bus
	sched      *scheduler.Scheduler
	store      *scheduler.Store
	host       string
	port       int
}

// NewServer creates a new gateway server. The store may be nil; firing
// history endpoints then return empty results.
func NewServer(bus *events.Bus, sched *scheduler.Scheduler, store *scheduler.Store, host string, port int) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{
		bus:   bus,
		sched: sched,
		store: store,
		host:  host,
		port:  port,
	}

	// Routes
	r.Get("/api/health", s.handleHealth)
	r.Get("/api/next", s.handleNext)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/firings", s.handleFirings)

	// API: schedules
	r.Get("/api/schedules", s.handleListSchedules)
	r.Post("/api/schedules", s.handleCreateSchedule)
	r.Get("/api/schedules/{id}", s.handleGetSchedule)
	r.Delete("/api/schedules/{id}", s.handleDeleteSchedule)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}

	return s
}

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("oncal gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleNext previews the next occurrences of an expression without
// registering anything.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("expr")
	if expr == "" {
		http.Error(w, "missing expr parameter", http.StatusBadRequest)
		return
	}

	count := 1
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxPreviewCount {
			http.Error(w, "invalid count parameter", http.StatusBadRequest)
			return
		}
		count = n
	}

	from := time.Now()
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid from parameter", http.StatusBadRequest)
			return
		}
		from = t
	}

	sched, err := oncalendar.NewSchedule(expr, from)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	occurrences := make([]string, 0, count)
	for range count {
		next, err := sched.Next()
		if err != nil {
			if errors.Is(err, oncalendar.ErrExhausted) {
				break
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		occurrences = append(occurrences, next.Format(time.RFC3339))
	}

	writeJSON(w, map[string]any{
		"expression":  expr,
		"from":        from.Format(time.RFC3339),
		"occurrences": occurrences,
		"exhausted":   len(occurrences) < count,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	history := s.bus.History(limit)

	type eventJSON struct {
		ID        string             `json:"id"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}

	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}

	writeJSON(w, result)
}

func (s *Server) handleFirings(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, []any{})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	firings, err := s.store.ListFirings(r.URL.Query().Get("entry_id"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if firings == nil {
		firings = []*scheduler.Firing{}
	}
	writeJSON(w, firings)
}

func (s *Server) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	list := s.sched.List()
	if list == nil {
		list = []*scheduler.Entry{}
	}
	writeJSON(w, list)
}

func (s *Server) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title      string `json:"title"`
		Expression string `json:"expression"`
		MaxRuns    int    `json:"max_runs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Expression == "" {
		http.Error(w, "missing expression", http.StatusBadRequest)
		return
	}

	entry := &scheduler.Entry{
		Title:      req.Title,
		Expression: req.Expression,
		MaxRuns:    req.MaxRuns,
		Enabled:    true,
	}
	if err := s.sched.Add(entry); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

func (s *Server) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entry, ok := s.sched.Get(id)
	if !ok {
		http.Error(w, "schedule not found", http.StatusNotFound)
		return
	}

	resp := struct {
		*scheduler.Entry
		NextFire string `json:"next_fire,omitempty"`
	}{Entry: entry}
	if next, ok := s.sched.NextFire(id); ok {
		resp.NextFire = next.Format(time.RFC3339)
	}
	writeJSON(w, resp)
}

func (s *Server) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sched.Remove(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
