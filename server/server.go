// ABOUTME: HTTP API for starting, observing, cancelling, and reporting on pipeline runs.
// ABOUTME: chi router with JSON endpoints and an SSE relay over each run's event stream.

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/seam-research/lacuna/pipeline"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr   string // listen address (default: "127.0.0.1:8386")
	Engine *pipeline.Engine
}

// Server exposes the pipeline engine over HTTP. Runs live in memory for the
// lifetime of the process; there is no persistence layer.
type Server struct {
	engine *pipeline.Engine
	router chi.Router
	addr   string

	mu   sync.RWMutex
	runs map[string]*runRecord
}

// NewServer creates a Server around the given engine.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("Engine must not be nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8386"
	}

	s := &Server{
		engine: cfg.Engine,
		addr:   cfg.Addr,
		runs:   make(map[string]*runRecord),
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe starts the HTTP server with timeouts that tolerate
// long-lived SSE connections without letting slow clients hold headers open.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	log.Printf("component=server action=listen addr=%s", s.addr)
	return srv.ListenAndServe()
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/api/pipelines", s.handlePipelines)

	r.Route("/api/runs", func(r chi.Router) {
		r.Post("/", s.handleRunCreate)
		r.Get("/", s.handleRunList)

		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", s.handleRunStatus)
			r.Get("/events", s.handleRunEvents)
			r.Post("/cancel", s.handleRunCancel)
			r.Get("/report", s.handleRunReport)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePipelines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pipelines": pipeline.Kinds()})
}

type createRunRequest struct {
	Goal     string `json:"goal"`
	Pipeline string `json:"pipeline"`
}

type runStatusResponse struct {
	ID         string    `json:"id"`
	Pipeline   string    `json:"pipeline"`
	Goal       string    `json:"goal"`
	Outcome    string    `json:"outcome,omitempty"`
	Finished   bool      `json:"finished"`
	Iteration  int       `json:"iteration"`
	EventCount int       `json:"event_count"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleRunCreate(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Goal == "" {
		writeError(w, http.StatusBadRequest, "goal must not be empty")
		return
	}
	if req.Pipeline == "" {
		req.Pipeline = pipeline.KindGapFinder
	}

	// Runs outlive the request; they are bounded by the engine's own
	// cancellation, not the HTTP request context.
	run, err := s.engine.Start(context.Background(), req.Goal, req.Pipeline)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := newRunRecord(run, req.Goal, req.Pipeline)
	s.mu.Lock()
	s.runs[run.ID] = rec
	s.mu.Unlock()

	log.Printf("component=server action=run_created run=%s pipeline=%s", run.ID, req.Pipeline)
	writeJSON(w, http.StatusAccepted, statusOf(rec))
}

func (s *Server) handleRunList(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := make([]runStatusResponse, 0, len(s.runs))
	for _, rec := range s.runs {
		out = append(out, statusOf(rec))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(r)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, statusOf(rec))
}

func (s *Server) handleRunCancel(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(r)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	rec.run.Cancel()
	log.Printf("component=server action=run_cancel run=%s", rec.run.ID)
	writeJSON(w, http.StatusAccepted, statusOf(rec))
}

// handleRunEvents streams the run's events as SSE: the full history replays
// first, then live events until the terminal event closes the stream.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(r)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	history, live, unsubscribe := rec.subscribe()
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	for _, evt := range history {
		writeSSE(w, evt)
	}
	if canFlush {
		flusher.Flush()
	}

	if live == nil {
		return // run already finished; history carried the terminal event
	}

	for {
		select {
		case evt, open := <-live:
			if !open {
				return
			}
			writeSSE(w, evt)
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(r)
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if !rec.isFinished() {
		writeError(w, http.StatusNotFound, "run has not finished")
		return
	}

	md := reportMarkdown(rec)
	if md == "" {
		writeError(w, http.StatusNotFound, "run produced no report")
		return
	}

	if r.URL.Query().Get("format") == "html" {
		html, err := renderMarkdown(md)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "rendering report failed")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(html)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, md)
}

func (s *Server) record(r *http.Request) (*runRecord, bool) {
	id := chi.URLParam(r, "runID")
	s.mu.RLock()
	rec, ok := s.runs[id]
	s.mu.RUnlock()
	return rec, ok
}

func statusOf(rec *runRecord) runStatusResponse {
	return runStatusResponse{
		ID:         rec.run.ID,
		Pipeline:   rec.kind,
		Goal:       rec.goal,
		Outcome:    string(rec.run.Outcome()),
		Finished:   rec.isFinished(),
		Iteration:  rec.run.Iteration(),
		EventCount: rec.run.EventCount(),
		CreatedAt:  rec.createdAt,
	}
}

// writeSSE renders one run event in text/event-stream framing. The ULID
// doubles as the SSE event id, giving clients a resume cursor for free.
func writeSSE(w http.ResponseWriter, evt pipeline.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		log.Printf("component=server action=sse_marshal_error event=%s error=%v", evt.ID, err)
		return
	}
	fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", evt.Type, evt.ID, payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("component=server action=json_encode_error error=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
