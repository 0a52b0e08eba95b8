// Package web provides an HTTP status server for the irrigation controller.
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sweeney/irrigation-controller/internal/status"
	"github.com/sweeney/irrigation-controller/internal/storage"
)

// RunLog reads recent run log entries.
type RunLog interface {
	Recent(ctx context.Context, limit int) ([]storage.Entry, error)
}

// Options are the optional handlers mounted next to the status page.
type Options struct {
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// RunLog is served on /log.json when set.
	RunLog RunLog
}

const (
	defaultLogLimit = 50
	maxLogLimit     = 1000
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	runLog     RunLog
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, opts Options) *Server {
	s := &Server{tracker: tracker, runLog: opts.RunLog}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if opts.RunLog != nil {
		mux.HandleFunc("/log.json", s.handleLog)
	}
	if opts.Metrics != nil {
		mux.Handle("/metrics", opts.Metrics)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// LogEntryJSON is one run log row.
type LogEntryJSON struct {
	Timestamp       string `json:"timestamp"`
	Event           string `json:"event"`
	Station         int    `json:"station,omitempty"`
	Program         string `json:"program,omitempty"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
	Active          *bool  `json:"active,omitempty"`
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxLogLimit)
	}

	entries, err := s.runLog.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, "run log unavailable", http.StatusServiceUnavailable)
		return
	}

	out := make([]LogEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, LogEntryJSON{
			Timestamp:       e.At.UTC().Format(time.RFC3339),
			Event:           string(e.Event),
			Station:         int(e.Station),
			Program:         e.Program,
			DurationSeconds: int64(e.Duration / time.Second),
			Active:          e.Active,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"entries": out})
}
