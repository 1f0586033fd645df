// Package web provides an HTTP status server for the flow-sensor daemon.
package web

import (
	"context"
	"net"
	"net/http"

	"github.com/sweeney/flow-sensor/internal/status"
)

// Server serves the status page, JSON, metrics and a live websocket stream.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	stream     *stream
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{
		tracker: tracker,
		stream:  newStream(tracker),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.Handle("/ws", s.stream)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server. Websocket clients are
// hijacked connections that Shutdown does not track, so they are closed
// explicitly.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stream.closeAll()
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

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", metricsContentType)
	if err := writeMetrics(w, snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
