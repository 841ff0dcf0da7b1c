// Package web provides an HTTP status page and control endpoints for the
// clicker.
package web

import (
	"context"
	"io"
	"log"
	"net"
	"net/http"

	"github.com/sweeney/cadence-clicker/internal/engine"
	"github.com/sweeney/cadence-clicker/internal/mqtt"
	"github.com/sweeney/cadence-clicker/internal/status"
)

const maxBody = 4096

// Controller accepts commands and configuration posted to the server.
// mqtt.RemoteHandler has the same method set.
type Controller interface {
	HandleCommand(cmd engine.Command)
	HandleConfig(delta engine.ConfigDelta)
	HandleListener(req mqtt.ListenerRequest)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctl        Controller
}

// New creates a Server that reads state from the given tracker. ctl may be
// nil, in which case the control endpoints answer 404.
func New(addr string, tracker *status.Tracker, ctl Controller) *Server {
	s := &Server{tracker: tracker, ctl: ctl}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if ctl != nil {
		mux.HandleFunc("/command", s.handleCommand)
		mux.HandleFunc("/config", s.handleConfig)
		mux.HandleFunc("/listener", s.handleListener)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
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

// handleCommand accepts the same payloads as the MQTT command topic.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	body, ok := readPost(w, r)
	if !ok {
		return
	}
	cmd, err := mqtt.ParseCommand(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	log.Printf("http: command %s from %s", cmd, r.RemoteAddr)
	s.ctl.HandleCommand(cmd)
	w.WriteHeader(http.StatusAccepted)
}

// handleConfig accepts the same payloads as the MQTT config topic.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	body, ok := readPost(w, r)
	if !ok {
		return
	}
	d, err := mqtt.ParseConfig(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.ctl.HandleConfig(d)
	w.WriteHeader(http.StatusAccepted)
}

// handleListener accepts the same payloads as the MQTT listener topic.
func (s *Server) handleListener(w http.ResponseWriter, r *http.Request) {
	body, ok := readPost(w, r)
	if !ok {
		return
	}
	req, err := mqtt.ParseListener(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Empty() {
		http.Error(w, "nothing to change", http.StatusBadRequest)
		return
	}
	s.ctl.HandleListener(req)
	w.WriteHeader(http.StatusAccepted)
}

func readPost(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	return body, true
}
