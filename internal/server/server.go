package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/core/errors"
	"github.com/tierline/tierline/core/tier"
	"github.com/tierline/tierline/internal/logging"
)

// Config configures a session server.
type Config struct {
	// Port is the TCP port to listen on.
	Port int

	// DocPath is the document file the save operation writes. Empty
	// disables save.
	DocPath string

	// Hierarchy is the resolved tier configuration. Required.
	Hierarchy *tier.Hierarchy

	// Document is the initial state. Nil starts empty.
	Document *annot.Document

	// DurationMS bounds proposals to the media duration. Zero means
	// unbounded.
	DurationMS int64
}

// Server hosts one edit session: a single WebSocket client applying
// operations, and read-only HTTP snapshots for anyone.
type Server struct {
	cfg      Config
	session  *Session
	upgrader websocket.Upgrader

	mu     sync.Mutex
	client *client
}

// New builds a server and starts its session goroutine.
func New(cfg Config) (*Server, error) {
	if cfg.Hierarchy == nil {
		return nil, errors.NewValidation("hierarchy", "a tier hierarchy is required")
	}

	var engine *annot.Engine
	var err error
	if cfg.Document != nil {
		engine, err = annot.NewEngineFromDocument(cfg.Document, cfg.Hierarchy)
		if err != nil {
			return nil, err
		}
	} else {
		engine = annot.NewEngine(cfg.Hierarchy)
	}
	engine.SetDuration(cfg.DurationMS)

	return &Server{
		cfg:     cfg,
		session: NewSession(engine, cfg.DocPath),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}, nil
}

// Session returns the server's edit session.
func (s *Server) Session() *Session {
	return s.session
}

// Handler returns the HTTP handler tree. The websocket endpoint stays
// outside the logging middleware: the connection is hijacked, so status
// and duration mean nothing there.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("/api/document", s.handleDocument)
	api.HandleFunc("/api/tiers", s.handleTiers)
	api.HandleFunc("/healthz", s.handleHealth)

	root := http.NewServeMux()
	root.HandleFunc("/ws", s.handleWebSocket)
	root.Handle("/", logging.CombinedMiddleware(api))
	return root
}

// Start runs the server until the listener fails.
func (s *Server) Start() error {
	logging.ServerStartup("session", "http", s.cfg.Port,
		"session_id", s.session.ID,
		"doc_path", s.cfg.DocPath)
	return http.ListenAndServe(fmt.Sprintf(":%d", s.cfg.Port), s.Handler())
}

// Close stops the session goroutine.
func (s *Server) Close() {
	s.session.Close()
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "only GET is allowed")
		return
	}
	respondJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "only GET is allowed")
		return
	}
	respondJSON(w, http.StatusOK, tier.ConfigOf(s.cfg.Hierarchy))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "only GET is allowed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"session_id":  s.session.ID,
		"annotations": s.session.Len(),
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
