// Package server is the live-edit bridge for one annotation document: a
// WebSocket endpoint accepting edit operations from a single UI client,
// plus read-only HTTP snapshots. Operations are applied strictly in
// arrival order by one goroutine that owns the engine, so every client
// observes the same serial history the engine committed.
package server

import (
	"github.com/google/uuid"

	"github.com/tierline/tierline/core/annot"
	"github.com/tierline/tierline/internal/logging"
)

// Operation names accepted over the session socket.
const (
	OpCreate   = "create"
	OpMove     = "move"
	OpSetValue = "set_value"
	OpDelete   = "delete"
	OpQuery    = "query"
	OpSave     = "save"
)

// Event kinds emitted in reply. Every request gets exactly one event.
const (
	EventCommitted   = "committed"
	EventDeleted     = "deleted"
	EventRejected    = "rejected"
	EventAnnotations = "annotations"
	EventSaved       = "saved"
)

// Request is one operation sent by the client.
type Request struct {
	Op      string `json:"op"`
	Tier    string `json:"tier,omitempty"`
	ID      string `json:"id,omitempty"`
	StartMS int64  `json:"start_ms,omitempty"`
	EndMS   int64  `json:"end_ms,omitempty"`
	Label   string `json:"label,omitempty"`
	Value   string `json:"value,omitempty"`
}

// Event is the reply to one request.
type Event struct {
	Event       string              `json:"event"`
	Op          string              `json:"op,omitempty"`
	Tier        string              `json:"tier,omitempty"`
	Annotation  *annot.Annotation   `json:"annotation,omitempty"`
	Annotations []*annot.Annotation `json:"annotations,omitempty"`
	RemovedIDs  []string            `json:"removed_ids,omitempty"`
	Path        string              `json:"path,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Session owns one document's engine for the lifetime of the server.
// The engine does no locking, so every access runs on the session
// goroutine; callers submit closures and wait for them.
type Session struct {
	ID      string
	engine  *annot.Engine
	docPath string
	cmds    chan func()
	closed  chan struct{}
}

// NewSession wraps an engine and starts the owning goroutine. docPath is
// where the save operation writes the document; empty disables save.
func NewSession(engine *annot.Engine, docPath string) *Session {
	s := &Session{
		ID:      uuid.New().String(),
		engine:  engine,
		docPath: docPath,
		cmds:    make(chan func()),
		closed:  make(chan struct{}),
	}
	go s.run()
	return s
}

// Close stops the session goroutine. Requests after Close are rejected.
func (s *Session) Close() {
	close(s.closed)
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.closed:
			return
		}
	}
}

// do runs fn on the session goroutine and waits for it. It reports false
// when the session is closed.
func (s *Session) do(fn func()) bool {
	done := make(chan struct{})
	select {
	case s.cmds <- func() {
		fn()
		close(done)
	}:
		<-done
		return true
	case <-s.closed:
		return false
	}
}

// Apply executes one request against the engine and returns its event.
func (s *Session) Apply(req Request) Event {
	var ev Event
	if !s.do(func() { ev = s.apply(req) }) {
		return rejected(req.Op, "session is closed")
	}
	return ev
}

// Snapshot returns the current document state.
func (s *Session) Snapshot() *annot.Document {
	var doc *annot.Document
	if !s.do(func() { doc = s.engine.Serialize() }) {
		return &annot.Document{
			Annotations: map[string][]*annot.Annotation{},
			TimeSlots:   map[string]int64{},
		}
	}
	return doc
}

// Len returns the number of committed annotations.
func (s *Session) Len() int {
	var n int
	s.do(func() { n = s.engine.Len() })
	return n
}

func (s *Session) apply(req Request) Event {
	switch req.Op {
	case OpCreate:
		a, err := s.engine.Create(req.Tier, req.StartMS, req.EndMS, req.Label)
		if err != nil {
			logging.EditRejected(req.Op, err, "session_id", s.ID)
			return rejected(req.Op, err.Error())
		}
		logging.EditEvent(req.Op, a.ID, a.Tier, "session_id", s.ID)
		return Event{Event: EventCommitted, Op: req.Op, Annotation: a}

	case OpMove:
		a, err := s.engine.Move(req.ID, req.StartMS, req.EndMS)
		if err != nil {
			logging.EditRejected(req.Op, err, "session_id", s.ID)
			return rejected(req.Op, err.Error())
		}
		logging.EditEvent(req.Op, a.ID, a.Tier, "session_id", s.ID)
		return Event{Event: EventCommitted, Op: req.Op, Annotation: a}

	case OpSetValue:
		a, err := s.engine.SetValue(req.ID, req.Value)
		if err != nil {
			logging.EditRejected(req.Op, err, "session_id", s.ID)
			return rejected(req.Op, err.Error())
		}
		logging.EditEvent(req.Op, a.ID, a.Tier, "session_id", s.ID)
		return Event{Event: EventCommitted, Op: req.Op, Annotation: a}

	case OpDelete:
		target, err := s.engine.Annotation(req.ID)
		if err != nil {
			logging.EditRejected(req.Op, err, "session_id", s.ID)
			return rejected(req.Op, err.Error())
		}
		removed, err := s.engine.Delete(req.ID)
		if err != nil {
			logging.EditRejected(req.Op, err, "session_id", s.ID)
			return rejected(req.Op, err.Error())
		}
		logging.EditEvent(req.Op, req.ID, target.Tier, "session_id", s.ID, "removed", len(removed))
		return Event{Event: EventDeleted, Op: req.Op, RemovedIDs: removed}

	case OpQuery:
		if req.Tier == "" {
			return rejected(req.Op, "query needs a tier")
		}
		if _, ok := s.engine.Hierarchy().ByName(req.Tier); !ok {
			return rejected(req.Op, "unknown tier "+req.Tier)
		}
		return Event{
			Event:       EventAnnotations,
			Op:          req.Op,
			Tier:        req.Tier,
			Annotations: s.engine.QueryTierSorted(req.Tier),
		}

	case OpSave:
		if s.docPath == "" {
			return rejected(req.Op, "no document path configured")
		}
		if err := annot.SaveDocument(s.docPath, s.engine.Serialize()); err != nil {
			logging.EditRejected(req.Op, err, "session_id", s.ID)
			return rejected(req.Op, err.Error())
		}
		logging.SessionEvent("document_saved", s.ID, "path", s.docPath)
		return Event{Event: EventSaved, Op: req.Op, Path: s.docPath}

	default:
		return rejected(req.Op, "unknown operation")
	}
}

func rejected(op, msg string) Event {
	return Event{Event: EventRejected, Op: op, Error: msg}
}
