// Package ingress is the delivery seam between the speech recognizer and the
// session pipeline.
//
// A recognizer (or the desktop client fronting one) streams recognized words
// over a WebSocket per session; turn boundaries arrive as explicit events on
// the same stream. The confirmation surface posts candidate decisions to a
// plain HTTP endpoint. The package performs no speech processing.
package ingress

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/faderpilot/mixctl/internal/transcript"
)

// TurnSink receives the tokens and turn boundaries of one session.
// *app.Session satisfies it.
type TurnSink interface {
	Append(t transcript.Token)
	EndTurn()
}

// Hub opens and closes sessions and routes candidate decisions.
type Hub interface {
	// OpenSession starts a session for the given ID. Fails when the ID is
	// already in use.
	OpenSession(id string) (TurnSink, error)

	// CloseSession stops the session. Unknown IDs are ignored.
	CloseSession(id string)

	// ResolveCandidate records the user's decision for the candidate
	// currently on display. Reports false for stale or unknown candidates.
	ResolveCandidate(id uuid.UUID, accepted bool) bool
}

// message is one inbound WebSocket frame.
//
// Token frames carry text, start_ms, and is_final; control frames carry only
// a type ("turn_end"). A frame with both a type and text is treated as the
// control frame.
type message struct {
	Type    string `json:"type,omitempty"`
	Text    string `json:"text,omitempty"`
	StartMS int64  `json:"start_ms,omitempty"`
	IsFinal bool   `json:"is_final,omitempty"`
}

// confirmRequest is the body of POST /v1/sessions/{id}/confirm.
type confirmRequest struct {
	CandidateID uuid.UUID `json:"candidate_id"`
	Accepted    bool      `json:"accepted"`
}

// Option is a functional option for [NewServer].
type Option func(*Server)

// WithLogger sets the server's logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		s.log = log
	}
}

// Server exposes the transcript WebSocket and the confirmation endpoint.
type Server struct {
	hub Hub
	log *slog.Logger
}

// NewServer creates a Server routing all traffic through hub.
func NewServer(hub Hub, opts ...Option) *Server {
	s := &Server{
		hub: hub,
		log: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handler returns the HTTP handler serving the ingress routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/sessions/{id}/transcript", s.handleTranscript)
	mux.HandleFunc("POST /v1/sessions/{id}/confirm", s.handleConfirm)
	return mux
}

// handleTranscript upgrades to WebSocket and streams tokens into a session.
// The session lives exactly as long as the connection.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "session_id", sessionID, "err", err)
		return
	}

	sink, err := s.hub.OpenSession(sessionID)
	if err != nil {
		s.log.Warn("session open refused", "session_id", sessionID, "err", err)
		conn.Close(websocket.StatusPolicyViolation, err.Error())
		return
	}
	defer s.hub.CloseSession(sessionID)
	defer conn.Close(websocket.StatusNormalClosure, "session closed")

	s.log.Info("transcript stream opened", "session_id", sessionID)

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, io.EOF) {
				s.log.Info("transcript stream closed", "session_id", sessionID)
			} else {
				s.log.Warn("transcript stream broke", "session_id", sessionID, "err", err)
			}
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.log.Warn("malformed transcript frame dropped", "session_id", sessionID, "err", err)
			continue
		}

		if msg.Type == "turn_end" {
			sink.EndTurn()
			continue
		}
		sink.Append(transcript.Token{
			Text:    msg.Text,
			Start:   time.Duration(msg.StartMS) * time.Millisecond,
			IsFinal: msg.IsFinal,
		})
	}
}

// handleConfirm records an accept/reject decision for the displayed
// candidate. Stale decisions return 409 so the client can drop them quietly.
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed body: " + err.Error()})
		return
	}
	if req.CandidateID == uuid.Nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "candidate_id is required"})
		return
	}

	if !s.hub.ResolveCandidate(req.CandidateID, req.Accepted) {
		writeJSON(w, http.StatusConflict, map[string]any{"resolved": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"resolved": true})
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encode failed"}`, http.StatusInternalServerError)
	}
}
