// ABOUTME: HTTP routes for the session server
// ABOUTME: Websocket endpoint, health, metrics and a small JSON admin API
package resonate

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Resonate-Protocol/resonate-sessions/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var errEmptyBody = errors.New("empty body")

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// playRequest is the body of POST /sessions
type playRequest struct {
	ID     string         `json:"id"`
	Group  string         `json:"group"`
	Config session.Config `json:"config"`
}

type volumeBody struct {
	Group  string  `json:"group"`
	Volume float64 `json:"volume"`
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(DefaultPath, s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Post("/", s.handleCreateSession)
		r.Delete("/{id}", s.handleStopSession)
	})

	r.Get("/groups/{group}/volume", s.handleGetVolume)
	r.Put("/groups/{group}/volume", s.handleSetVolume)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.peersMu.RLock()
	peers := len(s.peers)
	s.peersMu.RUnlock()

	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"server_id": s.serverID,
		"name":      s.config.Name,
		"started":   s.registry.Started(),
		"sessions":  s.registry.Len(),
		"peers":     peers,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.Sessions())
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Config.Resource) == "" {
		respondError(w, http.StatusBadRequest, "missing_resource", "config.resource is required")
		return
	}

	sess, err := s.Play(req.Config, strings.TrimSpace(req.ID), strings.TrimSpace(req.Group))
	if err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, session.ErrNoBackend) {
			status = http.StatusNotImplemented
		}
		respondError(w, status, "play_failed", err.Error())
		return
	}
	if sess == nil {
		respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"id":         sess.ID,
		"group":      sess.Group,
		"resource":   sess.Config.Resource,
		"replicates": sess.Replicates(),
		"local":      sess.Local(),
	})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	s.StopSession(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	respondJSON(w, http.StatusOK, volumeBody{Group: group, Volume: s.Volume(group)})
}

func (s *Server) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")

	var body volumeBody
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.SetVolume(body.Volume, group)
	respondJSON(w, http.StatusOK, volumeBody{Group: group, Volume: s.Volume(group)})
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
