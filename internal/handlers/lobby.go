// internal/handlers/lobby.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dayout/planner/internal/outing"
)

// CreateLobbyHandler opens a new lobby hosted by the caller and returns its
// join code.
func (s *Server) CreateLobbyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	lobbyID, err := s.svc.CreateLobby(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"lobby_id": lobbyID})
}

// JoinLobbyHandler adds the caller to an open lobby.
func (s *Server) JoinLobbyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.svc.JoinLobby(r.Context(), r.PathValue("lobby_id"), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully joined lobby"})
}

// LeaveLobbyHandler removes the caller from an open lobby.
func (s *Server) LeaveLobbyHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.svc.LeaveLobby(r.Context(), r.PathValue("lobby_id"), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully left lobby"})
}

// StartSessionHandler activates an open lobby. Host only.
func (s *Server) StartSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.svc.StartSession(r.Context(), r.PathValue("lobby_id"), userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Lobby started successfully"})
}

type addLikeRequest struct {
	PlaceID int64 `json:"place_id"`
}

type addLikeResponse struct {
	Liked   bool    `json:"liked"`
	Matches []int64 `json:"matches"`
}

// AddLikeHandler records a like in an active session and returns the
// current match set.
func (s *Server) AddLikeHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req addLikeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid payload", outing.ErrInvalidInput))
		return
	}

	matches, err := s.svc.AddLike(r.Context(), r.PathValue("lobby_id"), userID, req.PlaceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, addLikeResponse{Liked: true, Matches: matches})
}

// ListOpenLobbiesHandler returns all open lobbies, newest first.
func (s *Server) ListOpenLobbiesHandler(w http.ResponseWriter, r *http.Request) {
	lobbies, err := s.svc.ListOpenLobbies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]outing.LobbySummary{"lobbies": lobbies})
}

// GetLobbyHandler returns the full record behind an id, whether it is
// still an open lobby or already an active session.
func (s *Server) GetLobbyHandler(w http.ResponseWriter, r *http.Request) {
	l, sess, err := s.svc.GetLobbyOrSession(r.Context(), r.PathValue("lobby_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if l != nil {
		writeJSON(w, http.StatusOK, l)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
