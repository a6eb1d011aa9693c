// internal/handlers/server.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/dayout/planner/internal/middleware"
	"github.com/dayout/planner/internal/outing"
)

// Server is the HTTP surface over the outing service. It holds no state of
// its own; every operation delegates to the core.
type Server struct {
	log *logrus.Logger
	svc *outing.Service
}

// NewServer wires the handlers to a service.
func NewServer(log *logrus.Logger, svc *outing.Service) *Server {
	return &Server{log: log, svc: svc}
}

// Routes returns the full handler tree with request logging applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.HealthHandler)

	mux.HandleFunc("POST /users/create", s.CreateUserHandler)

	mux.HandleFunc("POST /lobbies/create", s.CreateLobbyHandler)
	mux.HandleFunc("GET /lobbies/open", s.ListOpenLobbiesHandler)
	mux.HandleFunc("GET /lobbies/{lobby_id}", s.GetLobbyHandler)
	mux.HandleFunc("POST /lobbies/{lobby_id}/join", s.JoinLobbyHandler)
	mux.HandleFunc("POST /lobbies/{lobby_id}/leave", s.LeaveLobbyHandler)
	mux.HandleFunc("POST /lobbies/{lobby_id}/start", s.StartSessionHandler)
	mux.HandleFunc("POST /lobbies/{lobby_id}/like", s.AddLikeHandler)

	return middleware.LogMiddleware(s.log)(mux)
}

// HealthHandler is the static liveness probe.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
