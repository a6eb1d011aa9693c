// internal/handlers/user.go
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dayout/planner/internal/auth"
	"github.com/dayout/planner/internal/outing"
)

type createUserRequest struct {
	Name string `json:"name"`
}

// CreateUserHandler registers a new user and hands back a guest auth_token
// cookie so subsequent requests can omit the user_id query parameter.
func (s *Server) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid payload", outing.ErrInvalidInput))
		return
	}

	u, err := s.svc.CreateUser(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := auth.CreateToken(u.ID.String())
	if err != nil {
		s.log.WithError(err).Error("failed to create guest token")
	} else {
		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    token,
			HttpOnly: true,
			Path:     "/",
			MaxAge:   auth.TokenExpireSec,
		})
	}

	writeJSON(w, http.StatusCreated, u)
}
