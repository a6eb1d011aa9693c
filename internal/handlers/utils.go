// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/dayout/planner/internal/auth"
	"github.com/dayout/planner/internal/outing"
)

// requestUserID resolves the caller's identity: the user_id query parameter
// wins, otherwise the auth_token cookie issued at user creation.
func requestUserID(r *http.Request) (uuid.UUID, error) {
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: malformed user_id", outing.ErrInvalidInput)
		}
		return id, nil
	}

	cookie, err := r.Cookie("auth_token")
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: missing user_id and auth_token", outing.ErrInvalidInput)
	}
	sub, err := auth.VerifyToken(cookie.Value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid auth_token", outing.ErrInvalidInput)
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid user id in token", outing.ErrInvalidInput)
	}
	return id, nil
}

// writeJSON serializes v with the proper content type.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps core error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, outing.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, outing.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, outing.ErrAlreadyInLobby), errors.Is(err, outing.ErrLobbyNotOpen):
		status = http.StatusConflict
	case errors.Is(err, outing.ErrForbidden), errors.Is(err, outing.ErrNotAMember):
		status = http.StatusForbidden
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
