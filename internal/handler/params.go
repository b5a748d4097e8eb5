package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rogerbap/gaminglibrary/internal/domain"
)

// PlayerIDParam parses the {id} URL parameter as a player id.
func PlayerIDParam(r *http.Request) (domain.PlayerID, error) {
	return domain.ParsePlayerID(chi.URLParam(r, "id"))
}

// SessionIDParam parses the {id} URL parameter as a session id.
func SessionIDParam(r *http.Request) (domain.SessionID, error) {
	return domain.ParseSessionID(chi.URLParam(r, "id"))
}

// LimitParam reads ?limit=. A missing value returns 0 so the service default applies.
func LimitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.ErrValidation("limit must be an integer")
	}
	return n, nil
}
