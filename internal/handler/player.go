package handler

import (
	"log/slog"
	"net/http"

	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/infra"
	"github.com/rogerbap/gaminglibrary/internal/service"
)

// PlayerHandler handles player account endpoints.
type PlayerHandler struct {
	players  *service.PlayerService
	sessions *service.SessionService
	hub      *infra.WSHub
	logger   *slog.Logger
}

// NewPlayerHandler creates a new PlayerHandler. A nil hub disables the live feed.
func NewPlayerHandler(players *service.PlayerService, sessions *service.SessionService, hub *infra.WSHub, logger *slog.Logger) *PlayerHandler {
	return &PlayerHandler{players: players, sessions: sessions, hub: hub, logger: logger}
}

type playerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Create handles POST /players.
func (h *PlayerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	player, err := h.players.CreatePlayer(r.Context(), req.Name, req.Email)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, player)
}

// Get handles GET /players/{id}.
func (h *PlayerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := PlayerIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	player, err := h.players.GetPlayer(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, player)
}

// Update handles PUT /players/{id}.
func (h *PlayerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := PlayerIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req playerRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	player, err := h.players.UpdatePlayerInfo(r.Context(), id, req.Name, req.Email)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, player)
}

// ListSessions handles GET /players/{id}/sessions?gameType=&limit=.
func (h *PlayerHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	id, err := PlayerIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	limit, err := LimitParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	q := service.SessionQuery{Limit: limit}
	if raw := r.URL.Query().Get("gameType"); raw != "" {
		gt, err := domain.ParseGameTypeName(raw)
		if err != nil {
			RespondError(w, err)
			return
		}
		q.GameType = gt
	}

	sessions, err := h.sessions.ListPlayerSessions(r.Context(), id, q)
	if err != nil {
		RespondError(w, err)
		return
	}
	if sessions == nil {
		sessions = []domain.GameSession{}
	}
	RespondJSON(w, http.StatusOK, sessions)
}

// Live handles GET /players/{id}/live, upgrading to a WebSocket that streams
// the player's events.
func (h *PlayerHandler) Live(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		RespondError(w, domain.ErrNotFound("live feed", "disabled"))
		return
	}
	id, err := PlayerIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	if _, err := h.players.GetPlayer(r.Context(), id); err != nil {
		RespondError(w, err)
		return
	}

	// The upgrader has already answered the client when this fails.
	if err := h.hub.ServeWS(w, r, id.String()); err != nil {
		h.logger.Warn("live feed upgrade failed", "player_id", id.String(), "error", err)
	}
}

// Leaderboard handles GET /leaderboard?limit=.
func (h *PlayerHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := LimitParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	entries, err := h.players.Leaderboard(r.Context(), limit)
	if err != nil {
		RespondError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	RespondJSON(w, http.StatusOK, entries)
}
