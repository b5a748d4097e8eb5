package admin

import (
	"log/slog"
	"net/http"

	"github.com/rogerbap/gaminglibrary/internal/auth"
	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/handler"
	"github.com/rogerbap/gaminglibrary/internal/service"
)

// ModerationHandler handles admin account and session moderation.
type ModerationHandler struct {
	players  *service.PlayerService
	sessions *service.SessionService
	logger   *slog.Logger
}

// NewModerationHandler creates a new ModerationHandler.
func NewModerationHandler(players *service.PlayerService, sessions *service.SessionService, logger *slog.Logger) *ModerationHandler {
	return &ModerationHandler{players: players, sessions: sessions, logger: logger}
}

// DeactivatePlayer handles POST /admin/players/{id}/deactivate.
func (h *ModerationHandler) DeactivatePlayer(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// ReactivatePlayer handles POST /admin/players/{id}/reactivate.
func (h *ModerationHandler) ReactivatePlayer(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *ModerationHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := handler.PlayerIDParam(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	var player *domain.Player
	if active {
		player, err = h.players.ReactivatePlayer(r.Context(), id)
	} else {
		player, err = h.players.DeactivatePlayer(r.Context(), id)
	}
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	h.logger.Info("admin changed player activation",
		"admin", auth.SubjectFromContext(r.Context()),
		"player_id", id.String(),
		"active", active,
	)
	handler.RespondJSON(w, http.StatusOK, player)
}

// ListFlaggedSessions handles GET /admin/sessions/flagged?limit=.
func (h *ModerationHandler) ListFlaggedSessions(w http.ResponseWriter, r *http.Request) {
	limit, err := handler.LimitParam(r)
	if err != nil {
		handler.RespondError(w, err)
		return
	}

	sessions, err := h.sessions.ListFlaggedSessions(r.Context(), limit)
	if err != nil {
		handler.RespondError(w, err)
		return
	}
	if sessions == nil {
		sessions = []domain.GameSession{}
	}
	handler.RespondJSON(w, http.StatusOK, sessions)
}
