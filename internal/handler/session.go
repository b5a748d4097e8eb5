package handler

import (
	"net/http"

	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/internal/service"
)

// SessionHandler handles game session endpoints.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type startSessionRequest struct {
	PlayerID string `json:"playerId"`
	GameType int    `json:"gameType"`
}

type endSessionRequest struct {
	FinalScore            int64           `json:"finalScore"`
	CompletedSuccessfully bool            `json:"completedSuccessfully"`
	FinalGameData         domain.GameData `json:"finalGameData"`
}

type sessionDataRequest struct {
	GameData domain.GameData `json:"gameData"`
}

// Start handles POST /sessions/start.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	playerID, err := domain.ParsePlayerID(req.PlayerID)
	if err != nil {
		RespondError(w, err)
		return
	}
	gameType, err := domain.ParseGameType(req.GameType)
	if err != nil {
		RespondError(w, err)
		return
	}

	session, err := h.sessions.StartSession(r.Context(), playerID, gameType)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, session)
}

// End handles POST /sessions/{id}/end.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	id, err := SessionIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req endSessionRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	result, err := h.sessions.EndSession(r.Context(), id, req.FinalScore, req.CompletedSuccessfully, req.FinalGameData)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// UpdateData handles PUT /sessions/{id}/data.
func (h *SessionHandler) UpdateData(w http.ResponseWriter, r *http.Request) {
	id, err := SessionIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var req sessionDataRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	session, err := h.sessions.UpdateSessionData(r.Context(), id, req.GameData)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, session)
}

// Get handles GET /sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := SessionIDParam(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	session, err := h.sessions.GetSession(r.Context(), id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, session)
}
