package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rogerbap/gaminglibrary/internal/auth"
	"github.com/rogerbap/gaminglibrary/internal/dependencies/mocks"
	"github.com/rogerbap/gaminglibrary/internal/events"
	"github.com/rogerbap/gaminglibrary/internal/infra"
	"github.com/rogerbap/gaminglibrary/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC)

type apiFixture struct {
	router chi.Router
	store  *memory.Store
	clock  *mocks.MockClock
	jwt    *auth.JWTManager
	hub    *infra.WSHub
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	clk := mocks.NewMockClock(epoch)
	store := memory.New()
	jwtMgr := auth.NewJWTManager("test-secret-key-that-is-long-enough", time.Hour, clk)
	hub := infra.NewWSHub([]string{"*"}, logger)

	router := NewRouter(RouterDeps{
		Store:          store,
		Services:       NewServices(store, ServiceOptions{}, clk, logger),
		JWTMgr:         jwtMgr,
		Hub:            hub,
		IdempotencyTTL: time.Hour,
		Clock:          clk,
		Logger:         logger,
	})
	return &apiFixture{router: router, store: store, clock: clk, jwt: jwtMgr, hub: hub}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) adminHeader(t *testing.T, role string) http.Header {
	t.Helper()
	token, err := f.jwt.GenerateAdminToken("ops@example.com", role)
	require.NoError(t, err)
	return http.Header{"Authorization": {"Bearer " + token}}
}

func (f *apiFixture) createPlayer(t *testing.T, name, email string) string {
	t.Helper()
	w := f.do(t, http.MethodPost, "/players", map[string]string{"name": name, "email": email}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["player_id"].(string)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decode(t, w)["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	f := newAPI(t)
	w := f.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPI(t)
	f.do(t, http.MethodGet, "/health", nil, nil)

	w := f.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "gaminglibrary_http_requests_total")
}

func TestPlayerEndpoints(t *testing.T) {
	f := newAPI(t)
	id := f.createPlayer(t, "Ada", "Ada@Example.com")

	t.Run("get", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/players/"+id, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "ada@example.com", body["email"])
		assert.Equal(t, true, body["is_active"])
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/players", map[string]string{"name": "Other", "email": "ada@example.com"}, nil)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "CONFLICT", errorCode(t, w))
	})

	t.Run("invalid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/players", strings.NewReader("{"))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("update", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/players/"+id, map[string]string{"name": "Ada L", "email": "ada.l@example.com"}, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Ada L", decode(t, w)["name"])
	})

	t.Run("malformed id", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/players/not-a-guid", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	})

	t.Run("unknown id", func(t *testing.T) {
		w := f.do(t, http.MethodGet, "/players/8f2d6c1e-4b7a-4c39-9e0d-2a5b7c9d1e3f", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCreatePlayer_IdempotencyKeyReplays(t *testing.T) {
	f := newAPI(t)
	header := http.Header{"Idempotency-Key": {"signup-1"}}
	body := map[string]string{"name": "Grace", "email": "grace@example.com"}

	first := f.do(t, http.MethodPost, "/players", body, header)
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.do(t, http.MethodPost, "/players", body, header)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))

	third := f.do(t, http.MethodPost, "/players", body, nil)
	assert.Equal(t, http.StatusConflict, third.Code, "without a key the duplicate email is rejected")
}

func TestSessionLifecycle(t *testing.T) {
	f := newAPI(t)
	id := f.createPlayer(t, "Ada", "ada@example.com")

	w := f.do(t, http.MethodPost, "/sessions/start", map[string]any{"playerId": id, "gameType": 3}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "unknown game type")

	w = f.do(t, http.MethodPost, "/sessions/start", map[string]any{"playerId": id, "gameType": 1}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sessionID := decode(t, w)["session_id"].(string)

	w = f.do(t, http.MethodPost, "/sessions/start", map[string]any{"playerId": id, "gameType": 2}, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "one active session per player")

	w = f.do(t, http.MethodPut, "/sessions/"+sessionID+"/data", map[string]any{"gameData": map[string]any{"Level": 3}}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	f.clock.Advance(2 * time.Minute)
	w = f.do(t, http.MethodPost, "/sessions/"+sessionID+"/end", map[string]any{
		"finalScore":            500,
		"completedSuccessfully": true,
		"finalGameData":         map[string]any{"SuccessfulDeploys": 10, "CatInterventions": 0},
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	result := decode(t, w)
	assert.Equal(t, float64(5), result["performance_rating"])
	assert.Equal(t, true, result["score_credited"])

	w = f.do(t, http.MethodPost, "/sessions/"+sessionID+"/end", map[string]any{"finalScore": 1}, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "already ended")

	w = f.do(t, http.MethodGet, "/sessions/"+sessionID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["game_data"].(map[string]any)["Level"])

	w = f.do(t, http.MethodGet, "/players/"+id, nil, nil)
	assert.Equal(t, float64(500), decode(t, w)["total_score"])

	w = f.do(t, http.MethodGet, "/players/"+id+"/sessions?gameType=deploy_the_cat", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var sessions []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	assert.Len(t, sessions, 1)

	w = f.do(t, http.MethodGet, "/players/"+id+"/sessions?limit=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/leaderboard?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var board []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &board))
	require.Len(t, board, 1)
	assert.Equal(t, id, board[0]["player_id"])
}

func TestAdminRoutes(t *testing.T) {
	f := newAPI(t)
	id := f.createPlayer(t, "Linus", "linus@example.com")
	path := "/admin/players/" + id + "/deactivate"

	w := f.do(t, http.MethodPost, path, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, http.MethodPost, path, nil, f.adminHeader(t, auth.RoleViewer))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, path, nil, f.adminHeader(t, auth.RoleAdmin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["is_active"])

	w = f.do(t, http.MethodPost, "/sessions/start", map[string]any{"playerId": id, "gameType": 1}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCOUNT_INACTIVE", errorCode(t, w))

	w = f.do(t, http.MethodPost, "/admin/players/"+id+"/reactivate", nil, f.adminHeader(t, auth.RoleSuperAdmin))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["is_active"])

	w = f.do(t, http.MethodGet, "/admin/sessions/flagged", nil, f.adminHeader(t, auth.RoleViewer))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestLiveFeed(t *testing.T) {
	f := newAPI(t)
	id := f.createPlayer(t, "Ada", "ada@example.com")

	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	t.Run("unknown player is rejected before upgrade", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL+"/players/8f2d6c1e-4b7a-4c39-9e0d-2a5b7c9d1e3f/live", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("dispatched events reach the socket", func(t *testing.T) {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"/players/"+id+"/live", nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		require.Eventually(t, func() bool { return f.hub.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

		dispatcher := events.NewDispatcher(f.store, []events.Sink{f.hub}, nil, events.Config{}, slog.New(slog.DiscardHandler))
		n, err := dispatcher.DispatchOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"event":"gaming.player.created"`)
	})
}
