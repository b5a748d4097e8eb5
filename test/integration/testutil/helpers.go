//go:build integration

package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rogerbap/gaminglibrary/internal/domain"
)

func (env *TestEnv) do(method, path string, body interface{}, token string, headers ...string) *http.Response {
	env.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			env.t.Fatalf("%s %s: encode: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, env.Server.URL+path, &buf)
	if err != nil {
		env.t.Fatalf("%s %s: new request: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		env.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// GET performs an unauthenticated GET request.
func (env *TestEnv) GET(path string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodGet, path, nil, "")
}

// POST performs a POST request. headers are key/value pairs.
func (env *TestEnv) POST(path string, body interface{}, headers ...string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPost, path, body, "", headers...)
}

// PUT performs an unauthenticated PUT request.
func (env *TestEnv) PUT(path string, body interface{}) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPut, path, body, "")
}

// AuthGET performs an authenticated GET request.
func (env *TestEnv) AuthGET(path, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodGet, path, nil, token)
}

// AuthPOST performs an authenticated POST request.
func (env *TestEnv) AuthPOST(path string, body interface{}, token string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodPost, path, body, token)
}

// OPTIONS performs an OPTIONS request.
func (env *TestEnv) OPTIONS(path string, headers ...string) *http.Response {
	env.t.Helper()
	return env.do(http.MethodOptions, path, nil, "", headers...)
}

// CreatePlayer registers a player through the API.
func (env *TestEnv) CreatePlayer(name, email string) domain.Player {
	env.t.Helper()
	resp := env.POST("/players", map[string]string{"name": name, "email": email})
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		env.t.Fatalf("CreatePlayer: expected 201, got %d", resp.StatusCode)
	}
	var player domain.Player
	DecodeJSON(env.t, resp, &player)
	return player
}

// UniquePlayer registers a player with a random email.
func (env *TestEnv) UniquePlayer(name string) domain.Player {
	env.t.Helper()
	return env.CreatePlayer(name, fmt.Sprintf("%s@games.example.com", uuid.NewString()[:8]))
}

// StartSession opens a session and fails the test on anything but 201.
func (env *TestEnv) StartSession(playerID domain.PlayerID, gameType domain.GameType) domain.GameSession {
	env.t.Helper()
	resp := env.POST("/sessions/start", map[string]interface{}{
		"playerId": playerID.String(),
		"gameType": int(gameType),
	})
	if resp.StatusCode != http.StatusCreated {
		resp.Body.Close()
		env.t.Fatalf("StartSession: expected 201, got %d", resp.StatusCode)
	}
	var gs domain.GameSession
	DecodeJSON(env.t, resp, &gs)
	return gs
}

// EndSession finishes a session and returns the raw response.
func (env *TestEnv) EndSession(id domain.SessionID, score int64, completed bool, data domain.GameData) *http.Response {
	env.t.Helper()
	return env.POST("/sessions/"+id.String()+"/end", map[string]interface{}{
		"finalScore":            score,
		"completedSuccessfully": completed,
		"finalGameData":         data,
	})
}

// AdminToken mints an admin JWT with the given role.
func (env *TestEnv) AdminToken(role string) string {
	env.t.Helper()
	token, err := env.JWTMgr.GenerateAdminToken("ops@games.example.com", role)
	if err != nil {
		env.t.Fatalf("AdminToken: %v", err)
	}
	return token
}

// CountOutbox returns the number of outbox rows for eventType.
func (env *TestEnv) CountOutbox(eventType string) int {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := env.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_outbox WHERE "eventType" = $1`, eventType).Scan(&count)
	if err != nil {
		env.t.Fatalf("CountOutbox: %v", err)
	}
	return count
}
