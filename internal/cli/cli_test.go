package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/app"
	"github.com/rogerbap/gaminglibrary/internal/auth"
	"github.com/rogerbap/gaminglibrary/internal/dependencies/mocks"
	"github.com/rogerbap/gaminglibrary/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "cli-test-secret-that-is-long-enough"

type cliFixture struct {
	server    *httptest.Server
	clock     *mocks.MockClock
	tokenFile string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	t.Setenv("GAMECTL_TOKEN", "")

	logger := slog.New(slog.DiscardHandler)
	clk := mocks.NewMockClock(time.Date(2026, 4, 2, 18, 30, 0, 0, time.UTC))
	store := memory.New()
	router := app.NewRouter(app.RouterDeps{
		Store:    store,
		Services: app.NewServices(store, app.ServiceOptions{}, clk, logger),
		JWTMgr:   auth.NewJWTManager(testSecret, time.Hour, clk),
		Clock:    clk,
		Logger:   logger,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &cliFixture{
		server:    srv,
		clock:     clk,
		tokenFile: filepath.Join(t.TempDir(), "token"),
	}
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append([]string{"--server", f.server.URL, "--token-file", f.tokenFile}, args...))
	err := root.Execute()
	return out.String(), err
}

func (f *cliFixture) createPlayer(t *testing.T, name, email string) Player {
	t.Helper()
	out, err := f.run(t, "-o", "json", "player", "create", "--name", name, "--email", email)
	require.NoError(t, err)
	var p Player
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	return p
}

func TestHealthCommand(t *testing.T) {
	f := newCLIFixture(t)
	out, err := f.run(t, "health")
	require.NoError(t, err)
	assert.Equal(t, "Status: healthy\n", out)
}

func TestPlayerCommands(t *testing.T) {
	f := newCLIFixture(t)
	p := f.createPlayer(t, "Ada", "ada@example.com")
	assert.Equal(t, "ada@example.com", p.Email)
	assert.True(t, p.Active)

	out, err := f.run(t, "player", "get", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Player: Ada ("+p.ID+")")
	assert.Contains(t, out, "Status: active")

	out, err = f.run(t, "player", "update", p.ID, "--name", "Ada L", "--email", "ada@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Player: Ada L")

	_, err = f.run(t, "player", "create", "--name", "Dup", "--email", "ada@example.com")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "CONFLICT", apiErr.Code)

	out, err = f.run(t, "player", "sessions", p.ID)
	require.NoError(t, err)
	assert.Equal(t, "No sessions\n", out)
}

func TestPlayerCreate_IdempotencyKey(t *testing.T) {
	f := newCLIFixture(t)
	args := []string{"-o", "json", "player", "create", "--name", "Grace", "--email", "grace@example.com", "--idempotency-key", "k-1"}

	first, err := f.run(t, args...)
	require.NoError(t, err)
	second, err := f.run(t, args...)
	require.NoError(t, err)
	assert.JSONEq(t, first, second)
}

func TestSessionCommands(t *testing.T) {
	f := newCLIFixture(t)
	p := f.createPlayer(t, "Ada", "ada@example.com")

	out, err := f.run(t, "-o", "json", "session", "start", "--player", p.ID, "--game-type", "1")
	require.NoError(t, err)
	var s Session
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Nil(t, s.EndedAt)

	_, err = f.run(t, "session", "start", "--player", p.ID, "--game-type", "7")
	require.Error(t, err)

	out, err = f.run(t, "session", "data", s.ID, "--set", "Level=3")
	require.NoError(t, err)
	assert.Contains(t, out, "Level: 3")

	f.clock.Advance(2 * time.Minute)
	out, err = f.run(t, "session", "end", s.ID, "--score", "500", "--completed",
		"--data", "SuccessfulDeploys=10", "--data", "CatInterventions=0")
	require.NoError(t, err)
	assert.Contains(t, out, "Rating: 5/5")
	assert.Contains(t, out, "Score credited: true")

	out, err = f.run(t, "session", "get", s.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Game: deploy_the_cat")
	assert.Contains(t, out, "completed: true")

	out, err = f.run(t, "player", "sessions", p.ID, "--game-type", "deploy_the_cat")
	require.NoError(t, err)
	assert.Contains(t, out, s.ID)

	out, err = f.run(t, "leaderboard", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "Ada")
}

func TestAdminCommands(t *testing.T) {
	f := newCLIFixture(t)
	p := f.createPlayer(t, "Linus", "linus@example.com")

	_, err := f.run(t, "admin", "deactivate", p.ID)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "UNAUTHORIZED", apiErr.Code)

	_, err = f.run(t, "admin", "token", "--secret", testSecret, "--subject", "ops@example.com", "--role", "root")
	require.Error(t, err)

	out, err := f.run(t, "admin", "token", "--secret", testSecret, "--subject", "ops@example.com", "--role", "admin", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "Token: ")

	out, err = f.run(t, "admin", "deactivate", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Status: inactive")

	out, err = f.run(t, "admin", "reactivate", p.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Status: active")

	out, err = f.run(t, "admin", "flagged")
	require.NoError(t, err)
	assert.Equal(t, "No sessions\n", out)
}

func TestParseGameData(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{"typed values", []string{"deploys=10", "accuracy=0.95", "won=true", "mode=hard"},
			map[string]any{"deploys": int64(10), "accuracy": 0.95, "won": true, "mode": "hard"}, false},
		{"empty", nil, map[string]any{}, false},
		{"missing equals", []string{"deploys"}, nil, true},
		{"empty key", []string{" =3"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseGameData(tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTopicFor(t *testing.T) {
	topic, err := topicFor("gaming.session.ended")
	require.NoError(t, err)
	assert.Equal(t, "gaminglibrary.session.ended", topic)

	topic, err = topicFor("gaming.player.score_updated")
	require.NoError(t, err)
	assert.Equal(t, "gaminglibrary.player.score_updated", topic)

	_, err = topicFor("session.ended")
	assert.Error(t, err)

	_, err = newCLIFixture(t).run(t, "events", "tail", "--event", "bogus")
	assert.Error(t, err)
}
