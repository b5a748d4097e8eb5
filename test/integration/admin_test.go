//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/rogerbap/gaminglibrary/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Admin Auth ────────────────────────────────────────────────────────────

func TestAdminAuth(t *testing.T) {
	env := testutil.NewTestEnv(t)
	player := env.UniquePlayer("ada")
	path := "/admin/players/" + player.ID.String() + "/deactivate"

	cases := []struct {
		name   string
		token  string
		status int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "not-a-jwt", http.StatusUnauthorized},
		{"viewer cannot write", env.AdminToken("viewer"), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.AuthPOST(path, nil, tc.token)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}

	resp := env.AuthGET("/admin/sessions/flagged", env.AdminToken("viewer"))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// ─── Moderation ────────────────────────────────────────────────────────────

func TestAdmin_DeactivateBlocksNewSessions(t *testing.T) {
	env := testutil.NewTestEnv(t)
	player := env.UniquePlayer("ada")
	admin := env.AdminToken("admin")

	resp := env.AuthPOST("/admin/players/"+player.ID.String()+"/deactivate", nil, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var deactivated domain.Player
	testutil.DecodeJSON(t, resp, &deactivated)
	assert.False(t, deactivated.Active)

	resp = env.POST("/sessions/start", map[string]interface{}{
		"playerId": player.ID.String(),
		"gameType": int(domain.GameDeployTheCat),
	})
	testutil.AssertFailure(t, resp, http.StatusForbidden, domain.CodeAccountInactive)

	// deactivating twice is a no-op
	resp = env.AuthPOST("/admin/players/"+player.ID.String()+"/deactivate", nil, admin)
	testutil.AssertStatus(t, resp, http.StatusOK)
	resp.Body.Close()
	assert.Equal(t, 1, env.CountOutbox(string(domain.EventPlayerDeactivated)))

	resp = env.AuthPOST("/admin/players/"+player.ID.String()+"/reactivate", nil, env.AdminToken("superadmin"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	env.StartSession(player.ID, domain.GameDeployTheCat)
	assert.Equal(t, 1, env.CountOutbox(string(domain.EventPlayerReactivated)))
}

func TestAdmin_DeactivatedPlayerLeavesLeaderboard(t *testing.T) {
	env := testutil.NewTestEnv(t)
	player := env.UniquePlayer("ada")
	gs := env.StartSession(player.ID, domain.GameDeployTheCat)
	env.Clock.Advance(2 * time.Minute)
	resp := env.EndSession(gs.ID, 400, true, nil)
	resp.Body.Close()

	resp = env.AuthPOST("/admin/players/"+player.ID.String()+"/deactivate", nil, env.AdminToken("admin"))
	resp.Body.Close()

	resp = env.GET("/leaderboard")
	var board []domain.LeaderboardEntry
	testutil.DecodeJSON(t, resp, &board)
	assert.Empty(t, board)
}

func TestAdmin_UnknownPlayer(t *testing.T) {
	env := testutil.NewTestEnv(t)
	resp := env.AuthPOST("/admin/players/"+domain.NewPlayerID().String()+"/deactivate", nil, env.AdminToken("admin"))
	testutil.AssertFailure(t, resp, http.StatusNotFound, domain.CodeNotFound)
}
