package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

func newTestPlayer(t *testing.T) *Player {
	t.Helper()
	p, err := NewPlayer("Ada", "ADA@EX.com", t0, nil)
	require.NoError(t, err)
	return p
}

func TestNewPlayer(t *testing.T) {
	log := &EventLog{}
	p, err := NewPlayer("  Ada  ", "ADA@EX.com", t0, log)
	require.NoError(t, err)

	assert.False(t, p.ID.IsZero())
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "ada@ex.com", p.Email)
	assert.Equal(t, int64(0), p.TotalScore)
	assert.Equal(t, 0, p.GamesPlayed)
	assert.True(t, p.Active)
	assert.Equal(t, t0, p.CreatedAt)
	assert.Equal(t, t0, p.LastPlayedAt)

	require.Equal(t, 1, log.Len())
	created, ok := log.Events()[0].(PlayerCreated)
	require.True(t, ok)
	assert.Equal(t, p.ID, created.PlayerID)
	assert.Equal(t, "ada@ex.com", created.Email)
}

func TestNewPlayer_Validation(t *testing.T) {
	tests := []struct {
		name  string
		pname string
		email string
	}{
		{"short name", "A", "a@example.com"},
		{"long name", "abcdefghijklmnopqrstuvwxyzabcdefghijklmnopqrstuvwxyz", "a@example.com"},
		{"control char", "Ad\ta", "a@example.com"},
		{"bad email", "Ada", "ada-at-example"},
		{"empty email", "Ada", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &EventLog{}
			p, err := NewPlayer(tt.pname, tt.email, t0, log)
			assert.Nil(t, p)
			assert.True(t, IsCode(err, CodeValidation))
			assert.Equal(t, 0, log.Len())
		})
	}
}

func TestPlayer_UpdateScore(t *testing.T) {
	t.Run("adds delta and counts completed game", func(t *testing.T) {
		p := newTestPlayer(t)
		log := &EventLog{}
		later := t0.Add(time.Hour)

		p.UpdateScore(500, true, later, log)

		assert.Equal(t, int64(500), p.TotalScore)
		assert.Equal(t, 1, p.GamesPlayed)
		assert.Equal(t, later, p.LastPlayedAt)

		require.Equal(t, 1, log.Len())
		ev := log.Events()[0].(PlayerScoreUpdated)
		assert.Equal(t, int64(0), ev.OldScore)
		assert.Equal(t, int64(500), ev.NewScore)
		assert.Equal(t, int64(500), ev.Delta)
		assert.True(t, ev.Completed)
		assert.Equal(t, 1, ev.GamesPlayed)
	})

	t.Run("incomplete game does not count", func(t *testing.T) {
		p := newTestPlayer(t)
		p.UpdateScore(100, false, t0, nil)
		assert.Equal(t, int64(100), p.TotalScore)
		assert.Equal(t, 0, p.GamesPlayed)
	})

	t.Run("floors at zero", func(t *testing.T) {
		p := newTestPlayer(t)
		p.UpdateScore(50, true, t0, nil)
		p.UpdateScore(-200, false, t0, nil)
		assert.Equal(t, int64(0), p.TotalScore)
	})

	t.Run("saturates instead of wrapping", func(t *testing.T) {
		p := newTestPlayer(t)
		p.UpdateScore(math.MaxInt64, true, t0, nil)
		p.UpdateScore(500, true, t0, nil)
		assert.Equal(t, int64(math.MaxInt64), p.TotalScore)
		assert.Equal(t, 2, p.GamesPlayed)

		p.UpdateScore(math.MinInt64, false, t0, nil)
		assert.Equal(t, int64(0), p.TotalScore)
	})
}

func TestPlayer_AverageScorePerGame(t *testing.T) {
	p := newTestPlayer(t)
	assert.Equal(t, 0.0, p.AverageScorePerGame())

	for _, score := range []int64{100, 200, 300} {
		p.UpdateScore(score, true, t0, nil)
	}
	assert.Equal(t, 200.0, p.AverageScorePerGame())
}

func TestPlayer_ActivationToggle(t *testing.T) {
	p := newTestPlayer(t)
	log := &EventLog{}

	p.Deactivate(t0.Add(time.Minute), log)
	assert.False(t, p.Active)
	assert.Equal(t, t0, p.LastPlayedAt, "deactivate leaves last played alone")

	reactivatedAt := t0.Add(2 * time.Hour)
	p.Reactivate(reactivatedAt, log)
	assert.True(t, p.Active)
	assert.Equal(t, reactivatedAt, p.LastPlayedAt)

	require.Equal(t, 2, log.Len())
	assert.Equal(t, EventPlayerDeactivated, log.Events()[0].EventType())
	assert.Equal(t, EventPlayerReactivated, log.Events()[1].EventType())
}

func TestPlayer_QualifiesForLeaderboard(t *testing.T) {
	p := newTestPlayer(t)
	assert.False(t, p.QualifiesForLeaderboard(), "no games yet")

	p.UpdateScore(10, true, t0, nil)
	assert.True(t, p.QualifiesForLeaderboard())

	p.Deactivate(t0, nil)
	assert.False(t, p.QualifiesForLeaderboard())
}

func TestPlayer_UpdateInfo(t *testing.T) {
	p := newTestPlayer(t)
	log := &EventLog{}

	require.NoError(t, p.UpdateInfo("Grace", "Grace@Navy.MIL", t0.Add(time.Minute), log))
	assert.Equal(t, "Grace", p.Name)
	assert.Equal(t, "grace@navy.mil", p.Email)
	assert.Equal(t, 1, log.Len())

	err := p.UpdateInfo("G", "grace@navy.mil", t0, log)
	assert.True(t, IsCode(err, CodeValidation))
	assert.Equal(t, "Grace", p.Name, "failed update leaves player untouched")
	assert.Equal(t, 1, log.Len())
}

func TestPlayer_RecordGameStart(t *testing.T) {
	p := newTestPlayer(t)
	later := t0.Add(3 * time.Hour)
	p.RecordGameStart(later)
	assert.Equal(t, later, p.LastPlayedAt)
}
