package policy

import (
	"testing"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateSessionRisk_LowRisk(t *testing.T) {
	result := EvaluateSessionRisk(SessionRiskSignals{
		GameType: domain.GameDeployTheCat,
		Score:    500,
		Duration: 2 * time.Minute,
	})
	assert.Equal(t, RiskLow, result.Level)
	assert.Equal(t, 0, result.Score)
	assert.Empty(t, result.Flags)
}

func TestEvaluateSessionRisk_MediumRisk(t *testing.T) {
	result := EvaluateSessionRisk(SessionRiskSignals{
		GameType: domain.GameDeployTheCat,
		Score:    5000,
		Duration: 2 * time.Minute,
	})
	assert.Equal(t, RiskMedium, result.Level)
	assert.Equal(t, 30, result.Score)
	assert.Contains(t, result.Flags, "high_score_rate")
}

func TestEvaluateSessionRisk_BurstScoreIsHigh(t *testing.T) {
	result := EvaluateSessionRisk(SessionRiskSignals{
		GameType: domain.GameDeployTheCat,
		Score:    1500,
		Duration: 50 * time.Second,
	})
	assert.Equal(t, RiskHigh, result.Level)
	assert.Contains(t, result.Flags, "burst_score")
	assert.Contains(t, result.Flags, "elevated_score_rate")
}

func TestEvaluateSessionRisk_Reactions(t *testing.T) {
	tests := []struct {
		name       string
		accuracy   float64
		responseMs float64
		wantLevel  RiskLevel
		wantFlag   string
	}{
		{"perfect and superhuman", 1.0, 80, RiskHigh, "superhuman_reaction"},
		{"perfect with no timing", 1.0, 0, RiskHigh, "superhuman_reaction"},
		{"fast but imperfect", 0.9, 120, RiskLow, "fast_reaction"},
		{"human", 0.9, 300, RiskLow, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := EvaluateSessionRisk(SessionRiskSignals{
				GameType:          domain.GameGitBlaster,
				Score:             10,
				Duration:          10 * time.Minute,
				AverageAccuracy:   tt.accuracy,
				AverageResponseMs: tt.responseMs,
			})
			assert.Equal(t, tt.wantLevel, result.Level)
			if tt.wantFlag == "" {
				assert.Empty(t, result.Flags)
			} else {
				assert.Contains(t, result.Flags, tt.wantFlag)
			}
		})
	}
}

func TestEvaluateSessionRisk_TimedOutAddsScore(t *testing.T) {
	result := EvaluateSessionRisk(SessionRiskSignals{
		GameType: domain.GameDeployTheCat,
		Score:    10,
		Duration: 65 * time.Minute,
		TimedOut: true,
	})
	assert.Equal(t, 10, result.Score)
	assert.Contains(t, result.Flags, "timed_out")
}

func TestSignalsFromSession_AgreesWithReviewFlag(t *testing.T) {
	start := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	s, err := domain.NewGameSession(domain.NewPlayerID(), domain.GameGitBlaster, start, nil)
	require.NoError(t, err)
	require.NoError(t, s.ApplyGameData(domain.GameData{
		domain.KeyAverageAccuracy:       1.0,
		domain.KeyAverageResponseTimeMs: 60.0,
	}))
	require.NoError(t, s.SetFinalScore(200))
	require.NoError(t, s.End(true, start.Add(3*time.Minute), nil))

	signals := SignalsFromSession(s, start.Add(time.Hour))
	assert.Equal(t, 3*time.Minute, signals.Duration)
	assert.False(t, signals.TimedOut)

	result := EvaluateSessionRisk(signals)
	assert.True(t, s.ShouldFlagForReview(start))
	assert.Equal(t, RiskHigh, result.Level)
}
