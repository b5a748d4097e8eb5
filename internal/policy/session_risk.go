package policy

import (
	"time"

	"github.com/rogerbap/gaminglibrary/internal/domain"
)

// RiskLevel classifies how implausible a finished session looks.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// SessionRiskSignals holds the raw inputs for risk evaluation.
type SessionRiskSignals struct {
	GameType          domain.GameType `json:"game_type"`
	Score             int64           `json:"score"`
	Duration          time.Duration   `json:"duration"`
	AverageAccuracy   float64         `json:"average_accuracy"`
	AverageResponseMs float64         `json:"average_response_ms"`
	TimedOut          bool            `json:"timed_out"` // ran past the maximum session duration
}

// SessionRiskResult holds the evaluated risk.
type SessionRiskResult struct {
	Level RiskLevel `json:"level"`
	Score int       `json:"score"`
	Flags []string  `json:"flags,omitempty"`
}

// SignalsFromSession extracts risk signals from a session as of now.
func SignalsFromSession(s *domain.GameSession, now time.Time) SessionRiskSignals {
	duration := s.Duration(now)
	return SessionRiskSignals{
		GameType:          s.GameType,
		Score:             s.Score,
		Duration:          duration,
		AverageAccuracy:   s.GameData.Float(domain.KeyAverageAccuracy),
		AverageResponseMs: s.GameData.Float(domain.KeyAverageResponseTimeMs),
		TimedOut:          duration > domain.MaxSessionDuration,
	}
}

// EvaluateSessionRisk computes a risk score from session signals. Anything
// that trips GameSession.ShouldFlagForReview lands in RiskHigh.
func EvaluateSessionRisk(signals SessionRiskSignals) SessionRiskResult {
	var score int
	var flags []string

	if signals.Duration < time.Minute && signals.Score > 1000 {
		score += 60
		flags = append(flags, "burst_score")
	}

	if minutes := signals.Duration.Minutes(); minutes > 0 {
		perMinute := float64(signals.Score) / minutes
		if perMinute > 2000 {
			score += 30
			flags = append(flags, "high_score_rate")
		} else if perMinute > 1000 {
			score += 15
			flags = append(flags, "elevated_score_rate")
		}
	}

	if signals.GameType == domain.GameGitBlaster {
		if signals.AverageAccuracy >= 1.0 && signals.AverageResponseMs < 100 {
			score += 60
			flags = append(flags, "superhuman_reaction")
		} else if signals.AverageResponseMs > 0 && signals.AverageResponseMs < 150 {
			score += 15
			flags = append(flags, "fast_reaction")
		}
	}

	if signals.TimedOut {
		score += 10
		flags = append(flags, "timed_out")
	}

	level := RiskLow
	if score >= 60 {
		level = RiskHigh
	} else if score >= 30 {
		level = RiskMedium
	}

	return SessionRiskResult{Level: level, Score: score, Flags: flags}
}
