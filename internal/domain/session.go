package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// MaxSessionDuration caps a session; longer sessions never count as completed.
	MaxSessionDuration = 60 * time.Minute
	// MinScoringDuration is the shortest session whose score reaches the player.
	MinScoringDuration = 30 * time.Second

	reviewWindow         = time.Minute
	reviewScoreThreshold = 1000
	superhumanResponseMs = 100
	perfectAccuracy      = 1.0
)

// SessionState is derived from the end timestamp.
type SessionState string

const (
	SessionActive SessionState = "active"
	SessionEnded  SessionState = "ended"
)

// ScoringPolicy maps a finished session's game data to a 0-5 rating.
type ScoringPolicy interface {
	Rate(gameType GameType, data GameData, duration time.Duration) int
}

// GameSession is one playthrough of a game by a player. It starts Active and
// moves to Ended exactly once; score and game data are frozen after that.
type GameSession struct {
	ID                    SessionID  `json:"session_id"`
	PlayerID              PlayerID   `json:"player_id"`
	GameType              GameType   `json:"game_type"`
	Score                 int64      `json:"score"`
	StartedAt             time.Time  `json:"started_at"`
	EndedAt               *time.Time `json:"ended_at,omitempty"`
	CompletedSuccessfully bool       `json:"completed_successfully"`
	GameData              GameData   `json:"game_data"`
	FlaggedForReview      bool       `json:"flagged_for_review"`
}

// NewGameSession starts a session for playerID at now.
func NewGameSession(playerID PlayerID, gameType GameType, now time.Time, log *EventLog) (*GameSession, error) {
	if playerID.IsZero() {
		return nil, ErrValidation("player id is required")
	}
	if !gameType.Valid() {
		return nil, ErrValidation(fmt.Sprintf("unknown game type %d", gameType))
	}
	s := &GameSession{
		ID:        NewSessionID(),
		PlayerID:  playerID,
		GameType:  gameType,
		StartedAt: now.UTC(),
		GameData:  GameData{},
	}
	log.Record(GameSessionStarted{SessionID: s.ID, PlayerID: playerID, GameType: gameType, At: s.StartedAt})
	return s, nil
}

func (s *GameSession) IsActive() bool { return s.EndedAt == nil }

func (s *GameSession) State() SessionState {
	if s.IsActive() {
		return SessionActive
	}
	return SessionEnded
}

// Duration is measured to the end timestamp, or to now while active.
func (s *GameSession) Duration(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// UpdateScore adds delta to the score, flooring at zero.
func (s *GameSession) UpdateScore(delta int64) error {
	if err := s.requireActive("update score of"); err != nil {
		return err
	}
	s.Score = addScore(s.Score, delta)
	return nil
}

// addScore returns max(0, score+delta), saturating at math.MaxInt64 instead
// of wrapping.
func addScore(score, delta int64) int64 {
	if delta > 0 && score > math.MaxInt64-delta {
		return math.MaxInt64
	}
	if delta < 0 && score < math.MinInt64-delta {
		return 0
	}
	return max(0, score+delta)
}

// SetFinalScore replaces the score, flooring at zero.
func (s *GameSession) SetFinalScore(value int64) error {
	if err := s.requireActive("set final score of"); err != nil {
		return err
	}
	s.Score = max(0, value)
	return nil
}

func (s *GameSession) SetGameData(key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return ErrValidation("game data key cannot be empty")
	}
	if err := s.requireActive("update game data of"); err != nil {
		return err
	}
	if s.GameData == nil {
		s.GameData = GameData{}
	}
	s.GameData[key] = value
	return nil
}

// ApplyGameData writes every entry of data, or none of them if any key is
// blank or the session has ended.
func (s *GameSession) ApplyGameData(data GameData) error {
	for key := range data {
		if strings.TrimSpace(key) == "" {
			return ErrValidation("game data key cannot be empty")
		}
	}
	if err := s.requireActive("update game data of"); err != nil {
		return err
	}
	for key, value := range data {
		if err := s.SetGameData(key, value); err != nil {
			return err
		}
	}
	return nil
}

// End finishes the session. A session that ran past MaxSessionDuration is
// recorded as not completed whatever the caller reports.
func (s *GameSession) End(completed bool, now time.Time, log *EventLog) error {
	if err := s.requireActive("end"); err != nil {
		return err
	}
	endedAt := now.UTC()
	s.EndedAt = &endedAt
	s.CompletedSuccessfully = completed
	duration := s.Duration(endedAt)
	if duration > MaxSessionDuration {
		s.CompletedSuccessfully = false
	}

	log.Record(GameSessionEnded{
		SessionID:  s.ID,
		PlayerID:   s.PlayerID,
		GameType:   s.GameType,
		Score:      s.Score,
		Completed:  s.CompletedSuccessfully,
		DurationMs: duration.Milliseconds(),
		At:         endedAt,
	})
	return nil
}

// QualifiesForScoring reports whether the score may be credited to the player.
func (s *GameSession) QualifiesForScoring(now time.Time) bool {
	d := s.Duration(now)
	return d >= MinScoringDuration && d <= MaxSessionDuration && s.Score > 0
}

// CalculatePerformanceRating returns 0..5; incomplete or scoreless sessions rate 0.
func (s *GameSession) CalculatePerformanceRating(policy ScoringPolicy, now time.Time) int {
	if !s.CompletedSuccessfully || s.Score == 0 || policy == nil {
		return 0
	}
	return min(5, max(0, policy.Rate(s.GameType, s.GameData, s.Duration(now))))
}

// ShouldFlagForReview reports statistically implausible sessions: a high
// score inside the first minute, or perfect reaction-game accuracy at
// superhuman speed.
func (s *GameSession) ShouldFlagForReview(now time.Time) bool {
	if s.Duration(now) < reviewWindow && s.Score > reviewScoreThreshold {
		return true
	}
	if s.GameType == GameGitBlaster {
		accuracy := s.GameData.Float(KeyAverageAccuracy)
		responseMs := s.GameData.Float(KeyAverageResponseTimeMs)
		if accuracy >= perfectAccuracy && responseMs < superhumanResponseMs {
			return true
		}
	}
	return false
}

func (s *GameSession) requireActive(action string) error {
	if !s.IsActive() {
		return ErrInvalidState(fmt.Sprintf("cannot %s ended session %s", action, s.ID))
	}
	return nil
}
