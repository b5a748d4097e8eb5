package domain

import "time"

// PlayerCreated is recorded when a player account is created.
type PlayerCreated struct {
	PlayerID PlayerID  `json:"player_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	At       time.Time `json:"occurred_at"`
}

func (e PlayerCreated) EventType() EventType         { return EventPlayerCreated }
func (e PlayerCreated) AggregateType() AggregateType { return AggregatePlayer }
func (e PlayerCreated) AggregateID() string          { return e.PlayerID.String() }
func (e PlayerCreated) PartitionKey() string         { return e.PlayerID.String() }
func (e PlayerCreated) OccurredAt() time.Time        { return e.At }

// PlayerScoreUpdated is recorded on every cumulative score change.
type PlayerScoreUpdated struct {
	PlayerID    PlayerID  `json:"player_id"`
	Name        string    `json:"name"`
	OldScore    int64     `json:"old_score"`
	NewScore    int64     `json:"new_score"`
	Delta       int64     `json:"delta"`
	Completed   bool      `json:"completed"`
	GamesPlayed int       `json:"games_played"`
	Active      bool      `json:"active"`
	At          time.Time `json:"occurred_at"`
}

func (e PlayerScoreUpdated) EventType() EventType         { return EventPlayerScoreUpdated }
func (e PlayerScoreUpdated) AggregateType() AggregateType { return AggregatePlayer }
func (e PlayerScoreUpdated) AggregateID() string          { return e.PlayerID.String() }
func (e PlayerScoreUpdated) PartitionKey() string         { return e.PlayerID.String() }
func (e PlayerScoreUpdated) OccurredAt() time.Time        { return e.At }

type PlayerInfoUpdated struct {
	PlayerID PlayerID  `json:"player_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	At       time.Time `json:"occurred_at"`
}

func (e PlayerInfoUpdated) EventType() EventType         { return EventPlayerInfoUpdated }
func (e PlayerInfoUpdated) AggregateType() AggregateType { return AggregatePlayer }
func (e PlayerInfoUpdated) AggregateID() string          { return e.PlayerID.String() }
func (e PlayerInfoUpdated) PartitionKey() string         { return e.PlayerID.String() }
func (e PlayerInfoUpdated) OccurredAt() time.Time        { return e.At }

type PlayerDeactivated struct {
	PlayerID PlayerID  `json:"player_id"`
	At       time.Time `json:"occurred_at"`
}

func (e PlayerDeactivated) EventType() EventType         { return EventPlayerDeactivated }
func (e PlayerDeactivated) AggregateType() AggregateType { return AggregatePlayer }
func (e PlayerDeactivated) AggregateID() string          { return e.PlayerID.String() }
func (e PlayerDeactivated) PartitionKey() string         { return e.PlayerID.String() }
func (e PlayerDeactivated) OccurredAt() time.Time        { return e.At }

// PlayerReactivated carries the standings so projections can restore the player.
type PlayerReactivated struct {
	PlayerID    PlayerID  `json:"player_id"`
	Name        string    `json:"name"`
	TotalScore  int64     `json:"total_score"`
	GamesPlayed int       `json:"games_played"`
	At          time.Time `json:"occurred_at"`
}

func (e PlayerReactivated) EventType() EventType         { return EventPlayerReactivated }
func (e PlayerReactivated) AggregateType() AggregateType { return AggregatePlayer }
func (e PlayerReactivated) AggregateID() string          { return e.PlayerID.String() }
func (e PlayerReactivated) PartitionKey() string         { return e.PlayerID.String() }
func (e PlayerReactivated) OccurredAt() time.Time        { return e.At }

type GameSessionStarted struct {
	SessionID SessionID `json:"session_id"`
	PlayerID  PlayerID  `json:"player_id"`
	GameType  GameType  `json:"game_type"`
	At        time.Time `json:"occurred_at"`
}

func (e GameSessionStarted) EventType() EventType         { return EventSessionStarted }
func (e GameSessionStarted) AggregateType() AggregateType { return AggregateSession }
func (e GameSessionStarted) AggregateID() string          { return e.SessionID.String() }
func (e GameSessionStarted) PartitionKey() string         { return e.PlayerID.String() }
func (e GameSessionStarted) OccurredAt() time.Time        { return e.At }

type GameSessionEnded struct {
	SessionID  SessionID `json:"session_id"`
	PlayerID   PlayerID  `json:"player_id"`
	GameType   GameType  `json:"game_type"`
	Score      int64     `json:"score"`
	Completed  bool      `json:"completed"`
	DurationMs int64     `json:"duration_ms"`
	At         time.Time `json:"occurred_at"`
}

func (e GameSessionEnded) EventType() EventType         { return EventSessionEnded }
func (e GameSessionEnded) AggregateType() AggregateType { return AggregateSession }
func (e GameSessionEnded) AggregateID() string          { return e.SessionID.String() }
func (e GameSessionEnded) PartitionKey() string         { return e.PlayerID.String() }
func (e GameSessionEnded) OccurredAt() time.Time        { return e.At }
