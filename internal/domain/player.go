package domain

import "time"

// Player is a player account with its cumulative standings.
type Player struct {
	ID           PlayerID  `json:"player_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	TotalScore   int64     `json:"total_score"`
	GamesPlayed  int       `json:"games_played"`
	Active       bool      `json:"is_active"`
	LastPlayedAt time.Time `json:"last_played_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewPlayer validates name and email and returns an active player with no
// score. The email is stored trimmed and lower-cased.
func NewPlayer(name, email string, now time.Time, log *EventLog) (*Player, error) {
	cleanName, cleanEmail, err := validatePlayerInfo(name, email)
	if err != nil {
		return nil, err
	}
	now = now.UTC()
	p := &Player{
		ID:           NewPlayerID(),
		Name:         cleanName,
		Email:        cleanEmail,
		Active:       true,
		LastPlayedAt: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	log.Record(PlayerCreated{PlayerID: p.ID, Name: p.Name, Email: p.Email, At: now})
	return p, nil
}

// UpdateScore applies delta to the cumulative score, flooring at zero.
// Games played only counts completed sessions.
func (p *Player) UpdateScore(delta int64, completed bool, now time.Time, log *EventLog) {
	old := p.TotalScore
	p.TotalScore = addScore(old, delta)
	if completed {
		p.GamesPlayed++
	}
	p.touch(now)
	p.LastPlayedAt = p.UpdatedAt

	log.Record(PlayerScoreUpdated{
		PlayerID:    p.ID,
		Name:        p.Name,
		OldScore:    old,
		NewScore:    p.TotalScore,
		Delta:       delta,
		Completed:   completed,
		GamesPlayed: p.GamesPlayed,
		Active:      p.Active,
		At:          p.UpdatedAt,
	})
}

// UpdateInfo replaces the display name and email after validating both.
func (p *Player) UpdateInfo(name, email string, now time.Time, log *EventLog) error {
	cleanName, cleanEmail, err := validatePlayerInfo(name, email)
	if err != nil {
		return err
	}
	p.Name = cleanName
	p.Email = cleanEmail
	p.touch(now)
	log.Record(PlayerInfoUpdated{PlayerID: p.ID, Name: p.Name, Email: p.Email, At: p.UpdatedAt})
	return nil
}

func (p *Player) Deactivate(now time.Time, log *EventLog) {
	p.Active = false
	p.touch(now)
	log.Record(PlayerDeactivated{PlayerID: p.ID, At: p.UpdatedAt})
}

// Reactivate restores the account and refreshes the last-played timestamp.
func (p *Player) Reactivate(now time.Time, log *EventLog) {
	p.Active = true
	p.touch(now)
	p.LastPlayedAt = p.UpdatedAt
	log.Record(PlayerReactivated{
		PlayerID:    p.ID,
		Name:        p.Name,
		TotalScore:  p.TotalScore,
		GamesPlayed: p.GamesPlayed,
		At:          p.UpdatedAt,
	})
}

// RecordGameStart marks the player as having played now.
func (p *Player) RecordGameStart(now time.Time) {
	p.touch(now)
	p.LastPlayedAt = p.UpdatedAt
}

func (p *Player) QualifiesForLeaderboard() bool {
	return p.Active && p.GamesPlayed >= 1
}

func (p *Player) AverageScorePerGame() float64 {
	if p.GamesPlayed == 0 {
		return 0
	}
	return float64(p.TotalScore) / float64(p.GamesPlayed)
}

func (p *Player) touch(now time.Time) {
	p.UpdatedAt = now.UTC()
}

func validatePlayerInfo(name, email string) (string, string, error) {
	cleanName, err := NormalizePlayerName(name)
	if err != nil {
		return "", "", ErrValidation(err.Error())
	}
	cleanEmail, err := NormalizeEmail(email)
	if err != nil {
		return "", "", ErrValidation(err.Error())
	}
	return cleanName, cleanEmail, nil
}
