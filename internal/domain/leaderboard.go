package domain

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank         int      `json:"rank"`
	PlayerID     PlayerID `json:"player_id"`
	Name         string   `json:"name"`
	TotalScore   int64    `json:"total_score"`
	GamesPlayed  int      `json:"games_played"`
	AverageScore float64  `json:"average_score"`
}

// NewLeaderboardEntry ranks p at position rank (1-based).
func NewLeaderboardEntry(rank int, p *Player) LeaderboardEntry {
	return LeaderboardEntry{
		Rank:         rank,
		PlayerID:     p.ID,
		Name:         p.Name,
		TotalScore:   p.TotalScore,
		GamesPlayed:  p.GamesPlayed,
		AverageScore: p.AverageScorePerGame(),
	}
}
