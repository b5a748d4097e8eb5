package policy

import (
	"sync"
	"time"

	"github.com/rogerbap/gaminglibrary/internal/domain"
)

// RatingRule maps one game type's session data to a 0-5 rating.
type RatingRule func(data domain.GameData, duration time.Duration) int

// RatingTable is a registry of rating rules keyed by game type. Game types
// without a rule rate 0. It satisfies domain.ScoringPolicy.
type RatingTable struct {
	mu    sync.RWMutex
	rules map[domain.GameType]RatingRule
}

// NewRatingTable returns an empty table.
func NewRatingTable() *RatingTable {
	return &RatingTable{rules: make(map[domain.GameType]RatingRule)}
}

// DefaultRatingTable returns a table with rules for every built-in game type.
func DefaultRatingTable() *RatingTable {
	t := NewRatingTable()
	t.Register(domain.GameDeployTheCat, RateDeployTheCat)
	t.Register(domain.GameGitBlaster, RateGitBlaster)
	return t
}

// Register adds or replaces the rule for gameType.
func (t *RatingTable) Register(gameType domain.GameType, rule RatingRule) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rules[gameType] = rule
}

// Rate applies the rule for gameType and clamps the result to 0..5.
func (t *RatingTable) Rate(gameType domain.GameType, data domain.GameData, duration time.Duration) int {
	t.mu.RLock()
	rule, ok := t.rules[gameType]
	t.mu.RUnlock()
	if !ok || rule == nil {
		return 0
	}
	return min(5, max(0, rule(data, duration)))
}

// RateDeployTheCat rates by the share of deploys that got past the cat,
// with a bonus point in the middle bands for runs under five minutes.
func RateDeployTheCat(data domain.GameData, duration time.Duration) int {
	deploys := data.Int(domain.KeySuccessfulDeploys)
	interventions := data.Int(domain.KeyCatInterventions)
	if deploys <= 0 {
		return 1
	}

	successRate := float64(deploys) / float64(deploys+max(0, interventions))
	speedBonus := 0
	if duration < 5*time.Minute {
		speedBonus = 1
	}

	switch {
	case successRate >= 0.9:
		return 5
	case successRate >= 0.7:
		return 4 + speedBonus
	case successRate >= 0.5:
		return 3 + speedBonus
	case successRate >= 0.3:
		return 2
	default:
		return 1
	}
}

// RateGitBlaster rates by average accuracy, with a bonus point in the middle
// bands for using at least five distinct commands.
func RateGitBlaster(data domain.GameData, _ time.Duration) int {
	accuracy := data.Float(domain.KeyAverageAccuracy)
	if accuracy == 0 {
		return 1
	}

	varietyBonus := 0
	if data.Int(domain.KeyUniqueCommandsUsed) >= 5 {
		varietyBonus = 1
	}

	switch {
	case accuracy >= 0.9:
		return 5
	case accuracy >= 0.8:
		return 4 + varietyBonus
	case accuracy >= 0.6:
		return 3 + varietyBonus
	case accuracy >= 0.4:
		return 2
	default:
		return 1
	}
}
