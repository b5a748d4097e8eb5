package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter writing to w.
func NewOutput(format string, w io.Writer) *Output {
	return &Output{format: format, w: w}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Player:
		o.printPlayer(v)
	case Session:
		o.printSession(v)
	case []Session:
		o.printSessions(v)
	case EndResult:
		o.printEndResult(v)
	case []LeaderboardEntry:
		o.printLeaderboard(v)
	case HealthResult:
		fmt.Fprintf(o.w, "Status: %s\n", v.Status)
	case TokenResult:
		fmt.Fprintf(o.w, "Token: %s\nExpires: %s\n", v.Token, v.ExpiresAt.Format(time.RFC3339))
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Player response type (matches API)
type Player struct {
	ID           string    `json:"player_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	TotalScore   int64     `json:"total_score"`
	GamesPlayed  int       `json:"games_played"`
	Active       bool      `json:"is_active"`
	LastPlayedAt time.Time `json:"last_played_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session response type
type Session struct {
	ID                    string         `json:"session_id"`
	PlayerID              string         `json:"player_id"`
	GameType              int            `json:"game_type"`
	Score                 int64          `json:"score"`
	StartedAt             time.Time      `json:"started_at"`
	EndedAt               *time.Time     `json:"ended_at,omitempty"`
	CompletedSuccessfully bool           `json:"completed_successfully"`
	GameData              map[string]any `json:"game_data"`
	FlaggedForReview      bool           `json:"flagged_for_review"`
}

// EndResult response type
type EndResult struct {
	Session Session `json:"session"`
	Rating  int     `json:"performance_rating"`
	Scored  bool    `json:"score_credited"`
	Risk    struct {
		Level string   `json:"level"`
		Score int      `json:"score"`
		Flags []string `json:"flags,omitempty"`
	} `json:"risk"`
}

// LeaderboardEntry response type
type LeaderboardEntry struct {
	Rank         int     `json:"rank"`
	PlayerID     string  `json:"player_id"`
	Name         string  `json:"name"`
	TotalScore   int64   `json:"total_score"`
	GamesPlayed  int     `json:"games_played"`
	AverageScore float64 `json:"average_score"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// TokenResult is a locally minted admin token.
type TokenResult struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func gameTypeName(gt int) string {
	switch gt {
	case 1:
		return "deploy_the_cat"
	case 2:
		return "git_blaster"
	default:
		return fmt.Sprintf("unknown(%d)", gt)
	}
}

func (o *Output) printPlayer(p Player) {
	status := "active"
	if !p.Active {
		status = "inactive"
	}
	fmt.Fprintf(o.w, "Player: %s (%s)\n", p.Name, p.ID)
	fmt.Fprintf(o.w, "Email: %s\n", p.Email)
	fmt.Fprintf(o.w, "Status: %s\n", status)
	fmt.Fprintf(o.w, "Score: %d over %d games\n", p.TotalScore, p.GamesPlayed)
}

func (o *Output) printSession(s Session) {
	fmt.Fprintf(o.w, "Session: %s\n", s.ID)
	fmt.Fprintf(o.w, "Player: %s\n", s.PlayerID)
	fmt.Fprintf(o.w, "Game: %s\n", gameTypeName(s.GameType))
	fmt.Fprintf(o.w, "Score: %d\n", s.Score)
	fmt.Fprintf(o.w, "Started: %s\n", s.StartedAt.Format(time.RFC3339))
	if s.EndedAt != nil {
		fmt.Fprintf(o.w, "Ended: %s (completed: %t)\n", s.EndedAt.Format(time.RFC3339), s.CompletedSuccessfully)
	} else {
		fmt.Fprintln(o.w, "State: active")
	}
	if s.FlaggedForReview {
		fmt.Fprintln(o.w, "Flagged for review")
	}
	if len(s.GameData) > 0 {
		keys := make([]string, 0, len(s.GameData))
		for k := range s.GameData {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(o.w, "Game data:")
		for _, k := range keys {
			fmt.Fprintf(o.w, "  %s: %v\n", k, s.GameData[k])
		}
	}
}

func (o *Output) printSessions(sessions []Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(o.w, "No sessions")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tGAME\tSCORE\tSTATE\tSTARTED")
	for _, s := range sessions {
		state := "active"
		if s.EndedAt != nil {
			state = "ended"
			if s.FlaggedForReview {
				state = "flagged"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.ID, gameTypeName(s.GameType), s.Score, state, s.StartedAt.Format(time.RFC3339))
	}
	_ = tw.Flush()
}

func (o *Output) printEndResult(r EndResult) {
	o.printSession(r.Session)
	fmt.Fprintf(o.w, "Rating: %d/5\n", r.Rating)
	fmt.Fprintf(o.w, "Score credited: %t\n", r.Scored)
	if r.Risk.Level != "" {
		fmt.Fprintf(o.w, "Risk: %s", r.Risk.Level)
		if len(r.Risk.Flags) > 0 {
			fmt.Fprintf(o.w, " (%s)", strings.Join(r.Risk.Flags, ", "))
		}
		fmt.Fprintln(o.w)
	}
}

func (o *Output) printLeaderboard(entries []LeaderboardEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(o.w, "Leaderboard is empty")
		return
	}
	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPLAYER\tSCORE\tGAMES\tAVG")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%.1f\n", e.Rank, e.Name, e.TotalScore, e.GamesPlayed, e.AverageScore)
	}
	_ = tw.Flush()
}
