package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// GameType identifies which minigame a session belongs to.
type GameType int

const (
	GameDeployTheCat GameType = 1
	GameGitBlaster   GameType = 2
)

var gameTypeNames = map[GameType]string{
	GameDeployTheCat: "deploy_the_cat",
	GameGitBlaster:   "git_blaster",
}

// GameTypes lists every supported game type in id order.
func GameTypes() []GameType {
	return []GameType{GameDeployTheCat, GameGitBlaster}
}

// ParseGameType rejects any value outside the supported set.
func ParseGameType(v int) (GameType, error) {
	gt := GameType(v)
	if !gt.Valid() {
		return 0, ErrValidation(fmt.Sprintf("unknown game type %d", v))
	}
	return gt, nil
}

// ParseGameTypeName accepts either the numeric id or the snake_case name.
func ParseGameTypeName(s string) (GameType, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		return ParseGameType(n)
	}
	for gt, name := range gameTypeNames {
		if name == s {
			return gt, nil
		}
	}
	return 0, ErrValidation(fmt.Sprintf("unknown game type %q", s))
}

func (g GameType) Valid() bool {
	_, ok := gameTypeNames[g]
	return ok
}

func (g GameType) String() string {
	if name, ok := gameTypeNames[g]; ok {
		return name
	}
	return "unknown_" + strconv.Itoa(int(g))
}
