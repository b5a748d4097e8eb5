package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MinPlayerNameLength = 2
	MaxPlayerNameLength = 50
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// NormalizeEmail trims and lower-cases email, then validates it.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := ValidateEmail(email); err != nil {
		return "", err
	}
	return email, nil
}

// NormalizePlayerName trims name and checks length and character rules.
func NormalizePlayerName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("player name is required")
	}
	n := utf8.RuneCountInString(name)
	if n < MinPlayerNameLength || n > MaxPlayerNameLength {
		return "", fmt.Errorf("player name must be between %d and %d characters", MinPlayerNameLength, MaxPlayerNameLength)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return "", fmt.Errorf("player name contains invalid characters")
		}
	}
	return name, nil
}
