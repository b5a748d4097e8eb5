package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PlayerID identifies a player account. The zero value is not a valid id;
// construct one with NewPlayerID or ParsePlayerID.
type PlayerID struct {
	id uuid.UUID
}

// NewPlayerID returns a fresh random PlayerID.
func NewPlayerID() PlayerID {
	return PlayerID{id: uuid.New()}
}

// ParsePlayerID validates s as a GUID and returns it as a PlayerID.
func ParsePlayerID(s string) (PlayerID, error) {
	id, err := parseGUID("player id", s)
	if err != nil {
		return PlayerID{}, err
	}
	return PlayerID{id: id}, nil
}

// PlayerIDFromUUID wraps a UUID read from storage.
func PlayerIDFromUUID(u uuid.UUID) (PlayerID, error) {
	if u == uuid.Nil {
		return PlayerID{}, ErrValidation("player id must not be the nil GUID")
	}
	return PlayerID{id: u}, nil
}

func (p PlayerID) String() string  { return p.id.String() }
func (p PlayerID) UUID() uuid.UUID { return p.id }
func (p PlayerID) IsZero() bool    { return p.id == uuid.Nil }

func (p PlayerID) MarshalText() ([]byte, error) {
	return []byte(p.id.String()), nil
}

func (p *PlayerID) UnmarshalText(b []byte) error {
	parsed, err := ParsePlayerID(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// SessionID identifies a game session.
type SessionID struct {
	id uuid.UUID
}

func NewSessionID() SessionID {
	return SessionID{id: uuid.New()}
}

// ParseSessionID validates s as a GUID and returns it as a SessionID.
func ParseSessionID(s string) (SessionID, error) {
	id, err := parseGUID("session id", s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID{id: id}, nil
}

func SessionIDFromUUID(u uuid.UUID) (SessionID, error) {
	if u == uuid.Nil {
		return SessionID{}, ErrValidation("session id must not be the nil GUID")
	}
	return SessionID{id: u}, nil
}

func (s SessionID) String() string  { return s.id.String() }
func (s SessionID) UUID() uuid.UUID { return s.id }
func (s SessionID) IsZero() bool    { return s.id == uuid.Nil }

func (s SessionID) MarshalText() ([]byte, error) {
	return []byte(s.id.String()), nil
}

func (s *SessionID) UnmarshalText(b []byte) error {
	parsed, err := ParseSessionID(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func parseGUID(field, s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, ErrValidation(field + " is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrValidation(fmt.Sprintf("%s %q is not a valid GUID", field, s))
	}
	if id == uuid.Nil {
		return uuid.Nil, ErrValidation(field + " must not be the nil GUID")
	}
	return id, nil
}
